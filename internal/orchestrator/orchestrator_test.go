package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, deps []string, role Role, outputs ...string) WorkNode {
	return WorkNode{ID: id, Description: "node " + id, Dependencies: deps, OwnerRole: role, OutputModules: outputs}
}

func TestValidateAcceptsDAG(t *testing.T) {
	g := WorkGraph{ID: "G1", Nodes: []WorkNode{
		node("A", nil, RoleImplementer),
		node("B", []string{"A"}, RoleImplementer),
		node("C", []string{"A"}, RoleReviewer),
	}}
	s := NewScheduler(g, 4)
	require.NoError(t, s.Validate())
}

func TestValidateDetectsCycle(t *testing.T) {
	g := WorkGraph{ID: "G2", Nodes: []WorkNode{
		node("A", []string{"C"}, RoleImplementer),
		node("B", []string{"A"}, RoleImplementer),
		node("C", []string{"B"}, RoleImplementer),
	}}
	s := NewScheduler(g, 4)
	require.Error(t, s.Validate())
}

func TestReadyNodesRespectsDependenciesAndConcurrencyLimit(t *testing.T) {
	g := WorkGraph{Nodes: []WorkNode{
		node("A", nil, RoleImplementer),
		node("B", nil, RoleImplementer),
		node("C", []string{"A"}, RoleImplementer),
	}}
	s := NewScheduler(g, 1)
	ready := s.ReadyNodes()
	assert.Equal(t, []string{"A"}, ready)
}

func TestAssignNextPicksLowestIDForRoleThenNoneLeft(t *testing.T) {
	g := WorkGraph{Nodes: []WorkNode{
		node("A", nil, RoleImplementer),
		node("B", nil, RoleReviewer),
	}}
	s := NewScheduler(g, 4)

	id, err := s.AssignNext(RoleImplementer)
	require.NoError(t, err)
	assert.Equal(t, "A", id)

	id, err = s.AssignNext(RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, "B", id)

	id, err = s.AssignNext(RoleImplementer)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestAssignNextAcquiresOutputLocksAndBlocksOnConflict(t *testing.T) {
	g := WorkGraph{Nodes: []WorkNode{
		node("A", nil, RoleImplementer, "mod.core"),
		node("B", nil, RoleImplementer, "mod.core"),
	}}
	s := NewScheduler(g, 4)

	id, err := s.AssignNext(RoleImplementer)
	require.NoError(t, err)
	assert.Equal(t, "A", id)

	id, err = s.AssignNext(RoleImplementer)
	require.Error(t, err)
	assert.Empty(t, id)
	var conflict *LockConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "mod.core", conflict.Module)
	assert.Equal(t, "A", conflict.HeldBy)
	assert.Equal(t, "B", conflict.Requester)
	assert.Equal(t, Blocked, s.Graph.Nodes[s.Graph.nodeIndex("B")].Status)
}

func TestMarkPassedReleasesLockForDependent(t *testing.T) {
	g := WorkGraph{Nodes: []WorkNode{
		node("A", nil, RoleImplementer, "mod.core"),
		node("B", []string{"A"}, RoleImplementer, "mod.core"),
	}}
	s := NewScheduler(g, 4)

	id, err := s.AssignNext(RoleImplementer)
	require.NoError(t, err)
	require.Equal(t, "A", id)
	require.NoError(t, s.MarkPassed("A"))

	id, err = s.AssignNext(RoleImplementer)
	require.NoError(t, err)
	assert.Equal(t, "B", id)
}

func TestSummaryCountsEachStatus(t *testing.T) {
	g := WorkGraph{Nodes: []WorkNode{
		node("A", nil, RoleImplementer),
		node("B", []string{"A"}, RoleImplementer),
		node("C", nil, RoleReviewer),
	}}
	s := NewScheduler(g, 4)
	s.Graph.Nodes[0].Status = Passed
	s.Graph.Nodes[2].Status = Running

	sum := s.Summary()
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Running)
	assert.Equal(t, 1, sum.Pending)
}

type stubAdapter struct {
	name   string
	status GateStatus
}

func (a stubAdapter) Name() string { return a.name }
func (a stubAdapter) Run(ctx context.Context, gc GateContext) GateResult {
	return GateResult{Gate: a.name, Status: a.status}
}

func TestRunGatesReportsFirstFailure(t *testing.T) {
	adapters := []Adapter{
		stubAdapter{name: "compile", status: GatePass},
		stubAdapter{name: "test", status: GateFail},
		stubAdapter{name: "replay", status: GatePass},
	}
	failure, results := RunGates(context.Background(), adapters, GateContext{})
	require.NotNil(t, failure)
	assert.Equal(t, "test", failure.Gate)
	assert.Len(t, results, 3)
}

func TestRunGatesAllPassReturnsNilFailure(t *testing.T) {
	adapters := []Adapter{
		stubAdapter{name: "compile", status: GatePass},
		stubAdapter{name: "test", status: GatePass},
	}
	failure, results := RunGates(context.Background(), adapters, GateContext{})
	assert.Nil(t, failure)
	assert.Len(t, results, 2)
}
