package actors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/value"
)

func TestRootSpawnsChildBothComplete(t *testing.T) {
	root := value.Function{
		Name: "root",
		Code: []value.Op{
			{Code: value.OpSpawnActor, A: 1},
			{Code: value.OpRet},
		},
	}
	child := value.Function{
		Name: "child",
		Code: []value.Op{
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{Entry: 0, Functions: []value.Function{root, child}}
	sys := NewSystem(mod, nil, 4, 100)
	sys.SpawnRoot(0)

	err := sys.Run(context.Background())
	require.NoError(t, err)

	for id, a := range sys.Actors() {
		assert.Equalf(t, Completed, a.Status, "actor %d should be Completed", id)
	}
	assert.Len(t, sys.Actors(), 2)
}

func TestDeadlockWhenBlockedForeverWithNoSender(t *testing.T) {
	root := value.Function{
		Name: "root",
		Code: []value.Op{
			{Code: value.OpReceiveMsg},
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{Entry: 0, Functions: []value.Function{root}}
	sys := NewSystem(mod, nil, 4, 100)
	sys.SpawnRoot(0)

	err := sys.Run(context.Background())
	require.Error(t, err)
	var dl *Deadlock
	require.ErrorAs(t, err, &dl)
}

func TestMaxRoundsExceededOnInfiniteLoop(t *testing.T) {
	root := value.Function{
		Name: "root",
		Code: []value.Op{
			{Code: value.OpJmp, A: 0},
		},
	}
	mod := &value.Module{Entry: 0, Functions: []value.Function{root}}
	sys := NewSystem(mod, nil, 4, 3)
	sys.SpawnRoot(0)

	err := sys.Run(context.Background())
	require.Error(t, err)
	var mre *MaxRoundsExceeded
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 3, mre.Limit)
}

// TestSupervisionCascadeAndErrorPropagation: root spawns a child which
// itself queues a spawn for a grandchild and then divides by zero in
// the same slice. The grandchild's spawn request must be discarded,
// not materialized, and root — parked on ReceiveMsg — must wake up
// with the child's error delivered as an Err(String) message
// (spec.md §4.4).
func TestSupervisionCascadeAndErrorPropagation(t *testing.T) {
	root := value.Function{
		Name: "root",
		Code: []value.Op{
			{Code: value.OpSpawnActor, A: 1},
			{Code: value.OpReceiveMsg},
			{Code: value.OpHalt},
		},
	}
	child := value.Function{
		Name: "child",
		Code: []value.Op{
			{Code: value.OpSpawnActor, A: 2},
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpDiv},
			{Code: value.OpRet},
		},
	}
	grandchild := value.Function{
		Name: "grandchild",
		Code: []value.Op{
			{Code: value.OpReceiveMsg},
			{Code: value.OpHalt},
		},
	}
	mod := &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(1), value.Int(0)},
		Functions: []value.Function{root, child, grandchild},
	}
	sys := NewSystem(mod, nil, 4, 100)
	sys.SpawnRoot(0)

	err := sys.Run(context.Background())
	require.NoError(t, err)

	childActor, ok := sys.Actor(1)
	require.True(t, ok)
	assert.Equal(t, Failed, childActor.Status)

	assert.Len(t, sys.Actors(), 2, "the grandchild's spawn request must never materialize")
	_, ok = sys.Actor(2)
	assert.False(t, ok, "grandchild must not exist: spawns from a failing slice are discarded")

	rootActor, ok := sys.Actor(0)
	require.True(t, ok)
	assert.Equal(t, Completed, rootActor.Status)
	result, ok := rootActor.Result.(*value.Result)
	require.True(t, ok, "root should have received the child's Err(String) message")
	assert.False(t, result.Ok)
}
