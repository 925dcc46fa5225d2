package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boruna/internal/capability"
	"boruna/internal/value"
)

func pipelineModule() *value.Module {
	stepA := value.Function{
		Name: "a",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpRet},
		},
	}
	stepB := value.Function{
		Name:   "b",
		Arity:  1,
		Locals: 1,
		Code: []value.Op{
			{Code: value.OpLoadLocal, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpMul},
			{Code: value.OpRet},
		},
	}
	stepC := value.Function{
		Name:   "c",
		Arity:  1,
		Locals: 1,
		Code: []value.Op{
			{Code: value.OpLoadLocal, A: 0},
			{Code: value.OpLoadConst, A: 2},
			{Code: value.OpAdd},
			{Code: value.OpRet},
		},
	}
	return &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(1), value.Int(2), value.Int(10)},
		Functions: []value.Function{stepA, stepB, stepC},
	}
}

func pipelineDef() WorkflowDef {
	return WorkflowDef{
		Name:    "pipeline",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "a", FuncIdx: 0, Path: "steps/a.ax"},
			{ID: "b", FuncIdx: 1, Path: "steps/b.ax", DependsOn: []string{"a"}},
			{ID: "c", FuncIdx: 2, DependsOn: []string{"b"}, ApprovalGate: true, RequiredRole: "reviewer"},
		},
		DefaultPolicy: capability.AllowAll(),
	}
}

func TestValidateReturnsDeterministicTopologicalOrder(t *testing.T) {
	order, err := Validate(pipelineDef(), pipelineModule())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestValidateDetectsCycle(t *testing.T) {
	def := WorkflowDef{
		Name:    "cycle",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "x", Path: "x.ax", DependsOn: []string{"y"}},
			{ID: "y", Path: "y.ax", DependsOn: []string{"z"}},
			{ID: "z", Path: "z.ax", DependsOn: []string{"x"}},
		},
	}
	_, err := Validate(def, pipelineModule())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	found := false
	for _, p := range verr.Problems {
		if strings.Contains(p, "resolved 0 of 3") {
			found = true
		}
	}
	assert.True(t, found, "cycle message must report resolved-vs-total count: %v", verr.Problems)
}

func TestValidateRejectsMissingNameVersionAndStepFields(t *testing.T) {
	def := WorkflowDef{
		Steps: []StepDef{
			{ID: "gate", ApprovalGate: true},
		},
	}
	_, err := Validate(def, pipelineModule())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	joined := strings.Join(verr.Problems, "\n")
	assert.Contains(t, joined, "name is empty")
	assert.Contains(t, joined, "version is empty")
	assert.Contains(t, joined, "required_role")
}

func TestValidateDetectsDuplicateEdge(t *testing.T) {
	def := WorkflowDef{
		Name:    "dup-edge",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "a", Path: "a.ax"},
			{ID: "b", Path: "b.ax"},
		},
		Edges: []Edge{{From: "a", To: "b"}, {From: "a", To: "b"}},
	}
	_, err := Validate(def, pipelineModule())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	joined := strings.Join(verr.Problems, "\n")
	assert.Contains(t, joined, "duplicate edge")
}

func TestValidateDetectsUnknownDependencyAndDuplicateID(t *testing.T) {
	def := WorkflowDef{
		Steps: []StepDef{
			{ID: "a"},
			{ID: "a"},
			{ID: "b", DependsOn: []string{"ghost"}},
		},
	}
	_, err := Validate(def, pipelineModule())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Problems), 2)
}

func TestRunnerPausesAtApprovalGateThenResumes(t *testing.T) {
	runner, err := NewRunner(pipelineDef(), pipelineModule(), capability.NewMockHandler(nil))
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	var paused *Paused
	require.ErrorAs(t, err, &paused)
	assert.Equal(t, "c", paused.StepID)

	results := runner.Results()
	assert.Equal(t, Succeeded, results["a"].Status)
	assert.Equal(t, Succeeded, results["b"].Status)
	assert.Equal(t, value.Int(2), results["b"].Output)

	require.NoError(t, runner.Approve("c"))
	err = runner.Run(context.Background())
	require.NoError(t, err)

	final := runner.Results()["c"]
	assert.Equal(t, Succeeded, final.Status)
	assert.Equal(t, value.Int(12), final.Output)
	assert.NotEmpty(t, final.Hash)
}

func failingWorkflowModule() *value.Module {
	failing := value.Function{
		Name: "failing",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpLoadConst, A: 1},
			{Code: value.OpDiv},
			{Code: value.OpRet},
		},
	}
	dependent := value.Function{
		Name:   "dependent",
		Arity:  1,
		Locals: 1,
		Code: []value.Op{
			{Code: value.OpLoadLocal, A: 0},
			{Code: value.OpRet},
		},
	}
	independent := value.Function{
		Name: "independent",
		Code: []value.Op{
			{Code: value.OpLoadConst, A: 0},
			{Code: value.OpRet},
		},
	}
	return &value.Module{
		Entry:     0,
		Constants: []value.Value{value.Int(1), value.Int(0)},
		Functions: []value.Function{failing, dependent, independent},
	}
}

func TestRunnerRetriesOnlyWithRetryPolicyThenHaltsAndSkipsDependents(t *testing.T) {
	mod := failingWorkflowModule()
	def := WorkflowDef{
		Name:    "halts-on-failure",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "bad", FuncIdx: 0, Path: "bad.ax", Retry: &RetryPolicy{MaxAttempts: 2, OnTransient: true}},
			{ID: "downstream", FuncIdx: 1, Path: "downstream.ax", DependsOn: []string{"bad"}},
		},
		DefaultPolicy: capability.AllowAll(),
	}
	runner, err := NewRunner(def, mod, capability.NewMockHandler(nil))
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	var paused *Paused
	assert.False(t, errors.As(err, &paused))

	results := runner.Results()
	assert.Equal(t, Failed, results["bad"].Status)
	assert.Equal(t, 2, results["bad"].Attempts, "retry policy must grant exactly one retry")
	_, ok := results["downstream"]
	assert.False(t, ok, "workflow must halt before attempting any further step")

	// A second Run call, without re-attempting "bad", cascades Skipped
	// to the step blocked on it instead of executing it.
	err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Skipped, runner.Results()["downstream"].Status)
}

func TestRunnerDoesNotRetryWithoutARetryPolicy(t *testing.T) {
	mod := failingWorkflowModule()
	def := WorkflowDef{
		Name:    "no-retry",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "bad", FuncIdx: 0, Path: "bad.ax"},
		},
		DefaultPolicy: capability.AllowAll(),
	}
	runner, err := NewRunner(def, mod, capability.NewMockHandler(nil))
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)

	results := runner.Results()
	assert.Equal(t, Failed, results["bad"].Status)
	assert.Equal(t, 1, results["bad"].Attempts, "a step with no retry policy must not be retried")
}

func TestRunnerHaltsBeforeExecutingIndependentStepAfterFailure(t *testing.T) {
	mod := failingWorkflowModule()
	def := WorkflowDef{
		Name:    "independent-steps",
		Version: "1.0.0",
		Steps: []StepDef{
			{ID: "bad", FuncIdx: 0, Path: "bad.ax"},
			{ID: "unrelated", FuncIdx: 2, Path: "unrelated.ax"},
		},
		DefaultPolicy: capability.AllowAll(),
	}
	runner, err := NewRunner(def, mod, capability.NewMockHandler(nil))
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)

	_, ok := runner.Results()["unrelated"]
	assert.False(t, ok, "an independent step must not run once the workflow has halted")
}
