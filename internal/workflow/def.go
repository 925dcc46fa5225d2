// Package workflow implements Boruna's workflow DAG: validation,
// deterministic topological execution, approval gates, and bounded
// retry (spec.md §4.7).
//
// Grounded on the teacher's internal/evaluator/module_loader.go
// (dependency-ordered module loading) and internal/evaluator/nursery.go
// (child bookkeeping/failure propagation idiom), repurposed from a
// module-import graph to a step-execution graph.
package workflow

import "boruna/internal/capability"

// RetryPolicy gates whether a failed step is retried once before the
// step (and the workflow) are marked Failed. Only a policy with
// MaxAttempts>1 and OnTransient set is consulted — the same gate the
// original runner applies before its single retry (spec.md §4.7).
type RetryPolicy struct {
	MaxAttempts int  `json:"max_attempts"`
	OnTransient bool `json:"on_transient"`
}

// StepBudget caps how many calls this step's policy permits for each
// capability listed in Capabilities (each one gets its own MaxCalls
// budget), folded into the step's effective Policy at execution time.
type StepBudget struct {
	MaxCalls uint64 `json:"max_calls"`
}

// StepDef is one node in a WorkflowDef's dependency DAG.
type StepDef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// FuncIdx is the entry point, within the workflow's shared Module,
	// this step invokes once its dependencies have produced results.
	FuncIdx uint32 `json:"func_idx"`

	// Path records the source module this step was compiled from, for
	// provenance and validation; required for every non-gate step.
	Path string `json:"path,omitempty"`

	// RequiredRole names the role that must approve this step; required
	// whenever ApprovalGate is set.
	RequiredRole string `json:"required_role,omitempty"`

	// DependsOn lists step ids whose results become this step's
	// positional input arguments, in the order listed.
	DependsOn []string `json:"depends_on,omitempty"`

	// ApprovalGate pauses the runner after DependsOn is satisfied,
	// until Runner.Approve(ID) is called.
	ApprovalGate bool `json:"approval_gate,omitempty"`

	// Policy scopes this step's capability policy; nil inherits the
	// workflow's default policy.
	Policy *capability.Policy `json:"policy,omitempty"`

	// Capabilities lists the capability names Budget applies to.
	Capabilities []string `json:"capabilities,omitempty"`

	// Retry configures single-retry-on-transient-failure behavior.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutMs bounds this step's execution; 0 means no timeout.
	TimeoutMs int `json:"timeout_ms,omitempty"`

	// Budget caps capability calls this step may make.
	Budget *StepBudget `json:"budget,omitempty"`
}

// Edge is an explicit step-to-step ordering constraint, merged with
// every step's DependsOn list when computing execution order.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WorkflowDef is a named, versioned, validated set of steps.
type WorkflowDef struct {
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	Steps         []StepDef          `json:"steps"`
	Edges         []Edge             `json:"edges,omitempty"`
	DefaultPolicy *capability.Policy `json:"default_policy,omitempty"`
}

func (w *WorkflowDef) stepByID(id string) (StepDef, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepDef{}, false
}
