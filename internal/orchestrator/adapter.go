package orchestrator

import "context"

// GateStatus is the outcome of one Adapter run.
type GateStatus string

const (
	GatePass GateStatus = "pass"
	GateFail GateStatus = "fail"
	GateSkip GateStatus = "skip"
)

// GateResult is what an Adapter reports for one node.
type GateResult struct {
	Gate       string
	Status     GateStatus
	DurationMs int64
	Output     string
}

// GateContext is the information an Adapter needs to run its gate
// against a node's produced changes.
type GateContext struct {
	WorkspaceRoot string
	ExampleFiles  []string
}

// Adapter wraps an external check (compile, test, replay) that a
// review node must pass before a Scheduler will mark it Passed. The
// concrete checks this wraps — compiling and running `.ax` sources —
// are external collaborators outside this module's scope (spec.md's
// compiler boundary), so Adapter only represents the contract; no
// concrete compile/test adapter ships here.
type Adapter interface {
	Name() string
	Run(ctx context.Context, gc GateContext) GateResult
}

// RunGates runs every adapter against gc in order and reports the
// first GateFail result, or nil if no gate failed (a GateSkip is not
// reported as a failure), along with every gate's result.
func RunGates(ctx context.Context, adapters []Adapter, gc GateContext) (*GateResult, []GateResult) {
	results := make([]GateResult, 0, len(adapters))
	var firstFailure *GateResult
	for _, a := range adapters {
		res := a.Run(ctx, gc)
		results = append(results, res)
		if firstFailure == nil && res.Status == GateFail {
			r := res
			firstFailure = &r
		}
	}
	return firstFailure, results
}
