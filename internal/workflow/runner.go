package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/value"
	"boruna/internal/vm"
)

// StepStatus is a step's lifecycle state within a Runner.
type StepStatus int

const (
	Pending StepStatus = iota
	Waiting            // parked on an unapproved ApprovalGate
	Succeeded
	Failed
	Skipped // a dependency failed or was skipped
)

// StepResult is the recorded outcome of one step execution.
type StepResult struct {
	ID       string
	Status   StepStatus
	Output   value.Value
	Hash     string
	Err      error
	Attempts int
}

// Paused is returned by Run when it reaches an unapproved
// ApprovalGate; call Approve then Run again to resume.
type Paused struct {
	StepID string
}

func (p *Paused) Error() string {
	return fmt.Sprintf("E_WORKFLOW: paused at approval gate %q", p.StepID)
}

// Runner executes a validated WorkflowDef's steps in topological
// order, one Vm-to-completion run per step.
type Runner struct {
	RunID uuid.UUID

	def     WorkflowDef
	module  *value.Module
	handler capability.Handler
	order   []string

	eventLog *eventlog.EventLog
	results  map[string]StepResult
	approved map[string]bool
}

// NewRunner validates def against module and prepares a Runner over
// its deterministic execution order.
func NewRunner(def WorkflowDef, module *value.Module, handler capability.Handler) (*Runner, error) {
	order, err := Validate(def, module)
	if err != nil {
		return nil, err
	}
	return &Runner{
		RunID:    uuid.New(),
		def:      def,
		module:   module,
		handler:  handler,
		order:    order,
		eventLog: eventlog.New(),
		results:  make(map[string]StepResult),
		approved: make(map[string]bool),
	}, nil
}

func (r *Runner) EventLog() *eventlog.EventLog  { return r.eventLog }
func (r *Runner) Results() map[string]StepResult { return r.results }

// Approve unblocks a step parked at an ApprovalGate, clearing its
// Waiting placeholder so the next Run call executes it.
func (r *Runner) Approve(stepID string) error {
	if _, ok := r.def.stepByID(stepID); !ok {
		return fmt.Errorf("E_WORKFLOW: unknown step %q", stepID)
	}
	r.approved[stepID] = true
	if res, ok := r.results[stepID]; ok && res.Status == Waiting {
		delete(r.results, stepID)
	}
	return nil
}

// Run executes every not-yet-settled step in topological order. It
// returns *Paused if it reaches an unapproved gate (call Approve, then
// Run again to resume from there). A step failure halts the workflow
// immediately — steps later in the order are left unresolved rather
// than executed (spec.md §4.7); calling Run again after a failure
// marks any step blocked on it Skipped without re-attempting it.
func (r *Runner) Run(ctx context.Context) error {
	for _, id := range r.order {
		if _, done := r.results[id]; done {
			continue
		}
		step, _ := r.def.stepByID(id)

		if step.ApprovalGate && !r.approved[id] {
			r.results[id] = StepResult{ID: id, Status: Waiting}
			return &Paused{StepID: id}
		}

		if skipReason := r.blockedByDependency(step); skipReason != "" {
			r.results[id] = StepResult{ID: id, Status: Skipped}
			continue
		}

		output, attempts, err := r.execStepWithRetry(ctx, step)
		if err != nil {
			r.results[id] = StepResult{ID: id, Status: Failed, Err: err, Attempts: attempts}
			return fmt.Errorf("E_WORKFLOW: step %q failed, workflow halted: %w", id, err)
		}
		r.results[id] = StepResult{
			ID:       id,
			Status:   Succeeded,
			Output:   output,
			Hash:     hashValue(output),
			Attempts: attempts,
		}
	}
	return nil
}

func (r *Runner) blockedByDependency(step StepDef) string {
	for _, dep := range step.DependsOn {
		res, ok := r.results[dep]
		if !ok || res.Status != Succeeded {
			return dep
		}
	}
	return ""
}

// execStepWithRetry runs the step once, and again exactly once more on
// failure, but only when the step's own RetryPolicy asks for it
// (MaxAttempts>1 && OnTransient) — spec.md §4.7 scopes retry to steps
// that opt in, not every failure.
func (r *Runner) execStepWithRetry(ctx context.Context, step StepDef) (value.Value, int, error) {
	output, err := r.execStep(ctx, step)
	if err == nil {
		return output, 1, nil
	}
	if step.Retry == nil || step.Retry.MaxAttempts <= 1 || !step.Retry.OnTransient {
		return nil, 1, err
	}
	output, err = r.execStep(ctx, step)
	if err == nil {
		return output, 2, nil
	}
	return nil, 2, err
}

func (r *Runner) execStep(ctx context.Context, step StepDef) (value.Value, error) {
	var args []value.Value
	for _, dep := range step.DependsOn {
		args = append(args, r.results[dep].Output)
	}

	gw := capability.NewGateway(r.stepPolicy(step), r.handler, nil)

	runCtx := ctx
	if step.TimeoutMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	v := vm.New(r.module, gw)
	v.SetEntryFunction(int(step.FuncIdx))
	v.SetInitialArgs(args)
	v.SetEventLog(r.eventLog)
	return v.Run(runCtx)
}

// stepPolicy builds the step's effective policy: its own override or
// the workflow default, with Budget.MaxCalls folded in across
// Capabilities — mirrors the original's build_step_policy.
func (r *Runner) stepPolicy(step StepDef) *capability.Policy {
	base := step.Policy
	if base == nil {
		base = r.def.DefaultPolicy
	}
	if base == nil || step.Budget == nil || step.Budget.MaxCalls == 0 || len(step.Capabilities) == 0 {
		return base
	}
	clone := &capability.Policy{Rules: make(map[string]capability.Rule, len(base.Rules)), NetPolicy: base.NetPolicy}
	for name, rule := range base.Rules {
		clone.Rules[name] = rule
	}
	for _, name := range step.Capabilities {
		clone.Rules[name] = capability.Rule{Allow: true, Budget: step.Budget.MaxCalls}
	}
	return clone
}

func hashValue(v value.Value) string {
	if v == nil {
		v = value.Unit{}
	}
	b, err := value.ToCanonicalJSON(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
