// Package framework implements Boruna's Elm-style init/update/view
// contract on top of internal/vm: a pure state machine whose update
// and view steps run under a deny-all capability policy, so the only
// way a program touches the outside world is by returning effect
// descriptors for internal/effect to execute (spec.md §4.5).
//
// Grounded on the teacher's internal/evaluator/runtime.go process
// bookkeeping and internal/evaluator/module_loader.go's module
// lifecycle, generalized from an actor-mailbox loop to a single
// deterministic state-transition cycle.
package framework

import (
	"context"
	"fmt"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/value"
	"boruna/internal/vm"
)

// Contract names the three entry points a framework Module must
// export: a zero-arg init, a (state, msg) -> (state, effects) update,
// and a state -> view-tree view.
type Contract struct {
	InitFn   uint32
	UpdateFn uint32
	ViewFn   uint32
}

// Runtime drives one Contract against one Module. Every update/view
// call is executed through a fresh Vm under a deny-all gateway —
// purity is enforced structurally, not by convention.
type Runtime struct {
	module   *value.Module
	contract Contract
	eventLog *eventlog.EventLog
	pureGw   *capability.Gateway

	state   value.Value
	cycles  []CycleRecord
	started bool
}

// New constructs a Runtime. The module's own capability gateway is
// intentionally not threaded through: update/view never see it.
func New(module *value.Module, contract Contract) *Runtime {
	return &Runtime{
		module:   module,
		contract: contract,
		eventLog: eventlog.New(),
		pureGw:   capability.NewGateway(capability.DenyAll(), capability.NewMockHandler(nil), nil),
	}
}

func (r *Runtime) EventLog() *eventlog.EventLog { return r.eventLog }
func (r *Runtime) State() value.Value           { return r.state }
func (r *Runtime) Cycles() []CycleRecord        { return r.cycles }

func (r *Runtime) callPure(ctx context.Context, fnIdx uint32, args []value.Value) (value.Value, error) {
	v := vm.New(r.module, r.pureGw)
	v.SetEntryFunction(int(fnIdx))
	v.SetInitialArgs(args)
	v.SetEventLog(r.eventLog)
	return v.Run(ctx)
}

// Init runs the module's init function and stores the resulting
// initial state. Must be called once before Send.
func (r *Runtime) Init(ctx context.Context) (value.Value, error) {
	if r.started {
		return nil, fmt.Errorf("E_RUNTIME: framework already initialized")
	}
	state, err := r.callPure(ctx, r.contract.InitFn, nil)
	if err != nil {
		return nil, err
	}
	r.state = state
	r.started = true
	return state, nil
}

// updateResult is the (new_state, effects) pair update() returns,
// modeled as a two-field Record — the natural Elm-architecture shape,
// resolved here since spec.md leaves the exact encoding unspecified
// (see DESIGN.md).
func splitUpdateResult(v value.Value) (state value.Value, effects []value.Value, err error) {
	rec, ok := v.(*value.Record)
	if !ok || len(rec.Fields) != 2 {
		return nil, nil, fmt.Errorf("E_RUNTIME: update must return a 2-field Record{state, effects}, got %s", value.TypeName(v))
	}
	state = rec.Fields[0]
	items, ok := value.AsListItems(rec.Fields[1])
	if !ok {
		return nil, nil, fmt.Errorf("E_RUNTIME: update's second field must be a List of effects")
	}
	return state, items, nil
}

// Send runs one full update+view cycle: update(state, msg) -> (newState,
// effects), then view(newState) -> tree. Both run under the deny-all
// gateway. The cycle is recorded for replay verification (spec.md §8,
// property D1).
func (r *Runtime) Send(ctx context.Context, msg value.Value) (CycleRecord, error) {
	if !r.started {
		return CycleRecord{}, fmt.Errorf("E_RUNTIME: framework not initialized")
	}
	before := r.state
	updateOut, err := r.callPure(ctx, r.contract.UpdateFn, []value.Value{before, msg})
	if err != nil {
		return CycleRecord{}, err
	}
	newState, effects, err := splitUpdateResult(updateOut)
	if err != nil {
		return CycleRecord{}, err
	}
	view, err := r.callPure(ctx, r.contract.ViewFn, []value.Value{newState})
	if err != nil {
		return CycleRecord{}, err
	}

	rec := CycleRecord{
		Index:    len(r.cycles),
		Msg:      msg,
		OldState: before,
		NewState: newState,
		View:     view,
		Effects:  effects,
	}
	r.cycles = append(r.cycles, rec)
	r.state = newState
	return rec, nil
}

// Effector executes a batch of effect descriptors and returns any
// callback messages they produce. This is the seam internal/effect's
// Executor plugs into; framework stays capability-agnostic.
type Effector func(ctx context.Context, effects []value.Value) ([]value.Value, error)

// SendWithExecutor runs one update+view cycle via Send, then passes
// any effects it produced to effector. The resulting callback
// messages are returned to the caller, not auto-fed back through
// another Send — the caller decides when, or whether, to dispatch
// them (spec.md §4.5).
func (r *Runtime) SendWithExecutor(ctx context.Context, msg value.Value, effector Effector) (CycleRecord, []value.Value, error) {
	rec, err := r.Send(ctx, msg)
	if err != nil {
		return CycleRecord{}, nil, err
	}
	if len(rec.Effects) == 0 {
		return rec, nil, nil
	}
	callbacks, err := effector(ctx, rec.Effects)
	if err != nil {
		return rec, nil, err
	}
	return rec, callbacks, nil
}
