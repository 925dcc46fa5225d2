// Package effect executes the effect descriptors an internal/framework
// update cycle returns: one capability call per descriptor (except
// emit_ui, which has no capability behind it), producing callback
// messages fed back into the next framework cycle (spec.md §4.6).
//
// Grounded on the teacher's internal/evaluator/slug_io_fs.go and
// slug_time.go foreign-function shape (one Go function per effect
// kind, dispatched by name), generalized to dispatch through the
// capability Gateway instead of calling os/time directly.
package effect

import (
	"context"
	"fmt"

	"boruna/internal/capability"
	"boruna/internal/eventlog"
	"boruna/internal/value"
)

// kindToCapability maps an effect descriptor's "kind" field to the
// capability it must be authorized against. emit_ui has no entry: it
// never reaches the Gateway.
var kindToCapability = map[string]capability.Kind{
	"http_request": capability.KindNetFetch,
	"db_query":     capability.KindDbQuery,
	"timer":        capability.KindTimeNow,
	"random":       capability.KindRandom,
	"fs_read":      capability.KindFsRead,
	"fs_write":     capability.KindFsWrite,
	"spawn_actor":  capability.KindActorSpawn,
}

const emitUIKind = "emit_ui"

// Descriptor is a decoded effect: kind, positional args, and an
// opaque callback tag the framework attaches to the resulting message
// so update() can tell which effect a callback answers.
type Descriptor struct {
	Kind     string
	Args     []value.Value
	Callback value.Value
}

// Decode reads a Descriptor out of the Map shape update() emits:
// {"kind": String, "args": List, "callback": Value}.
func Decode(v value.Value) (Descriptor, error) {
	m, ok := v.(*value.Map)
	if !ok {
		return Descriptor{}, fmt.Errorf("E_RUNTIME: effect descriptor must be a Map, got %s", value.TypeName(v))
	}
	kindVal, ok := m.Get("kind")
	if !ok {
		return Descriptor{}, fmt.Errorf("E_RUNTIME: effect descriptor missing \"kind\"")
	}
	kindStr, ok := kindVal.(value.String)
	if !ok {
		return Descriptor{}, fmt.Errorf("E_RUNTIME: effect \"kind\" must be a String")
	}
	var args []value.Value
	if argsVal, ok := m.Get("args"); ok {
		items, ok := value.AsListItems(argsVal)
		if !ok {
			return Descriptor{}, fmt.Errorf("E_RUNTIME: effect \"args\" must be a List")
		}
		args = items
	}
	callback, _ := m.Get("callback")
	return Descriptor{Kind: string(kindStr), Args: args, Callback: callback}, nil
}

// Executor drives effect descriptors through a capability Gateway.
type Executor struct {
	Gateway *capability.Gateway
}

func NewExecutor(gw *capability.Gateway) *Executor {
	return &Executor{Gateway: gw}
}

// callbackMessage is the shape fed back into the next framework
// cycle: a Record pairing the effect's callback tag with its result.
func callbackMessage(tag value.Value, result value.Value) value.Value {
	if tag == nil {
		tag = value.Unit{}
	}
	return &value.Record{Fields: []value.Value{tag, result}}
}

// Run executes effects in order, preserving positional alignment in
// its return slice: an emit_ui descriptor contributes no callback and
// leaves a Unit{} gap rather than shifting later results down
// (spec.md §4.6 "preserving input order with emit_ui gaps").
func (e *Executor) Run(ctx context.Context, effects []value.Value, log *eventlog.EventLog) ([]value.Value, error) {
	results := make([]value.Value, 0, len(effects))
	for _, raw := range effects {
		d, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		if d.Kind == emitUIKind {
			if len(d.Args) > 0 {
				log.Append(eventlog.NewUiEmit(d.Args[0]))
			}
			results = append(results, value.Unit{})
			continue
		}
		kind, ok := kindToCapability[d.Kind]
		if !ok {
			return nil, fmt.Errorf("E_RUNTIME: unknown effect kind %q", d.Kind)
		}
		cap, err := capability.Lookup(uint16(kind))
		if err != nil {
			return nil, err
		}
		result, err := e.Gateway.Call(ctx, cap, d.Args, log)
		if err != nil {
			return nil, err
		}
		results = append(results, callbackMessage(d.Callback, result))
	}
	return results, nil
}
