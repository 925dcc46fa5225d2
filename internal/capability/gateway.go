package capability

import (
	"context"
	"log/slog"
	"sync"

	"boruna/internal/eventlog"
	"boruna/internal/obslog"
	"boruna/internal/value"
)

// Gateway is the single authority for authorizing, accounting,
// logging, and executing every capability call (spec.md §4.2). It is
// owned exclusively by the VM that holds it (spec.md §5) — no
// synchronization beyond what call_count bookkeeping itself needs for
// reuse across tests is required by the spec, but we keep a mutex
// since a Gateway may be driven from worker-pool compile/validate
// offload per spec.md §5's carve-out.
type Gateway struct {
	mu        sync.Mutex
	policy    *Policy
	handler   Handler
	callCount map[string]uint64
	log       *slog.Logger
}

// NewGateway constructs a Gateway. A nil policy behaves as DenyAll(); a
// nil handler is replaced with a MockHandler with no canned responses.
func NewGateway(policy *Policy, handler Handler, log *slog.Logger) *Gateway {
	if policy == nil {
		policy = DenyAll()
	}
	if handler == nil {
		handler = NewMockHandler(nil)
	}
	if log == nil {
		log = obslog.Discard()
	}
	return &Gateway{
		policy:    policy,
		handler:   handler,
		callCount: make(map[string]uint64),
		log:       log,
	}
}

// Policy returns the gateway's current policy (read-only view).
func (g *Gateway) Policy() *Policy { return g.policy }

// CallCount returns how many times cap has been invoked so far.
func (g *Gateway) CallCount(cap string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCount[cap]
}

// Call implements the algorithm of spec.md §4.2:
//  1. look up the rule, deny if absent/disallowed
//  2. check budget
//  3. append CapCall to the log
//  4. invoke the handler
//  5. append CapResult to the log
//  6. increment call_count, return the value
func (g *Gateway) Call(ctx context.Context, cap Capability, args []value.Value, log *eventlog.EventLog) (value.Value, error) {
	g.mu.Lock()
	rule := g.policy.Rule(cap.Name)
	if !rule.Allow {
		g.mu.Unlock()
		return nil, &CapabilityDenied{Cap: cap.Name}
	}
	count := g.callCount[cap.Name]
	if rule.Budget > 0 && count >= rule.Budget {
		g.mu.Unlock()
		return nil, &BudgetDepleted{Cap: cap.Name}
	}
	g.mu.Unlock()

	if log != nil {
		log.Append(eventlog.NewCapCall(cap.Name, args))
	}

	g.log.Debug("capability call", slog.String("cap", cap.Name), slog.Int("argc", len(args)))
	result, err := g.handler.Handle(ctx, cap, args)
	if err != nil {
		return nil, &HandlerError{Cap: cap.Name, Err: err}
	}

	if log != nil {
		log.Append(eventlog.NewCapResult(cap.Name, result))
	}

	g.mu.Lock()
	g.callCount[cap.Name]++
	g.mu.Unlock()

	return result, nil
}
