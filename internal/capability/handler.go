package capability

import (
	"context"

	"boruna/internal/value"
)

// Handler is the capability gateway's sole polymorphic contract
// (spec.md §9: "the capability handler is the only genuinely
// polymorphic contract ... sealed sum or interface; do not use deep
// inheritance"). Implementations: MockHandler, HTTPHandler,
// ReplayHandler, DbQueryHandler.
type Handler interface {
	Handle(ctx context.Context, cap Capability, args []value.Value) (value.Value, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, cap Capability, args []value.Value) (value.Value, error)

func (f HandlerFunc) Handle(ctx context.Context, cap Capability, args []value.Value) (value.Value, error) {
	return f(ctx, cap, args)
}
