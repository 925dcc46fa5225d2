package capability

import (
	"context"

	"boruna/internal/value"
)

// MockHandler returns deterministic, fixed responses keyed by
// capability name. It is the default handler for tests and for
// Replay (spec.md §4.2).
type MockHandler struct {
	Responses map[string]value.Value
	Default   value.Value
}

func NewMockHandler(responses map[string]value.Value) *MockHandler {
	if responses == nil {
		responses = make(map[string]value.Value)
	}
	return &MockHandler{Responses: responses, Default: value.Unit{}}
}

func (h *MockHandler) Handle(_ context.Context, cap Capability, _ []value.Value) (value.Value, error) {
	if v, ok := h.Responses[cap.Name]; ok {
		return v.Clone(), nil
	}
	return h.Default.Clone(), nil
}
