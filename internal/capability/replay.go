package capability

import (
	"context"
	"fmt"
	"sync"

	"boruna/internal/eventlog"
	"boruna/internal/value"
)

// ReplayHandler consumes a pre-recorded result queue, per capability
// name, and errors when exhausted (spec.md §4.2, §7 replay errors).
type ReplayHandler struct {
	mu     sync.Mutex
	queues map[string][]value.Value
}

// NewReplayHandlerFromLog builds a ReplayHandler from a recorded
// EventLog's CapResult events, in order, grouped by capability name.
func NewReplayHandlerFromLog(log *eventlog.EventLog) *ReplayHandler {
	queues := make(map[string][]value.Value)
	for _, e := range log.CapEvents() {
		if e.Kind == eventlog.KindCapResult {
			queues[e.CapResult.Cap] = append(queues[e.CapResult.Cap], e.CapResult.Value)
		}
	}
	return &ReplayHandler{queues: queues}
}

func (h *ReplayHandler) Handle(_ context.Context, cap Capability, _ []value.Value) (value.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := h.queues[cap.Name]
	if len(q) == 0 {
		return nil, fmt.Errorf("E_REPLAY: no recorded result remaining for %s", cap.Name)
	}
	v := q[0]
	h.queues[cap.Name] = q[1:]
	return v.Clone(), nil
}
