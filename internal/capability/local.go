package capability

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"time"

	"boruna/internal/value"
)

// LocalHandler implements the capabilities that only need the local
// machine: reading/writing the filesystem, the wall clock, and a
// cryptographically-seeded random number. Grounded on the teacher's
// internal/service/fs.go (os.ReadFile/os.WriteFile error handling
// idiom) and internal/service/ts.go-style time service.
type LocalHandler struct{}

func (LocalHandler) Handle(_ context.Context, cap Capability, args []value.Value) (value.Value, error) {
	switch cap.Kind {
	case KindFsRead:
		return fsRead(args)
	case KindFsWrite:
		return fsWrite(args)
	case KindTimeNow:
		return value.Int(time.Now().UnixMilli()), nil
	case KindRandom:
		return randomFloat()
	default:
		return nil, fmt.Errorf("local handler: unsupported capability %s", cap.Name)
	}
}

func fsRead(args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("fs.read: missing path argument")
	}
	path, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("fs.read: path argument must be a string")
	}
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("fs.read: %w", err)
	}
	return value.String(data), nil
}

func fsWrite(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("fs.write: missing path/data argument")
	}
	path, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("fs.write: path argument must be a string")
	}
	data, ok := args[1].(value.String)
	if !ok {
		return nil, fmt.Errorf("fs.write: data argument must be a string")
	}
	if err := os.WriteFile(string(path), []byte(data), 0o644); err != nil {
		return nil, fmt.Errorf("fs.write: %w", err)
	}
	return value.Int(len(data)), nil
}

// randomFloat draws a uniform float in [0, 1) from crypto/rand — the
// VM's determinism guarantees cover replay of logged CapResults, not
// the live draw itself, so there is no requirement to use a seedable
// PRNG here.
func randomFloat() (value.Value, error) {
	const resolution = 1 << 53
	n, err := rand.Int(rand.Reader, big.NewInt(resolution))
	if err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}
	return value.Float(float64(n.Int64()) / float64(resolution)), nil
}

// DispatchHandler routes each capability call to the sub-handler
// registered for its Kind, falling back to Default (typically a
// MockHandler) for anything unregistered. This is the composite a CLI
// `run` wires up for an "allow-all, do it for real" policy, where
// NetFetch goes to HTTPHandler, DbQuery to DbQueryHandler, and the
// rest to LocalHandler.
type DispatchHandler struct {
	ByKind  map[Kind]Handler
	Default Handler
}

func NewDispatchHandler(byKind map[Kind]Handler, fallback Handler) *DispatchHandler {
	if fallback == nil {
		fallback = NewMockHandler(nil)
	}
	return &DispatchHandler{ByKind: byKind, Default: fallback}
}

func (d *DispatchHandler) Handle(ctx context.Context, cap Capability, args []value.Value) (value.Value, error) {
	if h, ok := d.ByKind[cap.Kind]; ok {
		return h.Handle(ctx, cap, args)
	}
	return d.Default.Handle(ctx, cap, args)
}
