package workflow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"boruna/internal/capability"
	"boruna/internal/value"
)

// ValidateAll validates many workflow defs concurrently, bounded by
// GOMAXPROCS worker slots — useful for a registry that must check a
// batch of workflow files before accepting any of them. Grounded on
// the original Rust implementation's parallel workflow-file validation
// pass (see SPEC_FULL.md §4); expressed here with errgroup rather than
// a hand-rolled worker pool.
func ValidateAll(defs []WorkflowDef, module *value.Module) error {
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range defs {
		def := defs[i]
		g.Go(func() error {
			_, err := Validate(def, module)
			return err
		})
	}
	return g.Wait()
}

// Request is one unit of work for Serve: run def to completion against
// module and report the outcome on Done.
type Request struct {
	Def     WorkflowDef
	Module  *value.Module
	Handler capability.Handler
	Done    chan<- ServeResult
}

// ServeResult is what Serve reports back for one Request.
type ServeResult struct {
	Runner *Runner
	Err    error
}

// Serve runs a warm pool of workflow runners: it pulls Requests off
// reqs until the context is canceled or reqs is closed, running up to
// concurrency requests at once via errgroup. Grounded on the original
// implementation's long-lived workflow-serving CLI loop (SPEC_FULL.md
// §6); this is the Go analogue, without its process-lifecycle
// concerns (signals, pidfiles) which are out of scope here.
func Serve(ctx context.Context, reqs <-chan Request, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case req, ok := <-reqs:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				runner, err := NewRunner(req.Def, req.Module, req.Handler)
				if err == nil {
					err = runner.Run(ctx)
				}
				req.Done <- ServeResult{Runner: runner, Err: err}
				return nil
			})
		}
	}
}
