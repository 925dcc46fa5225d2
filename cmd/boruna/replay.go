package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"boruna/internal/capability"
	"boruna/internal/compiler"
	"boruna/internal/eventlog"
	"boruna/internal/vm"
)

// newReplayCmd re-executes a module against a previously recorded
// event log, feeding back its logged CapResult values instead of
// calling out for real, then reports whether the replay diverges
// (spec.md §4.3).
func newReplayCmd() *cobra.Command {
	var entryIdx int
	var fullCompare bool

	cmd := &cobra.Command{
		Use:   "replay <module.axbc> <recorded.json> [arg...]",
		Short: "re-run a module against a recorded event log and report divergence",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := compiler.LoadFile(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("E_REPLAY: read %s: %w", args[1], err)
			}
			original, err := eventlog.FromJSON(data)
			if err != nil {
				return fmt.Errorf("E_REPLAY: parse %s: %w", args[1], err)
			}

			handler := capability.NewReplayHandlerFromLog(original)
			gw := capability.NewGateway(capability.AllowAll(), handler, newLogger(cmd, "replay"))

			v := vm.New(module, gw)
			if entryIdx >= 0 {
				v.SetEntryFunction(entryIdx)
			}
			v.SetInitialArgs(parseArgs(args[2:]))

			result, runErr := v.Run(cmd.Context())
			if runErr != nil {
				return fmt.Errorf("E_REPLAY: %w", runErr)
			}

			engine := eventlog.ReplayEngine{}
			var cmp eventlog.ReplayResult
			if fullCompare {
				cmp = engine.VerifyFull(original, v.EventLog())
			} else {
				cmp = engine.Verify(original, v.EventLog())
			}

			out := cmd.OutOrStdout()
			printResult(out, result)
			if cmp.Diverged != nil {
				return fmt.Errorf("E_REPLAY: diverged at event %d: original=%s candidate=%s",
					cmp.Diverged.Index, cmp.Diverged.Original.Kind, cmp.Diverged.Candidate.Kind)
			}
			fmt.Fprintln(out, "replay matches recorded log")
			return nil
		},
	}

	cmd.Flags().IntVar(&entryIdx, "entry", -1, "function index to run (default: the module's declared entry)")
	cmd.Flags().BoolVar(&fullCompare, "full", false, "compare every event, not just capability calls/results")
	return cmd
}
