package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"boruna/internal/capability"
	"boruna/internal/compiler"
	"boruna/internal/value"
	"boruna/internal/vm"
)

const runSliceSize = 4096

func newRunCmd() *cobra.Command {
	var (
		policyPath string
		entryIdx   int
		maxSteps   int
		recordPath string
		dbDriver   string
		dbDSN      string
	)

	cmd := &cobra.Command{
		Use:   "run <module.axbc> [arg...]",
		Short: "execute a compiled module to completion under a capability policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := compiler.LoadFile(args[0])
			if err != nil {
				return err
			}
			policy, err := loadPolicy(policyPath)
			if err != nil {
				return err
			}
			handler := buildHandler(policy, dbDriver, dbDSN)
			gw := capability.NewGateway(policy, handler, newLogger(cmd, "run"))

			v := vm.New(module, gw)
			v.SetLogger(newLogger(cmd, "vm"))
			if entryIdx >= 0 {
				v.SetEntryFunction(entryIdx)
			}
			v.SetInitialArgs(parseArgs(args[1:]))

			result, runErr := runToCompletion(cmd, v, maxSteps)

			if recordPath != "" {
				data, jerr := v.EventLog().ToJSON()
				if jerr != nil {
					return fmt.Errorf("E_RUN: encode event log: %w", jerr)
				}
				if werr := os.WriteFile(recordPath, data, 0o644); werr != nil {
					return fmt.Errorf("E_RUN: write %s: %w", recordPath, werr)
				}
			}

			if runErr != nil {
				return fmt.Errorf("E_RUN: %w", runErr)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "path to a capability policy JSON file (default: allow all)")
	cmd.Flags().IntVar(&entryIdx, "entry", -1, "function index to run (default: the module's declared entry)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget enforced via bounded execution; 0 means unbounded")
	cmd.Flags().StringVar(&recordPath, "record", "", "write the run's event log to this path")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "", "SQL driver name for db.query calls (mysql, sqlite3)")
	cmd.Flags().StringVar(&dbDSN, "db-dsn", "", "data source name for db.query calls")

	return cmd
}

// runToCompletion drives v either via the unbounded Run, or, when
// maxSteps is set, in ExecuteBounded slices so a runaway program is
// stopped with a clear error rather than left to execute forever.
func runToCompletion(cmd *cobra.Command, v *vm.Vm, maxSteps int) (value.Value, error) {
	ctx := cmd.Context()
	if maxSteps <= 0 {
		return v.Run(ctx)
	}
	used := 0
	for used < maxSteps {
		slice := runSliceSize
		if remaining := maxSteps - used; remaining < slice {
			slice = remaining
		}
		res := v.ExecuteBounded(ctx, slice)
		used += res.StepsUsed
		switch res.Kind {
		case vm.Completed:
			return res.Value, nil
		case vm.Errored:
			return nil, res.Err
		case vm.Blocked:
			return nil, fmt.Errorf("program blocked on an empty mailbox with no pending messages")
		case vm.Yielded:
			continue
		}
	}
	return nil, fmt.Errorf("exceeded step budget of %d", maxSteps)
}
