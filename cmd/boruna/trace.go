package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"boruna/internal/capability"
	"boruna/internal/compiler"
	"boruna/internal/vm"
)

func newTraceCmd() *cobra.Command {
	var (
		policyPath string
		entryIdx   int
	)

	cmd := &cobra.Command{
		Use:   "trace <module.axbc> [arg...]",
		Short: "run a module and print its instruction trace and capability event log",
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
			handler := buildHandler(policy, "", "")
			gw := capability.NewGateway(policy, handler, newLogger(cmd, "trace"))

			v := vm.New(module, gw)
			if entryIdx >= 0 {
				v.SetEntryFunction(entryIdx)
			}
			v.SetInitialArgs(parseArgs(args[1:]))

			out := cmd.OutOrStdout()
			result, runErr := v.Run(cmd.Context())

			for _, line := range v.Trace() {
				fmt.Fprintln(out, line)
			}
			for i, ev := range v.EventLog().Snapshot() {
				fmt.Fprintf(out, "event[%d] %s\n", i, ev.Kind)
			}

			if runErr != nil {
				return fmt.Errorf("E_RUN: %w", runErr)
			}
			printResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "path to a capability policy JSON file (default: allow all)")
	cmd.Flags().IntVar(&entryIdx, "entry", -1, "function index to run (default: the module's declared entry)")
	return cmd
}
