package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"boruna/internal/compiler"
	"boruna/internal/value"
)

// newCompileCmd implements the "compile" boundary spec.md §1 leaves
// external: it does not lex or parse `.ax` source, it validates and
// normalizes an already-compiled module (JSON per spec.md §6 shape
// (a)) into canonical .axbc form.
func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <module.json> <output.axbc>",
		Short: "validate a pre-compiled module and write it in canonical .axbc form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("E_COMPILER: read %s: %w", args[0], err)
			}
			m, err := value.ModuleFromJSON(data)
			if err != nil {
				return fmt.Errorf("E_COMPILER: %w", err)
			}
			if err := compiler.WriteFile(args[1], m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: module %q v%s (%d functions, %d constants, %d types)\n",
				args[1], m.Name, m.Version, len(m.Functions), len(m.Constants), len(m.Types))
			return nil
		},
	}
	return cmd
}
