package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// notImplemented marks a subcommand whose functionality lives entirely
// in the excluded compiler/tooling boundary (spec.md §1): parsing and
// printing `.ax` ASTs, static lint/repair over source, trace-to-test
// generation, and template scaffolding all need a real `.ax` front end
// this module deliberately does not implement. Kept in the command
// tree so the CLI's surface matches spec.md's named operations, the
// way the teacher's cmd/app registers every kernel service (including
// ones that are pass-through stubs) rather than omitting them.
func notImplemented(use string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("E_UNSUPPORTED: %q is not implemented; it requires the external .ax compiler front end", use)
	}
}

func newAstCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ast <file.ax>",
		Short: "print a module's parsed AST (requires the external .ax front end)",
		Args:  cobra.ExactArgs(1),
		RunE:  notImplemented("ast"),
	}
	return cmd
}

func newLangCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "static checks and automated repair over .ax source",
	}
	check := &cobra.Command{
		Use:   "check <file.ax>",
		Short: "run static checks over .ax source (requires the external .ax front end)",
		Args:  cobra.ExactArgs(1),
		RunE:  notImplemented("lang check"),
	}
	repair := &cobra.Command{
		Use:   "repair <file.ax>",
		Short: "apply automated repairs to .ax source (requires the external .ax front end)",
		Args:  cobra.ExactArgs(1),
		RunE:  notImplemented("lang repair"),
	}
	cmd.AddCommand(check, repair)
	return cmd
}

func newTrace2TestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace2tests",
		Short: "derive regression tests from recorded traces",
	}
	for _, use := range []string{"record", "generate", "run", "minimize"} {
		sub := &cobra.Command{
			Use:   use,
			Short: fmt.Sprintf("%s step of trace-to-tests generation (requires the external .ax front end)", use),
			RunE:  notImplemented("trace2tests " + use),
		}
		cmd.AddCommand(sub)
	}
	return cmd
}

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "list and apply project scaffolding templates",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "list available templates (requires the external .ax front end)",
		RunE:  notImplemented("template list"),
	}
	apply := &cobra.Command{
		Use:   "apply <name>",
		Short: "apply a template into the current project (requires the external .ax front end)",
		Args:  cobra.ExactArgs(1),
		RunE:  notImplemented("template apply"),
	}
	cmd.AddCommand(list, apply)
	return cmd
}
