package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"boruna/internal/capability"
	"boruna/internal/compiler"
	"boruna/internal/evidence"
	"boruna/internal/workflow"
)

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "validate and run workflow DAGs",
	}
	cmd.AddCommand(newWorkflowValidateCmd(), newWorkflowRunCmd())
	return cmd
}

func loadWorkflowDef(path string) (workflow.WorkflowDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.WorkflowDef{}, fmt.Errorf("E_WORKFLOW: read %s: %w", path, err)
	}
	var def workflow.WorkflowDef
	if err := json.Unmarshal(data, &def); err != nil {
		return workflow.WorkflowDef{}, fmt.Errorf("E_WORKFLOW: parse %s: %w", path, err)
	}
	return def, nil
}

func newWorkflowValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow.json> <module.axbc>",
		Short: "check a workflow's DAG for cycles, dangling dependencies, and unknown functions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadWorkflowDef(args[0])
			if err != nil {
				return err
			}
			module, err := compiler.LoadFile(args[1])
			if err != nil {
				return err
			}
			order, err := workflow.Validate(def, module)
			if err != nil {
				return fmt.Errorf("E_WORKFLOW: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workflow %q is valid: %d step(s) in execution order:\n", def.Name, len(order))
			for i, id := range order {
				fmt.Fprintf(out, "  %d. %s\n", i+1, id)
			}
			return nil
		},
	}
	return cmd
}

func newWorkflowRunCmd() *cobra.Command {
	var (
		policyPath  string
		evidenceDir string
		approve     []string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.json> <module.axbc>",
		Short: "execute a workflow's steps in dependency order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadWorkflowDef(args[0])
			if err != nil {
				return err
			}
			module, err := compiler.LoadFile(args[1])
			if err != nil {
				return err
			}
			if policyPath != "" {
				policy, perr := loadPolicy(policyPath)
				if perr != nil {
					return perr
				}
				def.DefaultPolicy = policy
			}
			if def.DefaultPolicy == nil {
				def.DefaultPolicy = capability.AllowAll()
			}
			handler := buildHandler(def.DefaultPolicy, "", "")

			runner, err := workflow.NewRunner(def, module, handler)
			if err != nil {
				return fmt.Errorf("E_WORKFLOW: %w", err)
			}
			for _, id := range approve {
				if err := runner.Approve(id); err != nil {
					return err
				}
			}

			audit := evidence.NewAuditLog()
			audit.WorkflowStarted(def.Name, time.Now())

			runErr := runner.Run(cmd.Context())

			out := cmd.OutOrStdout()
			for _, id := range stepOrderFromDef(def) {
				res, ok := runner.Results()[id]
				if !ok {
					continue
				}
				switch res.Status {
				case workflow.Succeeded:
					audit.StepCompleted(id, res.Hash, time.Now())
					fmt.Fprintf(out, "%s: succeeded (%s)\n", id, res.Hash)
				case workflow.Failed:
					audit.StepFailed(id, res.Err, time.Now())
					fmt.Fprintf(out, "%s: failed: %v\n", id, res.Err)
				case workflow.Skipped:
					fmt.Fprintf(out, "%s: skipped\n", id)
				case workflow.Waiting:
					fmt.Fprintf(out, "%s: waiting for approval\n", id)
				}
			}

			var paused *workflow.Paused
			if runErr != nil && !errors.As(runErr, &paused) {
				return fmt.Errorf("E_WORKFLOW: %w", runErr)
			}

			if evidenceDir != "" && paused == nil {
				audit.WorkflowCompleted(def.Name, time.Now())
				manifest, werr := evidence.WriteBundle(evidenceDir, runner.RunID.String(), def, def.DefaultPolicy, audit, newLogger(cmd, "evidence"))
				if werr != nil {
					return fmt.Errorf("E_EVIDENCE: %w", werr)
				}
				fmt.Fprintf(out, "evidence bundle written: %s (hash %s)\n", manifest.RunID, manifest.BundleHash)
			}

			if paused != nil {
				fmt.Fprintf(out, "paused at approval gate %q; re-run with --approve %s to continue\n", paused.StepID, paused.StepID)
				return nil
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "capability policy JSON applied as the workflow's default policy")
	cmd.Flags().StringVar(&evidenceDir, "evidence", "", "directory to write an evidence bundle into on completion")
	cmd.Flags().StringSliceVar(&approve, "approve", nil, "step ids to mark approved before running (repeatable)")
	return cmd
}

// stepOrderFromDef preserves the workflow's declared step order for
// reporting, independent of the runner's internal result map order.
func stepOrderFromDef(def workflow.WorkflowDef) []string {
	ids := make([]string, len(def.Steps))
	for i, s := range def.Steps {
		ids[i] = s.ID
	}
	return ids
}
