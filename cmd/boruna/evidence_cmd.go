package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"boruna/internal/evidence"
)

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "inspect and verify evidence bundles",
	}
	cmd.AddCommand(newEvidenceVerifyCmd(), newEvidenceInspectCmd())
	return cmd
}

func newEvidenceVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <bundle-dir>",
		Short: "recompute an evidence bundle's checksums and report the first mismatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, mismatch, err := evidence.Verify(args[0])
			if err != nil {
				return fmt.Errorf("E_EVIDENCE: %w", err)
			}
			if mismatch != nil {
				return fmt.Errorf("E_EVIDENCE: %w", mismatch)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundle %s verified: %d file(s) match (hash %s)\n",
				manifest.RunID, len(manifest.Files), manifest.BundleHash)
			return nil
		},
	}
}

func newEvidenceInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <bundle-dir>",
		Short: "print an evidence bundle's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, _, err := evidence.Verify(args[0])
			if err != nil {
				return fmt.Errorf("E_EVIDENCE: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:         %s\n", manifest.RunID)
			fmt.Fprintf(out, "bundle hash: %s\n", manifest.BundleHash)
			fmt.Fprintf(out, "audit hash:  %s\n", manifest.AuditLogHash)
			fmt.Fprintf(out, "workflow hash: %s\n", manifest.WorkflowHash)
			fmt.Fprintf(out, "policy hash: %s\n", manifest.PolicyHash)
			fmt.Fprintf(out, "environment: %s %s/%s\n", manifest.Environment.GoVersion, manifest.Environment.OS, manifest.Environment.Arch)
			for _, f := range manifest.Files {
				fmt.Fprintf(out, "  %-16s %s\n", f.Path, f.SHA256)
			}
			return nil
		},
	}
}
