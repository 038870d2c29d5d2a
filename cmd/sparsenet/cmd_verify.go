package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sparsenet/internal/output"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Verify run artifact integrity",
		Long: `Verify the artifacts of a run directory against the SHA-256 checksums
recorded in its manifest.json.

Examples:
  sparsenet verify out_example`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			m, bad, err := output.Verify(dir)
			if err != nil {
				if jsonOut {
					_ = writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"dir":   dir,
						"valid": false,
						"error": err.Error(),
					})
				}
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"dir":        dir,
					"run_id":     m.RunID,
					"artifacts":  len(m.Artifacts),
					"valid":      len(bad) == 0,
					"mismatches": bad,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, b := range bad {
					if b.Missing {
						fmt.Fprintf(out, "MISSING: %s\n", b.Name)
						continue
					}
					fmt.Fprintf(out, "FAILED: %s\n  expected %s\n  actual   %s\n", b.Name, b.Expected, b.Actual)
				}
				if len(bad) == 0 {
					fmt.Fprintf(out, "OK: %d artifacts verified\n", len(m.Artifacts))
					fmt.Fprintf(out, "  Run: %s\n", m.RunID)
				}
			}

			if len(bad) > 0 {
				return fmt.Errorf("%d of %d artifacts failed verification", len(bad), len(m.Artifacts))
			}
			return nil
		},
	}
}
