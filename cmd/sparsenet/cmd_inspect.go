package main

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sparsenet/internal/analysis"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Summarize the activity of a finished run",
		Long: `Read the artifacts of a run directory and print per-population firing
rates and the mean coefficient of variation of inter-spike intervals.

Examples:
  sparsenet inspect out_example
  sparsenet inspect out_example --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			run, err := analysis.Load(args[0])
			if err != nil {
				return err
			}
			rep := analysis.Analyze(run)

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), jsonReport(rep))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", rep.RunID)
			fmt.Fprintf(out, "  Neurons:     %d\n", rep.Neurons)
			fmt.Fprintf(out, "  Final time:  %.6g\n", rep.FinalTime)
			fmt.Fprintf(out, "  Steps:       %s in %d flush cycle(s)\n", humanize.Comma(int64(rep.Steps)), rep.Cycles)
			fmt.Fprintf(out, "  Delivered:   %s spikes\n", humanize.Comma(int64(rep.Spikes)))
			fmt.Fprintf(out, "  Phase range: [%.4g, %.4g]\n", rep.MinPhase, rep.MaxPhase)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %-4s %6s %8s %10s %8s\n", "POP", "SIZE", "SPIKES", "RATE", "CV")
			for _, p := range rep.Populations {
				cv := "-"
				if !math.IsNaN(p.MeanCV) {
					cv = fmt.Sprintf("%.3f", p.MeanCV)
				}
				fmt.Fprintf(out, "  %-4d %6d %8d %10.4g %8s\n", p.Population, p.Size, p.Spikes, p.Rate, cv)
			}
			return nil
		},
	}
}

// jsonReport replaces NaN statistics, which encoding/json rejects, with zero.
func jsonReport(rep *analysis.Report) *analysis.Report {
	out := *rep
	out.MinPhase = finiteOrZero(rep.MinPhase)
	out.MaxPhase = finiteOrZero(rep.MaxPhase)
	out.Populations = make([]analysis.PopulationStats, len(rep.Populations))
	for i, p := range rep.Populations {
		p.MeanCV = finiteOrZero(p.MeanCV)
		out.Populations[i] = p
	}
	return &out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
