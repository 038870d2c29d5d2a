package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sparsenet/internal/config"
	"github.com/nvandessel/sparsenet/internal/constants"
	"github.com/nvandessel/sparsenet/internal/simulation"
	"github.com/nvandessel/sparsenet/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List catalogued runs",
		Long: `List the runs registered in the catalog of a directory, newest first.
Runs are registered by 'sparsenet run --catalog' in the parent of their run
directory.

Examples:
  sparsenet runs
  sparsenet runs --root experiments --match net.yaml
  sparsenet runs --root experiments --remove 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			match, _ := cmd.Flags().GetString("match")
			remove, _ := cmd.Flags().GetString("remove")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := os.Stat(filepath.Join(root, constants.CatalogFile)); os.IsNotExist(err) {
				return fmt.Errorf("no run catalog in %s", root)
			}

			ctx := cmd.Context()
			cat, err := store.Open(ctx, root)
			if err != nil {
				return err
			}
			defer cat.Close()

			if remove != "" {
				if err := cat.DeleteRun(ctx, remove); err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "removed", "id": remove})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed run %s from the catalog\n", remove)
				return nil
			}

			var runs []store.Run
			if match != "" {
				cfg, err := config.LoadFromFile(match)
				if err != nil {
					return err
				}
				hash, err := simulation.ParamsHash(cfg.Network)
				if err != nil {
					return err
				}
				runs, err = cat.FindByParams(ctx, hash)
				if err != nil {
					return err
				}
			} else {
				runs, err = cat.ListRuns(ctx)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"catalog": cat.Path(),
					"runs":    runs,
					"count":   len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}
			fmt.Fprintf(out, "%d run(s):\n\n", len(runs))
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s\n", r.ID, humanize.Time(r.CreatedAt.In(time.Local)))
				fmt.Fprintf(out, "  Dir:     %s\n", r.Dir)
				fmt.Fprintf(out, "  Neurons: %d %v\n", r.Neurons, r.Populations)
				fmt.Fprintf(out, "  Time:    %.6g of %.6g, %s steps, %s spikes\n",
					r.FinalTime, r.Duration, humanize.Comma(int64(r.Steps)), humanize.Comma(int64(r.Spikes)))
				fmt.Fprintf(out, "  Seeds:   connectivity=%d dynamics=%d\n", r.ConnectivitySeed, r.DynamicsSeed)
			}
			return nil
		},
	}
	cmd.Flags().String("root", ".", "Directory holding the run catalog")
	cmd.Flags().String("match", "", "Only list runs of the network in this config file")
	cmd.Flags().String("remove", "", "Remove the run with this id from the catalog")
	return cmd
}
