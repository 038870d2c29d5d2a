package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sparsenet/internal/config"
	"github.com/nvandessel/sparsenet/internal/logging"
	"github.com/nvandessel/sparsenet/internal/simulation"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Build the network described by the configuration and simulate it until
the requested duration. The run directory receives parameters.yaml, the
phases<n>.arrow and spikes<n>.arrow artifacts and manifest.json.

Examples:
  sparsenet run --config net.yaml
  sparsenet run --config net.yaml --out runs/a --duration 20 --seed 7 --catalog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			connSeed, dynSeed := cfg.Run.Seeds()
			opts := []simulation.Option{
				simulation.WithConnectivitySeed(connSeed),
				simulation.WithDynamicsSeed(dynSeed),
				simulation.WithMemoryBudget(cfg.Output.MemoryBudget),
				simulation.WithLogger(logger),
				simulation.WithLogLevel(cfg.Logging.Level),
			}
			if cfg.Output.Catalog {
				opts = append(opts, simulation.WithCatalog(catalogRoot(cfg.Output.Dir)))
			}

			sim, err := simulation.New(cfg.Network, opts...)
			if err != nil {
				return err
			}

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			summary, err := sim.Run(ctx, cfg.Run.Duration, cfg.Output.Dir)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			var written int64
			for _, a := range summary.Artifacts {
				written += a.Bytes
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "  Directory:  %s\n", summary.Dir)
			fmt.Fprintf(out, "  Final time: %.6g\n", summary.FinalTime)
			fmt.Fprintf(out, "  Steps:      %s\n", humanize.Comma(int64(summary.Steps)))
			fmt.Fprintf(out, "  Spikes:     %s emitted, %s delivered\n",
				humanize.Comma(int64(summary.Spikes)), humanize.Comma(int64(summary.Delivered)))
			fmt.Fprintf(out, "  Artifacts:  %d (%s)\n", len(summary.Artifacts), humanize.IBytes(uint64(written)))
			for _, w := range summary.Warnings {
				fmt.Fprintf(out, "  Warning:    %s\n", w.Message)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Run configuration file (YAML)")
	cmd.Flags().String("out", "", "Run directory (overrides config)")
	cmd.Flags().Float64("duration", 0, "Simulated time to run for (overrides config)")
	cmd.Flags().Int64("seed", 0, "Seed for both random generators (overrides config)")
	cmd.Flags().Bool("catalog", false, "Register the run in the catalog of the parent directory")
	return cmd
}

// applyRunFlags overlays explicitly set command line flags on cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.RunConfig) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("duration") {
		cfg.Run.Duration, _ = flags.GetFloat64("duration")
	}
	if flags.Changed("seed") {
		seed, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Run.Seed = seed
		cfg.Run.ConnectivitySeed = nil
		cfg.Run.DynamicsSeed = nil
	}
	if flags.Changed("catalog") {
		cfg.Output.Catalog, _ = flags.GetBool("catalog")
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

// catalogRoot returns the directory holding the catalog for a run directory.
func catalogRoot(runDir string) string {
	return filepath.Dir(filepath.Clean(runDir))
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
