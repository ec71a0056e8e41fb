package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spboyer/resultsum/internal/collect"
	"github.com/spboyer/resultsum/internal/spinner"
	"github.com/spf13/cobra"
)

func newCollectCommand() *cobra.Command {
	var (
		flags       configFlags
		experiments []string
		seeds       []int
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Summarise every configured experiment",
		Long: `Collect loads the persisted results of every experiment listed in the
configuration, selects the best (model, job, feature count) per experiment and
writes:

  <output>/<experiment>/<job>/avg_feature_ranking_*.csv
  <output>/<experiment>/report/results_heatmap_<metric>.csv
  <output>/<experiment>/report/mean_roc_strat_<n>.csv
  <results>/results.csv, results_long.csv, summary.md, summary.html

A failing experiment is reported and the others still run; the command then
exits with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			if len(experiments) > 0 {
				s.Experiments = experiments
			}
			if len(seeds) > 0 {
				s.Seeds = seeds
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runCollect(ctx, cmd, collect.New(s))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&experiments, "experiment", "e", nil, "Experiment to collect (overrides config, can be repeated)")
	cmd.Flags().IntSliceVar(&seeds, "seed", nil, "Seeds to aggregate (overrides config)")
	return cmd
}

func runCollect(ctx context.Context, cmd *cobra.Command, c *collect.Collector) error {
	w := cmd.OutOrStdout()
	tty := isTerminal(w)
	var spin *spinner.Spinner
	stopSpinner := func() {
		if spin != nil {
			spin.Stop()
			spin = nil
		}
	}
	defer stopSpinner()

	c.OnProgress(func(e collect.ProgressEvent) {
		switch e.EventType {
		case collect.EventBatchStart:
			fmt.Fprintf(w, "Collecting %d experiment(s)\n", e.Total) //nolint:errcheck
		case collect.EventExperimentStart:
			if tty {
				spin = spinner.Start(w, fmt.Sprintf("[%d/%d] %s", e.Num, e.Total, e.Experiment))
			}
		case collect.EventExperimentComplete:
			stopSpinner()
			fmt.Fprintf(w, "  ✓ [%d/%d] %s: %s on %s, %d features (%s)\n", //nolint:errcheck
				e.Num, e.Total, e.Experiment, e.Row.Model, e.Row.JobLabel, e.Row.NTop, e.Duration.Round(time.Millisecond))
		case collect.EventExperimentFailed:
			stopSpinner()
			fmt.Fprintf(w, "  ✗ [%d/%d] %s: %v\n", e.Num, e.Total, e.Experiment, e.Err) //nolint:errcheck
		}
	})

	batch, err := c.Run(ctx)
	if err != nil {
		return err
	}

	if len(batch.Files) > 0 {
		fmt.Fprintf(w, "\nResults written to %s\n", filepath.Dir(batch.Files[0])) //nolint:errcheck
	}
	if batch.Failed() {
		return &ExperimentFailureError{
			Message: fmt.Sprintf("%d of %d experiment(s) failed", len(batch.Failures), len(batch.Failures)+len(batch.Results)),
		}
	}
	return nil
}
