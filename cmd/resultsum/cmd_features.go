package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spboyer/resultsum/internal/collect"
	"github.com/spboyer/resultsum/internal/dataset"
	"github.com/spboyer/resultsum/internal/reporting"
	"github.com/spboyer/resultsum/internal/summary"
	"github.com/spf13/cobra"
)

func newFeaturesCommand() *cobra.Command {
	var (
		flags  configFlags
		top    int
		format string
	)
	cmd := &cobra.Command{
		Use:   "features <experiment> [job]",
		Short: "Show a job's averaged feature ranking",
		Long: `Features prints the features a selection job picked most often across
seeds and bootstrap iterations, most important first. Each feature's weight is
its share of the job's accumulated rank score.

With no job argument the jobs that have rankings are listed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			repo, err := collect.New(s).Repository(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				for _, job := range repo.FeatureJobs() {
					fmt.Fprintln(w, job) //nolint:errcheck
				}
				return nil
			}

			scores := repo.FeatureScores(args[1])
			if len(scores) == 0 {
				return fmt.Errorf("no feature scores for job %q in experiment %s", args[1], args[0])
			}
			ranking := summary.FeatureRanking(scores)
			if top > 0 {
				ranking = ranking.Top(top)
			}
			slices.Reverse(ranking)

			switch format {
			case "csv":
				return dataset.WriteCSV(w, reporting.RankingTable(ranking))
			case "text":
				printRanking(w, ranking)
				return nil
			}
			return fmt.Errorf("unknown format %q: must be text or csv", format)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&top, "top", "n", 0, "Only show the n most important features")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text | csv")
	return cmd
}

func printRanking(w io.Writer, r summary.Ranking) {
	width := len("Feature")
	for _, fw := range r {
		width = max(width, displayWidth(fw.Feature))
	}
	fmt.Fprintf(w, "%s  %s  %s\n", padRight("#", 4), padRight("Feature", width), "Weight") //nolint:errcheck
	for i, fw := range r {
		fmt.Fprintf(w, "%s  %s  %.4f\n", padRight(strconv.Itoa(i+1), 4), padRight(fw.Feature, width), fw.Weight) //nolint:errcheck
	}
}
