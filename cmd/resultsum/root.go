package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resultsum",
		Short: "resultsum - aggregate and score experiment results",
		Long: `resultsum collects the persisted results of repeated train and evaluate
runs, picks the best model, feature-selection job and feature count for every
experiment, and writes summary tables and feature rankings.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	logFormat := cmd.PersistentFlags().String("log-format", "text", "Log format: text | json")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return configureLogging(cmd.ErrOrStderr(), *logFormat, *debugLogging)
	}

	cmd.AddCommand(newCollectCommand())
	cmd.AddCommand(newFeaturesCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

func configureLogging(w io.Writer, format string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	switch format {
	case "", "text":
		slog.SetLogLoggerLevel(level)
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	default:
		return fmt.Errorf("unknown log format %q: must be text or json", format)
	}
	return nil
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
