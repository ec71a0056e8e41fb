package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/resultsum/internal/projectconfig"
	"github.com/spboyer/resultsum/internal/threshold"
	"github.com/spboyer/resultsum/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate the configuration and every experiment's job_config.yaml",
		Long: `Validate checks the configuration file against its schema, resolves
metric, reducer and codec names, then checks the job_config.yaml of every
configured experiment.

With no argument the nearest ` + projectconfig.FileName + ` is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				found, err := projectconfig.FindFile(dir)
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no %s found in %s or its parents", projectconfig.FileName, dir)
				}
				if err != nil {
					return err
				}
				path = found
			}
			return runValidate(cmd, path)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to search upwards for "+projectconfig.FileName)
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	w := cmd.OutOrStdout()

	schemaErrs, err := validation.ValidateConfigFile(path)
	if err != nil {
		return err
	}
	problems := len(schemaErrs)
	for _, e := range schemaErrs {
		fmt.Fprintf(w, "  ✗ %s: %s\n", path, e) //nolint:errcheck
	}

	cfg, err := projectconfig.LoadFile(path)
	if err != nil {
		return err
	}
	if _, err := cfg.Resolve(); err != nil {
		problems++
		fmt.Fprintf(w, "  ✗ %s: %v\n", path, err) //nolint:errcheck
		if errors.Is(err, threshold.ErrUnknownMetric) {
			fmt.Fprintf(w, "    known metrics: %s\n", strings.Join(threshold.Names(), ", ")) //nolint:errcheck
		}
	}

	for _, exp := range cfg.Experiments {
		expPath := filepath.Join(cfg.Paths.Output, exp, projectconfig.ExperimentFileName)
		errs, err := validation.ValidateExperimentFile(expPath)
		if err != nil {
			problems++
			fmt.Fprintf(w, "  ✗ %s: %v\n", exp, err) //nolint:errcheck
			continue
		}
		for _, e := range errs {
			fmt.Fprintf(w, "  ✗ %s: %s\n", expPath, e) //nolint:errcheck
		}
		problems += len(errs)
		if len(errs) == 0 {
			if _, err := projectconfig.LoadExperiment(filepath.Dir(expPath)); err != nil {
				problems++
				fmt.Fprintf(w, "  ✗ %s: %v\n", expPath, err) //nolint:errcheck
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("%s: %d problem(s) found", path, problems)
	}
	fmt.Fprintf(w, "✓ %s is valid (%d experiment(s) checked)\n", path, len(cfg.Experiments)) //nolint:errcheck
	return nil
}
