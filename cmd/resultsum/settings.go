package main

import (
	"fmt"

	"github.com/spboyer/resultsum/internal/projectconfig"
	"github.com/spf13/cobra"
)

// configFlags are shared by every command that needs a resolved configuration.
type configFlags struct {
	dir  string
	file string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dir, "dir", ".", "Directory to search upwards for "+projectconfig.FileName)
	cmd.Flags().StringVarP(&f.file, "config", "c", "", "Explicit configuration file (skips the search)")
}

func (f *configFlags) load() (*projectconfig.ProjectConfig, error) {
	if f.file != "" {
		return projectconfig.LoadFile(f.file)
	}
	return projectconfig.Load(f.dir)
}

func (f *configFlags) settings() (*projectconfig.Settings, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	s, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}
	return s, nil
}
