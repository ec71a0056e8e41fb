package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExperimentFileName is the per-experiment configuration written by the
// training pipeline.
const ExperimentFileName = "job_config.yaml"

// ErrNoJobs is returned for an experiment configuration without jobs or
// feature counts.
var ErrNoJobs = errors.New("experiment defines no jobs")

// Job is one feature-selection job. In job_config.yaml it is either a name or
// a list of step names, which are joined with "_".
type Job string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (j *Job) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*j = Job(node.Value)
		return nil
	case yaml.SequenceNode:
		var steps []string
		if err := node.Decode(&steps); err != nil {
			return fmt.Errorf("line %d: job steps: %w", node.Line, err)
		}
		*j = Job(strings.Join(steps, "_"))
		return nil
	}
	return fmt.Errorf("line %d: job must be a name or a list of steps", node.Line)
}

// ExperimentConfig is the subset of job_config.yaml needed to collect an
// experiment's results.
type ExperimentConfig struct {
	Selection struct {
		Jobs []Job `yaml:"jobs"`
	} `yaml:"selection"`
	Verification struct {
		FeatureCounts []int `yaml:"use_n_top_features"`
	} `yaml:"verification"`
}

// JobNames returns the job names in configuration order.
func (e *ExperimentConfig) JobNames() []string {
	out := make([]string, len(e.Selection.Jobs))
	for i, j := range e.Selection.Jobs {
		out[i] = string(j)
	}
	return out
}

// FeatureCounts returns the candidate numbers of top features.
func (e *ExperimentConfig) FeatureCounts() []int {
	return e.Verification.FeatureCounts
}

// LoadExperiment reads job_config.yaml from an experiment directory.
func LoadExperiment(dir string) (*ExperimentConfig, error) {
	path := filepath.Join(dir, ExperimentFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment config: %w", err)
	}
	return ParseExperiment(data)
}

// ParseExperiment decodes job_config.yaml contents.
func ParseExperiment(data []byte) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ExperimentFileName, err)
	}
	if len(cfg.Selection.Jobs) == 0 || len(cfg.Verification.FeatureCounts) == 0 {
		return nil, fmt.Errorf("%s: %w", ExperimentFileName, ErrNoJobs)
	}
	return &cfg, nil
}
