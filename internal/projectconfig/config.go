// Package projectconfig provides the ProjectConfig struct and loader for
// .resultsum.yaml configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".resultsum.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultOutputDir  = "output/"
	DefaultResultsDir = "results"
	// DefaultArtifacts places artifacts directly in the experiment directory.
	DefaultArtifacts = "{{.Experiment}}"

	DefaultBootstraps = 100

	DefaultOptimizationMetric = "roc_auc"
	DefaultReducer            = "mean"

	DefaultCodec = "json"

	DefaultConfidenceLevel = 0.95
	DefaultROCPoints       = 100
)

// PathsConfig holds the experiment output locations.
type PathsConfig struct {
	// Output is the directory holding one sub-directory per experiment.
	Output string `yaml:"output,omitempty"`
	// Results is where batch-wide tables are written, relative to Output
	// unless absolute.
	Results string `yaml:"results,omitempty"`
	// Artifacts is a template for the artifact location of an experiment,
	// relative to Output or the blob container root.
	Artifacts string `yaml:"artifacts,omitempty"`
	// Vars are the user variables available to Artifacts as {{.Vars.name}}.
	Vars map[string]string `yaml:"vars,omitempty"`
}

// RunConfig describes how the experiments were run.
type RunConfig struct {
	// Seeds lists the seeds to collect. Empty means every seed found in the
	// stored scores.
	Seeds      []int `yaml:"seeds,omitempty" validate:"omitempty,dive,gte=0"`
	Bootstraps int   `yaml:"n_bootstraps,omitempty" validate:"gte=0"`
}

// OptimizationConfig controls winner selection.
type OptimizationConfig struct {
	Metric      string `yaml:"metric,omitempty" validate:"required"`
	YoudenIndex *bool  `yaml:"youden_index,omitempty"`
	Reducer     string `yaml:"reducer,omitempty" validate:"omitempty,oneof=mean median std min max"`
}

// BlobConfig points the artifact reader at an Azure Blob container.
type BlobConfig struct {
	AccountURL string `yaml:"account_url,omitempty" validate:"omitempty,url"`
	Container  string `yaml:"container,omitempty" validate:"required_with=AccountURL"`
}

// StorageConfig selects where and how artifacts are read and written.
type StorageConfig struct {
	Codec string      `yaml:"codec,omitempty" validate:"omitempty,oneof=json zstd"`
	Blob  *BlobConfig `yaml:"blob,omitempty"`
}

// ReportConfig controls the generated reports.
type ReportConfig struct {
	ConfidenceLevel float64 `yaml:"confidence_level,omitempty" validate:"omitempty,gt=0,lt=1"`
	ROCPoints       int     `yaml:"roc_points,omitempty" validate:"omitempty,gte=2"`
	HTML            *bool   `yaml:"html,omitempty"`
}

// ObservabilityConfig holds run metric settings.
type ObservabilityConfig struct {
	// MetricsPath, when set, receives the run's Prometheus metrics in text
	// exposition format.
	MetricsPath string `yaml:"metrics_path,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .resultsum.yaml.
type ProjectConfig struct {
	Paths       PathsConfig `yaml:"paths,omitempty"`
	Experiments []string    `yaml:"experiments,omitempty" validate:"dive,required"`
	Run         RunConfig   `yaml:"run,omitempty"`

	// Models lists the models whose results are collected, in report order.
	// Names containing "ensemble" are ensemble models.
	Models []string `yaml:"models,omitempty" validate:"dive,required"`

	// Metrics lists the record keys to collect, plus "roc" for ROC curves.
	Metrics []string `yaml:"metrics,omitempty" validate:"dive,required"`

	Optimization  OptimizationConfig  `yaml:"optimization,omitempty"`
	Storage       StorageConfig       `yaml:"storage,omitempty"`
	Report        ReportConfig        `yaml:"report,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Output:    DefaultOutputDir,
			Results:   DefaultResultsDir,
			Artifacts: DefaultArtifacts,
		},
		Run: RunConfig{
			Bootstraps: DefaultBootstraps,
		},
		Metrics: []string{"roc_auc_score"},
		Optimization: OptimizationConfig{
			Metric:      DefaultOptimizationMetric,
			YoudenIndex: boolPtr(false),
			Reducer:     DefaultReducer,
		},
		Storage: StorageConfig{
			Codec: DefaultCodec,
		},
		Report: ReportConfig{
			ConfidenceLevel: DefaultConfidenceLevel,
			ROCPoints:       DefaultROCPoints,
			HTML:            boolPtr(true),
		},
	}
}

// Load finds .resultsum.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
func Load(startDir string) (*ProjectConfig, error) {
	data, path, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadFile reads a specific configuration file.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse unmarshals YAML and merges it onto the defaults.
func Parse(data []byte) (*ProjectConfig, error) {
	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	cfg := New()
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// resolvePaths makes a relative output directory relative to the directory
// holding the config file.
func (c *ProjectConfig) resolvePaths(base string) {
	if c.Paths.Output != "" && !filepath.IsAbs(c.Paths.Output) {
		c.Paths.Output = filepath.Join(base, c.Paths.Output)
	}
}

// ResultsDir returns the directory for batch-wide tables.
func (c *ProjectConfig) ResultsDir() string {
	if filepath.IsAbs(c.Paths.Results) {
		return c.Paths.Results
	}
	return filepath.Join(c.Paths.Output, c.Paths.Results)
}

// FindFile returns the path of the nearest config file at or above startDir.
// The error matches os.ErrNotExist when there is none.
func FindFile(startDir string) (string, error) {
	_, path, err := findConfigFile(startDir)
	return path, err
}

// findConfigFile walks up from dir looking for the config file (max 10
// levels). Returns os.ErrNotExist if none is found.
func findConfigFile(dir string) ([]byte, string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Paths.Output != "" {
		dst.Paths.Output = src.Paths.Output
	}
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}
	if src.Paths.Artifacts != "" {
		dst.Paths.Artifacts = src.Paths.Artifacts
	}
	if len(src.Paths.Vars) > 0 {
		if dst.Paths.Vars == nil {
			dst.Paths.Vars = make(map[string]string, len(src.Paths.Vars))
		}
		maps.Copy(dst.Paths.Vars, src.Paths.Vars)
	}

	if len(src.Experiments) > 0 {
		dst.Experiments = src.Experiments
	}

	if len(src.Run.Seeds) > 0 {
		dst.Run.Seeds = src.Run.Seeds
	}
	if src.Run.Bootstraps != 0 {
		dst.Run.Bootstraps = src.Run.Bootstraps
	}

	if len(src.Models) > 0 {
		dst.Models = src.Models
	}
	if len(src.Metrics) > 0 {
		dst.Metrics = src.Metrics
	}

	if src.Optimization.Metric != "" {
		dst.Optimization.Metric = src.Optimization.Metric
	}
	if src.Optimization.YoudenIndex != nil {
		dst.Optimization.YoudenIndex = src.Optimization.YoudenIndex
	}
	if src.Optimization.Reducer != "" {
		dst.Optimization.Reducer = src.Optimization.Reducer
	}

	if src.Storage.Codec != "" {
		dst.Storage.Codec = src.Storage.Codec
	}
	if src.Storage.Blob != nil {
		dst.Storage.Blob = src.Storage.Blob
	}

	if src.Report.ConfidenceLevel != 0 {
		dst.Report.ConfidenceLevel = src.Report.ConfidenceLevel
	}
	if src.Report.ROCPoints != 0 {
		dst.Report.ROCPoints = src.Report.ROCPoints
	}
	if src.Report.HTML != nil {
		dst.Report.HTML = src.Report.HTML
	}

	if src.Observability.MetricsPath != "" {
		dst.Observability.MetricsPath = src.Observability.MetricsPath
	}
}

func boolPtr(b bool) *bool {
	return &b
}
