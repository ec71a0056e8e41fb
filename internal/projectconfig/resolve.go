package projectconfig

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/statistics"
	"github.com/spboyer/resultsum/internal/store"
	"github.com/spboyer/resultsum/internal/template"
	"github.com/spboyer/resultsum/internal/threshold"
)

// ErrInvalidConfig wraps every configuration problem found by Resolve.
var ErrInvalidConfig = errors.New("invalid configuration")

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Settings is a validated configuration with every name resolved.
type Settings struct {
	OutputDir   string
	ResultsDir  string
	Experiments []string
	// Artifacts is the artifact location template, see template.Context.
	Artifacts string
	Vars      map[string]string

	Seeds      []int
	Bootstraps int

	Models    []string
	Ensembles []string

	// Metrics are the record keys to collect; ROC is requested separately.
	Metrics []string
	ROC     bool

	Optimization    string
	OptimizationKey string
	Direction       aggregate.Direction
	Youden          bool
	Reducer         statistics.Reducer

	Codec store.Codec
	Blob  *BlobConfig

	ConfidenceLevel float64
	ROCPoints       int
	HTML            bool

	MetricsPath string
}

// Validate checks field constraints. It does not resolve names.
func (c *ProjectConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Resolve validates the configuration and maps every name onto its closed
// set: reducer, codec, optimization direction and metric implementations.
func (c *ProjectConfig) Resolve() (*Settings, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s := &Settings{
		OutputDir:       c.Paths.Output,
		ResultsDir:      c.ResultsDir(),
		Experiments:     slices.Clone(c.Experiments),
		Artifacts:       c.Paths.Artifacts,
		Vars:            maps.Clone(c.Paths.Vars),
		Seeds:           slices.Clone(c.Run.Seeds),
		Bootstraps:      c.Run.Bootstraps,
		Optimization:    c.Optimization.Metric,
		OptimizationKey: aggregate.OptimizationKey(c.Optimization.Metric),
		Youden:          c.Optimization.YoudenIndex != nil && *c.Optimization.YoudenIndex,
		Blob:            c.Storage.Blob,
		ConfidenceLevel: c.Report.ConfidenceLevel,
		ROCPoints:       c.Report.ROCPoints,
		HTML:            c.Report.HTML == nil || *c.Report.HTML,
		MetricsPath:     c.Observability.MetricsPath,
	}

	var err error
	if s.Direction, err = aggregate.DirectionOf(c.Optimization.Metric); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.Reducer, err = statistics.ParseReducer(c.Optimization.Reducer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.Codec, err = store.ParseCodec(c.Storage.Codec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := template.Validate(s.Artifacts, s.Vars); err != nil {
		return nil, fmt.Errorf("%w: paths.artifacts: %w", ErrInvalidConfig, err)
	}

	for _, m := range c.Metrics {
		if m == aggregate.ROCMetric {
			s.ROC = true
			continue
		}
		if slices.Contains(s.Metrics, m) {
			continue
		}
		if _, err := threshold.Lookup(m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		s.Metrics = append(s.Metrics, m)
	}
	if !slices.Contains(s.Metrics, s.OptimizationKey) {
		s.Metrics = append(s.Metrics, s.OptimizationKey)
	}

	s.Models, s.Ensembles = SplitModels(c.Models)
	if len(s.Models) == 0 {
		return nil, fmt.Errorf("%w: no models configured", ErrInvalidConfig)
	}
	return s, nil
}

// SplitModels separates ensemble models (name contains "ensemble") from the
// rest. Ensembles need at least two non-ensemble models to combine, so they
// are dropped when fewer are configured.
func SplitModels(models []string) (base, ensembles []string) {
	for _, m := range models {
		if strings.Contains(m, "ensemble") {
			ensembles = append(ensembles, m)
		} else {
			base = append(base, m)
		}
	}
	if len(base) < 2 {
		ensembles = nil
	}
	return base, ensembles
}

// Roster returns the models in report order: base models then ensembles.
func (s *Settings) Roster() []string {
	return append(slices.Clone(s.Models), s.Ensembles...)
}

// AggregateConfig builds the aggregator configuration for a set of seeds and
// candidate feature counts.
func (s *Settings) AggregateConfig(seeds, featureCounts []int) aggregate.Config {
	metrics := slices.Clone(s.Metrics)
	if s.ROC {
		metrics = append(metrics, aggregate.ROCMetric)
	}
	return aggregate.Config{
		Seeds:         seeds,
		FeatureCounts: featureCounts,
		Metrics:       metrics,
		Optimization:  s.Optimization,
		Policy:        threshold.Policy{Youden: s.Youden, Bootstraps: s.Bootstraps},
	}
}

// ReportMetrics are the metrics written to summary tables.
func (s *Settings) ReportMetrics() []string {
	return slices.Clone(s.Metrics)
}
