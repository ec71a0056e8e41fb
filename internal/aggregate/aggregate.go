// Package aggregate reduces per-seed, per-bootstrap metric records into one
// entry per (job, model): the feature count with the best mean optimization
// metric, with every collected metric flattened across seeds.
package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/spboyer/resultsum/internal/store"
	"github.com/spboyer/resultsum/internal/threshold"
)

// ROCMetric is the pseudo-metric requesting per-bootstrap ROC summaries.
const ROCMetric = "roc"

// ErrEmptyResult marks a (job, model) cell for which no feature count has any
// recorded scores.
var ErrEmptyResult = errors.New("no recorded scores")

// EmptyResultError describes a skipped (job, model) cell. Cause holds the last
// data error absorbed while collecting its candidates, if any.
type EmptyResultError struct {
	Job   string
	Model string
	Cause error
}

func (e *EmptyResultError) Error() string {
	msg := fmt.Sprintf("job %s, model %s: %s", e.Job, e.Model, ErrEmptyResult)
	if e.Cause != nil {
		msg += " (last error: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e *EmptyResultError) Unwrap() error { return ErrEmptyResult }

// Config selects what is aggregated.
type Config struct {
	// Seeds are the seeds to collect from, in order.
	Seeds []int
	// FeatureCounts are the candidate feature counts. They are scanned in
	// ascending order; the first of equally good counts wins.
	FeatureCounts []int
	// Metrics are the record keys to collect, e.g. "accuracy_score". The
	// ROCMetric entry requests ROC summaries.
	Metrics []string
	// Optimization is the metric used to pick the feature count, e.g.
	// "accuracy" or "mean_squared_error".
	Optimization string
	Policy       threshold.Policy
}

// Scores is the aggregated result of one experiment.
type Scores struct {
	Models []string
	Jobs   []string
	// MetricOrder lists the keys of Metrics in configuration order.
	MetricOrder []string
	Metrics     map[string]*Table[[]float64]
	// ROC is nil unless ROC summaries were requested.
	ROC  *Table[[]threshold.ROCSummary]
	NTop *Table[int]

	// Skipped lists the cells that were left absent.
	Skipped []*EmptyResultError
}

// Aggregator selects the best feature count per (job, model).
type Aggregator struct {
	repo      *store.Repository
	cfg       Config
	direction Direction
	optKey    string
	metrics   []string
	roc       bool
}

// New validates cfg and returns an aggregator reading from repo. Unknown
// metrics and optimization directions are configuration errors.
func New(repo *store.Repository, cfg Config) (*Aggregator, error) {
	dir, err := DirectionOf(cfg.Optimization)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		repo:      repo,
		cfg:       cfg,
		direction: dir,
		optKey:    OptimizationKey(cfg.Optimization),
	}
	for _, m := range cfg.Metrics {
		if m == ROCMetric {
			a.roc = true
			continue
		}
		if slices.Contains(a.metrics, m) {
			continue
		}
		if _, err := threshold.Lookup(m); err != nil {
			return nil, err
		}
		a.metrics = append(a.metrics, m)
	}
	if !slices.Contains(a.metrics, a.optKey) {
		if _, err := threshold.Lookup(a.optKey); err != nil {
			return nil, fmt.Errorf("optimization metric %s: %w", cfg.Optimization, err)
		}
		a.metrics = append(a.metrics, a.optKey)
	}
	a.cfg.FeatureCounts = slices.Clone(cfg.FeatureCounts)
	slices.Sort(a.cfg.FeatureCounts)
	return a, nil
}

// Direction returns the direction of the optimization metric.
func (a *Aggregator) Direction() Direction { return a.direction }

// OptimizationKey returns the record key of the optimization metric.
func (a *Aggregator) OptimizationKey() string { return a.optKey }

// candidate is what one feature count produced for a (job, model).
type candidate struct {
	values map[string][][]float64 // metric -> per-seed lists
	roc    []threshold.ROCSummary
	seeds     int
}

// Aggregate fills one cell per (job, model). Cells without data are left
// absent and reported in Scores.Skipped. Errors are returned only for
// configuration problems.
func (a *Aggregator) Aggregate(jobs, models []string) (*Scores, error) {
	s := &Scores{
		Models:      slices.Clone(models),
		Jobs:        slices.Clone(jobs),
		MetricOrder: slices.Clone(a.metrics),
		Metrics:     make(map[string]*Table[[]float64], len(a.metrics)),
		NTop:        NewTable[int](models, jobs),
	}
	for _, m := range a.metrics {
		s.Metrics[m] = NewTable[[]float64](models, jobs)
	}
	if a.roc {
		s.ROC = NewTable[[]threshold.ROCSummary](models, jobs)
	}

	for _, job := range jobs {
		for _, model := range models {
			best, nTop, lastErr, err := a.bestCandidate(job, model)
			if err != nil {
				return nil, err
			}
			if best == nil {
				skip := &EmptyResultError{Job: job, Model: model, Cause: lastErr}
				slog.Warn("No scores for job/model, skipping", "job", job, "model", model, "error", lastErr)
				s.Skipped = append(s.Skipped, skip)
				continue
			}
			for _, m := range a.metrics {
				s.Metrics[m].Set(model, job, flatten(best.values[m]))
			}
			if a.roc {
				s.ROC.Set(model, job, best.roc)
			}
			s.NTop.Set(model, job, nTop)
			slog.Debug("Best feature count selected", "job", job, "model", model, "n_top", nTop, "seeds", best.seeds)
		}
	}
	return s, nil
}

func (a *Aggregator) bestCandidate(job, model string) (best *candidate, nTop int, lastErr, err error) {
	bestMean := a.direction.Worst()
	for _, n := range a.cfg.FeatureCounts {
		c, cerr := a.collect(store.JobKey(job, n), model)
		if cerr != nil {
			if configError(cerr) {
				return nil, 0, nil, cerr
			}
			slog.Warn("Discarding feature count with unreadable scores", "job", job, "model", model, "n_top", n, "error", cerr)
			lastErr = cerr
			continue
		}
		if c.seeds == 0 {
			continue
		}
		mean := Mean(flatten(c.values[a.optKey]))
		if a.direction.Better(mean, bestMean) {
			best, nTop, bestMean = c, n, mean
		}
	}
	return best, nTop, lastErr, nil
}

// collect gathers every metric for one job key and model across seeds.
// Seeds without a recorded run are skipped and do not count.
func (a *Aggregator) collect(jobKey, model string) (*candidate, error) {
	c := &candidate{values: make(map[string][][]float64, len(a.metrics))}
	for _, seed := range a.cfg.Seeds {
		rec, ok, err := a.repo.Score(seed, jobKey, model)
		if err != nil {
			return nil, err
		}
		if !ok || rec.IsEmpty() {
			continue
		}
		thresholds, err := a.cfg.Policy.Thresholds(rec)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", seed, err)
		}
		if a.roc {
			if !rec.HasPredictions() {
				return nil, fmt.Errorf("seed %d: roc: %w", seed, threshold.ErrNoPredictions)
			}
			if err := rec.Validate(); err != nil {
				return nil, fmt.Errorf("seed %d: roc: %w", seed, err)
			}
			for b := range rec.True {
				c.roc = append(c.roc, threshold.Summarize(rec.True[b], rec.Probas[b]))
			}
		}
		for _, m := range a.metrics {
			values, err := a.cfg.Policy.Resolve(rec, m, thresholds)
			if err != nil {
				return nil, fmt.Errorf("seed %d: %w", seed, err)
			}
			c.values[m] = append(c.values[m], values)
		}
		c.seeds++
	}
	return c, nil
}

func configError(err error) bool {
	return errors.Is(err, threshold.ErrUnknownMetric) || errors.Is(err, ErrUnknownDirection)
}

func flatten(lists [][]float64) []float64 {
	var out []float64
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Mean is the arithmetic mean; NaN for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
