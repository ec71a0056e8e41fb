// Package collect runs a batch: for every configured experiment it loads the
// persisted results, picks the best configuration and writes the report
// tables, then writes the batch summary.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/dataset"
	"github.com/spboyer/resultsum/internal/projectconfig"
	"github.com/spboyer/resultsum/internal/reporting"
	"github.com/spboyer/resultsum/internal/store"
	"github.com/spboyer/resultsum/internal/summary"
	"github.com/spboyer/resultsum/internal/template"
	"github.com/spboyer/resultsum/internal/threshold"
)

// Output file names.
const (
	ResultsFile     = "results.csv"
	LongResultsFile = "results_long.csv"
	ReportDir       = "report"
	StrategiesFile  = "strategies.csv"
)

// intervalSeed keeps confidence intervals identical across runs.
const intervalSeed = 0

var (
	// ErrNoExperiments is returned when the configuration lists none.
	ErrNoExperiments = errors.New("no experiments configured")
	// ErrNoSeeds is returned when neither the configuration nor the score
	// store names a seed.
	ErrNoSeeds = errors.New("no seeds configured or found in scores")
)

// JobDataError reports a configured job that produced nothing to summarise.
// It wraps aggregate.ErrEmptyResult.
type JobDataError struct {
	Experiment string
	Job        string
	// Missing names what was absent: "feature scores" or "model scores".
	Missing string
}

func (e *JobDataError) Error() string {
	return fmt.Sprintf("experiment %s: job %s has no %s: %s", e.Experiment, e.Job, e.Missing, aggregate.ErrEmptyResult)
}

func (e *JobDataError) Unwrap() error { return aggregate.ErrEmptyResult }

// SourceFunc returns where an experiment's artifacts are read from.
type SourceFunc func(experiment string) (store.ArtifactSource, error)

// EventType identifies a progress event.
type EventType string

const (
	EventBatchStart         EventType = "batch_start"
	EventExperimentStart    EventType = "experiment_start"
	EventExperimentComplete EventType = "experiment_complete"
	EventExperimentFailed   EventType = "experiment_failed"
	EventBatchComplete      EventType = "batch_complete"
)

// ProgressEvent reports batch progress.
type ProgressEvent struct {
	EventType  EventType
	Experiment string
	Num        int
	Total      int
	Duration   time.Duration
	Err        error
	Row        *summary.Row
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// ExperimentResult is the outcome of one experiment.
type ExperimentResult struct {
	Name    string
	Entry   reporting.Entry
	Scores  *aggregate.Scores
	Files   []string
	Skipped int
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	Results  []ExperimentResult
	Failures []reporting.Failure
	Files    []string
}

// Failed reports whether any experiment failed.
func (b *BatchResult) Failed() bool { return len(b.Failures) > 0 }

// Collector runs batches over one resolved configuration.
type Collector struct {
	settings *projectconfig.Settings
	source   SourceFunc
	metrics  *runMetrics
	tracer   trace.Tracer

	blobOnce sync.Once
	blobRoot *store.BlobSource
	blobErr  error

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures a Collector.
type Option func(*Collector)

// WithSource overrides where artifacts are read from.
func WithSource(fn SourceFunc) Option {
	return func(c *Collector) {
		c.source = fn
	}
}

// New creates a collector. Artifacts are read below the output directory, or
// from the configured blob container, at the rendered artifacts template.
func New(settings *projectconfig.Settings, opts ...Option) *Collector {
	c := &Collector{
		settings: settings,
		metrics:  newRunMetrics(),
		tracer:   otel.Tracer("github.com/spboyer/resultsum/collect"),
	}
	c.source = c.defaultSource
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnProgress registers a progress listener.
func (c *Collector) OnProgress(listener ProgressListener) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Collector) notify(event ProgressEvent) {
	c.progressMu.Lock()
	listeners := make([]ProgressListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.progressMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// defaultSource locates artifacts through the configured artifacts template,
// either below the output directory or below a blob container.
func (c *Collector) defaultSource(experiment string) (store.ArtifactSource, error) {
	prefix, err := template.Render(c.settings.Artifacts, &template.Context{
		Experiment: experiment,
		Name:       summary.CleanExperimentName(experiment),
		Vars:       c.settings.Vars,
	})
	if err != nil {
		return nil, fmt.Errorf("artifacts location for %s: %w", experiment, err)
	}

	blob := c.settings.Blob
	if blob == nil || blob.AccountURL == "" {
		return store.NewDirSource(filepath.Join(c.settings.OutputDir, prefix)), nil
	}
	c.blobOnce.Do(func() {
		c.blobRoot, c.blobErr = store.NewBlobSource(blob.AccountURL, blob.Container, "")
	})
	if c.blobErr != nil {
		return nil, c.blobErr
	}
	return c.blobRoot.WithPrefix(prefix), nil
}

func (c *Collector) experimentDir(experiment string) string {
	return filepath.Join(c.settings.OutputDir, experiment)
}

// Run processes every configured experiment. A failing experiment is logged
// and listed in the result; the others still run. The returned error is
// reserved for problems that stop the whole batch.
func (c *Collector) Run(ctx context.Context) (*BatchResult, error) {
	exps := c.settings.Experiments
	if len(exps) == 0 {
		return nil, ErrNoExperiments
	}

	ctx, span := c.tracer.Start(ctx, "collect.Run",
		trace.WithAttributes(attribute.Int("batch.experiments", len(exps))))
	defer span.End()

	c.notify(ProgressEvent{EventType: EventBatchStart, Total: len(exps)})
	batch := &BatchResult{}
	for i, name := range exps {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		c.notify(ProgressEvent{EventType: EventExperimentStart, Experiment: name, Num: i + 1, Total: len(exps)})

		start := time.Now()
		res, err := c.Experiment(ctx, name)
		elapsed := time.Since(start)
		if err != nil {
			slog.Error("Experiment failed", "experiment", name, "error", err)
			c.metrics.observe("failed", elapsed)
			batch.Failures = append(batch.Failures, reporting.Failure{Experiment: name, Err: err})
			c.notify(ProgressEvent{EventType: EventExperimentFailed, Experiment: name, Num: i + 1, Total: len(exps), Duration: elapsed, Err: err})
			continue
		}
		c.metrics.observe("succeeded", elapsed)
		batch.Results = append(batch.Results, *res)
		c.notify(ProgressEvent{EventType: EventExperimentComplete, Experiment: name, Num: i + 1, Total: len(exps), Duration: elapsed, Row: &res.Entry.Row})
	}

	files, err := c.writeBatch(batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	batch.Files = files

	if path := c.settings.MetricsPath; path != "" {
		if err := c.metrics.flush(path); err != nil {
			slog.Warn("Could not write run metrics", "path", path, "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", len(batch.Results)),
		attribute.Int("batch.failed", len(batch.Failures)),
	)
	c.notify(ProgressEvent{EventType: EventBatchComplete, Num: len(batch.Results), Total: len(exps)})
	return batch, nil
}

// Experiment loads, aggregates and reports one experiment.
func (c *Collector) Experiment(ctx context.Context, name string) (res *ExperimentResult, err error) {
	ctx, span := c.tracer.Start(ctx, "collect.Experiment",
		trace.WithAttributes(attribute.String("experiment", name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dir := c.experimentDir(name)
	exp, err := projectconfig.LoadExperiment(dir)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", name, err)
	}

	repo, err := c.Repository(ctx, name)
	if err != nil {
		return nil, err
	}

	seeds := c.settings.Seeds
	if len(seeds) == 0 {
		seeds = repo.SeedsInScores()
		slog.Debug("Using seeds found in scores", "experiment", name, "seeds", seeds)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("experiment %s: %w", name, ErrNoSeeds)
	}

	jobs, counts := exp.JobNames(), exp.FeatureCounts()
	res = &ExperimentResult{Name: name}

	files, err := c.writeRankings(name, dir, repo, jobs, counts)
	if err != nil {
		return nil, err
	}
	res.Files = append(res.Files, files...)

	agg, err := aggregate.New(repo, c.settings.AggregateConfig(seeds, counts))
	if err != nil {
		return nil, err
	}
	scores, err := agg.Aggregate(jobs, c.settings.Roster())
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", name, err)
	}
	res.Scores = scores
	res.Skipped = len(scores.Skipped)
	c.metrics.skipped.Add(float64(res.Skipped))
	if job, ok := emptyJob(scores); ok {
		return nil, &JobDataError{Experiment: name, Job: job, Missing: "model scores"}
	}

	sel := summary.Selection{Key: agg.OptimizationKey(), Direction: agg.Direction(), Reducer: c.settings.Reducer}
	row, err := summary.BuildRow(name, scores, sel, c.settings.ReportMetrics())
	if err != nil {
		return nil, err
	}
	res.Entry = reporting.Entry{Row: row, Intervals: make(map[string]summary.Describe, len(row.Metrics))}
	for _, m := range row.Metrics {
		if values := row.Values[m]; len(values) > 0 {
			res.Entry.Intervals[m] = summary.Interval(values, c.settings.ConfidenceLevel, intervalSeed)
		}
	}

	files, err = c.writeReports(name, dir, scores, sel)
	if err != nil {
		return nil, err
	}
	res.Files = append(res.Files, files...)

	span.SetAttributes(
		attribute.String("result.model", row.Model),
		attribute.String("result.job", row.Job),
		attribute.Int("result.n_top", row.NTop),
		attribute.Int("result.skipped_cells", res.Skipped),
	)
	slog.Info("Experiment summarised", "experiment", name, "model", row.Model, "job", row.JobLabel, "n_top", row.NTop)
	return res, nil
}

// Repository loads an experiment's persisted results.
func (c *Collector) Repository(ctx context.Context, experiment string) (*store.Repository, error) {
	src, err := c.source(experiment)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", experiment, err)
	}
	repo := store.NewRepository(store.WithCodec(c.settings.Codec))
	if err := repo.Load(ctx, src); err != nil {
		return nil, fmt.Errorf("experiment %s: %w", experiment, err)
	}
	return repo, nil
}

// writeRankings writes the averaged feature ranking of every job, in full
// and cut to the reported top-n sizes.
// A job without feature scores ends the experiment.
func (c *Collector) writeRankings(experiment, dir string, repo *store.Repository, jobs []string, counts []int) ([]string, error) {
	var files []string
	cuts := summary.RankingCuts(counts)
	for _, job := range jobs {
		scores := repo.FeatureScores(job)
		if len(scores) == 0 {
			return nil, &JobDataError{Experiment: experiment, Job: job, Missing: "feature scores"}
		}
		ranking := summary.FeatureRanking(scores)

		path := filepath.Join(dir, job, "avg_feature_ranking_all.csv")
		if err := c.write(path, reporting.RankingTable(ranking)); err != nil {
			return nil, err
		}
		files = append(files, path)
		for _, n := range cuts {
			path := filepath.Join(dir, job, "avg_feature_ranking_top"+strconv.Itoa(n)+".csv")
			if err := c.write(path, reporting.RankingTable(ranking.Top(n))); err != nil {
				return nil, err
			}
			files = append(files, path)
		}
	}
	return files, nil
}

// emptyJob returns the first job whose every model cell was skipped.
func emptyJob(scores *aggregate.Scores) (string, bool) {
	skipped := make(map[string]int, len(scores.Jobs))
	for _, skip := range scores.Skipped {
		skipped[skip.Job]++
	}
	for _, job := range scores.Jobs {
		if len(scores.Models) > 0 && skipped[job] == len(scores.Models) {
			return job, true
		}
	}
	return "", false
}

// writeReports writes the strategies legend, one heatmap per metric and, when
// ROC curves were collected, the mean ROC curve of each job's best model.
func (c *Collector) writeReports(experiment, dir string, scores *aggregate.Scores, sel summary.Selection) ([]string, error) {
	reportDir := filepath.Join(dir, ReportDir)
	legend := reporting.StrategiesTable(scores.Jobs)
	strategies := make([]string, 0, len(legend.Records))
	for _, rec := range legend.Records {
		strategies = append(strategies, rec[0]+": "+rec[1])
	}
	slog.Info("Strategies summary", "experiment", experiment, "strategies", strings.Join(strategies, ", "))

	path := filepath.Join(reportDir, StrategiesFile)
	if err := c.write(path, legend); err != nil {
		return nil, err
	}
	files := []string{path}

	reduced := summary.Reduce(scores, sel.Reducer)
	for _, m := range scores.MetricOrder {
		path := filepath.Join(reportDir, "results_heatmap_"+m+".csv")
		if err := c.write(path, reporting.HeatmapTable(reduced[m])); err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	if scores.ROC == nil {
		return files, nil
	}
	best := summary.BestModelPerJob(reduced[sel.Key], sel.Direction)
	for j, job := range scores.Jobs {
		model, ok := best[job]
		if !ok {
			continue
		}
		summaries, ok := scores.ROC.Get(model, job)
		if !ok || len(summaries) == 0 {
			continue
		}
		curve := threshold.MeanROC(summaries, c.settings.ROCPoints)
		path := filepath.Join(reportDir, "mean_roc_strat_"+strconv.Itoa(j+1)+".csv")
		if err := c.write(path, reporting.MeanROCTable(model, curve)); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

// writeBatch writes the wide and long result tables and the summary
// documents.
func (c *Collector) writeBatch(batch *BatchResult) ([]string, error) {
	dir := c.settings.ResultsDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	metrics := c.settings.ReportMetrics()
	rows := make([]summary.Row, 0, len(batch.Results))
	entries := make([]reporting.Entry, 0, len(batch.Results))
	for _, r := range batch.Results {
		rows = append(rows, r.Entry.Row)
		entries = append(entries, r.Entry)
	}

	var files []string
	wide := filepath.Join(dir, ResultsFile)
	if err := c.write(wide, reporting.ResultsTable(rows, metrics)); err != nil {
		return nil, err
	}
	long := filepath.Join(dir, LongResultsFile)
	if err := c.write(long, reporting.LongResultsTable(rows, metrics)); err != nil {
		return nil, err
	}
	files = append(files, wide, long)

	doc := reporting.Batch{
		Optimization: c.settings.Optimization,
		Direction:    c.settings.Direction,
		Reducer:      string(c.settings.Reducer),
		Level:        c.settings.ConfidenceLevel,
		Metrics:      metrics,
		Entries:      entries,
		Failures:     batch.Failures,
	}
	if err := reporting.WriteSummary(dir, doc, c.settings.HTML); err != nil {
		return nil, err
	}
	files = append(files, filepath.Join(dir, reporting.MarkdownFile))
	if c.settings.HTML {
		files = append(files, filepath.Join(dir, reporting.HTMLFile))
	}
	slog.Info("Wrote batch results", "dir", dir, "experiments", len(rows), "failed", len(batch.Failures))
	return files, nil
}

func (c *Collector) write(path string, t *dataset.Table) error {
	if err := dataset.WriteTable(path, t); err != nil {
		return err
	}
	c.metrics.files.Inc()
	return nil
}
