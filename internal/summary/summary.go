// Package summary collapses aggregated per-bootstrap metric lists into
// scalars, picks the winning (model, job) cell of an experiment and builds the
// per-experiment result row.
package summary

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/statistics"
)

// ErrNoWinner is returned when every cell of the optimization table is absent.
var ErrNoWinner = errors.New("no (model, job) cell has results")

// Reduce applies reducer to every present cell of every collected metric.
// Absent cells stay absent.
func Reduce(scores *aggregate.Scores, reducer statistics.Reducer) map[string]*aggregate.Table[float64] {
	out := make(map[string]*aggregate.Table[float64], len(scores.Metrics))
	for name, table := range scores.Metrics {
		out[name] = aggregate.Map(table, reducer.Apply)
	}
	return out
}

// SelectBest scans the table row by row (models in order, then jobs in order)
// and returns the first cell that no later cell strictly beats. Absent and NaN
// cells are skipped; ok is false when no cell qualifies.
func SelectBest(t *aggregate.Table[float64], d aggregate.Direction) (model, job string, ok bool) {
	best := d.Worst()
	for i := range t.Models {
		for j := range t.Jobs {
			v, present := t.At(i, j)
			if !present || math.IsNaN(v) {
				continue
			}
			if !ok || d.Better(v, best) {
				best, model, job, ok = v, t.Models[i], t.Jobs[j], true
			}
		}
	}
	return model, job, ok
}

// BestModelPerJob returns, for each job with at least one present cell, the
// first model with the best value in that column.
func BestModelPerJob(t *aggregate.Table[float64], d aggregate.Direction) map[string]string {
	out := make(map[string]string, len(t.Jobs))
	for j, job := range t.Jobs {
		best, found := d.Worst(), false
		for i, model := range t.Models {
			v, present := t.At(i, j)
			if !present || math.IsNaN(v) {
				continue
			}
			if !found || d.Better(v, best) {
				best, found = v, true
				out[job] = model
			}
		}
	}
	return out
}

// JobLabel is the display label of the job at index i of the job list.
func JobLabel(i int) string {
	return fmt.Sprintf("Strat. %d", i+1)
}

// CleanExperimentName drops the first two underscore-separated parts of an
// experiment directory name, e.g. "2024_01_heart_failure" becomes
// "heart_failure". Names with fewer than three parts are kept.
func CleanExperimentName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return name
	}
	return strings.Join(parts[2:], "_")
}

// Row is the summary of one experiment at its winning cell.
type Row struct {
	Experiment string
	Job        string
	JobLabel   string
	Model      string
	NTop       int
	// Metrics lists the keys of Values and Means in report order.
	Metrics []string
	Values  map[string][]float64
	Means   map[string]float64
}

// Selection describes how the winning cell is chosen.
type Selection struct {
	// Key is the record key of the optimization metric.
	Key       string
	Direction aggregate.Direction
	Reducer   statistics.Reducer
}

// BuildRow reduces scores, selects the winning cell and gathers its values.
// metrics selects and orders the reported metrics; nil reports every
// collected metric.
func BuildRow(experiment string, scores *aggregate.Scores, sel Selection, metrics []string) (Row, error) {
	reduced := Reduce(scores, sel.Reducer)
	opt, ok := reduced[sel.Key]
	if !ok {
		return Row{}, fmt.Errorf("optimization metric %s was not collected", sel.Key)
	}
	model, job, ok := SelectBest(opt, sel.Direction)
	if !ok {
		return Row{}, fmt.Errorf("experiment %s: %w", experiment, ErrNoWinner)
	}
	if metrics == nil {
		metrics = scores.MetricOrder
	}

	row := Row{
		Experiment: CleanExperimentName(experiment),
		Job:        job,
		Model:      model,
		Metrics:    metrics,
		Values:     make(map[string][]float64, len(metrics)),
		Means:      make(map[string]float64, len(metrics)),
	}
	for i, j := range scores.Jobs {
		if j == job {
			row.JobLabel = JobLabel(i)
			break
		}
	}
	row.NTop, _ = scores.NTop.Get(model, job)
	for _, m := range metrics {
		table, ok := scores.Metrics[m]
		if !ok {
			continue
		}
		values, _ := table.Get(model, job)
		row.Values[m] = values
		row.Means[m] = statistics.Mean(values)
	}
	return row, nil
}

// Describe is the mean, standard deviation and bootstrap confidence interval
// of one cell's values.
type Describe struct {
	Mean float64
	Std  float64
	CI   statistics.ConfidenceInterval
}

// Interval describes values with a percentile bootstrap interval at level.
func Interval(values []float64, level float64, seed int64) Describe {
	return Describe{
		Mean: statistics.Mean(values),
		Std:  statistics.StdDev(values),
		CI:   statistics.Bootstrap{Level: level, Seed: seed}.CI(values),
	}
}
