// Package store holds the intermediate results of an experiment run:
// processed frames, selected feature lists, accumulated feature scores and
// per-seed metric records. A Repository is created once per run and handed
// to every component that reads or writes results.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/spboyer/resultsum/internal/nested"
)

// rankBonusDepth is how many leading features of a selection receive a
// decreasing rank bonus (10, 9, ... 1). Every later feature scores 1.
const rankBonusDepth = 10

// Repository provides typed access to the frame, feature, feature-score and
// score stores. It is not safe for concurrent use; results computed in
// parallel upstream must be written before aggregation starts.
type Repository struct {
	frames        *nested.Store
	features      *nested.Store
	featureScores *nested.Store
	scores        *nested.Store

	original  *Frame
	ephemeral *Frame

	codec Codec
}

// Option configures a Repository.
type Option func(*Repository)

// WithCodec selects how artifacts are encoded on Save.
func WithCodec(c Codec) Option {
	return func(r *Repository) {
		r.codec = c
	}
}

// NewRepository creates an empty repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		frames:        nested.New(),
		features:      nested.New(),
		featureScores: nested.New(),
		scores:        nested.New(),
		codec:         CodecJSON,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetOriginalFrame stores the untouched input frame.
func (r *Repository) SetOriginalFrame(f *Frame) {
	r.original = f
	slog.Debug("Original frame set", "rows", f.NumRows())
}

// OriginalFrame returns the untouched input frame.
func (r *Repository) OriginalFrame() *Frame { return r.original }

// SetEphemeralFrame stores the working frame of the current step.
func (r *Repository) SetEphemeralFrame(f *Frame) {
	r.ephemeral = f
	slog.Debug("Ephemeral frame set", "rows", f.NumRows())
}

// EphemeralFrame returns the working frame of the current step.
func (r *Repository) EphemeralFrame() *Frame { return r.ephemeral }

// SetFrame stores a processed frame for a seed and job.
func (r *Repository) SetFrame(seed int, job string, f *Frame) {
	r.frames.Set(nested.MustPath(seed, job), f)
}

// Frame returns the processed frame for a seed and job, or nil.
func (r *Repository) Frame(seed int, job string) *Frame {
	f, _ := r.frames.Get(nested.MustPath(seed, job)).(*Frame)
	return f
}

// SyncEphemeral copies the ephemeral frame into the frame store.
func (r *Repository) SyncEphemeral(seed int, job string) {
	r.SetFrame(seed, job, r.ephemeral)
	slog.Debug("Ephemeral frame synced", "seed", seed, "job", job)
}

// SetFeatures records the ranked feature list selected for a seed, bootstrap
// iteration and job, and adds its rank scores to the job's feature scores.
// Scores accumulate, so each (seed, bootstrap, job) must be recorded once.
func (r *Repository) SetFeatures(seed, bootstrap int, job string, features []string) {
	r.features.Set(nested.MustPath(seed, bootstrap, job), append([]string(nil), features...))

	for i, feature := range features {
		p := nested.Path{job, feature}
		current, _ := toFloat(r.featureScores.Get(p))
		r.featureScores.Set(p, current+float64(RankScore(i)))
	}
	slog.Debug("Features set", "seed", seed, "bootstrap", bootstrap, "job", job, "count", len(features))
}

// RankScore returns the score added for the feature at position i (0-based)
// of a selection.
func RankScore(i int) int {
	if i < rankBonusDepth {
		return rankBonusDepth - i
	}
	return 1
}

// Features returns the feature list recorded for a seed, bootstrap and job.
func (r *Repository) Features(seed, bootstrap int, job string) []string {
	v, ok := r.features.Lookup(nested.MustPath(seed, bootstrap, job))
	if !ok {
		return nil
	}
	var out []string
	if err := weakDecode(v, &out); err != nil {
		slog.Warn("Stored feature list is malformed", "seed", seed, "bootstrap", bootstrap, "job", job, "error", err)
		return nil
	}
	return out
}

// FeatureScores returns the accumulated rank score of every feature of a job.
func (r *Repository) FeatureScores(job string) map[string]int {
	child := r.featureScores.Child(nested.Path{job})
	out := make(map[string]int, child.Len())
	for _, feature := range child.Keys() {
		v, ok := toFloat(child.Get(nested.Path{feature}))
		if !ok {
			continue
		}
		out[feature] = int(v)
	}
	return out
}

// FeatureJobs returns the jobs that have feature scores, in insertion order.
func (r *Repository) FeatureJobs() []string {
	return r.featureScores.Keys()
}

// SetScore stores the metric record of a model for a seed and a
// job-with-feature-count key (see JobKey).
func (r *Repository) SetScore(seed int, jobWithN, model string, rec MetricRecord) {
	r.scores.Set(nested.MustPath(seed, jobWithN, model), rec.toStore())
	slog.Debug("Score set", "seed", seed, "job", jobWithN, "model", model)
}

// Score returns the metric record of a model. The boolean is false when the
// run was never recorded; an unreadable record is reported as an error.
func (r *Repository) Score(seed int, jobWithN, model string) (MetricRecord, bool, error) {
	v, ok := r.scores.Lookup(nested.MustPath(seed, jobWithN, model))
	if !ok {
		return MetricRecord{}, false, nil
	}
	rec, err := decodeRecord(v)
	if err != nil {
		return MetricRecord{}, true, fmt.Errorf("seed %d, job %s, model %s: %w", seed, jobWithN, model, err)
	}
	return rec, true, nil
}

// Scores returns every model's metric record for a seed and job key.
// Unreadable records are logged and left out.
func (r *Repository) Scores(seed int, jobWithN string) map[string]MetricRecord {
	child := r.scores.Child(nested.MustPath(seed, jobWithN))
	out := make(map[string]MetricRecord, child.Len())
	for _, model := range child.Keys() {
		rec, err := decodeRecord(child.Get(nested.Path{model}))
		if err != nil {
			slog.Warn("Skipping unreadable metric record", "seed", seed, "job", jobWithN, "model", model, "error", err)
			continue
		}
		out[model] = rec
	}
	return out
}

// SeedsInScores returns the seeds present in the score store in numeric
// order. Keys that are not integers are ignored.
func (r *Repository) SeedsInScores() []int {
	var seeds []int
	for _, k := range r.scores.Keys() {
		n, err := strconv.Atoi(k)
		if err != nil {
			slog.Debug("Ignoring non-integer seed key", "key", k)
			continue
		}
		seeds = append(seeds, n)
	}
	sort.Ints(seeds)
	return seeds
}

// JobKey builds the score-store key of a job at a given feature count.
func JobKey(job string, nTop int) string {
	return job + "_" + strconv.Itoa(nTop)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
