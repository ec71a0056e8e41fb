package threshold

import (
	"errors"
	"fmt"

	"github.com/spboyer/resultsum/internal/store"
)

// ErrNoPredictions is returned when a metric has to be computed but the
// record carries no labels or probabilities.
var ErrNoPredictions = errors.New("record has no predictions to compute metric from")

// Policy decides which decision threshold applies to each bootstrap iteration
// and when stored metric values are replaced by recomputed ones.
type Policy struct {
	// Youden selects the Youden-optimal threshold per bootstrap iteration and
	// forces every threshold-dependent metric to be recomputed.
	Youden bool
	// Bootstraps is the expected number of bootstrap iterations per record.
	// Zero means the record's own count.
	Bootstraps int
}

func (p Policy) bootstraps(rec store.MetricRecord) int {
	if p.Bootstraps > 0 {
		return p.Bootstraps
	}
	return rec.Bootstraps()
}

// Thresholds returns the decision threshold of each bootstrap iteration.
func (p Policy) Thresholds(rec store.MetricRecord) ([]float64, error) {
	n := p.bootstraps(rec)
	out := make([]float64, n)
	if !p.Youden {
		for i := range out {
			out[i] = DefaultThreshold()
		}
		return out, nil
	}
	if err := p.checkPredictions(rec, n); err != nil {
		return nil, fmt.Errorf("youden threshold: %w", err)
	}
	for i := range out {
		out[i] = YoudenThreshold(rec.True[i], rec.Probas[i])
	}
	return out, nil
}

// Resolve returns one value of metric per bootstrap iteration. Stored values
// of threshold-independent metrics are always used as is. Threshold-dependent
// metrics are recomputed at thresholds when Youden is enabled, and otherwise
// only when the stored list is missing or shorter than the bootstrap count.
func (p Policy) Resolve(rec store.MetricRecord, metric string, thresholds []float64) ([]float64, error) {
	m, err := Lookup(metric)
	if err != nil {
		return nil, err
	}
	n := p.bootstraps(rec)
	stored, ok := rec.Values[metric]
	complete := ok && len(stored) >= n

	if m.ThresholdIndependent() && ok && len(stored) > 0 {
		return append([]float64(nil), stored...), nil
	}
	if !m.ThresholdIndependent() && complete && !p.Youden {
		return append([]float64(nil), stored...), nil
	}

	if err := p.checkPredictions(rec, n); err != nil {
		return nil, fmt.Errorf("%s: %w", metric, err)
	}
	if !m.ThresholdIndependent() && len(thresholds) < n {
		return nil, fmt.Errorf("%s: %d thresholds for %d bootstrap iterations", metric, len(thresholds), n)
	}
	out := make([]float64, n)
	for i := range out {
		t := DefaultThreshold()
		if i < len(thresholds) {
			t = thresholds[i]
		}
		v, err := Recompute(metric, rec.True[i], rec.Probas[i], t)
		if err != nil {
			return nil, fmt.Errorf("bootstrap %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (p Policy) checkPredictions(rec store.MetricRecord, n int) error {
	if !rec.HasPredictions() {
		return ErrNoPredictions
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if len(rec.True) < n {
		return fmt.Errorf("%w: %d bootstrap iterations recorded, %d expected", store.ErrShape, len(rec.True), n)
	}
	return nil
}
