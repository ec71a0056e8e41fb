package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/resultsum/internal/nested"
)

// Reserved keys of a metric record.
const (
	KeyTrue   = "true"
	KeyProbas = "probas"
)

// ErrShape indicates a metric record whose per-bootstrap arrays disagree in
// length.
var ErrShape = errors.New("inconsistent record shape")

// MetricRecord holds the raw per-bootstrap output of one seed/job/model run.
// True and Probas carry one slice per bootstrap iteration; Values maps a
// metric name to one value per bootstrap iteration.
type MetricRecord struct {
	True   [][]float64          `mapstructure:"true" json:"true,omitempty"`
	Probas [][]float64          `mapstructure:"probas" json:"probas,omitempty"`
	Values map[string][]float64 `mapstructure:"-" json:"-"`
}

// IsEmpty reports whether the run was never recorded.
func (r MetricRecord) IsEmpty() bool {
	if len(r.True) > 0 || len(r.Probas) > 0 {
		return false
	}
	for _, v := range r.Values {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Bootstraps returns the number of bootstrap iterations the record covers.
func (r MetricRecord) Bootstraps() int {
	if len(r.True) > 0 {
		return len(r.True)
	}
	if len(r.Probas) > 0 {
		return len(r.Probas)
	}
	n := 0
	for _, v := range r.Values {
		if len(v) > n {
			n = len(v)
		}
	}
	return n
}

// HasPredictions reports whether labels and probabilities are available.
func (r MetricRecord) HasPredictions() bool {
	return len(r.True) > 0 && len(r.Probas) > 0
}

// Validate checks that labels and probabilities line up per bootstrap.
func (r MetricRecord) Validate() error {
	if len(r.True) == 0 && len(r.Probas) == 0 {
		return nil
	}
	if len(r.True) != len(r.Probas) {
		return fmt.Errorf("%w: %d label sets vs %d probability sets", ErrShape, len(r.True), len(r.Probas))
	}
	for i := range r.True {
		if len(r.True[i]) != len(r.Probas[i]) {
			return fmt.Errorf("%w: bootstrap %d has %d labels vs %d probabilities", ErrShape, i, len(r.True[i]), len(r.Probas[i]))
		}
	}
	return nil
}

// toStore lays the record out the way it is persisted.
func (r MetricRecord) toStore() *nested.Store {
	s := nested.New()
	if r.True != nil {
		s.Set(nested.Path{KeyTrue}, r.True)
	}
	if r.Probas != nil {
		s.Set(nested.Path{KeyProbas}, r.Probas)
	}
	names := make([]string, 0, len(r.Values))
	for k := range r.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s.Set(nested.Path{k}, r.Values[k])
	}
	return s
}

// decodeRecord converts a stored metric dictionary back into a MetricRecord.
// Entries that are not per-bootstrap number lists are skipped.
func decodeRecord(v any) (MetricRecord, error) {
	var raw map[string]any
	switch t := v.(type) {
	case *nested.Store:
		raw = t.ToMap()
	case map[string]any:
		raw = t
	case MetricRecord:
		return t, nil
	default:
		return MetricRecord{}, fmt.Errorf("metric record has unexpected type %T", v)
	}

	var rec MetricRecord
	if err := weakDecode(raw, &rec); err != nil {
		return MetricRecord{}, fmt.Errorf("decoding metric record: %w", err)
	}
	rec.Values = make(map[string][]float64, len(raw))
	for k, val := range raw {
		if k == KeyTrue || k == KeyProbas {
			continue
		}
		var values []float64
		if err := weakDecode(val, &values); err != nil {
			slog.Debug("Skipping non-numeric record entry", "metric", k, "error", err)
			continue
		}
		rec.Values[k] = values
	}
	return rec, nil
}

func weakDecode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
