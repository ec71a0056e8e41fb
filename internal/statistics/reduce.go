// Package statistics provides the scalar reductions applied to per-bootstrap
// metric lists and a bootstrap confidence interval of the mean.
package statistics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownReducer is returned by ParseReducer for unsupported names.
var ErrUnknownReducer = errors.New("unknown reducer")

// Reducer names a function collapsing a list of values into one number.
type Reducer string

const (
	ReduceMean   Reducer = "mean"
	ReduceMedian Reducer = "median"
	ReduceStd    Reducer = "std"
	ReduceMin    Reducer = "min"
	ReduceMax    Reducer = "max"
)

var reducers = map[Reducer]func([]float64) float64{
	ReduceMean:   Mean,
	ReduceMedian: Median,
	ReduceStd:    StdDev,
	ReduceMin:    Min,
	ReduceMax:    Max,
}

// Reducers lists the supported reducer names.
func Reducers() []Reducer {
	return []Reducer{ReduceMean, ReduceMedian, ReduceStd, ReduceMin, ReduceMax}
}

// ParseReducer resolves a reducer name. The empty string means mean.
func ParseReducer(name string) (Reducer, error) {
	r := Reducer(strings.ToLower(strings.TrimSpace(name)))
	if r == "" {
		return ReduceMean, nil
	}
	if _, ok := reducers[r]; !ok {
		names := make([]string, 0, len(reducers))
		for _, r := range Reducers() {
			names = append(names, string(r))
		}
		return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownReducer, name, strings.Join(names, ", "))
	}
	return r, nil
}

// Apply reduces values. An unresolved reducer falls back to the mean.
func (r Reducer) Apply(values []float64) float64 {
	if fn, ok := reducers[r]; ok {
		return fn(values)
	}
	return Mean(values)
}

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Variance computes the population variance of a float64 slice.
// Returns 0 for empty input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.PopVariance(values, nil)
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Median returns the middle value, averaging the two central values of an
// even-length input. Returns 0 for empty input. stat.Quantile has no kind
// that averages the central pair.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Min returns the smallest value, or 0 for empty input.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Min(values)
}

// Max returns the largest value, or 0 for empty input.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}
