package aggregate

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownDirection is returned for an optimization metric whose direction
// is not known.
var ErrUnknownDirection = errors.New("unknown optimization direction")

// UnknownDirectionError names the optimization metric without a direction.
type UnknownDirectionError struct {
	Metric string
}

func (e *UnknownDirectionError) Error() string {
	return fmt.Sprintf("optimization metric %q has no known direction", e.Metric)
}

func (e *UnknownDirectionError) Unwrap() error { return ErrUnknownDirection }

// Direction tells whether larger or smaller values of a metric are better.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower-is-better"
	}
	return "higher-is-better"
}

var directions = map[string]Direction{
	"roc_auc":             HigherIsBetter,
	"average_precision":   HigherIsBetter,
	"precision":           HigherIsBetter,
	"recall":              HigherIsBetter,
	"specificity":         HigherIsBetter,
	"f1":                  HigherIsBetter,
	"accuracy":            HigherIsBetter,
	"r2":                  HigherIsBetter,
	"mean_absolute_error": LowerIsBetter,
	"mean_squared_error":  LowerIsBetter,
}

// DirectionOf returns the direction of an optimization metric name such as
// "accuracy" or "mean_squared_error".
func DirectionOf(metric string) (Direction, error) {
	d, ok := directions[metric]
	if !ok {
		return 0, &UnknownDirectionError{Metric: metric}
	}
	return d, nil
}

// Worst is the starting value of a best-so-far scan.
func (d Direction) Worst() float64 {
	if d == LowerIsBetter {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Better reports whether a strictly improves on b. NaN never improves.
func (d Direction) Better(a, b float64) bool {
	if d == LowerIsBetter {
		return a < b
	}
	return a > b
}

// OptimizationKey returns the record key under which an optimization metric
// is stored: "<name>_score", except for regression errors which are stored
// under their bare name.
func OptimizationKey(metric string) string {
	if d, ok := directions[metric]; ok && d == LowerIsBetter {
		return metric
	}
	return metric + "_score"
}
