package threshold

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Curve is a receiver operating characteristic curve. Point i gives the
// false and true positive rates when every score >= Thresholds[i] is called
// positive. Thresholds are distinct scores in decreasing order, preceded by
// +Inf where nothing is called positive.
type Curve struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64

	// cumulative false/true positive counts per point
	FPS []float64
	TPS []float64

	Positives float64
	Negatives float64
}

// ROCCurve computes the ROC curve of labels against scores. Every distinct
// score is kept as a threshold.
func ROCCurve(labels, scores []float64) Curve {
	n := min(len(labels), len(scores))
	y := slices.Clone(scores[:n])
	classes := make([]bool, n)
	var c Curve
	for i := range n {
		classes[i] = positive(labels[i])
		if classes[i] {
			c.Positives++
		} else {
			c.Negatives++
		}
	}
	if n == 0 {
		return Curve{
			FPR:        []float64{math.NaN()},
			TPR:        []float64{math.NaN()},
			Thresholds: []float64{math.Inf(1)},
			FPS:        []float64{0},
			TPS:        []float64{0},
		}
	}

	stat.SortWeightedLabeled(y, classes, nil)
	c.TPR, c.FPR, c.Thresholds = stat.ROC(nil, y, classes, nil)
	c.TPS = counts(c.TPR, c.Positives)
	c.FPS = counts(c.FPR, c.Negatives)
	return c
}

// counts turns rates back into cumulative counts out of total.
func counts(rates []float64, total float64) []float64 {
	out := make([]float64, len(rates))
	if total == 0 {
		return out
	}
	for i, r := range rates {
		out[i] = math.Round(r * total)
	}
	return out
}

// AUC integrates y over x with the trapezoidal rule. x must be monotonic;
// a decreasing x is integrated in reverse. Fewer than two points give 0 and
// a non-monotonic x gives NaN.
func AUC(x, y []float64) float64 {
	n := min(len(x), len(y))
	if n < 2 {
		return 0
	}
	x, y = x[:n], y[:n]
	if !sort.Float64sAreSorted(x) {
		x, y = slices.Clone(x), slices.Clone(y)
		slices.Reverse(x)
		slices.Reverse(y)
		if !sort.Float64sAreSorted(x) {
			return math.NaN()
		}
	}
	return integrate.Trapezoidal(x, y)
}

// DefaultThreshold is the decision threshold used unless Youden optimisation
// is enabled.
func DefaultThreshold() float64 { return 0.5 }

// YoudenThreshold returns the threshold maximising Youden's J (tpr - fpr).
// Ties resolve to the first point in the curve's order, i.e. the highest of
// the tied thresholds. When no point has J > 0 the leading +Inf threshold is
// returned.
func YoudenThreshold(labels, probas []float64) float64 {
	c := ROCCurve(labels, probas)
	best, bestJ := 0, math.Inf(-1)
	for i := range c.Thresholds {
		j := c.TPR[i] - c.FPR[i]
		if j > bestJ {
			best, bestJ = i, j
		}
	}
	return c.Thresholds[best]
}
