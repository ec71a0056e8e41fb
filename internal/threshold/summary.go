package threshold

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ROCSummary is the ROC curve of one bootstrap iteration together with its
// area and the operating point minimising the distance to the (0, 1) corner.
type ROCSummary struct {
	FPR        []float64 `json:"fpr"`
	TPR        []float64 `json:"tpr"`
	Thresholds []float64 `json:"thresholds"`
	AUC        float64   `json:"auc"`

	OptIndex     int     `json:"opt_index"`
	OptThreshold float64 `json:"opt_threshold"`
	OptFPR       float64 `json:"opt_fpr"`
	OptTPR       float64 `json:"opt_tpr"`
}

// symmetricCost scores an operating point by its negated euclidean distance to
// the perfect classifier corner. Higher is better.
func symmetricCost(fpr, tpr float64) float64 {
	return -math.Sqrt(fpr*fpr + (1-tpr)*(1-tpr))
}

// Summarize computes the ROC summary of one bootstrap iteration.
func Summarize(labels, probas []float64) ROCSummary {
	c := ROCCurve(labels, probas)
	s := ROCSummary{
		FPR:        c.FPR,
		TPR:        c.TPR,
		Thresholds: c.Thresholds,
		AUC:        AUC(c.FPR, c.TPR),
	}
	best := math.Inf(-1)
	for i := range c.Thresholds {
		cost := symmetricCost(c.FPR[i], c.TPR[i])
		if cost > best {
			best = cost
			s.OptIndex = i
		}
	}
	s.OptThreshold = c.Thresholds[s.OptIndex]
	s.OptFPR = c.FPR[s.OptIndex]
	s.OptTPR = c.TPR[s.OptIndex]
	return s
}

// MeanCurve is the average of several ROC curves on a common FPR grid.
type MeanCurve struct {
	FPR     []float64
	TPR     []float64
	TPRLow  []float64
	TPRHigh []float64
	AUC     float64
	AUCStd  float64
}

// DefaultGridPoints is the FPR grid resolution used by MeanROC.
const DefaultGridPoints = 100

// MeanROC interpolates every curve's TPR onto points evenly spaced FPR values
// in [0, 1] and averages them. The band is mean ± one standard deviation,
// clamped to [0, 1]. Curves with undefined rates are ignored.
func MeanROC(summaries []ROCSummary, points int) MeanCurve {
	if points < 2 {
		points = DefaultGridPoints
	}
	grid := make([]float64, points)
	for i := range grid {
		grid[i] = float64(i) / float64(points-1)
	}

	var curves [][]float64
	var aucs []float64
	for _, s := range summaries {
		if !finite(s.FPR) || !finite(s.TPR) || len(s.FPR) == 0 {
			continue
		}
		tpr := make([]float64, points)
		for i, x := range grid {
			tpr[i] = interp(x, s.FPR, s.TPR)
		}
		tpr[0] = 0
		curves = append(curves, tpr)
		aucs = append(aucs, s.AUC)
	}

	m := MeanCurve{
		FPR:     grid,
		TPR:     make([]float64, points),
		TPRLow:  make([]float64, points),
		TPRHigh: make([]float64, points),
	}
	if len(curves) == 0 {
		m.AUC = math.NaN()
		m.AUCStd = math.NaN()
		return m
	}
	column := make([]float64, len(curves))
	for i := range grid {
		for k, c := range curves {
			column[k] = c[i]
		}
		mean, std := meanStd(column)
		m.TPR[i] = mean
		m.TPRLow[i] = math.Max(mean-std, 0)
		m.TPRHigh[i] = math.Min(mean+std, 1)
	}
	m.TPR[points-1] = 1
	m.AUC = AUC(m.FPR, m.TPR)
	_, m.AUCStd = meanStd(aucs)
	return m
}

// interp is piecewise linear interpolation of (xs, ys) at x. xs must be
// non-decreasing; values outside the range clamp to the end points. Among
// equal xs the last matching point wins. Unlike gonum's interp.PiecewiseLinear,
// repeated xs are allowed, as ROC curves produce them.
func interp(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	// first index with xs[i] > x
	i := sort.Search(n, func(i int) bool { return xs[i] > x })
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// meanStd returns the mean and population standard deviation of v.
func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(v, nil)
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
