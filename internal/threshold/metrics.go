package threshold

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrUnknownMetric is returned when a metric name is defined in no namespace.
var ErrUnknownMetric = errors.New("unknown metric")

// UnknownMetricError names the metric that could not be resolved.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("metric %q is not implemented in the classification or imbalance metrics", e.Name)
}

func (e *UnknownMetricError) Unwrap() error { return ErrUnknownMetric }

// Namespace groups metric implementations. Lookups try Classification first
// and fall back to Imbalance.
type Namespace int

const (
	Classification Namespace = iota
	Imbalance
)

func (n Namespace) String() string {
	switch n {
	case Classification:
		return "classification"
	case Imbalance:
		return "imbalance"
	}
	return fmt.Sprintf("namespace(%d)", int(n))
}

// Kind describes what a metric is computed from.
type Kind int

const (
	// ThresholdDependent metrics are computed on predictions binarized at a
	// decision threshold.
	ThresholdDependent Kind = iota
	// Ranking metrics are computed on raw probabilities and never depend on
	// the decision threshold.
	Ranking
	// Regression metrics are computed on raw predictions.
	Regression
)

// Metric is a resolved metric implementation.
type Metric struct {
	Name      string
	Namespace Namespace
	Kind      Kind
	fn        func(yTrue, yScore []float64) float64
}

// ThresholdIndependent reports whether the decision threshold has no effect
// on the metric.
func (m Metric) ThresholdIndependent() bool { return m.Kind != ThresholdDependent }

// Compute applies the metric. yScore holds binarized predictions for
// threshold-dependent metrics and raw scores otherwise.
func (m Metric) Compute(yTrue, yScore []float64) float64 { return m.fn(yTrue, yScore) }

var classificationMetrics = map[string]Metric{
	"accuracy_score":          {Kind: ThresholdDependent, fn: accuracy},
	"balanced_accuracy_score": {Kind: ThresholdDependent, fn: balancedAccuracy},
	"precision_score":         {Kind: ThresholdDependent, fn: precision},
	"recall_score":            {Kind: ThresholdDependent, fn: recall},
	"f1_score":                {Kind: ThresholdDependent, fn: f1},
	"jaccard_score":           {Kind: ThresholdDependent, fn: jaccard},
	"matthews_corrcoef":       {Kind: ThresholdDependent, fn: matthews},
	"roc_auc_score":           {Kind: Ranking, fn: rocAUC},
	"average_precision_score": {Kind: Ranking, fn: averagePrecision},
	"mean_absolute_error":     {Kind: Regression, fn: meanAbsoluteError},
	"mean_squared_error":      {Kind: Regression, fn: meanSquaredError},
	"r2_score":                {Kind: Regression, fn: r2},
}

var imbalanceMetrics = map[string]Metric{
	"specificity_score":    {Kind: ThresholdDependent, fn: specificity},
	"sensitivity_score":    {Kind: ThresholdDependent, fn: recall},
	"geometric_mean_score": {Kind: ThresholdDependent, fn: geometricMean},
}

// Lookup resolves a metric name, trying the classification namespace first
// and the imbalance namespace second.
func Lookup(name string) (Metric, error) {
	for _, ns := range []struct {
		namespace Namespace
		metrics   map[string]Metric
	}{
		{Classification, classificationMetrics},
		{Imbalance, imbalanceMetrics},
	} {
		if m, ok := ns.metrics[name]; ok {
			m.Name = name
			m.Namespace = ns.namespace
			return m, nil
		}
	}
	return Metric{}, &UnknownMetricError{Name: name}
}

// Names returns every known metric name, sorted.
func Names() []string {
	names := make([]string, 0, len(classificationMetrics)+len(imbalanceMetrics))
	for k := range classificationMetrics {
		names = append(names, k)
	}
	for k := range imbalanceMetrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Recompute binarizes probas at threshold (p >= threshold is positive) and
// applies the named metric. Ranking and regression metrics ignore the
// threshold and use the raw values.
func Recompute(metric string, labels, probas []float64, threshold float64) (float64, error) {
	m, err := Lookup(metric)
	if err != nil {
		return 0, err
	}
	if len(labels) != len(probas) {
		return 0, fmt.Errorf("%s: %d labels vs %d probabilities", metric, len(labels), len(probas))
	}
	if m.Kind != ThresholdDependent {
		return m.Compute(labels, probas), nil
	}
	return m.Compute(labels, Binarize(probas, threshold)), nil
}

// Binarize maps each probability to 1 if it reaches threshold, else 0.
func Binarize(probas []float64, threshold float64) []float64 {
	out := make([]float64, len(probas))
	for i, p := range probas {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

func positive(v float64) bool { return v > 0.5 }

type confusion struct {
	tp, fp, tn, fn float64
}

func confusionOf(yTrue, yPred []float64) confusion {
	var c confusion
	for i := range yTrue {
		t, p := positive(yTrue[i]), positive(yPred[i])
		switch {
		case t && p:
			c.tp++
		case !t && p:
			c.fp++
		case !t && !p:
			c.tn++
		default:
			c.fn++
		}
	}
	return c
}

// safeDiv returns 0 when the denominator is 0, matching the zero_division
// convention of the reference metric implementations.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func accuracy(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(c.tp+c.tn, c.tp+c.tn+c.fp+c.fn)
}

func precision(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(c.tp, c.tp+c.fp)
}

func recall(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(c.tp, c.tp+c.fn)
}

func specificity(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(c.tn, c.tn+c.fp)
}

func f1(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(2*c.tp, 2*c.tp+c.fp+c.fn)
}

func jaccard(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	return safeDiv(c.tp, c.tp+c.fp+c.fn)
}

func balancedAccuracy(yTrue, yPred []float64) float64 {
	return (recall(yTrue, yPred) + specificity(yTrue, yPred)) / 2
}

func geometricMean(yTrue, yPred []float64) float64 {
	return math.Sqrt(recall(yTrue, yPred) * specificity(yTrue, yPred))
}

func matthews(yTrue, yPred []float64) float64 {
	c := confusionOf(yTrue, yPred)
	den := math.Sqrt((c.tp + c.fp) * (c.tp + c.fn) * (c.tn + c.fp) * (c.tn + c.fn))
	return safeDiv(c.tp*c.tn-c.fp*c.fn, den)
}

// rocAUC is the area under the ROC curve. It is undefined (NaN) when only
// one class is present.
func rocAUC(yTrue, yScore []float64) float64 {
	curve := ROCCurve(yTrue, yScore)
	if curve.Positives == 0 || curve.Negatives == 0 {
		return math.NaN()
	}
	return AUC(curve.FPR, curve.TPR)
}

// averagePrecision sums precision weighted by the recall increase at each
// distinct score threshold, from the highest score down.
func averagePrecision(yTrue, yScore []float64) float64 {
	curve := ROCCurve(yTrue, yScore)
	if curve.Positives == 0 {
		return 0
	}
	ap, prevRecall := 0.0, 0.0
	for i := 1; i < len(curve.Thresholds); i++ {
		tp, fp := curve.TPS[i], curve.FPS[i]
		rec := curve.TPR[i]
		ap += (rec - prevRecall) * safeDiv(tp, tp+fp)
		prevRecall = rec
	}
	return ap
}

func meanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

func meanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

func r2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(yTrue, nil)
	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		ssRes += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
		ssTot += (yTrue[i] - mean) * (yTrue[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
