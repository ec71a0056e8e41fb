package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// Bootstrap configures a percentile bootstrap of the mean.
type Bootstrap struct {
	Level      float64
	Iterations int
	// Seed makes resampling reproducible. Negative means random.
	Seed int64
}

// CI computes the interval. With fewer than 2 values the interval collapses to
// the mean and no resampling happens.
func (b Bootstrap) CI(values []float64) ConfidenceInterval {
	n := len(values)
	m := Mean(values)
	if n < 2 {
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: b.Level}
	}

	iters := b.Iterations
	if iters <= 0 {
		iters = DefaultBootstrapIterations
	}
	var rng *rand.Rand
	if b.Seed >= 0 {
		rng = rand.New(rand.NewSource(b.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := range bootMeans {
		for j := range sample {
			sample[j] = values[rng.Intn(n)]
		}
		bootMeans[i] = Mean(sample)
	}
	sort.Float64s(bootMeans)

	alpha := 1.0 - b.Level
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            m,
		ConfidenceLevel: b.Level,
		NumBootstraps:   iters,
	}
}
