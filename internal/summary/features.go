package summary

import (
	"sort"
)

// FeatureWeight is a feature's share of a job's total rank score.
type FeatureWeight struct {
	Feature string
	Score   int
	Weight  float64
}

// Ranking is a job's features ordered by ascending score, so the most
// important feature is last.
type Ranking []FeatureWeight

// FeatureRanking normalizes accumulated rank scores so the weights sum to 1.
// Equal scores are ordered by feature name.
func FeatureRanking(scores map[string]int) Ranking {
	out := make(Ranking, 0, len(scores))
	total := 0
	for f, s := range scores {
		out = append(out, FeatureWeight{Feature: f, Score: s})
		total += s
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Feature < out[j].Feature
	})
	if total == 0 {
		return out
	}
	for i := range out {
		out[i].Weight = float64(out[i].Score) / float64(total)
	}
	return out
}

// Top returns the n highest-weighted features, still in ascending order.
func (r Ranking) Top(n int) Ranking {
	if n >= len(r) {
		return r
	}
	if n <= 0 {
		return Ranking{}
	}
	return r[len(r)-n:]
}

// RankingCuts returns the top-n sizes reported for a job: 5, 15, 25, ...
// below the largest candidate feature count.
func RankingCuts(featureCounts []int) []int {
	largest := 0
	for _, n := range featureCounts {
		if n > largest {
			largest = n
		}
	}
	var cuts []int
	for n := 5; n < largest; n += 10 {
		cuts = append(cuts, n)
	}
	return cuts
}
