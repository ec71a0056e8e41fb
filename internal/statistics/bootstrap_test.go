package statistics

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestBootstrap_EmptyValues(t *testing.T) {
	ci := Bootstrap{Level: 0.95}.CI(nil)
	if ci.Mean != 0.0 || ci.Lower != 0.0 || ci.Upper != 0.0 {
		t.Errorf("expected zero CI for empty input, got %+v", ci)
	}
	if ci.NumBootstraps != 0 {
		t.Errorf("expected 0 bootstraps for empty input, got %d", ci.NumBootstraps)
	}
}

func TestBootstrap_SingleValue(t *testing.T) {
	ci := Bootstrap{Level: 0.95}.CI([]float64{0.75})
	if ci.Mean != 0.75 || ci.Lower != 0.75 || ci.Upper != 0.75 {
		t.Errorf("expected degenerate CI for single value, got %+v", ci)
	}
}

func TestBootstrap_IdenticalValues(t *testing.T) {
	ci := Bootstrap{Level: 0.95, Seed: 42}.CI([]float64{0.5, 0.5, 0.5, 0.5})
	if math.Abs(ci.Lower-0.5) > 1e-9 || math.Abs(ci.Upper-0.5) > 1e-9 {
		t.Errorf("expected CI [0.5, 0.5] for identical values, got [%f, %f]", ci.Lower, ci.Upper)
	}
}

func TestBootstrap_KnownDistribution(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := Bootstrap{Level: 0.95, Seed: 42}.CI(values)

	if ci.Mean < 0.54 || ci.Mean > 0.56 {
		t.Errorf("expected mean ~0.55, got %f", ci.Mean)
	}
	if ci.Lower >= ci.Mean {
		t.Errorf("lower bound %f should be < mean %f", ci.Lower, ci.Mean)
	}
	if ci.Upper <= ci.Mean {
		t.Errorf("upper bound %f should be > mean %f", ci.Upper, ci.Mean)
	}
	if ci.NumBootstraps != DefaultBootstrapIterations {
		t.Errorf("expected %d bootstraps, got %d", DefaultBootstrapIterations, ci.NumBootstraps)
	}
}

func TestBootstrap_CustomIterations(t *testing.T) {
	ci := Bootstrap{Level: 0.9, Iterations: 200, Seed: 7}.CI([]float64{0.3, 0.5, 0.7, 0.4})
	if ci.NumBootstraps != 200 {
		t.Errorf("expected 200 bootstraps, got %d", ci.NumBootstraps)
	}
	if ci.Lower > ci.Mean || ci.Upper < ci.Mean {
		t.Errorf("CI [%f, %f] should contain mean %f", ci.Lower, ci.Upper, ci.Mean)
	}
}

func TestBootstrap_Deterministic(t *testing.T) {
	values := []float64{0.2, 0.4, 0.6, 0.8}
	ci1 := Bootstrap{Level: 0.95, Seed: 99}.CI(values)
	ci2 := Bootstrap{Level: 0.95, Seed: 99}.CI(values)

	if ci1.Lower != ci2.Lower || ci1.Upper != ci2.Upper {
		t.Errorf("same seed should produce identical CIs: %+v vs %+v", ci1, ci2)
	}
}

func TestBootstrap_DifferentConfidenceLevels(t *testing.T) {
	values := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.2, 0.4, 0.6, 0.8, 1.0}
	ci90 := Bootstrap{Level: 0.90, Seed: 42}.CI(values)
	ci99 := Bootstrap{Level: 0.99, Seed: 42}.CI(values)

	if ci99.Upper-ci99.Lower <= ci90.Upper-ci90.Lower {
		t.Errorf("99%% CI should be wider than 90%%: 90%%=%+v, 99%%=%+v", ci90, ci99)
	}
}

func TestReducers(t *testing.T) {
	values := []float64{0.4, 0.1, 0.9, 0.6}
	tests := []struct {
		reducer Reducer
		want    float64
	}{
		{ReduceMean, 0.5},
		{ReduceMedian, 0.5},
		{ReduceMin, 0.1},
		{ReduceMax, 0.9},
		{ReduceStd, math.Sqrt(0.085)},
	}
	for _, tt := range tests {
		t.Run(string(tt.reducer), func(t *testing.T) {
			if got := tt.reducer.Apply(values); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s = %f, want %f", tt.reducer, got, tt.want)
			}
		})
	}
	if got := Median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("odd median = %f, want 2", got)
	}
}

func TestParseReducer(t *testing.T) {
	for _, name := range []string{"", "mean", " Median ", "STD", "min", "max"} {
		if _, err := ParseReducer(name); err != nil {
			t.Errorf("ParseReducer(%q) unexpected error: %v", name, err)
		}
	}
	r, _ := ParseReducer("")
	if r != ReduceMean {
		t.Errorf("empty reducer should default to mean, got %q", r)
	}
	_, err := ParseReducer("mode")
	if !errors.Is(err, ErrUnknownReducer) {
		t.Errorf("expected ErrUnknownReducer, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "want one of mean, median, std, min, max") {
		t.Errorf("error should list the supported reducers, got %q", err)
	}
}
