package projectconfig

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/statistics"
	"github.com/spboyer/resultsum/internal/store"
	"github.com/spboyer/resultsum/internal/threshold"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assertEqual(t, "Paths.Output", "output/", cfg.Paths.Output)
	assertEqual(t, "Paths.Results", "results", cfg.Paths.Results)
	assertEqual(t, "Paths.Artifacts", "{{.Experiment}}", cfg.Paths.Artifacts)
	assertEqualInt(t, "Run.Bootstraps", 100, cfg.Run.Bootstraps)
	assertEqual(t, "Optimization.Metric", "roc_auc", cfg.Optimization.Metric)
	assertEqual(t, "Optimization.Reducer", "mean", cfg.Optimization.Reducer)
	assertBoolPtr(t, "Optimization.YoudenIndex", false, cfg.Optimization.YoudenIndex)
	assertEqual(t, "Storage.Codec", "json", cfg.Storage.Codec)
	assertEqualInt(t, "Report.ROCPoints", 100, cfg.Report.ROCPoints)
	assertBoolPtr(t, "Report.HTML", true, cfg.Report.HTML)
	if cfg.Storage.Blob != nil {
		t.Error("Storage.Blob should be nil by default")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
paths:
  output: runs
  results: summary
experiments:
  - 2024_01_heart
  - 2024_02_lung
run:
  seeds: [3, 7]
  n_bootstraps: 20
models: [lr, rf, ensemble_voting]
metrics: [accuracy_score, roc]
optimization:
  metric: f1
  youden_index: true
  reducer: median
storage:
  codec: zstd
  blob:
    account_url: https://acct.blob.core.windows.net
    container: experiments
report:
  confidence_level: 0.9
  roc_points: 50
  html: false
observability:
  metrics_path: metrics.prom
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Paths.Output", filepath.Join(dir, "runs"), cfg.Paths.Output)
	assertEqual(t, "ResultsDir", filepath.Join(dir, "runs", "summary"), cfg.ResultsDir())
	if !slices.Equal(cfg.Experiments, []string{"2024_01_heart", "2024_02_lung"}) {
		t.Errorf("Experiments = %v", cfg.Experiments)
	}
	if !slices.Equal(cfg.Run.Seeds, []int{3, 7}) {
		t.Errorf("Run.Seeds = %v", cfg.Run.Seeds)
	}
	assertEqualInt(t, "Run.Bootstraps", 20, cfg.Run.Bootstraps)
	assertEqual(t, "Optimization.Metric", "f1", cfg.Optimization.Metric)
	assertBoolPtr(t, "Optimization.YoudenIndex", true, cfg.Optimization.YoudenIndex)
	assertEqual(t, "Storage.Codec", "zstd", cfg.Storage.Codec)
	if cfg.Storage.Blob == nil || cfg.Storage.Blob.Container != "experiments" {
		t.Fatalf("Storage.Blob = %+v", cfg.Storage.Blob)
	}
	assertBoolPtr(t, "Report.HTML", false, cfg.Report.HTML)
	assertEqual(t, "Observability.MetricsPath", "metrics.prom", cfg.Observability.MetricsPath)

	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !s.ROC {
		t.Error("roc should be requested")
	}
	if !slices.Equal(s.Metrics, []string{"accuracy_score", "f1_score"}) {
		t.Errorf("Metrics = %v, want accuracy_score plus the optimization key", s.Metrics)
	}
	if !slices.Equal(s.Roster(), []string{"lr", "rf", "ensemble_voting"}) {
		t.Errorf("Roster = %v", s.Roster())
	}
	if s.Reducer != statistics.ReduceMedian || s.Codec != store.CodecZstd || !s.Youden {
		t.Errorf("resolved settings = %+v", s)
	}
	if s.Direction != aggregate.HigherIsBetter {
		t.Errorf("Direction = %v", s.Direction)
	}

	ac := s.AggregateConfig([]int{3}, []int{10, 5})
	if ac.Policy != (threshold.Policy{Youden: true, Bootstraps: 20}) {
		t.Errorf("Policy = %+v", ac.Policy)
	}
	if !slices.Contains(ac.Metrics, aggregate.ROCMetric) {
		t.Errorf("aggregate metrics %v should request roc", ac.Metrics)
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
models: [lr, svm]
optimization:
  metric: accuracy
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assertEqual(t, "Optimization.Metric", "accuracy", cfg.Optimization.Metric)
	// Defaults preserved
	assertEqual(t, "Optimization.Reducer", "mean", cfg.Optimization.Reducer)
	assertBoolPtr(t, "Optimization.YoudenIndex", false, cfg.Optimization.YoudenIndex)
	assertEqualInt(t, "Run.Bootstraps", 100, cfg.Run.Bootstraps)
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defaults := New()
	assertEqual(t, "Paths.Output", defaults.Paths.Output, cfg.Paths.Output)
	assertEqual(t, "Optimization.Metric", defaults.Optimization.Metric, cfg.Optimization.Metric)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
models: [not valid yaml
  this is broken
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, FileName, `
optimization:
  metric: recall
`)
	child := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(child)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assertEqual(t, "Optimization.Metric", "recall", cfg.Optimization.Metric)
	// output is relative to the file that was found, not the start dir
	assertEqual(t, "Paths.Output", filepath.Join(root, "output"), cfg.Paths.Output)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown direction", "models: [lr]\noptimization:\n  metric: logloss\n"},
		{"unknown reducer", "models: [lr]\noptimization:\n  reducer: mode\n"},
		{"unknown metric", "models: [lr]\nmetrics: [nope_score]\n"},
		{"bad codec", "models: [lr]\nstorage:\n  codec: gzip\n"},
		{"no models", "metrics: [accuracy_score]\n"},
		{"blob without container", "models: [lr]\nstorage:\n  blob:\n    account_url: https://a.blob.core.windows.net\n"},
		{"negative seed", "models: [lr]\nrun:\n  seeds: [-1]\n"},
		{"artifacts template syntax", "models: [lr]\npaths:\n  artifacts: \"{{.Experiment\"\n"},
		{"artifacts template field", "models: [lr]\npaths:\n  artifacts: \"{{.Seed}}\"\n"},
		{"artifacts undefined var", "models: [lr]\npaths:\n  artifacts: \"{{.Vars.site}}/{{.Experiment}}\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			_, err = cfg.Resolve()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Resolve() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestResolve_ArtifactsVars(t *testing.T) {
	cfg, err := Parse([]byte("models: [lr]\npaths:\n  artifacts: \"{{.Vars.site}}/{{.Experiment}}\"\n  vars:\n    site: oslo\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.Vars["site"] != "oslo" {
		t.Errorf("Vars = %v, want site=oslo", s.Vars)
	}
}

func TestSplitModels(t *testing.T) {
	base, ens := SplitModels([]string{"lr", "ensemble_stack", "rf"})
	if !slices.Equal(base, []string{"lr", "rf"}) || !slices.Equal(ens, []string{"ensemble_stack"}) {
		t.Errorf("SplitModels = %v, %v", base, ens)
	}
	// one base model cannot be combined
	base, ens = SplitModels([]string{"lr", "ensemble_stack"})
	if !slices.Equal(base, []string{"lr"}) || ens != nil {
		t.Errorf("SplitModels = %v, %v", base, ens)
	}
}

func TestParseExperiment(t *testing.T) {
	cfg, err := ParseExperiment([]byte(`
selection:
  jobs:
    - [variance_threshold, relieff]
    - mrmr
verification:
  use_n_top_features: [5, 10, 30]
`))
	if err != nil {
		t.Fatalf("ParseExperiment() error: %v", err)
	}
	if !slices.Equal(cfg.JobNames(), []string{"variance_threshold_relieff", "mrmr"}) {
		t.Errorf("JobNames = %v", cfg.JobNames())
	}
	if !slices.Equal(cfg.FeatureCounts(), []int{5, 10, 30}) {
		t.Errorf("FeatureCounts = %v", cfg.FeatureCounts())
	}

	if _, err := ParseExperiment([]byte("selection:\n  jobs: []\n")); !errors.Is(err, ErrNoJobs) {
		t.Errorf("expected ErrNoJobs, got %v", err)
	}
	if _, err := ParseExperiment([]byte("selection:\n  jobs:\n    - {a: 1}\nverification:\n  use_n_top_features: [5]\n")); err == nil {
		t.Error("mapping job should be rejected")
	}
}

func TestLoadExperiment_MissingFile(t *testing.T) {
	_, err := LoadExperiment(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

// --- test helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
