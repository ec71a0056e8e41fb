package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/resultsum/internal/projectconfig"
	"github.com/spboyer/resultsum/internal/store"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = `paths:
  output: runs
experiments: [2024_01_heart, 2024_02_lung]
run:
  n_bootstraps: 1
models: [lr, rf]
metrics: [accuracy_score]
optimization:
  metric: accuracy
report:
  html: false
`

const testJobConfig = `selection:
  jobs: [mrmr, relieff]
verification:
  use_n_top_features: [5, 20]
`

// setupProject writes a project whose heart experiment has results and whose
// lung experiment only has a job config.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, projectconfig.FileName), []byte(testProject), 0644))

	for _, exp := range []string{"2024_01_heart", "2024_02_lung"} {
		dir := filepath.Join(root, "runs", exp)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, projectconfig.ExperimentFileName), []byte(testJobConfig), 0644))
	}

	repo := store.NewRepository()
	repo.SetFeatures(1, 0, "mrmr", []string{"age", "bmi", "chol"})
	repo.SetFeatures(1, 0, "relieff", []string{"chol", "age"})
	for job, acc := range map[string]float64{"mrmr_5": 0.7, "mrmr_20": 0.8, "relieff_5": 0.6, "relieff_20": 0.65} {
		repo.SetScore(1, job, "lr", store.MetricRecord{Values: map[string][]float64{"accuracy_score": {acc}}})
		repo.SetScore(1, job, "rf", store.MetricRecord{Values: map[string][]float64{"accuracy_score": {acc - 0.1}}})
	}
	require.NoError(t, repo.Save(context.Background(), store.NewDirSource(filepath.Join(root, "runs", "2024_01_heart"))))
	return root
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCollectCommand_PartialFailure(t *testing.T) {
	root := setupProject(t)

	out, err := run(t, newCollectCommand(), "--dir", root)

	var failure *ExperimentFailureError
	require.True(t, errors.As(err, &failure), "expected ExperimentFailureError, got %v", err)
	assert.Equal(t, "1 of 2 experiment(s) failed", failure.Message)
	assert.Equal(t, ExitExperimentFailed, exitCode(err))

	assert.Contains(t, out, "Collecting 2 experiment(s)")
	assert.Contains(t, out, "✓ [1/2] 2024_01_heart: lr on Strat. 1, 20 features")
	assert.Contains(t, out, "✗ [2/2] 2024_02_lung")
	assert.FileExists(t, filepath.Join(root, "runs", "results", "results.csv"))
	assert.NoFileExists(t, filepath.Join(root, "runs", "results", "summary.html"))
}

func TestCollectCommand_ExperimentOverride(t *testing.T) {
	root := setupProject(t)

	_, err := run(t, newCollectCommand(), "--dir", root, "--experiment", "2024_01_heart", "--seed", "1")
	require.NoError(t, err)
}

func TestCollectCommand_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, projectconfig.FileName), []byte("models: [lr]\noptimization:\n  metric: logloss\n"), 0644))

	_, err := run(t, newCollectCommand(), "--dir", root)
	require.Error(t, err)
	assert.ErrorIs(t, err, projectconfig.ErrInvalidConfig)
	assert.Equal(t, ExitError, exitCode(err))
}

func TestFeaturesCommand(t *testing.T) {
	root := setupProject(t)

	out, err := run(t, newFeaturesCommand(), "--dir", root, "2024_01_heart", "mrmr", "--top", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1     age"), "got %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2     bmi"), "got %q", lines[2])

	out, err = run(t, newFeaturesCommand(), "--dir", root, "2024_01_heart", "mrmr", "--format", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "feature,score,weight\nage,10,"), "got %q", out)

	out, err = run(t, newFeaturesCommand(), "--dir", root, "2024_01_heart")
	require.NoError(t, err)
	assert.Equal(t, "mrmr\nrelieff\n", out)

	_, err = run(t, newFeaturesCommand(), "--dir", root, "2024_01_heart", "ghost")
	assert.ErrorContains(t, err, `no feature scores for job "ghost"`)
}

func TestShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	content := "experiment,best_model,roc_auc_score\nheart,lr,0.85\nlung_cancer,rf,0.9\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// a buffer is not a terminal, so auto passes the CSV through
	out, err := run(t, newShowCommand(), path)
	require.NoError(t, err)
	assert.Equal(t, content, out)

	out, err = run(t, newShowCommand(), path, "--format", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "experiment   best_model  roc_auc_score", lines[0])
	assert.Equal(t, "heart        lr          0.85", lines[2])

	_, err = run(t, newShowCommand(), path, "--format", "xml")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	root := setupProject(t)

	out, err := run(t, newValidateCommand(), "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (2 experiment(s) checked)")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("experiments: [missing]\nstorage:\n  codec: gzip\n"), 0644))
	out, err = run(t, newValidateCommand(), bad)
	require.Error(t, err)
	assert.Contains(t, out, "codec")
	assert.Contains(t, out, "missing")
}

func TestValidateCommand_UnknownMetricListsKnownOnes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [lr]\nmetrics: [bogus_score]\n"), 0644))

	out, err := run(t, newValidateCommand(), path)
	require.Error(t, err)
	assert.Contains(t, out, `metric "bogus_score" is not implemented`)
	assert.Contains(t, out, "known metrics: accuracy_score, average_precision_score,")
	assert.Contains(t, out, "geometric_mean_score")
}

func TestValidateCommand_NoConfig(t *testing.T) {
	_, err := run(t, newValidateCommand(), "--dir", t.TempDir())
	assert.ErrorContains(t, err, "no .resultsum.yaml found")
}

func TestConfigureLogging(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, configureLogging(&buf, "text", true))
	assert.Error(t, configureLogging(&buf, "xml", false))
}
