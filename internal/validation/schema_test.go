package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfigYAML = `paths:
  output: runs
experiments: [2024_01_heart]
run:
  seeds: [1, 2]
  n_bootstraps: 10
models: [lr, rf]
metrics: [accuracy_score, roc]
optimization:
  metric: roc_auc
  youden_index: true
storage:
  codec: zstd
`

const invalidConfigYAML = `optimization:
  metric: logloss
  reducer: mode
storage:
  codec: gzip
unexpected: true
`

const validExperimentYAML = `selection:
  jobs:
    - [variance, relieff]
    - mrmr
verification:
  use_n_top_features: [5, 10]
  models: {lr: true}
`

const invalidExperimentYAML = `selection:
  jobs: []
`

func TestValidateConfigBytes_Valid(t *testing.T) {
	errs := ValidateConfigBytes([]byte(validConfigYAML))
	require.Empty(t, errs, "valid config should have no errors")
}

func TestValidateConfigBytes_Empty(t *testing.T) {
	require.Empty(t, ValidateConfigBytes(nil))
}

func TestValidateConfigBytes_Invalid(t *testing.T) {
	errs := ValidateConfigBytes([]byte(invalidConfigYAML))
	require.NotEmpty(t, errs, "invalid config should have errors")

	joined := strings.Join(errs, "\n")
	require.Contains(t, joined, "metric")
	require.Contains(t, joined, "codec")
	require.Contains(t, joined, "unexpected")
}

func TestValidateConfigBytes_ParseError(t *testing.T) {
	errs := ValidateConfigBytes([]byte("models: [broken"))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "YAML parse error")
}

func TestValidateExperimentBytes(t *testing.T) {
	require.Empty(t, ValidateExperimentBytes([]byte(validExperimentYAML)))

	errs := ValidateExperimentBytes([]byte(invalidExperimentYAML))
	require.NotEmpty(t, errs)
}

func TestValidateConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".resultsum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfigYAML), 0644))

	errs, err := ValidateConfigFile(path)
	require.NoError(t, err)
	require.Empty(t, errs)

	_, err = ValidateConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidateExperimentFile_NotFound(t *testing.T) {
	_, err := ValidateExperimentFile("/nonexistent/job_config.yaml")
	require.Error(t, err)
}
