package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/internal/testutil"
	"github.com/ethpandaops/laptime/pkg/laps"
)

const testConfigYAML = `
logging: error
metricsAddr: ""
predictor:
  regressor:
    params:
      numTrees: 40
      learningRate: 0.2
      minSamplesLeaf: 5
      earlyStoppingRounds: 10
`

// writeLapsCSV writes synthetic laps with an unused extra column
func writeLapsCSV(t *testing.T, dir string) string {
	t.Helper()

	raw := testutil.SyntheticLaps(1, 6)
	extra := make([]float64, len(raw))

	path := filepath.Join(dir, "laps.csv")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, laps.WriteCSV(f, raw, "Extra", extra))
	require.NoError(t, f.Close())

	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)

	require.NoError(t, rootCmd.Execute())

	return out.String()
}

func TestCommands_TrainThenUse(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfigYAML), 0o600))

	csvPath := writeLapsCSV(t, dir)
	modelPath := filepath.Join(dir, "model.json")

	out := run(t, "train", "--config", configPath, "--csv", csvPath, "--out", modelPath)
	assert.Contains(t, out, "Train MAE :")
	assert.Contains(t, out, "Model saved to "+modelPath)
	assert.FileExists(t, modelPath)

	out = run(t, "info", "--config", configPath, "--model", modelPath)
	assert.Contains(t, out, "MODEL INFO")
	assert.Contains(t, out, "Drivers (5)")
	assert.Contains(t, out, "Top 10 Features by Importance")

	out = run(t, "evaluate", "--config", configPath, "--model", modelPath, "--csv", csvPath)
	assert.True(t, strings.HasPrefix(out, "MAE: "), out)

	predictionsPath := filepath.Join(dir, "predictions.csv")
	out = run(t, "predict", "--config", configPath, "--model", modelPath, "--csv", csvPath, "--out", predictionsPath)
	assert.True(t, strings.HasPrefix(out, "Row"))

	written, err := os.ReadFile(predictionsPath)
	require.NoError(t, err)
	assert.Contains(t, strings.SplitN(string(written), "\n", 2)[0], "PredictedLapTime")

	out = run(t, "demo", "--config", configPath, "--model", modelPath)
	assert.Contains(t, out, "SIMULATION DEMO")
	assert.Equal(t, len(demoScenarios), strings.Count(out, "Tyre Age"))

	out = run(t, "simulate", "--config", configPath, "--model", modelPath,
		"--driver", "VER", "--team", "Red Bull Racing", "--event", "Monaco Grand Prix",
		"--compound", "SOFT", "--tyre-life", "3", "--laps", "4")
	assert.Contains(t, out, "VER | Red Bull Racing | Monaco Grand Prix")
	assert.Contains(t, out, "Starting tyre age: 3")
}

func TestCommands_Ingest(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfigYAML), 0o600))

	csvPath := writeLapsCSV(t, dir)
	dbPath := filepath.Join(dir, "laps.db")
	total := len(testutil.SyntheticLaps(1, 6))

	out := run(t, "ingest", "--config", configPath, "--csv", csvPath, "--db", dbPath)
	assert.Contains(t, out, "Ingested "+strconv.Itoa(total)+" new laps (0 duplicates)")

	out = run(t, "ingest", "--config", configPath, "--csv", csvPath, "--db", dbPath)
	assert.Contains(t, out, "Ingested 0 new laps ("+strconv.Itoa(total)+" duplicates)")
}
