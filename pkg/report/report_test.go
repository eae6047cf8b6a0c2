package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/predictor"
)

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{seconds: 89.743, want: "1:29.743"},
		{seconds: 60, want: "1:00.000"},
		{seconds: 59.9999, want: "1:00.000"},
		{seconds: 5.5, want: "0:05.500"},
		{seconds: 125.001, want: "2:05.001"},
		{seconds: math.NaN(), want: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLapTime(tt.seconds))
		})
	}
}

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("█", 30), Bar(10, 10, 30))
	assert.Equal(t, strings.Repeat("█", 15), Bar(5, 10, 30))
	assert.Equal(t, strings.Repeat("█", 9), Bar(1, 3, 30)) // truncated, not rounded
	assert.Empty(t, Bar(0, 10, 30))
	assert.Empty(t, Bar(5, 0, 30))
}

func testSimulation() *predictor.Simulation {
	return &predictor.Simulation{
		Query: imputer.Query{
			Driver:   "VER",
			Team:     "Red Bull Racing",
			Event:    "Bahrain Grand Prix",
			Compound: "MEDIUM",
			TyreLife: 1,
		},
		Laps: []predictor.SimulatedLap{
			{TyreLife: 1, LapTime: 95.1234},
			{TyreLife: 2, LapTime: 95.2},
		},
		Coverage: imputer.Coverage{Level: "Driver + Event + Compound"},
	}
}

func TestRenderer_Simulation(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	sim := testSimulation()
	sim.Warnings = []imputer.Warning{{Column: "BestLap", Value: 90}}

	var buf bytes.Buffer
	require.NoError(t, r.Simulation(&buf, sim))

	out := buf.String()
	assert.Contains(t, out, "  VER | Red Bull Racing | Bahrain Grand Prix\n")
	assert.Contains(t, out, "  Compound: MEDIUM  |  Starting tyre age: 1\n")
	assert.Contains(t, out, "  Coverage: Matched at level: Driver + Event + Compound\n")
	assert.Contains(t, out, "  Tyre Age        Predicted     (m:ss.ms)\n")
	assert.Contains(t, out, "  1                  95.123s      1:35.123\n")
	assert.Contains(t, out, "  2                  95.200s      1:35.200\n")
	assert.Contains(t, out, "Warning: no historical data found for BestLap")
}

func TestRenderer_Demo(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	second := testSimulation()
	second.Query.Driver = "HAM"
	second.Coverage = imputer.Coverage{Level: imputer.GlobalLevel, Global: true}

	var buf bytes.Buffer
	require.NoError(t, r.Demo(&buf, []*predictor.Simulation{testSimulation(), second}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\n"+strings.Repeat("=", 60)+"\n  SIMULATION DEMO\n"))
	assert.Equal(t, 2, strings.Count(out, "Tyre Age"))
	assert.Contains(t, out, "  HAM | Red Bull Racing | Bahrain Grand Prix")
	assert.Contains(t, out, "Coverage: Global median fallback")
}

func TestRenderer_Info(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	info := &Info{
		ModelID: "abc",
		Metrics: predictor.Metrics{TrainMAE: 0.4123, TestMAE: 0.9876},
		Drivers: []string{"ALB", "ALO", "BOT", "GAS", "HAM", "HUL", "LEC"},
		Events:  []string{"Bahrain Grand Prix", "Monaco Grand Prix"},
		Compounds: []string{
			"HARD", "MEDIUM", "SOFT",
		},
		Importances: []predictor.Importance{
			{Feature: "TyreLife", Score: 40},
			{Feature: "Compound", Score: 20},
		},
		MaxImportance: 40,
	}

	var buf bytes.Buffer
	require.NoError(t, r.Info(&buf, info))

	out := buf.String()
	assert.Contains(t, out, "  Model     : abc\n")
	assert.Contains(t, out, "  Train MAE : 0.412 s\n")
	assert.Contains(t, out, "  Test  MAE : 0.988 s\n")
	assert.Contains(t, out, "  Drivers (7)\n")
	assert.Contains(t, out, "  ALB   ALO   BOT   GAS   HAM   HUL \n  LEC \n")
	assert.Contains(t, out, "  Events (2)\n")
	assert.Contains(t, out, "\n  Monaco Grand Prix\n")
	assert.Contains(t, out, "  HARD  MEDIUM  SOFT\n")
	assert.Contains(t, out, "  Top 2 Features by Importance\n")
	assert.Contains(t, out, "  TyreLife                            "+strings.Repeat("█", 30)+"\n")
	assert.Contains(t, out, "  Compound                            "+strings.Repeat("█", 15)+"\n")
}

func TestRenderer_Training(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Training(&buf, &Training{
		Metrics: predictor.Metrics{
			TrainMAE:    0.5,
			TestMAE:     0.75,
			TrainEvents: []string{"A", "B"},
			TestEvents:  []string{"C"},
		},
		Importances: []predictor.Importance{{Feature: "LapNorm", Score: 12}},
	}))

	out := buf.String()
	assert.Contains(t, out, "  Train MAE : 0.500 s\n")
	assert.Contains(t, out, "Train events: 2  |  Test events: C")
	assert.Contains(t, out, "Top 1 features:")
	assert.Contains(t, out, "LapNorm")
}

func TestRenderer_Predictions(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	preds := []predictor.Prediction{
		{
			Source:  3,
			Record:  laps.Record{Driver: "LEC", Event: "Monaco Grand Prix", Compound: "SOFT", TyreLife: 4},
			LapTime: 74.5,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Predictions(&buf, preds))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Row"))
	assert.Contains(t, lines[1], "LEC")
	assert.Contains(t, lines[1], "74.500s")
	assert.Contains(t, lines[1], "1:14.500")
}
