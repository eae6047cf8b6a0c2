package predictor

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/internal/testutil"
	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/regressor"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return logger
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Regressor.Params = map[string]interface{}{
		"numTrees":            80,
		"learningRate":        0.2,
		"minSamplesLeaf":      5,
		"earlyStoppingRounds": 10,
	}

	return cfg
}

func fittedPredictor(t *testing.T) *Predictor {
	t.Helper()

	p, err := New(testLogger(), testConfig())
	require.NoError(t, err)
	require.NoError(t, p.Fit(t.Context(), testutil.SyntheticLaps(1, 8)))

	return p
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.InDelta(t, 0.2, cfg.TestSize, 0)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.InDelta(t, 0.995, cfg.OutlierQuantile, 0)
	assert.Equal(t, "gbdt", cfg.Regressor.Kind)
	assert.Equal(t, features.DefaultConfig(), cfg.Features)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{name: "zero test size", modify: func(c *Config) { c.TestSize = 0 }, wantErr: ErrInvalidTestSize},
		{name: "whole test size", modify: func(c *Config) { c.TestSize = 1 }, wantErr: ErrInvalidTestSize},
		{name: "zero quantile", modify: func(c *Config) { c.OutlierQuantile = 0 }, wantErr: ErrInvalidOutlierQuantile},
		{name: "no regressor", modify: func(c *Config) { c.Regressor.Kind = "" }, wantErr: ErrRegressorKindRequired},
		{name: "bad window", modify: func(c *Config) { c.Features.RollingWindow = 0 }, wantErr: features.ErrInvalidRollingWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			require.ErrorIs(t, cfg.Validate(), tt.wantErr)

			_, err := New(testLogger(), cfg)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPredictor_UnfittedErrors(t *testing.T) {
	p, err := New(testLogger(), testConfig())
	require.NoError(t, err)

	assert.False(t, p.Fitted())

	raw := testutil.SyntheticLaps(1, 3)
	q := imputer.Query{Driver: "VER", Team: "Red Bull Racing", Event: "Bahrain Grand Prix", Compound: "SOFT", TyreLife: 1}

	_, err = p.Predict(raw)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.Evaluate(raw)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.Simulate(q, 3)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.Coverage(q)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.FeatureImportance(10)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.KnownDrivers()
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.KnownEvents()
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.KnownCompounds()
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.Metrics()
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = p.Bundle()
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestPredictor_Fit(t *testing.T) {
	p := fittedPredictor(t)
	assert.True(t, p.Fitted())

	m, err := p.Metrics()
	require.NoError(t, err)

	assert.Len(t, m.TestEvents, 1)
	assert.Len(t, m.TrainEvents, len(testutil.FixtureEvents)-1)
	assert.NotContains(t, m.TrainEvents, m.TestEvents[0])
	assert.Positive(t, m.TrainRows)
	assert.Positive(t, m.TestRows)

	assert.False(t, math.IsNaN(m.TrainMAE))
	assert.False(t, math.IsNaN(m.TestMAE))
	assert.Less(t, m.TrainMAE, 1.5)
	assert.Less(t, m.TestMAE, 1.5)

	drivers, err := p.KnownDrivers()
	require.NoError(t, err)
	assert.Equal(t, []string{"ALO", "HAM", "LEC", "NOR", "VER"}, drivers)

	compounds, err := p.KnownCompounds()
	require.NoError(t, err)
	assert.Equal(t, []string{"HARD", "MEDIUM", "SOFT"}, compounds)

	events, err := p.KnownEvents()
	require.NoError(t, err)
	assert.Len(t, events, len(testutil.FixtureEvents))
}

func TestPredictor_FitIsDeterministic(t *testing.T) {
	a := fittedPredictor(t)
	b := fittedPredictor(t)

	ma, err := a.Metrics()
	require.NoError(t, err)
	mb, err := b.Metrics()
	require.NoError(t, err)

	assert.Equal(t, ma, mb)
}

func TestPredictor_FitErrors(t *testing.T) {
	p, err := New(testLogger(), testConfig())
	require.NoError(t, err)

	// a single event cannot be split
	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 1, 95),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 2, 96),
	}
	require.ErrorIs(t, p.Fit(t.Context(), raw), ErrInsufficientGroups)

	incomplete := testutil.Lap("VER", "", "Bahrain Grand Prix", "SOFT", 1, 95)
	require.ErrorIs(t, p.Fit(t.Context(), []laps.RawRecord{incomplete}), ErrNoRows)

	cfg := testConfig()
	cfg.Regressor.Kind = "missing"
	q, err := New(testLogger(), cfg)
	require.NoError(t, err)
	require.ErrorIs(t, q.Fit(t.Context(), testutil.SyntheticLaps(1, 3)), regressor.ErrNotRegistered)

	assert.False(t, p.Fitted())
}

func TestPredictor_Predict(t *testing.T) {
	p := fittedPredictor(t)

	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 1, 95.1),
		testutil.Lap("VER", "", "Bahrain Grand Prix", "SOFT", 2, 95),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 3, 95.1),
		testutil.Lap("HAM", "Mercedes", "Monaco Grand Prix", "HARD", 4, 76),
	}

	// the two slowest laps tie so the outlier cut keeps both
	preds, err := p.Predict(raw)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	assert.Equal(t, []int{0, 2, 3}, []int{preds[0].Source, preds[1].Source, preds[2].Source})
	assert.Equal(t, "HAM", preds[2].Record.Driver)

	for _, pr := range preds {
		assert.False(t, math.IsNaN(pr.LapTime))
		assert.Greater(t, pr.LapTime, 60.0)
	}
}

func TestPredictor_Evaluate(t *testing.T) {
	p := fittedPredictor(t)

	mae, err := p.Evaluate(testutil.SyntheticLaps(2, 6))
	require.NoError(t, err)
	assert.Less(t, mae, 1.5)

	_, err = p.Evaluate(nil)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestPredictor_Simulate(t *testing.T) {
	p := fittedPredictor(t)

	q := imputer.Query{Driver: "VER", Team: "Red Bull Racing", Event: "Bahrain Grand Prix", Compound: "MEDIUM", TyreLife: 1}

	sim, err := p.Simulate(q, 5)
	require.NoError(t, err)
	require.Len(t, sim.Laps, 5)

	for i, lap := range sim.Laps {
		assert.Equal(t, 1+i, lap.TyreLife)
		assert.False(t, math.IsNaN(lap.LapTime))
		assert.False(t, math.IsInf(lap.LapTime, 0))
	}

	assert.False(t, sim.Coverage.Global)
	assert.Equal(t, imputer.FallbackChain[0].Name, sim.Coverage.Level)
	assert.Empty(t, sim.Warnings)
	assert.Greater(t, sim.BestLap, 90.0)

	_, err = p.Simulate(q, 0)
	require.ErrorIs(t, err, imputer.ErrInvalidLapCount)

	q.Driver = ""
	_, err = p.Simulate(q, 1)
	require.ErrorIs(t, err, imputer.ErrInvalidQuery)
}

func TestPredictor_SimulateUnknownInputs(t *testing.T) {
	p := fittedPredictor(t)

	q := imputer.Query{Driver: "XYZ", Team: "Nobody", Event: "Nowhere", Compound: "INTERMEDIATE", TyreLife: 3}

	sim, err := p.Simulate(q, 2)
	require.NoError(t, err)
	require.Len(t, sim.Laps, 2)

	assert.True(t, sim.Coverage.Global)
	assert.Len(t, sim.Warnings, len(imputer.ImputedColumns))
	assert.Equal(t, 3, sim.Laps[0].TyreLife)
	assert.Equal(t, 4, sim.Laps[1].TyreLife)
}

func TestPredictor_FeatureImportance(t *testing.T) {
	p := fittedPredictor(t)

	all, err := p.FeatureImportance(0)
	require.NoError(t, err)
	require.Len(t, all, len(features.Features))

	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
	}

	top, err := p.FeatureImportance(10)
	require.NoError(t, err)
	assert.Equal(t, all[:10], top)
}

func TestRankImportances_StableOnTies(t *testing.T) {
	got := rankImportances([]string{"a", "b", "c", "d"}, []float64{1, 3, 1, 3})

	assert.Equal(t, []Importance{
		{Feature: "b", Score: 3},
		{Feature: "d", Score: 3},
		{Feature: "a", Score: 1},
		{Feature: "c", Score: 1},
	}, got)
}

func TestDeltaToLapTime(t *testing.T) {
	pipeline, err := features.NewPipeline(features.DefaultConfig())
	require.NoError(t, err)

	rows := pipeline.Build(testutil.Records(testutil.SyntheticLaps(3, 4)))

	delta := make([]float64, len(rows))
	best := make([]float64, len(rows))

	for i := range rows {
		delta[i] = rows[i].LapDelta
		best[i] = rows[i].BestLap
	}

	got := DeltaToLapTime(delta, best)
	for i := range rows {
		assert.InDelta(t, rows[i].LapTime, got[i], 1e-9)
	}
}

func TestSplitByEvent(t *testing.T) {
	rows := make([]features.Row, 0)
	for _, e := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		for i := 0; i < 3; i++ {
			var r features.Row
			r.Event = e
			rows = append(rows, r)
		}
	}

	s, err := splitByEvent(rows, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, s.testEvents, 2)
	assert.Len(t, s.trainEvents, 5)
	assert.Len(t, s.test, 6)
	assert.Len(t, s.train, 15)

	held := make(map[string]bool)
	for _, i := range s.test {
		held[rows[i].Event] = true
	}
	for _, i := range s.train {
		assert.False(t, held[rows[i].Event])
	}

	again, err := splitByEvent(rows, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	_, err = splitByEvent(rows[:3], 0.2, 42)
	require.ErrorIs(t, err, ErrInsufficientGroups)
}

func TestBundle_RoundTrip(t *testing.T) {
	p := fittedPredictor(t)

	b, err := p.Bundle()
	require.NoError(t, err)
	assert.Equal(t, BundleVersion, b.Version)
	assert.NotEmpty(t, b.ID)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded Bundle
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := FromBundle(testLogger(), &decoded)
	require.NoError(t, err)

	raw := testutil.SyntheticLaps(5, 4)

	want, err := p.Predict(raw)
	require.NoError(t, err)
	got, err := restored.Predict(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	q := imputer.Query{Driver: "LEC", Team: "Ferrari", Event: "Monaco Grand Prix", Compound: "SOFT", TyreLife: 1}

	wantSim, err := p.Simulate(q, 5)
	require.NoError(t, err)
	gotSim, err := restored.Simulate(q, 5)
	require.NoError(t, err)
	assert.Equal(t, wantSim, gotSim)

	wantMetrics, err := p.Metrics()
	require.NoError(t, err)
	gotMetrics, err := restored.Metrics()
	require.NoError(t, err)
	assert.Equal(t, wantMetrics, gotMetrics)

	id, err := restored.ModelID()
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
}

func TestFromBundle_Errors(t *testing.T) {
	p := fittedPredictor(t)

	b, err := p.Bundle()
	require.NoError(t, err)

	future := *b
	future.Version = BundleVersion + 1
	_, err = FromBundle(testLogger(), &future)
	require.ErrorIs(t, err, ErrUnsupportedBundleVersion)

	short := *b
	short.Features = short.Features[:3]
	_, err = FromBundle(testLogger(), &short)
	require.ErrorIs(t, err, ErrFeatureMismatch)

	unknown := *b
	unknown.Regressor.Kind = "missing"
	_, err = FromBundle(testLogger(), &unknown)
	require.ErrorIs(t, err, regressor.ErrNotRegistered)
}

func TestPredictor_ConcurrentReaders(t *testing.T) {
	p := fittedPredictor(t)

	q := imputer.Query{Driver: "NOR", Team: "McLaren", Event: "Italian Grand Prix", Compound: "HARD", TyreLife: 15}

	want, err := p.Simulate(q, 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			got, err := p.Simulate(q, 5)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}

	wg.Wait()
}
