package features

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/internal/testutil"
	"github.com/ethpandaops/laptime/pkg/laps"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)

	return p
}

func TestBuild_SectorRatiosSumToOne(t *testing.T) {
	rows := newTestPipeline(t).Build(testutil.Records(testutil.SyntheticLaps(1, 6)))
	require.NotEmpty(t, rows)

	for _, r := range rows {
		sum := r.SectorRatio[0] + r.SectorRatio[1] + r.SectorRatio[2]
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestBuild_FirstLapOfStintHasZeroDeltas(t *testing.T) {
	rows := newTestPipeline(t).Build(testutil.Records(testutil.SyntheticLaps(2, 6)))

	firsts := 0
	for _, r := range rows {
		if r.StintLap != 1 {
			continue
		}
		firsts++

		assert.Zero(t, r.LapDeltaPrev)
		assert.Equal(t, [3]float64{}, r.SectorPrevDelta)
	}

	assert.Equal(t, len(testutil.FixtureDrivers)*len(testutil.FixtureEvents)*3, firsts)
}

func TestBuild_LapDeltaMinimumIsBestLap(t *testing.T) {
	rows := newTestPipeline(t).Build(testutil.Records(testutil.SyntheticLaps(3, 6)))

	type key struct{ driver, event string }

	minDelta := make(map[key]float64)
	for _, r := range rows {
		k := key{r.Driver, r.Event}
		if v, ok := minDelta[k]; !ok || r.LapDelta < v {
			minDelta[k] = r.LapDelta
		}

		assert.GreaterOrEqual(t, r.LapDelta, 0.0)
		assert.Equal(t, r.LapTime == r.BestLap, r.LapDelta == 0)
	}

	for k, v := range minDelta {
		assert.Zero(t, v, "group %v", k)
	}
}

func TestBuild_RollingNeedsFullWindow(t *testing.T) {
	cfg := DefaultConfig()
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	rows := p.Build(testutil.Records(testutil.SyntheticLaps(4, 6)))

	for _, r := range rows {
		if r.StintLap > cfg.RollingWindow {
			continue
		}

		assert.Zero(t, r.LapDeltaRollMean)
		assert.Zero(t, r.LapDeltaRollStd)
		assert.Equal(t, [3]float64{}, r.SectorRollMean)
		assert.Equal(t, [3]float64{}, r.SectorRollStd)
	}
}

func TestBuild_RollingExcludesCurrentLap(t *testing.T) {
	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 1, 90),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 2, 91),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 3, 92),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 4, 120),
	}

	rows := newTestPipeline(t).Build(testutil.Records(raw))
	require.Len(t, rows, 4)

	// deltas of the three prior laps are 0, 1, 2
	assert.InDelta(t, 1.0, rows[3].LapDeltaRollMean, 1e-12)
	assert.InDelta(t, 1.0, rows[3].LapDeltaRollStd, 1e-12)
	assert.InDelta(t, 91*0.3, rows[3].SectorRollMean[0], 1e-9)
}

func TestBuild_ThreeLapStintScenario(t *testing.T) {
	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "MEDIUM", 1, 92.5),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "MEDIUM", 2, 92.5),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "MEDIUM", 3, 92.5),
		testutil.Lap("HAM", "Mercedes", "British Grand Prix", "SOFT", 1, 88),
		testutil.Lap("HAM", "Mercedes", "British Grand Prix", "SOFT", 2, 88.4),
	}

	rows := newTestPipeline(t).Build(testutil.Records(raw))
	require.Len(t, rows, 5)

	stint := rows[:3]

	deltas := []float64{stint[0].LapDelta, stint[1].LapDelta, stint[2].LapDelta}
	prev := []float64{stint[0].LapDeltaPrev, stint[1].LapDeltaPrev, stint[2].LapDeltaPrev}

	assert.Empty(t, cmp.Diff([]float64{0, 0, 0}, deltas))
	assert.Empty(t, cmp.Diff([]float64{0, 0, 0}, prev))
	assert.Less(t, stint[0].TyreDegrade, stint[1].TyreDegrade)
	assert.Less(t, stint[1].TyreDegrade, stint[2].TyreDegrade)
}

func TestBuild_TyreFuelProxies(t *testing.T) {
	cfg := Config{RollingWindow: 3, FuelLoadFactor: 0.01, TyreDegradeFactor: 0.1}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 4, 90),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 5, 90.2),
	}

	rows := p.Build(testutil.Records(raw))

	r := rows[1]
	assert.Equal(t, 2, r.StintLap)
	assert.InDelta(t, 2.0, r.FuelProxy, 1e-12)
	assert.InDelta(t, 1.02, r.FuelEffect, 1e-12)
	assert.InDelta(t, 1.5, r.TyreDegrade, 1e-12)
	assert.InDelta(t, 1.5*1.02, r.TyreFuel, 1e-12)
	assert.InDelta(t, 1.5*1.5*1.02, r.TyreFuelSq, 1e-12)
}

func TestBuild_StintsAreGroupScoped(t *testing.T) {
	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 1, 90),
		testutil.Lap("HAM", "Mercedes", "Bahrain Grand Prix", "SOFT", 1, 95),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 2, 91),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "HARD", 1, 93),
	}

	rows := newTestPipeline(t).Build(testutil.Records(raw))

	assert.Equal(t, []int{1, 1, 2, 1}, []int{rows[0].StintLap, rows[1].StintLap, rows[2].StintLap, rows[3].StintLap})
	assert.InDelta(t, 1.0, rows[2].LapDeltaPrev, 1e-12)
	assert.Zero(t, rows[3].LapDeltaPrev)

	// VER best lap spans compounds, HAM has its own
	assert.InDelta(t, 90.0, rows[3].BestLap, 1e-12)
	assert.InDelta(t, 95.0, rows[1].BestLap, 1e-12)
}

func TestBuild_OrdersStintsByLapNumber(t *testing.T) {
	raw := []laps.RawRecord{
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 2, 91),
		testutil.Lap("VER", "Red Bull Racing", "Bahrain Grand Prix", "SOFT", 1, 90),
	}
	raw[0].LapNumber = 8
	raw[1].LapNumber = 7

	rows := newTestPipeline(t).Build(testutil.Records(raw))
	assert.Equal(t, 2, rows[0].StintLap)
	assert.InDelta(t, 1.0, rows[0].LapDeltaPrev, 1e-12)
	assert.Equal(t, 1, rows[1].StintLap)

	cfg := DefaultConfig()
	cfg.PreserveInputOrder = true
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	rows = p.Build(testutil.Records(raw))
	assert.Equal(t, 1, rows[0].StintLap)
	assert.InDelta(t, -1.0, rows[1].LapDeltaPrev, 1e-12)
}

func TestBuild_ZeroMedianPropagatesNaN(t *testing.T) {
	records := []laps.Record{
		{Driver: "VER", Team: "Red Bull Racing", Event: "Bahrain Grand Prix", Compound: "SOFT", TyreLife: 1},
	}

	rows := newTestPipeline(t).Build(records)
	require.Len(t, rows, 1)

	assert.True(t, math.IsNaN(rows[0].LapNorm))
	assert.True(t, math.IsNaN(rows[0].SectorNorm[0]))
	assert.True(t, math.IsNaN(rows[0].SectorRatio[2]))
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	records := testutil.Records(testutil.SyntheticLaps(5, 4))
	snapshot := append([]laps.Record(nil), records...)

	p := newTestPipeline(t)
	first := p.Build(records)
	second := p.Build(records)

	assert.Empty(t, cmp.Diff(snapshot, records))
	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].LapDelta, second[i].LapDelta)
		assert.Equal(t, first[i].Source, records[i].Source)
	}
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, newTestPipeline(t).Build(nil))
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected error
	}{
		{name: "zero window", cfg: Config{RollingWindow: 0}, expected: ErrInvalidRollingWindow},
		{name: "negative fuel factor", cfg: Config{RollingWindow: 3, FuelLoadFactor: -1}, expected: ErrInvalidFactor},
		{name: "NaN tyre factor", cfg: Config{RollingWindow: 3, TyreDegradeFactor: math.NaN()}, expected: ErrInvalidFactor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.cfg)
			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestNewPipelineWithStages_Order(t *testing.T) {
	stages := DefaultStages()

	// rolling reads LapDelta from target; run it first
	reordered := []Stage{stages[0], stages[4], stages[1], stages[2], stages[3], stages[5]}

	_, err := NewPipelineWithStages(DefaultConfig(), reordered)
	require.ErrorIs(t, err, ErrStageOrder)
}

func TestNewPipelineWithStages_Unresolved(t *testing.T) {
	stages := DefaultStages()

	// without tyre_fuel nothing produces StintLap
	withoutTyreFuel := []Stage{stages[0], stages[1], stages[3], stages[4], stages[5]}

	_, err := NewPipelineWithStages(DefaultConfig(), withoutTyreFuel)
	require.ErrorIs(t, err, ErrUnresolvedInput)
}

func TestNewPipelineWithStages_Duplicates(t *testing.T) {
	stages := DefaultStages()

	_, err := NewPipelineWithStages(DefaultConfig(), append(stages, stages[5]))
	require.Error(t, err)

	clash := Stage{Name: "clash", Inputs: []string{laps.ColLapTime}, Outputs: []string{ColBestLap}}
	_, err = NewPipelineWithStages(DefaultConfig(), append(DefaultStages(), clash))
	require.ErrorIs(t, err, ErrDuplicateOutput)
}

func TestPipeline_Dependencies(t *testing.T) {
	p := newTestPipeline(t)

	assert.Equal(t, []string{
		StageNormalisation, StageTarget, StageTyreFuel, StageLapDeltas, StageRolling, StageSectorRatios,
	}, p.Stages())
	assert.Equal(t, []string{StageTarget, StageTyreFuel}, p.Dependencies(StageRolling))
	assert.Equal(t, []string{StageTyreFuel}, p.Dependencies(StageLapDeltas))
	assert.Empty(t, p.Dependencies(StageNormalisation))
}
