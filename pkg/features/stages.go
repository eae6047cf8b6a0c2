package features

import (
	"math"
	"sort"
	"strings"

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/stats"
)

// Stage names
const (
	StageNormalisation = "normalisation"
	StageTarget        = "target"
	StageTyreFuel      = "tyre_fuel"
	StageLapDeltas     = "lap_deltas"
	StageRolling       = "rolling"
	StageSectorRatios  = "sector_ratios"
)

// Stage is one coherent group of engineered columns.
type Stage struct {
	Name    string
	Inputs  []string
	Outputs []string

	apply func(cfg *Config, f *frame)
}

// frame is the working set of a single Build call.
type frame struct {
	rows []Row
	// driverEvents holds row indices per (Driver, Event), first appearance order
	driverEvents [][]int
	// stints holds row indices per (Driver, Event, Compound) in lap order
	stints [][]int
}

func groupKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

func groupBy(rows []Row, key func(r *Row) string) [][]int {
	index := make(map[string]int)
	groups := make([][]int, 0)

	for i := range rows {
		k := key(&rows[i])
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	return groups
}

func newFrame(cfg *Config, records []laps.Record) *frame {
	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = Row{Record: records[i]}
	}

	f := &frame{rows: rows}
	f.driverEvents = groupBy(rows, func(r *Row) string { return groupKey(r.Driver, r.Event) })
	f.stints = groupBy(rows, func(r *Row) string { return groupKey(r.Driver, r.Event, r.Compound) })

	if !cfg.PreserveInputOrder {
		for _, stint := range f.stints {
			if hasLapNumbers(rows, stint) {
				sort.SliceStable(stint, func(a, b int) bool {
					return rows[stint[a]].LapNumber < rows[stint[b]].LapNumber
				})
			}
		}
	}

	return f
}

func hasLapNumbers(rows []Row, idx []int) bool {
	for _, i := range idx {
		if rows[i].LapNumber <= 0 {
			return false
		}
	}

	return true
}

func (f *frame) column(idx []int, get accessor) []float64 {
	out := make([]float64, len(idx))
	for j, i := range idx {
		out[j] = get(&f.rows[i])
	}

	return out
}

func ratio(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
		return math.NaN()
	}

	return a / b
}

func diff(cur, prev float64) float64 {
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return 0
	}

	return cur - prev
}

func sectorInputs() []string {
	return []string{laps.ColSector1Time, laps.ColSector2Time, laps.ColSector3Time}
}

func sectorOutputs(name func(int) string) []string {
	return []string{name(0), name(1), name(2)}
}

// DefaultStages returns the built-in stages in execution order.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:   StageNormalisation,
			Inputs: append([]string{laps.ColDriver, laps.ColEvent, laps.ColLapTime}, sectorInputs()...),
			Outputs: append(append([]string{ColDriverTrackMedian, ColLapNorm},
				sectorOutputs(SectorMedianColumn)...), sectorOutputs(SectorNormColumn)...),
			apply: applyNormalisation,
		},
		{
			Name:    StageTarget,
			Inputs:  []string{laps.ColDriver, laps.ColEvent, laps.ColLapTime},
			Outputs: []string{ColBestLap, ColLapDelta},
			apply:   applyTarget,
		},
		{
			Name:    StageTyreFuel,
			Inputs:  []string{laps.ColDriver, laps.ColEvent, laps.ColCompound, laps.ColLapNumber, laps.ColTyreLife},
			Outputs: []string{ColStintLap, ColFuelProxy, ColFuelEffect, ColTyreDegrade, ColTyreFuel, ColTyreFuelSq},
			apply:   applyTyreFuel,
		},
		{
			Name:    StageLapDeltas,
			Inputs:  append([]string{ColStintLap, laps.ColLapTime}, sectorInputs()...),
			Outputs: append([]string{ColLapDeltaPrev}, sectorOutputs(SectorPrevDeltaColumn)...),
			apply:   applyLapDeltas,
		},
		{
			Name:   StageRolling,
			Inputs: append([]string{ColStintLap, ColLapDelta}, sectorInputs()...),
			Outputs: append(append([]string{ColLapDeltaRollMean, ColLapDeltaRollStd},
				sectorOutputs(SectorRollMeanColumn)...), sectorOutputs(SectorRollStdColumn)...),
			apply: applyRolling,
		},
		{
			Name:    StageSectorRatios,
			Inputs:  append([]string{laps.ColLapTime}, sectorInputs()...),
			Outputs: sectorOutputs(SectorRatioColumn),
			apply:   applySectorRatios,
		},
	}
}

func applyNormalisation(_ *Config, f *frame) {
	for _, group := range f.driverEvents {
		median := stats.Median(f.column(group, numericColumns[laps.ColLapTime]))

		var sectorMedian [3]float64
		for s := 0; s < 3; s++ {
			sectorMedian[s] = stats.Median(f.column(group, numericColumns[laps.SectorColumns[s]]))
		}

		for _, i := range group {
			r := &f.rows[i]
			r.DriverTrackMedian = median
			r.LapNorm = ratio(r.LapTime, median)

			sectors := r.Sectors()
			for s := 0; s < 3; s++ {
				r.SectorMedian[s] = sectorMedian[s]
				r.SectorNorm[s] = ratio(sectors[s], sectorMedian[s])
			}
		}
	}
}

func applyTarget(_ *Config, f *frame) {
	for _, group := range f.driverEvents {
		best := stats.Min(f.column(group, numericColumns[laps.ColLapTime]))

		for _, i := range group {
			r := &f.rows[i]
			r.BestLap = best
			r.LapDelta = r.LapTime - best
		}
	}
}

func applyTyreFuel(cfg *Config, f *frame) {
	for _, stint := range f.stints {
		for pos, i := range stint {
			r := &f.rows[i]
			r.StintLap = pos + 1
			r.FuelProxy = float64(r.StintLap)
			r.FuelEffect = 1 + r.FuelProxy*cfg.FuelLoadFactor
			r.TyreDegrade = 1 + float64(r.TyreLife)*cfg.TyreDegradeFactor
			r.TyreFuel = r.TyreDegrade * r.FuelEffect
			r.TyreFuelSq = r.TyreDegrade * r.TyreDegrade * r.FuelEffect
		}
	}
}

func applyLapDeltas(_ *Config, f *frame) {
	for _, stint := range f.stints {
		for pos, i := range stint {
			r := &f.rows[i]
			if pos == 0 {
				r.LapDeltaPrev = 0
				r.SectorPrevDelta = [3]float64{}

				continue
			}

			prev := &f.rows[stint[pos-1]]
			r.LapDeltaPrev = diff(r.LapTime, prev.LapTime)

			cur, before := r.Sectors(), prev.Sectors()
			for s := 0; s < 3; s++ {
				r.SectorPrevDelta[s] = diff(cur[s], before[s])
			}
		}
	}
}

func applyRolling(cfg *Config, f *frame) {
	window := cfg.RollingWindow

	for _, stint := range f.stints {
		lapDelta := f.column(stint, numericColumns[ColLapDelta])

		var sectors [3][]float64
		for s := 0; s < 3; s++ {
			sectors[s] = f.column(stint, numericColumns[laps.SectorColumns[s]])
		}

		for pos, i := range stint {
			r := &f.rows[i]
			if pos < window {
				r.LapDeltaRollMean, r.LapDeltaRollStd = 0, 0
				r.SectorRollMean, r.SectorRollStd = [3]float64{}, [3]float64{}

				continue
			}

			// prior laps only; the current lap is excluded
			r.LapDeltaRollMean, r.LapDeltaRollStd = stats.MeanStd(lapDelta[pos-window : pos])
			for s := 0; s < 3; s++ {
				r.SectorRollMean[s], r.SectorRollStd[s] = stats.MeanStd(sectors[s][pos-window : pos])
			}
		}
	}
}

func applySectorRatios(_ *Config, f *frame) {
	for i := range f.rows {
		r := &f.rows[i]

		sectors := r.Sectors()
		for s := 0; s < 3; s++ {
			r.SectorRatio[s] = ratio(sectors[s], r.LapTime)
		}
	}
}
