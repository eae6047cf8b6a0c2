package features

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/laptime/pkg/laps"
)

// Engineered column names
const (
	ColDriverTrackMedian = "DriverTrackMedian"
	ColLapNorm           = "LapNorm"
	ColBestLap           = "BestLap"
	ColLapDelta          = "LapDelta"
	ColStintLap          = "StintLap"
	ColFuelProxy         = "FuelProxy"
	ColFuelEffect        = "FuelEffect"
	ColTyreDegrade       = "Tyre_Degrade"
	ColTyreFuel          = "TyreFuel"
	ColTyreFuelSq        = "TyreFuelSq"
	ColLapDeltaPrev      = "LapDeltaPrev"
	ColLapDeltaRollMean  = "LapDelta_RollMean"
	ColLapDeltaRollStd   = "LapDelta_RollStd"
)

var (
	// ErrUnknownColumn is returned when a column name is not part of a row
	ErrUnknownColumn = errors.New("unknown column")
	// ErrCategoricalColumn is returned when a categorical column is read as a number
	ErrCategoricalColumn = errors.New("column is categorical")
)

// SectorMedianColumn returns the per driver and event median column of sector i (0-based).
func SectorMedianColumn(i int) string { return laps.SectorColumns[i] + "_DriverTrackMedian" }

// SectorNormColumn returns the normalised column of sector i.
func SectorNormColumn(i int) string { return laps.SectorColumns[i] + "_Norm" }

// SectorPrevDeltaColumn returns the lap-to-lap delta column of sector i.
func SectorPrevDeltaColumn(i int) string { return laps.SectorColumns[i] + "_PrevDelta" }

// SectorRollMeanColumn returns the rolling mean column of sector i.
func SectorRollMeanColumn(i int) string { return laps.SectorColumns[i] + "_RollMean" }

// SectorRollStdColumn returns the rolling std column of sector i.
func SectorRollStdColumn(i int) string { return laps.SectorColumns[i] + "_RollStd" }

// SectorRatioColumn returns the share-of-lap column of sector i.
func SectorRatioColumn(i int) string { return fmt.Sprintf("S%d_Ratio", i+1) }

// Row is a lap record enriched with every engineered column. Undefined
// values are NaN.
type Row struct {
	laps.Record

	DriverTrackMedian float64
	LapNorm           float64
	SectorMedian      [3]float64
	SectorNorm        [3]float64

	BestLap  float64
	LapDelta float64

	StintLap    int
	FuelProxy   float64
	FuelEffect  float64
	TyreDegrade float64
	TyreFuel    float64
	TyreFuelSq  float64

	LapDeltaPrev    float64
	SectorPrevDelta [3]float64

	LapDeltaRollMean float64
	LapDeltaRollStd  float64
	SectorRollMean   [3]float64
	SectorRollStd    [3]float64

	SectorRatio [3]float64
}

type accessor func(r *Row) float64

// numericColumns maps every numeric column name to its accessor.
//
//nolint:gochecknoglobals // Static column registry
var numericColumns = buildNumericColumns()

func buildNumericColumns() map[string]accessor {
	cols := map[string]accessor{
		laps.ColTyreLife:     func(r *Row) float64 { return float64(r.TyreLife) },
		laps.ColLapNumber:    func(r *Row) float64 { return float64(r.LapNumber) },
		laps.ColLapTime:      func(r *Row) float64 { return r.LapTime },
		ColDriverTrackMedian: func(r *Row) float64 { return r.DriverTrackMedian },
		ColLapNorm:           func(r *Row) float64 { return r.LapNorm },
		ColBestLap:           func(r *Row) float64 { return r.BestLap },
		ColLapDelta:          func(r *Row) float64 { return r.LapDelta },
		ColStintLap:          func(r *Row) float64 { return float64(r.StintLap) },
		ColFuelProxy:         func(r *Row) float64 { return r.FuelProxy },
		ColFuelEffect:        func(r *Row) float64 { return r.FuelEffect },
		ColTyreDegrade:       func(r *Row) float64 { return r.TyreDegrade },
		ColTyreFuel:          func(r *Row) float64 { return r.TyreFuel },
		ColTyreFuelSq:        func(r *Row) float64 { return r.TyreFuelSq },
		ColLapDeltaPrev:      func(r *Row) float64 { return r.LapDeltaPrev },
		ColLapDeltaRollMean:  func(r *Row) float64 { return r.LapDeltaRollMean },
		ColLapDeltaRollStd:   func(r *Row) float64 { return r.LapDeltaRollStd },
	}

	for i := 0; i < 3; i++ {
		cols[laps.SectorColumns[i]] = func(r *Row) float64 { return r.Sectors()[i] }
		cols[SectorMedianColumn(i)] = func(r *Row) float64 { return r.SectorMedian[i] }
		cols[SectorNormColumn(i)] = func(r *Row) float64 { return r.SectorNorm[i] }
		cols[SectorPrevDeltaColumn(i)] = func(r *Row) float64 { return r.SectorPrevDelta[i] }
		cols[SectorRollMeanColumn(i)] = func(r *Row) float64 { return r.SectorRollMean[i] }
		cols[SectorRollStdColumn(i)] = func(r *Row) float64 { return r.SectorRollStd[i] }
		cols[SectorRatioColumn(i)] = func(r *Row) float64 { return r.SectorRatio[i] }
	}

	return cols
}

// IsCategorical reports whether column holds string categories.
func IsCategorical(column string) bool {
	switch column {
	case laps.ColDriver, laps.ColTeam, laps.ColEvent, laps.ColCompound:
		return true
	}

	return false
}

// HasColumn reports whether column names a field of Row.
func HasColumn(column string) bool {
	if IsCategorical(column) {
		return true
	}

	_, ok := numericColumns[column]

	return ok
}

// Value returns the numeric column named by column.
func (r *Row) Value(column string) (float64, error) {
	if IsCategorical(column) {
		return 0, fmt.Errorf("%w: %s", ErrCategoricalColumn, column)
	}

	get, ok := numericColumns[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}

	return get(r), nil
}
