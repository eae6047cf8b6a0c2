package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/regressor"
)

// Features lists the model input columns in matrix order.
//
//nolint:gochecknoglobals // Fixed model schema
var Features = []string{
	laps.ColTeam, laps.ColCompound,
	laps.ColTyreLife, ColTyreDegrade, ColFuelProxy, ColFuelEffect,
	ColTyreFuel, ColTyreFuelSq,
	ColLapNorm, ColLapDeltaPrev,
	SectorNormColumn(0), SectorNormColumn(1), SectorNormColumn(2),
	SectorPrevDeltaColumn(0), SectorPrevDeltaColumn(1), SectorPrevDeltaColumn(2),
	SectorRatioColumn(0), SectorRatioColumn(1), SectorRatioColumn(2),
	ColLapDeltaRollMean, ColLapDeltaRollStd,
	SectorRollMeanColumn(0), SectorRollStdColumn(0),
	SectorRollMeanColumn(1), SectorRollStdColumn(1),
	SectorRollMeanColumn(2), SectorRollStdColumn(2),
}

// CategoricalFeatures lists the model columns encoded as category codes.
//
//nolint:gochecknoglobals // Fixed model schema
var CategoricalFeatures = []string{laps.ColTeam, laps.ColCompound}

// Categories maps a categorical column to its sorted known values. A
// value's code is its index.
type Categories map[string][]string

// LearnCategories collects the distinct values of every categorical feature.
func LearnCategories(rows []Row) Categories {
	cats := make(Categories, len(CategoricalFeatures))

	for _, col := range CategoricalFeatures {
		seen := make(map[string]bool)
		for i := range rows {
			seen[rows[i].Attribute(col)] = true
		}

		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)

		cats[col] = values
	}

	return cats
}

// Code returns the category code of value in column, or NaN when unknown.
func (c Categories) Code(column, value string) float64 {
	values := c[column]

	i := sort.SearchStrings(values, value)
	if i < len(values) && values[i] == value {
		return float64(i)
	}

	return math.NaN()
}

// EncodeCategoricals builds the regressor matrix for columns. Categorical
// columns are tagged and encoded with cats; unseen values become missing.
func EncodeCategoricals(rows []Row, columns []string, cats Categories) (*regressor.Matrix, error) {
	categorical := make([]bool, len(columns))
	for j, col := range columns {
		if !HasColumn(col) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}

		categorical[j] = IsCategorical(col)
		if categorical[j] {
			if _, ok := cats[col]; !ok {
				return nil, fmt.Errorf("no categories learned for %s", col)
			}
		}
	}

	m := &regressor.Matrix{
		Columns:     append([]string(nil), columns...),
		Categorical: categorical,
		Rows:        make([][]float64, len(rows)),
	}

	for i := range rows {
		r := &rows[i]
		values := make([]float64, len(columns))

		for j, col := range columns {
			if categorical[j] {
				values[j] = cats.Code(col, r.Attribute(col))
				continue
			}

			v, err := r.Value(col)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}

		m.Rows[i] = values
	}

	return m, nil
}
