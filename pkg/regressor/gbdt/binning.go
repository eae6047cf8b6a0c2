package gbdt

import (
	"math"
	"sort"

	"github.com/ethpandaops/laptime/pkg/regressor"
	"github.com/ethpandaops/laptime/pkg/stats"
)

const missingBin = -1

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// dataset is the training matrix discretised per column.
type dataset struct {
	categorical []bool
	// bins[f][i] is the bin of row i in column f, missingBin when absent
	bins [][]int32
	// thresholds[f] are the upper bin edges of numeric column f
	thresholds [][]float64
	nbins      []int
}

func newDataset(x *regressor.Matrix, maxBins int) *dataset {
	cols := len(x.Columns)

	d := &dataset{
		categorical: x.Categorical,
		bins:        make([][]int32, cols),
		thresholds:  make([][]float64, cols),
		nbins:       make([]int, cols),
	}

	column := make([]float64, x.Len())

	for f := 0; f < cols; f++ {
		for i, row := range x.Rows {
			column[i] = row[f]
		}

		d.bins[f] = make([]int32, x.Len())

		if x.Categorical[f] {
			maxCode := -1
			for i, v := range column {
				if isMissing(v) || v < 0 {
					d.bins[f][i] = missingBin
					continue
				}

				code := int(v)
				d.bins[f][i] = int32(code) //nolint:gosec // category codes are small
				if code > maxCode {
					maxCode = code
				}
			}

			d.nbins[f] = maxCode + 1

			continue
		}

		thr := binThresholds(column, maxBins)
		d.thresholds[f] = thr
		d.nbins[f] = len(thr) + 1

		for i, v := range column {
			if isMissing(v) {
				d.bins[f][i] = missingBin
				continue
			}

			d.bins[f][i] = int32(sort.SearchFloat64s(thr, v)) //nolint:gosec // bounded by maxBins
		}
	}

	return d
}

// binThresholds returns sorted upper edges such that a value v falls in the
// first bin whose edge is >= v. Columns with few distinct values get one
// bin per value; wider columns are cut at quantiles.
func binThresholds(column []float64, maxBins int) []float64 {
	values := make([]float64, 0, len(column))
	for _, v := range column {
		if !isMissing(v) {
			values = append(values, v)
		}
	}

	sorted := stats.Finite(values)
	if len(sorted) == 0 {
		return nil
	}

	distinct := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}

	if len(distinct) <= maxBins {
		return distinct[:len(distinct)-1]
	}

	thr := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		v := sorted[k*len(sorted)/maxBins]
		if len(thr) == 0 || v > thr[len(thr)-1] {
			thr = append(thr, v)
		}
	}

	return thr
}
