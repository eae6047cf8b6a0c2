// Package stats provides the order statistics shared by the feature
// pipeline, the imputer and the regressor. Missing values are NaN and are
// skipped unless stated otherwise.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite returns a sorted copy of values without NaN entries.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}

	sort.Float64s(out)

	return out
}

// Median returns the median of values, averaging the two middle elements
// for even counts. It returns NaN when no finite value is present.
func Median(values []float64) float64 {
	sorted := Finite(values)

	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks.
func Quantile(values []float64, q float64) float64 {
	sorted := Finite(values)

	n := len(sorted)
	if n == 0 || math.IsNaN(q) {
		return math.NaN()
	}

	switch {
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}

	h := q * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))

	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Min returns the smallest finite value or NaN.
func Min(values []float64) float64 {
	best := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v < best {
			best = v
		}
	}

	return best
}

// MeanStd returns the mean and sample standard deviation of window.
// A window holding any NaN, or too short for a deviation, yields zeros
// for the undefined parts.
func MeanStd(window []float64) (mean, std float64) {
	if len(window) == 0 {
		return 0, 0
	}

	for _, v := range window {
		if math.IsNaN(v) {
			return 0, 0
		}
	}

	mean, std = stat.MeanStdDev(window, nil)
	if math.IsNaN(std) || math.IsInf(std, 0) {
		std = 0
	}

	return mean, std
}

// MAE returns the mean absolute error between predicted and actual.
func MAE(predicted, actual []float64) float64 {
	if len(predicted) == 0 || len(predicted) != len(actual) {
		return math.NaN()
	}

	return floats.Distance(predicted, actual, 1) / float64(len(predicted))
}
