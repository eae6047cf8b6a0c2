// Package regressor defines the learning capability the predictor trains and
// a registry of implementations keyed by kind.
package regressor

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is returned when predicting with an untrained regressor
	ErrNotFitted = errors.New("regressor is not fitted")
	// ErrShapeMismatch is returned when matrix and target dimensions disagree
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrEmptyTrainingSet is returned when fitting on zero rows
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// Kind identifies a regressor implementation
type Kind string

// Matrix is a row-major feature matrix. Missing values are NaN. Columns
// flagged categorical hold integer category codes.
type Matrix struct {
	Columns     []string    `json:"columns"`
	Categorical []bool      `json:"categorical"`
	Rows        [][]float64 `json:"rows"`
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// Validate checks that every row is as wide as the column list.
func (m *Matrix) Validate() error {
	if len(m.Categorical) != len(m.Columns) {
		return fmt.Errorf("%w: %d categorical flags for %d columns", ErrShapeMismatch, len(m.Categorical), len(m.Columns))
	}

	for i, row := range m.Rows {
		if len(row) != len(m.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", ErrShapeMismatch, i, len(row), len(m.Columns))
		}
	}

	return nil
}

// Subset returns a matrix sharing column metadata and the rows at idx.
func (m *Matrix) Subset(idx []int) *Matrix {
	rows := make([][]float64, len(idx))
	for i, j := range idx {
		rows[i] = m.Rows[j]
	}

	return &Matrix{Columns: m.Columns, Categorical: m.Categorical, Rows: rows}
}

// Validation is a held-out set used for early stopping.
type Validation struct {
	X *Matrix
	Y []float64
}

// Regressor learns a numeric target from a feature matrix.
type Regressor interface {
	// Kind returns the registered kind of this implementation
	Kind() Kind
	// Fit trains on x against y. valid may be nil.
	Fit(ctx context.Context, x *Matrix, y []float64, valid *Validation) error
	// Predict returns one value per row of x
	Predict(x *Matrix) ([]float64, error)
	// FeatureImportances returns one score per training column
	FeatureImportances() []float64
	// MarshalState serializes the trained model
	MarshalState() ([]byte, error)
}

// CheckTarget verifies that y has one value per row of x.
func CheckTarget(x *Matrix, y []float64) error {
	if x.Len() == 0 {
		return ErrEmptyTrainingSet
	}

	if len(y) != x.Len() {
		return fmt.Errorf("%w: %d targets for %d rows", ErrShapeMismatch, len(y), x.Len())
	}

	return x.Validate()
}
