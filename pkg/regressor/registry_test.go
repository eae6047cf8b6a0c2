package regressor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constantRegressor struct {
	value float64
	width int
}

func (c *constantRegressor) Kind() Kind { return "constant" }

func (c *constantRegressor) Fit(_ context.Context, x *Matrix, y []float64, _ *Validation) error {
	if err := CheckTarget(x, y); err != nil {
		return err
	}
	c.value = y[0]
	c.width = len(x.Columns)

	return nil
}

func (c *constantRegressor) Predict(x *Matrix) ([]float64, error) {
	out := make([]float64, x.Len())
	for i := range out {
		out[i] = c.value
	}

	return out, nil
}

func (c *constantRegressor) FeatureImportances() []float64 { return make([]float64, c.width) }

func (c *constantRegressor) MarshalState() ([]byte, error) { return []byte("{}"), nil }

func TestRegistry(t *testing.T) {
	Register("constant",
		func(_ []byte) (Regressor, error) { return &constantRegressor{}, nil },
		func(_ []byte) (Regressor, error) { return &constantRegressor{value: 1}, nil },
	)

	r, err := New("constant", nil)
	require.NoError(t, err)
	assert.Equal(t, Kind("constant"), r.Kind())

	restored, err := Restore("constant", []byte("{}"))
	require.NoError(t, err)
	preds, err := restored.Predict(&Matrix{Rows: [][]float64{{0}, {0}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, preds)

	assert.Contains(t, Kinds(), Kind("constant"))
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := New("does-not-exist", nil)
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = Restore("does-not-exist", nil)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestCheckTarget(t *testing.T) {
	x := &Matrix{
		Columns:     []string{"a", "b"},
		Categorical: []bool{false, true},
		Rows:        [][]float64{{1, 0}, {2, 1}},
	}

	require.NoError(t, CheckTarget(x, []float64{1, 2}))
	require.ErrorIs(t, CheckTarget(x, []float64{1}), ErrShapeMismatch)
	require.ErrorIs(t, CheckTarget(&Matrix{}, nil), ErrEmptyTrainingSet)

	x.Rows = append(x.Rows, []float64{3})
	require.ErrorIs(t, CheckTarget(x, []float64{1, 2, 3}), ErrShapeMismatch)
}

func TestMatrix_Subset(t *testing.T) {
	x := &Matrix{
		Columns:     []string{"a"},
		Categorical: []bool{false},
		Rows:        [][]float64{{1}, {2}, {3}},
	}

	sub := x.Subset([]int{2, 0})
	assert.Equal(t, [][]float64{{3}, {1}}, sub.Rows)
	assert.Equal(t, x.Columns, sub.Columns)
}
