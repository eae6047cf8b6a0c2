// Package gbdt implements gradient-boosted regression trees with an absolute
// error objective. Trees split numeric columns on quantile bins and
// categorical columns on sorted category subsets, learn a default direction
// for missing values and stop early on a validation set.
package gbdt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ethpandaops/laptime/pkg/regressor"
	"github.com/ethpandaops/laptime/pkg/stats"
)

// Kind is the registry kind of this regressor
const Kind regressor.Kind = "gbdt"

var (
	// ErrInvalidTarget is returned when the target holds missing values
	ErrInvalidTarget = errors.New("target contains missing values")
)

// Model is a boosted tree ensemble
type Model struct {
	params Params

	init          float64
	columns       []string
	categorical   []bool
	trees         []Tree
	bestIteration int
	validMAE      float64
}

var _ regressor.Regressor = (*Model)(nil)

// New creates an untrained model
func New(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Model{params: params, validMAE: math.NaN()}, nil
}

// Kind returns the registry kind
func (m *Model) Kind() regressor.Kind {
	return Kind
}

// Params returns the hyper-parameters
func (m *Model) Params() Params {
	return m.params
}

// NumTrees returns the number of trees kept after early stopping
func (m *Model) NumTrees() int {
	return len(m.trees)
}

// BestValidationMAE returns the validation error at the kept iteration, NaN
// when trained without a validation set
func (m *Model) BestValidationMAE() float64 {
	return m.validMAE
}

// Fit trains the ensemble on x against y. When valid is set, boosting stops
// once the validation error has not improved for EarlyStoppingRounds trees
// and the ensemble is truncated to its best iteration.
func (m *Model) Fit(ctx context.Context, x *regressor.Matrix, y []float64, valid *regressor.Validation) error {
	if err := regressor.CheckTarget(x, y); err != nil {
		return err
	}

	for _, v := range y {
		if isMissing(v) {
			return ErrInvalidTarget
		}
	}

	if valid != nil {
		if err := regressor.CheckTarget(valid.X, valid.Y); err != nil {
			return fmt.Errorf("invalid validation set: %w", err)
		}

		if len(valid.X.Columns) != len(x.Columns) {
			return fmt.Errorf("%w: validation set has %d columns, training set %d",
				regressor.ErrShapeMismatch, len(valid.X.Columns), len(x.Columns))
		}
	}

	p := m.params
	n := x.Len()
	cols := len(x.Columns)

	//nolint:gosec // reproducible sampling, not security sensitive
	rng := rand.New(rand.NewSource(p.Seed))
	data := newDataset(x, p.MaxBins)

	m.columns = append([]string(nil), x.Columns...)
	m.categorical = append([]bool(nil), x.Categorical...)
	m.init = stats.Median(y)
	m.trees = make([]Tree, 0, p.NumTrees)
	m.validMAE = math.NaN()

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.init
	}

	var validPred []float64
	if valid != nil {
		validPred = make([]float64, valid.X.Len())
		for i := range validPred {
			validPred[i] = m.init
		}
	}

	g := &grower{
		params: &p,
		data:   data,
		grad:   make([]float64, n),
		resid:  make([]float64, n),
	}

	sampleRows := int(math.Max(1, math.Ceil(float64(n)*p.Subsample)))
	sampleCols := int(math.Max(1, math.Ceil(float64(cols)*p.ColSample)))

	bestMAE := math.Inf(1)
	bestIter := 0
	sinceBest := 0

	for iter := 0; iter < p.NumTrees; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := range y {
			r := y[i] - pred[i]
			g.resid[i] = r

			switch {
			case r > 0:
				g.grad[i] = 1
			case r < 0:
				g.grad[i] = -1
			default:
				g.grad[i] = 0
			}
		}

		rows := rng.Perm(n)[:sampleRows]
		sort.Ints(rows)

		g.features = rng.Perm(cols)[:sampleCols]
		sort.Ints(g.features)

		tree := g.build(rows)

		if len(tree.Nodes) == 1 && tree.Nodes[0].Value == 0 {
			// residuals are already zero on the sample
			break
		}

		m.trees = append(m.trees, tree)

		for i, row := range x.Rows {
			pred[i] += tree.predict(row)
		}

		if valid == nil {
			continue
		}

		for i, row := range valid.X.Rows {
			validPred[i] += tree.predict(row)
		}

		mae := stats.MAE(validPred, valid.Y)
		if mae < bestMAE {
			bestMAE = mae
			bestIter = len(m.trees)
			sinceBest = 0

			continue
		}

		sinceBest++
		if p.EarlyStoppingRounds > 0 && sinceBest >= p.EarlyStoppingRounds {
			break
		}
	}

	m.bestIteration = len(m.trees)
	if valid != nil && bestIter > 0 {
		m.trees = m.trees[:bestIter]
		m.bestIteration = bestIter
		m.validMAE = bestMAE
	}

	return nil
}

// Predict returns the predicted target for every row of x
func (m *Model) Predict(x *regressor.Matrix) ([]float64, error) {
	if m.columns == nil {
		return nil, regressor.ErrNotFitted
	}

	if len(x.Columns) != len(m.columns) {
		return nil, fmt.Errorf("%w: got %d columns, model has %d", regressor.ErrShapeMismatch, len(x.Columns), len(m.columns))
	}

	for j, col := range x.Columns {
		if col != m.columns[j] {
			return nil, fmt.Errorf("%w: column %d is %s, model expects %s", regressor.ErrShapeMismatch, j, col, m.columns[j])
		}
	}

	out := make([]float64, x.Len())
	for i, row := range x.Rows {
		if len(row) != len(m.columns) {
			return nil, fmt.Errorf("%w: row %d has %d values", regressor.ErrShapeMismatch, i, len(row))
		}

		v := m.init
		for t := range m.trees {
			v += m.trees[t].predict(row)
		}
		out[i] = v
	}

	return out, nil
}

// FeatureImportances returns the number of splits on each column
func (m *Model) FeatureImportances() []float64 {
	counts := make([]float64, len(m.columns))

	for t := range m.trees {
		for _, n := range m.trees[t].Nodes {
			if n.Feature != leafFeature {
				counts[n.Feature]++
			}
		}
	}

	return counts
}

type state struct {
	Params        Params   `json:"params"`
	Init          float64  `json:"init"`
	Columns       []string `json:"columns"`
	Categorical   []bool   `json:"categorical"`
	Trees         []Tree   `json:"trees"`
	BestIteration int      `json:"bestIteration"`
	ValidMAE      *float64 `json:"validMae,omitempty"`
}

// MarshalState serializes the trained ensemble
func (m *Model) MarshalState() ([]byte, error) {
	if m.columns == nil {
		return nil, regressor.ErrNotFitted
	}

	s := state{
		Params:        m.params,
		Init:          m.init,
		Columns:       m.columns,
		Categorical:   m.categorical,
		Trees:         m.trees,
		BestIteration: m.bestIteration,
	}

	if !math.IsNaN(m.validMAE) {
		v := m.validMAE
		s.ValidMAE = &v
	}

	return json.Marshal(s)
}

// Restore rebuilds a trained ensemble from MarshalState output
func Restore(data []byte) (*Model, error) {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode gbdt state: %w", err)
	}

	if len(s.Columns) == 0 || len(s.Categorical) != len(s.Columns) {
		return nil, fmt.Errorf("%w: gbdt state has no column schema", regressor.ErrShapeMismatch)
	}

	m := &Model{
		params:        s.Params,
		init:          s.Init,
		columns:       s.Columns,
		categorical:   s.Categorical,
		trees:         s.Trees,
		bestIteration: s.BestIteration,
		validMAE:      math.NaN(),
	}

	if s.ValidMAE != nil {
		m.validMAE = *s.ValidMAE
	}

	return m, nil
}
