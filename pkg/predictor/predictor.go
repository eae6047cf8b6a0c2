// Package predictor trains a lap time regressor on engineered features,
// predicts and evaluates on new laps and simulates stints from a handful of
// known inputs. The regressor learns the delta to the driver's best lap at
// the event; absolute lap times are reconstructed by adding it back.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/regressor"
	"github.com/ethpandaops/laptime/pkg/stats"

	// Register the bundled regressor implementations
	_ "github.com/ethpandaops/laptime/pkg/regressor/gbdt"
)

var (
	// ErrNotFitted is returned when using a predictor before Fit or FromBundle
	ErrNotFitted = errors.New("predictor is not fitted")
	// ErrNoRows is returned when no laps survive cleaning
	ErrNoRows = errors.New("no complete laps to process")
)

// Metrics summarises the last fit
type Metrics struct {
	TrainMAE    float64  `json:"trainMae"`
	TestMAE     float64  `json:"testMae"`
	TrainRows   int      `json:"trainRows"`
	TestRows    int      `json:"testRows"`
	TrainEvents []string `json:"trainEvents"`
	TestEvents  []string `json:"testEvents"`
	Incomplete  int      `json:"incomplete"`
	Outliers    int      `json:"outliers"`
}

// Importance is the importance score of one feature
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// Prediction is the predicted lap time of one input row
type Prediction struct {
	// Source is the index of the row in the caller's input
	Source  int         `json:"source"`
	Record  laps.Record `json:"-"`
	LapTime float64     `json:"lapTime"`
}

// SimulatedLap is one lap of a simulated stint
type SimulatedLap struct {
	TyreLife int     `json:"tyreLife"`
	LapTime  float64 `json:"lapTime"`
}

// Simulation is the result of Simulate
type Simulation struct {
	Query    imputer.Query     `json:"query"`
	Laps     []SimulatedLap    `json:"laps"`
	BestLap  float64           `json:"bestLap"`
	Coverage imputer.Coverage  `json:"coverage"`
	Warnings []imputer.Warning `json:"warnings,omitempty"`
}

// fitted is the immutable state produced by one fit
type fitted struct {
	id          string
	createdAt   time.Time
	regressor   regressor.Regressor
	categories  features.Categories
	imputer     *imputer.Imputer
	importances []Importance
	metrics     Metrics
}

// Predictor orchestrates cleaning, feature engineering, training and
// inference. A fitted predictor is safe for concurrent readers.
type Predictor struct {
	log      logrus.FieldLogger
	cfg      Config
	pipeline *features.Pipeline

	mu    sync.RWMutex
	state *fitted
}

// New creates an unfitted predictor
func New(log logrus.FieldLogger, cfg Config) (*Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid predictor config: %w", err)
	}

	pipeline, err := features.NewPipeline(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature pipeline: %w", err)
	}

	return &Predictor{
		log:      log.WithField("component", "predictor"),
		cfg:      cfg,
		pipeline: pipeline,
	}, nil
}

// Config returns the predictor configuration
func (p *Predictor) Config() Config {
	return p.cfg
}

// Fitted reports whether the predictor holds a trained model
func (p *Predictor) Fitted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.state != nil
}

func (p *Predictor) current() (*fitted, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state == nil {
		return nil, ErrNotFitted
	}

	return p.state, nil
}

// prepare cleans raw rows and builds their features
func (p *Predictor) prepare(operation string, raw []laps.RawRecord) ([]features.Row, laps.CleanResult, error) {
	cleaned, err := laps.Clean(raw, p.cfg.OutlierQuantile)
	if err != nil {
		return nil, cleaned, err
	}

	observability.RecordRows(operation, "kept", len(cleaned.Records))
	observability.RecordRows(operation, "incomplete", cleaned.Incomplete)
	observability.RecordRows(operation, "outlier", cleaned.Outliers)

	if cleaned.Incomplete > 0 || cleaned.Outliers > 0 {
		p.log.WithFields(logrus.Fields{
			"operation":  operation,
			"incomplete": cleaned.Incomplete,
			"outliers":   cleaned.Outliers,
			"threshold":  cleaned.Threshold,
		}).Debug("Dropped rows during cleaning")
	}

	if len(cleaned.Records) == 0 {
		return nil, cleaned, ErrNoRows
	}

	return p.pipeline.Build(cleaned.Records), cleaned, nil
}

// Fit trains a new model on raw. The previous model, if any, is replaced
// only when the fit succeeds.
func (p *Predictor) Fit(ctx context.Context, raw []laps.RawRecord) error {
	start := time.Now()

	st, err := p.fit(ctx, raw)

	status := "success"
	if err != nil {
		status = "error"
	}

	observability.RecordFit(p.cfg.Regressor.Kind, status, time.Since(start).Seconds())

	if err != nil {
		observability.RecordError("predictor", "fit")

		return err
	}

	p.mu.Lock()
	p.state = st
	p.mu.Unlock()

	observability.RecordModelMAE(st.metrics.TrainMAE, st.metrics.TestMAE)

	p.log.WithFields(logrus.Fields{
		"model_id":     st.id,
		"train_mae":    fmt.Sprintf("%.3f", st.metrics.TrainMAE),
		"test_mae":     fmt.Sprintf("%.3f", st.metrics.TestMAE),
		"train_rows":   st.metrics.TrainRows,
		"test_rows":    st.metrics.TestRows,
		"train_events": len(st.metrics.TrainEvents),
		"test_events":  len(st.metrics.TestEvents),
		"duration":     time.Since(start),
	}).Info("Fitted lap time model")

	return nil
}

func (p *Predictor) fit(ctx context.Context, raw []laps.RawRecord) (*fitted, error) {
	rows, cleaned, err := p.prepare("fit", raw)
	if err != nil {
		return nil, err
	}

	cats := features.LearnCategories(rows)

	x, err := features.EncodeCategoricals(rows, features.Features, cats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}

	parts, err := splitByEvent(rows, p.cfg.TestSize, p.cfg.Seed)
	if err != nil {
		return nil, err
	}

	y := make([]float64, len(rows))
	for i := range rows {
		y[i] = rows[i].LapDelta
	}

	xTrain, yTrain := x.Subset(parts.train), pick(y, parts.train)
	xTest, yTest := x.Subset(parts.test), pick(y, parts.test)

	model, err := p.cfg.Regressor.newRegressor()
	if err != nil {
		return nil, err
	}

	if err := model.Fit(ctx, xTrain, yTrain, &regressor.Validation{X: xTest, Y: yTest}); err != nil {
		return nil, fmt.Errorf("failed to fit regressor: %w", err)
	}

	trainMAE, err := absoluteMAE(model, xTrain, rows, parts.train)
	if err != nil {
		return nil, err
	}

	testMAE, err := absoluteMAE(model, xTest, rows, parts.test)
	if err != nil {
		return nil, err
	}

	imp, err := imputer.Fit(p.log, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fit imputer: %w", err)
	}

	return &fitted{
		id:          uuid.New().String(),
		createdAt:   time.Now().UTC(),
		regressor:   model,
		categories:  cats,
		imputer:     imp,
		importances: rankImportances(features.Features, model.FeatureImportances()),
		metrics: Metrics{
			TrainMAE:    trainMAE,
			TestMAE:     testMAE,
			TrainRows:   len(parts.train),
			TestRows:    len(parts.test),
			TrainEvents: parts.trainEvents,
			TestEvents:  parts.testEvents,
			Incomplete:  cleaned.Incomplete,
			Outliers:    cleaned.Outliers,
		},
	}, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for j, i := range idx {
		out[j] = values[i]
	}

	return out
}

func absoluteMAE(model regressor.Regressor, x *regressor.Matrix, rows []features.Row, idx []int) (float64, error) {
	delta, err := model.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("failed to predict: %w", err)
	}

	best := make([]float64, len(idx))
	actual := make([]float64, len(idx))

	for j, i := range idx {
		best[j] = rows[i].BestLap
		actual[j] = rows[i].LapTime
	}

	return stats.MAE(DeltaToLapTime(delta, best), actual), nil
}

// rankImportances orders scores descending, ties kept in feature order
func rankImportances(columns []string, scores []float64) []Importance {
	out := make([]Importance, len(columns))
	for j, col := range columns {
		if j < len(scores) {
			out[j] = Importance{Feature: col, Score: scores[j]}
		} else {
			out[j] = Importance{Feature: col}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})

	return out
}

// DeltaToLapTime reconstructs absolute lap times from predicted deltas and
// the best lap reference of each row.
func DeltaToLapTime(delta, best []float64) []float64 {
	out := make([]float64, len(delta))
	for i := range delta {
		out[i] = delta[i] + best[i]
	}

	return out
}

// predictRows predicts absolute lap times for engineered rows
func (st *fitted) predictRows(rows []features.Row) ([]float64, error) {
	x, err := features.EncodeCategoricals(rows, features.Features, st.categories)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}

	delta, err := st.regressor.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}

	best := make([]float64, len(rows))
	for i := range rows {
		best[i] = rows[i].BestLap
	}

	return DeltaToLapTime(delta, best), nil
}

// Predict returns the predicted lap time of every row that survives
// cleaning. Best lap references come from raw itself.
func (p *Predictor) Predict(raw []laps.RawRecord) ([]Prediction, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	rows, _, err := p.prepare("predict", raw)
	if err != nil {
		return nil, err
	}

	times, err := st.predictRows(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, len(rows))
	for i := range rows {
		out[i] = Prediction{Source: rows[i].Source, Record: rows[i].Record, LapTime: times[i]}
	}

	observability.RecordPredictions("predict", len(out))

	return out, nil
}

// Evaluate returns the mean absolute error of the predicted lap times
// against the actual lap times in raw.
func (p *Predictor) Evaluate(raw []laps.RawRecord) (float64, error) {
	st, err := p.current()
	if err != nil {
		return 0, err
	}

	rows, _, err := p.prepare("evaluate", raw)
	if err != nil {
		return 0, err
	}

	times, err := st.predictRows(rows)
	if err != nil {
		return 0, err
	}

	actual := make([]float64, len(rows))
	for i := range rows {
		actual[i] = rows[i].LapTime
	}

	observability.RecordPredictions("evaluate", len(rows))

	mae := stats.MAE(times, actual)

	p.log.WithFields(logrus.Fields{
		"rows": len(rows),
		"mae":  fmt.Sprintf("%.3f", mae),
	}).Info("Evaluated lap time model")

	return mae, nil
}

// Simulate predicts lapCount consecutive laps for the query, imputing
// everything the query does not provide.
func (p *Predictor) Simulate(q imputer.Query, lapCount int) (*Simulation, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	imputed, err := st.imputer.Impute(q, lapCount)
	if err != nil {
		return nil, err
	}

	rows := p.pipeline.Build(imputed.Records)

	times, err := st.predictRows(rows)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{
		Query:    q,
		Laps:     make([]SimulatedLap, lapCount),
		BestLap:  imputed.BestLap,
		Coverage: st.imputer.Coverage(q),
		Warnings: imputed.Warnings,
	}

	for i := range sim.Laps {
		sim.Laps[i] = SimulatedLap{TyreLife: q.TyreLife + i, LapTime: times[i]}
	}

	observability.RecordPredictions("simulate", lapCount)

	return sim, nil
}

// Coverage reports the fallback level a query resolves to
func (p *Predictor) Coverage(q imputer.Query) (imputer.Coverage, error) {
	st, err := p.current()
	if err != nil {
		return imputer.Coverage{}, err
	}

	return st.imputer.Coverage(q), nil
}

// FeatureImportance returns the topN most important features. topN <= 0
// returns all of them.
func (p *Predictor) FeatureImportance(topN int) ([]Importance, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	if topN <= 0 || topN > len(st.importances) {
		topN = len(st.importances)
	}

	return append([]Importance(nil), st.importances[:topN]...), nil
}

// Metrics returns the metrics of the last fit
func (p *Predictor) Metrics() (Metrics, error) {
	st, err := p.current()
	if err != nil {
		return Metrics{}, err
	}

	return st.metrics, nil
}

// ModelID returns the identifier of the fitted model
func (p *Predictor) ModelID() (string, error) {
	st, err := p.current()
	if err != nil {
		return "", err
	}

	return st.id, nil
}

// KnownDrivers lists the drivers seen during training
func (p *Predictor) KnownDrivers() ([]string, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	return st.imputer.KnownDrivers(), nil
}

// KnownEvents lists the events seen during training
func (p *Predictor) KnownEvents() ([]string, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	return st.imputer.KnownEvents(), nil
}

// KnownCompounds lists the compounds seen during training
func (p *Predictor) KnownCompounds() ([]string, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	return st.imputer.KnownCompounds(), nil
}
