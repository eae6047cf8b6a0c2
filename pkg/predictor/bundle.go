package predictor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/regressor"
)

// BundleVersion is the current bundle format version
const BundleVersion = 1

var (
	// ErrUnsupportedBundleVersion is returned when loading a bundle of an unknown version
	ErrUnsupportedBundleVersion = errors.New("unsupported bundle version")
	// ErrFeatureMismatch is returned when a bundle was trained on a different feature list
	ErrFeatureMismatch = errors.New("bundle feature list does not match")
)

// RegressorState is the serialized regressor of a bundle
type RegressorState struct {
	Kind  regressor.Kind `json:"kind"`
	State []byte         `json:"state"`
}

// Bundle is everything needed to restore a fitted predictor
type Bundle struct {
	Version     int                 `json:"version"`
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"createdAt"`
	Config      Config              `json:"config"`
	Features    []string            `json:"features"`
	Metrics     Metrics             `json:"metrics"`
	Importances []Importance        `json:"importances"`
	Categories  features.Categories `json:"categories"`
	Imputer     imputer.Table       `json:"imputer"`
	Regressor   RegressorState      `json:"regressor"`
}

// Bundle exports the fitted state
func (p *Predictor) Bundle() (*Bundle, error) {
	st, err := p.current()
	if err != nil {
		return nil, err
	}

	state, err := st.regressor.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize regressor: %w", err)
	}

	return &Bundle{
		Version:     BundleVersion,
		ID:          st.id,
		CreatedAt:   st.createdAt,
		Config:      p.cfg,
		Features:    append([]string(nil), features.Features...),
		Metrics:     st.metrics,
		Importances: append([]Importance(nil), st.importances...),
		Categories:  st.categories,
		Imputer:     st.imputer.Table(),
		Regressor: RegressorState{
			Kind:  st.regressor.Kind(),
			State: state,
		},
	}, nil
}

// FromBundle restores a fitted predictor
func FromBundle(log logrus.FieldLogger, b *Bundle) (*Predictor, error) {
	if b.Version != BundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBundleVersion, b.Version)
	}

	if len(b.Features) != len(features.Features) {
		return nil, fmt.Errorf("%w: %d features, expected %d", ErrFeatureMismatch, len(b.Features), len(features.Features))
	}

	for j, col := range b.Features {
		if col != features.Features[j] {
			return nil, fmt.Errorf("%w: feature %d is %s, expected %s", ErrFeatureMismatch, j, col, features.Features[j])
		}
	}

	p, err := New(log, b.Config)
	if err != nil {
		return nil, err
	}

	model, err := regressor.Restore(b.Regressor.Kind, b.Regressor.State)
	if err != nil {
		return nil, fmt.Errorf("failed to restore regressor: %w", err)
	}

	imp, err := imputer.FromTable(p.log, b.Imputer)
	if err != nil {
		return nil, fmt.Errorf("failed to restore imputer: %w", err)
	}

	p.state = &fitted{
		id:          b.ID,
		createdAt:   b.CreatedAt,
		regressor:   model,
		categories:  b.Categories,
		imputer:     imp,
		importances: b.Importances,
		metrics:     b.Metrics,
	}

	p.log.WithFields(logrus.Fields{
		"model_id": b.ID,
		"test_mae": fmt.Sprintf("%.3f", b.Metrics.TestMAE),
	}).Info("Loaded lap time model")

	return p, nil
}
