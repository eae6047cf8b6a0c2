package cmd

import (
	"context"

	"github.com/ethpandaops/laptime/pkg/engine"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/predictor"
)

// loadModel loads the bundle stored under key, or the configured model key
// when key is empty
func loadModel(ctx context.Context, config *engine.Config, key string) (*predictor.Predictor, error) {
	if key == "" {
		key = config.Model.Key
	}

	st, release, err := openStore(config)
	if err != nil {
		return nil, err
	}
	defer release()

	return engine.LoadPredictor(ctx, logger, st, key)
}

// loadLaps reads laps from csvPath, or from the configured source when
// csvPath is empty
func loadLaps(ctx context.Context, config *engine.Config, csvPath string) ([]laps.RawRecord, error) {
	dataCfg := config.Data
	if csvPath != "" {
		dataCfg = engine.DataConfig{Kind: engine.DataKindCSV, Path: csvPath}
	}

	src, closeSource, err := engine.NewSource(logger, &dataCfg)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := closeSource(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close lap source")
		}
	}()

	return src.Load(ctx)
}
