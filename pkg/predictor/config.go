package predictor

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/regressor"
)

var (
	// ErrInvalidTestSize is returned when the holdout fraction is outside (0, 1)
	ErrInvalidTestSize = errors.New("test size must be in (0, 1)")
	// ErrInvalidOutlierQuantile is returned when the outlier quantile is outside (0, 1]
	ErrInvalidOutlierQuantile = errors.New("outlier quantile must be in (0, 1]")
	// ErrRegressorKindRequired is returned when no regressor kind is configured
	ErrRegressorKindRequired = errors.New("regressor kind is required")
)

// RegressorConfig selects the regressor implementation and its parameters
type RegressorConfig struct {
	Kind   string                 `yaml:"kind" json:"kind" default:"gbdt"`
	Params map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// Config contains predictor settings
type Config struct {
	// TestSize is the fraction of events held out for validation
	TestSize float64 `yaml:"testSize" json:"testSize" default:"0.2"`
	// Seed drives the event shuffle
	Seed int64 `yaml:"seed" json:"seed" default:"42"`
	// OutlierQuantile drops lap times above this quantile before training
	OutlierQuantile float64 `yaml:"outlierQuantile" json:"outlierQuantile" default:"0.995"`

	Features  features.Config `yaml:"features" json:"features"`
	Regressor RegressorConfig `yaml:"regressor" json:"regressor"`
}

// DefaultConfig returns the configuration with every default applied
func DefaultConfig() Config {
	cfg := Config{}
	_ = defaults.Set(&cfg)

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !(c.TestSize > 0 && c.TestSize < 1) {
		return ErrInvalidTestSize
	}

	if !(c.OutlierQuantile > 0 && c.OutlierQuantile <= 1) {
		return ErrInvalidOutlierQuantile
	}

	if c.Regressor.Kind == "" {
		return ErrRegressorKindRequired
	}

	if err := c.Features.Validate(); err != nil {
		return fmt.Errorf("invalid features config: %w", err)
	}

	return nil
}

// newRegressor creates an untrained regressor from the configuration
func (c *RegressorConfig) newRegressor() (regressor.Regressor, error) {
	var params []byte

	if len(c.Params) > 0 {
		data, err := yaml.Marshal(c.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode regressor params: %w", err)
		}
		params = data
	}

	return regressor.New(regressor.Kind(c.Kind), params)
}
