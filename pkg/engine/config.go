// Package engine wires the lap data source, model store, API and worker
// into one service.
package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/laptime/pkg/api"
	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/redis"
	"github.com/ethpandaops/laptime/pkg/store"
	"github.com/ethpandaops/laptime/pkg/worker"
)

var (
	// ErrUnknownDataKind is returned for an unsupported lap source kind
	ErrUnknownDataKind = errors.New("unknown data kind")
	// ErrDataPathRequired is returned when the lap source has no path
	ErrDataPathRequired = errors.New("data path is required")
	// ErrModelKeyRequired is returned when no model key is configured
	ErrModelKeyRequired = errors.New("model key is required")
)

// DataKind selects where raw laps are read from
type DataKind string

const (
	// DataKindCSV reads laps from a CSV export
	DataKindCSV DataKind = "csv"
	// DataKindSQLite reads laps from a lap database built by ingest
	DataKindSQLite DataKind = "sqlite"
)

// DataConfig configures the lap source
type DataConfig struct {
	Kind DataKind `yaml:"kind" default:"csv"`
	Path string   `yaml:"path" default:"all.csv"`
}

// Validate validates the data configuration
func (c *DataConfig) Validate() error {
	switch c.Kind {
	case DataKindCSV, DataKindSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataKind, c.Kind)
	}

	if c.Path == "" {
		return ErrDataPathRequired
	}

	return nil
}

// ModelConfig configures which bundle is served and trained
type ModelConfig struct {
	// Key is the store key of the bundle, a path for the file backend
	Key string `yaml:"key" default:"f1_model.json"`
}

// Config represents the complete configuration
type Config struct {
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	Data      DataConfig       `yaml:"data"`
	Model     ModelConfig      `yaml:"model"`
	Predictor predictor.Config `yaml:"predictor"`
	Store     store.Config     `yaml:"store"`
	Redis     redis.Config     `yaml:"redis"`
	API       api.Config       `yaml:"api"`
	Worker    worker.Config    `yaml:"worker"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Model.Key == "" {
		return ErrModelKeyRequired
	}

	if err := c.Data.Validate(); err != nil {
		return err
	}

	if err := c.Predictor.Validate(); err != nil {
		return err
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if err := c.API.Validate(); err != nil {
		return err
	}

	return c.Worker.Validate()
}

// DefaultConfig returns the configuration with every default applied
func DefaultConfig() *Config {
	config := &Config{}
	_ = defaults.Set(config)

	config.applyDerived()

	return config
}

// applyDerived fills settings that default to other settings
func (c *Config) applyDerived() {
	// the worker retrains the served model unless told otherwise
	if c.Worker.ModelKey == "" {
		c.Worker.ModelKey = c.Model.Key
	}
}

// LoadConfig loads the configuration from a YAML file. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path

	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	config.applyDerived()

	return config, nil
}
