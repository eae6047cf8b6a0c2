// Package store persists fitted model bundles to the file system or Redis
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/predictor"
)

// Backend names a store implementation
type Backend string

const (
	// BackendFile stores bundles as JSON files
	BackendFile Backend = "file"
	// BackendRedis stores bundles as JSON values in Redis
	BackendRedis Backend = "redis"
)

var (
	// ErrNotFound is returned when no bundle is stored under a key
	ErrNotFound = errors.New("model bundle not found")
	// ErrInvalidKey is returned for empty keys
	ErrInvalidKey = errors.New("model key is required")
	// ErrUnknownBackend is returned for unsupported backends
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrRedisClientRequired is returned when the redis backend has no client
	ErrRedisClientRequired = errors.New("redis client is required for the redis store")
)

// Store saves and loads model bundles by key
type Store interface {
	Save(ctx context.Context, key string, b *predictor.Bundle) error
	Load(ctx context.Context, key string) (*predictor.Bundle, error)
	Delete(ctx context.Context, key string) error
}

// Config configures the bundle store
type Config struct {
	Backend Backend `yaml:"backend" default:"file"`
	// Dir is the base directory of the file backend; keys are paths below it
	Dir string `yaml:"dir"`
	// Prefix namespaces keys of the redis backend below the redis prefix
	Prefix string `yaml:"prefix" default:"model:"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendRedis:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}

// New creates the configured store. client is only used by the redis backend.
func New(log logrus.FieldLogger, cfg Config, client *redis.Client) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendRedis:
		if client == nil {
			return nil, ErrRedisClientRequired
		}

		return NewRedisStore(log, client, cfg.Prefix), nil
	default:
		return NewFileStore(log, cfg.Dir), nil
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}

	return nil
}

func record(backend Backend, operation string, err error) {
	status := "success"

	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}

	observability.RecordStoreOperation(string(backend), operation, status)
}
