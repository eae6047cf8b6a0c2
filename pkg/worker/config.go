package worker

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrModelKeyRequired is returned when no model key is configured
	ErrModelKeyRequired = errors.New("model key is required")
	// ErrInvalidSchedule is returned when the retrain schedule does not parse
	ErrInvalidSchedule = errors.New("invalid retrain schedule")
)

// Config contains worker-specific settings
type Config struct {
	Concurrency int `yaml:"concurrency" default:"2"`
	// ModelKey is where scheduled retraining saves bundles
	ModelKey string `yaml:"modelKey"`
	// Schedule is a cron expression for periodic retraining. Empty disables it.
	Schedule string `yaml:"schedule,omitempty"`
	// Events restricts scheduled retraining to these events
	Events          []string `yaml:"events,omitempty"`
	ShutdownTimeout int      `yaml:"shutdownTimeout" default:"30"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.ModelKey == "" {
		return ErrModelKeyRequired
	}

	if c.Schedule != "" {
		if _, err := parseSchedule(c.Schedule); err != nil {
			return err
		}
	}

	return nil
}

func parseSchedule(schedule string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, schedule, err)
	}

	return sched, nil
}
