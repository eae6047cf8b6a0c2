// Package api serves lap time predictions and simulations over HTTP.
package api

import "errors"

var (
	// ErrAPIAddrRequired is returned when no listen address is configured
	ErrAPIAddrRequired = errors.New("api address is required")
	// ErrInvalidMaxSimulationLaps is returned when the simulation cap is not positive
	ErrInvalidMaxSimulationLaps = errors.New("max simulation laps must be positive")
)

// Config represents API service configuration
type Config struct {
	Addr string `yaml:"addr" default:":8080"`
	// MaxSimulationLaps caps the stint length of one simulate request
	MaxSimulationLaps int `yaml:"maxSimulationLaps" default:"100"`
}

// Validate validates the API configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrAPIAddrRequired
	}

	if c.MaxSimulationLaps <= 0 {
		return ErrInvalidMaxSimulationLaps
	}

	return nil
}
