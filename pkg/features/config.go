package features

import (
	"errors"
	"math"
)

var (
	// ErrInvalidRollingWindow is returned when the rolling window is not positive
	ErrInvalidRollingWindow = errors.New("rolling window must be positive")
	// ErrInvalidFactor is returned when a load factor is negative or not finite
	ErrInvalidFactor = errors.New("load factor must be a finite non-negative number")
)

// Config holds the feature engineering constants
type Config struct {
	// RollingWindow is the number of prior laps in each rolling statistic
	RollingWindow int `yaml:"rollingWindow" default:"3"`
	// FuelLoadFactor is the per-lap fuel weight penalty
	FuelLoadFactor float64 `yaml:"fuelLoadFactor" default:"0.0015"`
	// TyreDegradeFactor is the per-lap-of-age tyre degradation
	TyreDegradeFactor float64 `yaml:"tyreDegradeFactor" default:"0.003"`
	// PreserveInputOrder disables ordering stints by LapNumber
	PreserveInputOrder bool `yaml:"preserveInputOrder"`
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		RollingWindow:     3,
		FuelLoadFactor:    0.0015,
		TyreDegradeFactor: 0.003,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RollingWindow <= 0 {
		return ErrInvalidRollingWindow
	}

	for _, f := range []float64{c.FuelLoadFactor, c.TyreDegradeFactor} {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidFactor
		}
	}

	return nil
}
