// Package laps defines per-lap telemetry records, the required schema and
// the cleaning applied before feature engineering.
package laps

import (
	"errors"
	"math"
)

// Column names shared by raw sources, features and the imputer.
const (
	ColDriver      = "Driver"
	ColTeam        = "Team"
	ColEvent       = "Event"
	ColCompound    = "Compound"
	ColTyreLife    = "TyreLife"
	ColLapNumber   = "LapNumber"
	ColLapTime     = "LapTime"
	ColSector1Time = "Sector1Time"
	ColSector2Time = "Sector2Time"
	ColSector3Time = "Sector3Time"
)

var (
	// ErrMissingColumn is returned when a raw source lacks a required column
	ErrMissingColumn = errors.New("missing required column")
	// ErrInvalidOutlierQuantile is returned for a quantile outside (0, 1]
	ErrInvalidOutlierQuantile = errors.New("outlier quantile must be in (0, 1]")
)

// RequiredColumns lists the columns every raw source must provide.
//
//nolint:gochecknoglobals // Fixed schema
var RequiredColumns = []string{
	ColDriver, ColTeam, ColCompound, ColTyreLife,
	ColLapTime, ColSector1Time, ColSector2Time, ColSector3Time, ColEvent,
}

// SectorColumns lists the three sector time columns in track order.
//
//nolint:gochecknoglobals // Fixed schema
var SectorColumns = [3]string{ColSector1Time, ColSector2Time, ColSector3Time}

// RawRecord is a lap as read from a source, before cleaning. Empty strings
// and NaN numerics mark missing values.
type RawRecord struct {
	Driver    string
	Team      string
	Event     string
	Compound  string
	TyreLife  float64
	LapNumber float64

	LapTime     float64
	Sector1Time float64
	Sector2Time float64
	Sector3Time float64
}

// MissingField returns the first required field that is missing.
func (r *RawRecord) MissingField() (string, bool) {
	strs := []struct {
		name  string
		value string
	}{
		{ColDriver, r.Driver},
		{ColTeam, r.Team},
		{ColCompound, r.Compound},
		{ColEvent, r.Event},
	}
	for _, s := range strs {
		if s.value == "" {
			return s.name, true
		}
	}

	nums := []struct {
		name  string
		value float64
	}{
		{ColTyreLife, r.TyreLife},
		{ColLapTime, r.LapTime},
		{ColSector1Time, r.Sector1Time},
		{ColSector2Time, r.Sector2Time},
		{ColSector3Time, r.Sector3Time},
	}
	for _, n := range nums {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return n.name, true
		}
	}

	return "", false
}

// Record is one cleaned, completed lap.
type Record struct {
	// Source is the index of the row in the caller's input.
	Source int

	Driver   string
	Team     string
	Event    string
	Compound string

	TyreLife int
	// LapNumber is the lap sequence number, 0 when unknown.
	LapNumber int

	LapTime     float64
	Sector1Time float64
	Sector2Time float64
	Sector3Time float64
}

// Sectors returns the three sector times in track order.
func (r *Record) Sectors() [3]float64 {
	return [3]float64{r.Sector1Time, r.Sector2Time, r.Sector3Time}
}

// Attribute returns the categorical attribute named by column, or an empty
// string for non-categorical columns.
func (r *Record) Attribute(column string) string {
	switch column {
	case ColDriver:
		return r.Driver
	case ColTeam:
		return r.Team
	case ColEvent:
		return r.Event
	case ColCompound:
		return r.Compound
	}

	return ""
}
