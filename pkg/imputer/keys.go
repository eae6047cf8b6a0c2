package imputer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/laps"
)

const keySeparator = "\x1f"

var (
	// ErrInvalidQuery is returned when a simulation query lacks a required field
	ErrInvalidQuery = errors.New("invalid simulation query")
)

// KeySpec is one level of the fallback chain: a named tuple of grouping
// fields.
type KeySpec struct {
	Name   string
	Fields []string
}

// NewKeySpec names a spec after its fields
func NewKeySpec(fields ...string) KeySpec {
	return KeySpec{Name: strings.Join(fields, " + "), Fields: fields}
}

// FallbackChain lists the grouping levels from most to least specific.
//
//nolint:gochecknoglobals // Fixed lookup order
var FallbackChain = []KeySpec{
	NewKeySpec(laps.ColDriver, laps.ColEvent, laps.ColCompound),
	NewKeySpec(laps.ColDriver, laps.ColCompound),
	NewKeySpec(laps.ColTeam, laps.ColEvent, laps.ColCompound),
	NewKeySpec(laps.ColEvent, laps.ColCompound),
	NewKeySpec(laps.ColCompound),
}

// ImputedColumns lists the columns a simulation cannot observe.
//
//nolint:gochecknoglobals // Fixed lookup schema
var ImputedColumns = []string{
	laps.ColLapTime, laps.ColSector1Time, laps.ColSector2Time, laps.ColSector3Time, features.ColBestLap,
}

// Query holds the inputs known before a simulated lap is driven.
type Query struct {
	Driver   string `json:"driver"`
	Team     string `json:"team"`
	Event    string `json:"event"`
	Compound string `json:"compound"`
	TyreLife int    `json:"tyreLife"`
}

// Validate validates the query
func (q *Query) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{laps.ColDriver, q.Driver},
		{laps.ColTeam, q.Team},
		{laps.ColEvent, q.Event},
		{laps.ColCompound, q.Compound},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidQuery, f.name)
		}
	}

	if q.TyreLife < 0 {
		return fmt.Errorf("%w: TyreLife must not be negative", ErrInvalidQuery)
	}

	return nil
}

// Attribute returns the query value for a grouping field.
func (q *Query) Attribute(field string) string {
	switch field {
	case laps.ColDriver:
		return q.Driver
	case laps.ColTeam:
		return q.Team
	case laps.ColEvent:
		return q.Event
	case laps.ColCompound:
		return q.Compound
	}

	return ""
}

type attributer interface {
	Attribute(field string) string
}

// Key joins the values of the spec's fields. ok is false when any field is
// empty, so a partial query never matches a level.
func (k KeySpec) Key(src attributer) (key string, ok bool) {
	parts := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		v := src.Attribute(f)
		if v == "" {
			return "", false
		}
		parts[i] = v
	}

	return strings.Join(parts, keySeparator), true
}

// field returns the value of field within a joined key.
func (k KeySpec) field(key, field string) (string, bool) {
	for i, f := range k.Fields {
		if f != field {
			continue
		}

		parts := strings.Split(key, keySeparator)
		if i < len(parts) {
			return parts[i], true
		}
	}

	return "", false
}
