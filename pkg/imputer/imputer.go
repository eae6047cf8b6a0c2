// Package imputer reconstructs the lap and sector times a simulation cannot
// observe from historical medians, walking a fallback chain from the most
// to the least specific grouping.
package imputer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/features"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/stats"
)

// GlobalLevel names the unconditional fallback.
const GlobalLevel = "global"

var (
	// ErrInvalidLapCount is returned when fewer than one lap is requested
	ErrInvalidLapCount = errors.New("lap count must be at least 1")
	// ErrNoTrainingRows is returned when fitting on an empty row set
	ErrNoTrainingRows = errors.New("no rows to fit imputer on")
	// ErrIncompleteTable is returned when a restored table lacks a column
	ErrIncompleteTable = errors.New("imputation table is incomplete")
)

// Table holds per level medians and the global median of every imputed
// column: column → level → key → median.
type Table struct {
	Levels map[string]map[string]map[string]float64 `json:"levels"`
	Global map[string]float64                       `json:"global"`
}

// Warning reports a column that fell back to its global median.
type Warning struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

func (w Warning) String() string {
	return fmt.Sprintf("no historical data found for %s with the given inputs, using global median (%.3fs)", w.Column, w.Value)
}

// Imputation is the result of one Impute call.
type Imputation struct {
	// Records are the synthetic laps, TyreLife increasing by one per lap
	Records []laps.Record
	// BestLap is the imputed best lap reference
	BestLap float64
	// Values holds the imputed value per column
	Values map[string]float64
	// Levels holds the fallback level each column matched at
	Levels   map[string]string
	Warnings []Warning
}

// Coverage describes which fallback level a query resolves to.
type Coverage struct {
	Level  string `json:"level"`
	Global bool   `json:"global"`
}

func (c Coverage) String() string {
	if c.Global {
		return "Global median fallback"
	}

	return "Matched at level: " + c.Level
}

// Imputer is a fitted lookup table. It is read-only after Fit.
type Imputer struct {
	log   logrus.FieldLogger
	chain []KeySpec
	table Table
}

// Fit learns the medians of every imputed column at every fallback level
// from the feature engineered rows.
func Fit(log logrus.FieldLogger, rows []features.Row) (*Imputer, error) {
	if len(rows) == 0 {
		return nil, ErrNoTrainingRows
	}

	table := Table{
		Levels: make(map[string]map[string]map[string]float64, len(ImputedColumns)),
		Global: make(map[string]float64, len(ImputedColumns)),
	}

	for _, col := range ImputedColumns {
		all := make([]float64, len(rows))
		for i := range rows {
			v, err := rows[i].Value(col)
			if err != nil {
				return nil, err
			}
			all[i] = v
		}

		table.Global[col] = stats.Median(all)
		table.Levels[col] = make(map[string]map[string]float64, len(FallbackChain))

		for _, spec := range FallbackChain {
			groups := make(map[string][]float64)
			for i := range rows {
				key, ok := spec.Key(&rows[i])
				if !ok {
					continue
				}
				groups[key] = append(groups[key], all[i])
			}

			medians := make(map[string]float64, len(groups))
			for key, values := range groups {
				// all-missing groups are left out so the chain falls through
				if m := stats.Median(values); !math.IsNaN(m) {
					medians[key] = m
				}
			}

			table.Levels[col][spec.Name] = medians
		}
	}

	return FromTable(log, table)
}

// FromTable restores an imputer from a previously fitted table.
func FromTable(log logrus.FieldLogger, table Table) (*Imputer, error) {
	for _, col := range ImputedColumns {
		if _, ok := table.Global[col]; !ok {
			return nil, fmt.Errorf("%w: no global median for %s", ErrIncompleteTable, col)
		}

		for _, spec := range FallbackChain {
			if _, ok := table.Levels[col][spec.Name]; !ok {
				return nil, fmt.Errorf("%w: no %s level for %s", ErrIncompleteTable, spec.Name, col)
			}
		}
	}

	return &Imputer{
		log:   log.WithField("component", "imputer"),
		chain: FallbackChain,
		table: table,
	}, nil
}

// Table returns the fitted lookup table.
func (m *Imputer) Table() Table {
	return m.table
}

// lookup walks the chain for column and returns the first match.
func (m *Imputer) lookup(column string, q *Query) (value float64, level string, ok bool) {
	for _, spec := range m.chain {
		key, resolved := spec.Key(q)
		if !resolved {
			continue
		}

		if v, found := m.table.Levels[column][spec.Name][key]; found {
			return v, spec.Name, true
		}
	}

	return m.table.Global[column], GlobalLevel, false
}

// Impute builds lapCount synthetic records for q. Columns without any
// historical match use their global median and produce a warning.
func (m *Imputer) Impute(q Query, lapCount int) (*Imputation, error) {
	if lapCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLapCount, lapCount)
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := &Imputation{
		Values: make(map[string]float64, len(ImputedColumns)),
		Levels: make(map[string]string, len(ImputedColumns)),
	}

	for _, col := range ImputedColumns {
		value, level, matched := m.lookup(col, &q)
		if !matched {
			w := Warning{Column: col, Value: value}
			result.Warnings = append(result.Warnings, w)

			m.log.WithFields(logrus.Fields{
				"column":   col,
				"driver":   q.Driver,
				"event":    q.Event,
				"compound": q.Compound,
			}).Warn(w.String())
		}

		result.Values[col] = value
		result.Levels[col] = level
		observability.RecordImputation(col, level)
	}

	result.BestLap = result.Values[features.ColBestLap]
	result.Records = make([]laps.Record, lapCount)

	for i := 0; i < lapCount; i++ {
		result.Records[i] = laps.Record{
			Source:      i,
			Driver:      q.Driver,
			Team:        q.Team,
			Event:       q.Event,
			Compound:    q.Compound,
			TyreLife:    q.TyreLife + i,
			LapTime:     result.Values[laps.ColLapTime],
			Sector1Time: result.Values[laps.ColSector1Time],
			Sector2Time: result.Values[laps.ColSector2Time],
			Sector3Time: result.Values[laps.ColSector3Time],
		}
	}

	return result, nil
}

// Coverage reports the level the LapTime lookup for q resolves to.
func (m *Imputer) Coverage(q Query) Coverage {
	_, level, matched := m.lookup(laps.ColLapTime, &q)

	return Coverage{Level: level, Global: !matched}
}

// KnownDrivers lists the drivers seen in training
func (m *Imputer) KnownDrivers() []string {
	return m.known(NewKeySpec(laps.ColDriver, laps.ColCompound), laps.ColDriver)
}

// KnownEvents lists the events seen in training
func (m *Imputer) KnownEvents() []string {
	return m.known(NewKeySpec(laps.ColDriver, laps.ColEvent, laps.ColCompound), laps.ColEvent)
}

// KnownCompounds lists the compounds seen in training
func (m *Imputer) KnownCompounds() []string {
	return m.known(NewKeySpec(laps.ColCompound), laps.ColCompound)
}

func (m *Imputer) known(spec KeySpec, field string) []string {
	seen := make(map[string]bool)
	for key := range m.table.Levels[laps.ColLapTime][spec.Name] {
		if v, ok := spec.field(key, field); ok {
			seen[v] = true
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}

	sort.Strings(out)

	return out
}
