// Package lapdb stores raw laps in SQLite so training data can be ingested
// once and reloaded without re-parsing CSV exports.
package lapdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Register the sqlite driver

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/observability"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPathRequired is returned when opening a database without a path
var ErrPathRequired = errors.New("database path is required")

// DB is a SQLite lap database
type DB struct {
	*sql.DB

	log logrus.FieldLogger
}

var _ laps.Source = (*DB)(nil)

// Open opens the database at path and applies pending migrations
func Open(log logrus.FieldLogger, path string) (*DB, error) {
	if path == "" {
		return nil, ErrPathRequired
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lap database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, log: log.WithField("component", "lapdb")}

	if err := db.MigrateUp(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// MigrateUp runs all pending migrations
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed since that would close the shared connection

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// MigrateVersion returns the current schema version. It is 0 before any
// migration ran.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{log: db.log}

	return m, nil
}

// migrateLogger adapts logrus to migrate.Logger
type migrateLogger struct {
	log logrus.FieldLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}

	return v.Float64
}

// InsertLaps stores records, skipping laps already present. It returns the
// number of new laps.
func (db *DB) InsertLaps(ctx context.Context, records []laps.RawRecord) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO laps (
			driver, team, event, compound, tyre_life, lap_number,
			lap_time, sector1_time, sector2_time, sector3_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0

	for i := range records {
		r := &records[i]

		res, err := stmt.ExecContext(ctx,
			r.Driver, r.Team, r.Event, r.Compound,
			nullable(r.TyreLife), nullable(r.LapNumber), nullable(r.LapTime),
			nullable(r.Sector1Time), nullable(r.Sector2Time), nullable(r.Sector3Time),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert lap %d: %w", i, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted laps: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit laps: %w", err)
	}

	observability.RecordRows("ingest", "inserted", inserted)
	observability.RecordRows("ingest", "duplicate", len(records)-inserted)

	db.log.WithFields(logrus.Fields{
		"received":   len(records),
		"inserted":   inserted,
		"duplicates": len(records) - inserted,
	}).Info("Ingested laps")

	return inserted, nil
}

// Load returns every stored lap in ingestion order
func (db *DB) Load(ctx context.Context) ([]laps.RawRecord, error) {
	return db.LoadEvents(ctx)
}

// LoadEvents returns the stored laps of the given events in ingestion
// order. No events loads every lap.
func (db *DB) LoadEvents(ctx context.Context, events ...string) ([]laps.RawRecord, error) {
	query := `
		SELECT driver, team, event, compound, tyre_life, lap_number,
			lap_time, sector1_time, sector2_time, sector3_time
		FROM laps`

	args := make([]interface{}, len(events))
	if len(events) > 0 {
		placeholders := make([]string, len(events))
		for i, e := range events {
			placeholders[i] = "?"
			args[i] = e
		}
		query += " WHERE event IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query laps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []laps.RawRecord

	for rows.Next() {
		var (
			r                            laps.RawRecord
			tyreLife, lapNumber, lapTime sql.NullFloat64
			sector1, sector2, sector3    sql.NullFloat64
		)

		if err := rows.Scan(&r.Driver, &r.Team, &r.Event, &r.Compound,
			&tyreLife, &lapNumber, &lapTime, &sector1, &sector2, &sector3); err != nil {
			return nil, fmt.Errorf("failed to scan lap: %w", err)
		}

		r.TyreLife = fromNullable(tyreLife)
		r.LapNumber = fromNullable(lapNumber)
		r.LapTime = fromNullable(lapTime)
		r.Sector1Time = fromNullable(sector1)
		r.Sector2Time = fromNullable(sector2)
		r.Sector3Time = fromNullable(sector3)

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read laps: %w", err)
	}

	return out, nil
}

// Count returns the number of stored laps
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM laps").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count laps: %w", err)
	}

	return n, nil
}

// Events lists the distinct stored events, sorted
func (db *DB) Events(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT event FROM laps ORDER BY event")
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []string

	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
