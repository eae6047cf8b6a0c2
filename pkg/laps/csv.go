package laps

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Source yields raw lap records from some backing store.
type Source interface {
	Load(ctx context.Context) ([]RawRecord, error)
}

// CSVSource loads raw records from a CSV file on disk.
type CSVSource struct {
	Path string
}

var _ Source = (*CSVSource)(nil)

// Load reads the CSV file at s.Path.
func (s *CSVSource) Load(_ context.Context) ([]RawRecord, error) {
	return LoadCSV(s.Path)
}

// LoadCSV opens path and reads raw records from it.
func LoadCSV(path string) ([]RawRecord, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open lap data %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read lap data %s: %w", path, err)
	}

	return records, nil
}

// ReadCSV reads raw records from r. The header must name every required
// column; LapNumber and any other columns are optional. Cells that are empty
// or cannot be parsed become missing values.
func ReadCSV(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}

		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	var records []RawRecord

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}

		records = append(records, RawRecord{
			Driver:      cell(row, ColDriver),
			Team:        cell(row, ColTeam),
			Event:       cell(row, ColEvent),
			Compound:    cell(row, ColCompound),
			TyreLife:    ParseNumber(cell(row, ColTyreLife)),
			LapNumber:   ParseNumber(cell(row, ColLapNumber)),
			LapTime:     ParseSeconds(cell(row, ColLapTime)),
			Sector1Time: ParseSeconds(cell(row, ColSector1Time)),
			Sector2Time: ParseSeconds(cell(row, ColSector2Time)),
			Sector3Time: ParseSeconds(cell(row, ColSector3Time)),
		})
	}

	return records, nil
}

// ParseNumber parses a plain float, returning NaN when s is empty or invalid.
func ParseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}

	return v
}

// ParseSeconds parses a duration cell into seconds. Plain numbers are taken
// as seconds; clock forms such as "1:32.456", "00:01:32.456" and
// "0 days 00:01:32.456000" are also accepted.
func ParseSeconds(s string) float64 {
	if s == "" {
		return math.NaN()
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	days := 0.0
	if before, after, found := strings.Cut(s, " days "); found {
		d, err := strconv.ParseFloat(before, 64)
		if err != nil {
			return math.NaN()
		}
		days = d
		s = after
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return math.NaN()
	}

	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return math.NaN()
		}
		total = total*60 + v
	}

	return days*86400 + total
}

// WriteCSV writes records with an extra named column of values aligned by
// index. NaN values are written as empty cells.
func WriteCSV(w io.Writer, records []RawRecord, column string, values []float64) error {
	if len(values) != len(records) {
		return fmt.Errorf("values length %d does not match %d records", len(values), len(records))
	}

	writer := csv.NewWriter(w)

	header := []string{
		ColDriver, ColTeam, ColEvent, ColCompound, ColTyreLife, ColLapNumber,
		ColLapTime, ColSector1Time, ColSector2Time, ColSector3Time, column,
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range records {
		r := &records[i]
		row := []string{
			r.Driver, r.Team, r.Event, r.Compound,
			formatCell(r.TyreLife), formatCell(r.LapNumber),
			formatCell(r.LapTime), formatCell(r.Sector1Time), formatCell(r.Sector2Time), formatCell(r.Sector3Time),
			formatCell(values[i]),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
