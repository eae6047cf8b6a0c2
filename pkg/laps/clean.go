package laps

import (
	"math"

	"github.com/ethpandaops/laptime/pkg/stats"
)

// CleanResult reports what cleaning kept and why rows were dropped.
type CleanResult struct {
	Records    []Record
	Incomplete int
	Outliers   int
	Threshold  float64
}

// Clean drops rows missing any required field, coerces TyreLife and
// LapNumber to integers and drops lap times above the outlierQuantile of
// the remaining lap times. The input is never modified.
func Clean(raw []RawRecord, outlierQuantile float64) (CleanResult, error) {
	if !(outlierQuantile > 0 && outlierQuantile <= 1) {
		return CleanResult{}, ErrInvalidOutlierQuantile
	}

	result := CleanResult{Threshold: math.NaN()}

	complete := make([]Record, 0, len(raw))
	for i := range raw {
		r := &raw[i]
		if _, missing := r.MissingField(); missing {
			result.Incomplete++
			continue
		}

		lapNumber := 0
		if !math.IsNaN(r.LapNumber) && r.LapNumber > 0 {
			lapNumber = int(r.LapNumber)
		}

		complete = append(complete, Record{
			Source:      i,
			Driver:      r.Driver,
			Team:        r.Team,
			Event:       r.Event,
			Compound:    r.Compound,
			TyreLife:    int(r.TyreLife),
			LapNumber:   lapNumber,
			LapTime:     r.LapTime,
			Sector1Time: r.Sector1Time,
			Sector2Time: r.Sector2Time,
			Sector3Time: r.Sector3Time,
		})
	}

	if len(complete) == 0 {
		result.Records = complete
		return result, nil
	}

	lapTimes := make([]float64, len(complete))
	for i := range complete {
		lapTimes[i] = complete[i].LapTime
	}
	result.Threshold = stats.Quantile(lapTimes, outlierQuantile)

	result.Records = make([]Record, 0, len(complete))
	for _, rec := range complete {
		if rec.LapTime > result.Threshold {
			result.Outliers++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}
