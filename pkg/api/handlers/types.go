package handlers

import (
	"math"

	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/predictor"
)

// LapInput is a lap as posted to the predict endpoint. Omitted numbers
// are treated as missing.
type LapInput struct {
	Driver      string   `json:"driver"`
	Team        string   `json:"team"`
	Event       string   `json:"event"`
	Compound    string   `json:"compound"`
	TyreLife    *float64 `json:"tyreLife"`
	LapNumber   *float64 `json:"lapNumber,omitempty"`
	LapTime     *float64 `json:"lapTime"`
	Sector1Time *float64 `json:"sector1Time"`
	Sector2Time *float64 `json:"sector2Time"`
	Sector3Time *float64 `json:"sector3Time"`
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}

	return *v
}

func (l *LapInput) raw() laps.RawRecord {
	return laps.RawRecord{
		Driver:      l.Driver,
		Team:        l.Team,
		Event:       l.Event,
		Compound:    l.Compound,
		TyreLife:    orNaN(l.TyreLife),
		LapNumber:   orNaN(l.LapNumber),
		LapTime:     orNaN(l.LapTime),
		Sector1Time: orNaN(l.Sector1Time),
		Sector2Time: orNaN(l.Sector2Time),
		Sector3Time: orNaN(l.Sector3Time),
	}
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Laps []LapInput `json:"laps"`
}

// PredictedLap is one predicted lap
type PredictedLap struct {
	// Row is the index of the lap in the request
	Row       int     `json:"row"`
	Driver    string  `json:"driver"`
	Event     string  `json:"event"`
	Compound  string  `json:"compound"`
	TyreLife  int     `json:"tyreLife"`
	LapTime   float64 `json:"lapTime"`
	Formatted string  `json:"formatted"`
}

// PredictResponse is the response of POST /predict
type PredictResponse struct {
	ModelID     string         `json:"modelId"`
	Predictions []PredictedLap `json:"predictions"`
	// Dropped counts laps removed as incomplete or outliers
	Dropped int `json:"dropped"`
}

// SimulateRequest is the body of POST /simulate
type SimulateRequest struct {
	imputer.Query
	Laps int `json:"laps"`
}

// SimulatedLap is one lap of a simulated stint
type SimulatedLap struct {
	TyreLife  int     `json:"tyreLife"`
	LapTime   float64 `json:"lapTime"`
	Formatted string  `json:"formatted"`
}

// CoverageResponse describes the fallback level a query resolves to
type CoverageResponse struct {
	Level       string `json:"level"`
	Global      bool   `json:"global"`
	Description string `json:"description"`
}

func newCoverageResponse(c imputer.Coverage) CoverageResponse {
	return CoverageResponse{Level: c.Level, Global: c.Global, Description: c.String()}
}

// SimulateResponse is the response of POST /simulate
type SimulateResponse struct {
	ModelID  string           `json:"modelId"`
	Query    imputer.Query    `json:"query"`
	Laps     []SimulatedLap   `json:"laps"`
	BestLap  float64          `json:"bestLap"`
	Coverage CoverageResponse `json:"coverage"`
	Warnings []string         `json:"warnings"`
}

// ModelResponse is the response of GET /model
type ModelResponse struct {
	ID          string                 `json:"id"`
	Metrics     predictor.Metrics      `json:"metrics"`
	Drivers     []string               `json:"drivers"`
	Events      []string               `json:"events"`
	Compounds   []string               `json:"compounds"`
	Importances []predictor.Importance `json:"importances"`
}

// HealthResponse is the response of GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"modelLoaded"`
	ModelID     string `json:"modelId,omitempty"`
}

// TrainRequest is the body of POST /train
type TrainRequest struct {
	// Events restricts training to these events; empty trains on all laps
	Events []string `json:"events"`
}

// TrainResponse is the response of POST /train
type TrainResponse struct {
	ModelKey string `json:"modelKey"`
	Status   string `json:"status"`
}
