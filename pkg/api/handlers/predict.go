package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/report"
)

// Predict handles POST /api/v1/predict
func (s *Server) Predict(c fiber.Ctx) error {
	p, err := s.predictor()
	if err != nil {
		return err
	}

	var req PredictRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrInvalidBody
	}

	if len(req.Laps) == 0 {
		return ErrNoLaps
	}

	raw := make([]laps.RawRecord, len(req.Laps))
	for i := range req.Laps {
		raw[i] = req.Laps[i].raw()
	}

	preds, err := p.Predict(raw)
	if err != nil {
		return toFiberError(err)
	}

	resp := PredictResponse{
		Predictions: make([]PredictedLap, len(preds)),
		Dropped:     len(raw) - len(preds),
	}
	resp.ModelID, _ = p.ModelID()

	for i, pred := range preds {
		resp.Predictions[i] = PredictedLap{
			Row:       pred.Source,
			Driver:    pred.Record.Driver,
			Event:     pred.Record.Event,
			Compound:  pred.Record.Compound,
			TyreLife:  pred.Record.TyreLife,
			LapTime:   pred.LapTime,
			Formatted: report.FormatLapTime(pred.LapTime),
		}
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// Simulate handles POST /api/v1/simulate
func (s *Server) Simulate(c fiber.Ctx) error {
	p, err := s.predictor()
	if err != nil {
		return err
	}

	var req SimulateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrInvalidBody
	}

	if req.Laps > s.maxSimulationLaps {
		return fiber.NewError(fiber.StatusBadRequest, "too many laps requested")
	}

	sim, err := p.Simulate(req.Query, req.Laps)
	if err != nil {
		return toFiberError(err)
	}

	resp := SimulateResponse{
		Query:    sim.Query,
		Laps:     make([]SimulatedLap, len(sim.Laps)),
		BestLap:  sim.BestLap,
		Coverage: newCoverageResponse(sim.Coverage),
		Warnings: make([]string, len(sim.Warnings)),
	}
	resp.ModelID, _ = p.ModelID()

	for i, lap := range sim.Laps {
		resp.Laps[i] = SimulatedLap{
			TyreLife:  lap.TyreLife,
			LapTime:   lap.LapTime,
			Formatted: report.FormatLapTime(lap.LapTime),
		}
	}

	for i, w := range sim.Warnings {
		resp.Warnings[i] = w.String()
	}

	s.log.WithFields(logrus.Fields{
		"driver":   sim.Query.Driver,
		"event":    sim.Query.Event,
		"laps":     len(sim.Laps),
		"coverage": sim.Coverage.Level,
	}).Debug("Simulated stint")

	return c.Status(fiber.StatusOK).JSON(resp)
}
