package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/ethpandaops/laptime/pkg/imputer"
)

// GetHealth handles GET /api/v1/health
func (s *Server) GetHealth(c fiber.Ctx) error {
	resp := HealthResponse{Status: "ok"}

	if p, err := s.predictor(); err == nil {
		resp.ModelLoaded = true
		resp.ModelID, _ = p.ModelID()
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// GetModel handles GET /api/v1/model
func (s *Server) GetModel(c fiber.Ctx) error {
	p, err := s.predictor()
	if err != nil {
		return err
	}

	var resp ModelResponse

	// the predictor is fitted so none of these can fail
	resp.ID, _ = p.ModelID()
	resp.Metrics, _ = p.Metrics()
	resp.Drivers, _ = p.KnownDrivers()
	resp.Events, _ = p.KnownEvents()
	resp.Compounds, _ = p.KnownCompounds()
	resp.Importances, _ = p.FeatureImportance(0)

	return c.Status(fiber.StatusOK).JSON(resp)
}

// GetCoverage handles GET /api/v1/coverage
func (s *Server) GetCoverage(c fiber.Ctx) error {
	p, err := s.predictor()
	if err != nil {
		return err
	}

	q := imputer.Query{
		Driver:   c.Query("driver"),
		Team:     c.Query("team"),
		Event:    c.Query("event"),
		Compound: c.Query("compound"),
	}
	if err := q.Validate(); err != nil {
		return toFiberError(err)
	}

	coverage, err := p.Coverage(q)
	if err != nil {
		return toFiberError(err)
	}

	return c.Status(fiber.StatusOK).JSON(newCoverageResponse(coverage))
}
