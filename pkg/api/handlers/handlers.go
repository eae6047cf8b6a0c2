// Package handlers implements the lap time API request handlers.
package handlers

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/tasks"
)

// ModelHolder holds the predictor currently served. Swapping it is safe
// while requests are in flight.
type ModelHolder struct {
	current atomic.Pointer[predictor.Predictor]
}

// NewModelHolder returns a holder serving p, which may be nil
func NewModelHolder(p *predictor.Predictor) *ModelHolder {
	h := &ModelHolder{}
	if p != nil {
		h.current.Store(p)
	}

	return h
}

// Set replaces the served predictor
func (h *ModelHolder) Set(p *predictor.Predictor) {
	h.current.Store(p)
}

// Get returns the served predictor or nil
func (h *ModelHolder) Get() *predictor.Predictor {
	return h.current.Load()
}

// Trainer enqueues background training
type Trainer interface {
	EnqueueTraining(payload tasks.TrainPayload, opts ...asynq.Option) error
}

// Server holds the dependencies of the request handlers
type Server struct {
	models            *ModelHolder
	trainer           Trainer
	modelKey          string
	maxSimulationLaps int
	log               logrus.FieldLogger
}

// NewServer creates a new API server instance. trainer may be nil, which
// disables the train endpoint.
func NewServer(models *ModelHolder, trainer Trainer, modelKey string, maxSimulationLaps int, log logrus.FieldLogger) *Server {
	return &Server{
		models:            models,
		trainer:           trainer,
		modelKey:          modelKey,
		maxSimulationLaps: maxSimulationLaps,
		log:               log.WithField("component", "api.handlers"),
	}
}

// RegisterRoutes registers every handler below router
func RegisterRoutes(router fiber.Router, s *Server) {
	router.Get("/health", s.GetHealth)
	router.Get("/model", s.GetModel)
	router.Get("/coverage", s.GetCoverage)
	router.Post("/predict", s.Predict)
	router.Post("/simulate", s.Simulate)
	router.Post("/train", s.Train)
}

func (s *Server) predictor() (*predictor.Predictor, error) {
	p := s.models.Get()
	if p == nil || !p.Fitted() {
		return nil, ErrModelNotLoaded
	}

	return p, nil
}
