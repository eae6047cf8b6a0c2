package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ethpandaops/laptime/pkg/tasks"
)

// Train handles POST /api/v1/train by enqueueing a background training task
func (s *Server) Train(c fiber.Ctx) error {
	if s.trainer == nil {
		return ErrTrainingDisabled
	}

	var req TrainRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return ErrInvalidBody
		}
	}

	payload := tasks.TrainPayload{
		ModelKey:   s.modelKey,
		Events:     req.Events,
		Trigger:    tasks.TriggerAPI,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := s.trainer.EnqueueTraining(payload); err != nil {
		s.log.WithError(err).Warn("Failed to enqueue training")
		return toFiberError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TrainResponse{
		ModelKey: s.modelKey,
		Status:   "queued",
	})
}
