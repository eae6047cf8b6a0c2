package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/tasks"
)

var (
	// ErrModelNotLoaded is returned while no model has been trained or loaded
	ErrModelNotLoaded = fiber.NewError(fiber.StatusServiceUnavailable, "no model loaded")
	// ErrTrainingDisabled is returned when the server has no task queue
	ErrTrainingDisabled = fiber.NewError(fiber.StatusServiceUnavailable, "training is not enabled on this server")
	// ErrNoLaps is returned for a predict request without laps
	ErrNoLaps = fiber.NewError(fiber.StatusBadRequest, "at least one lap is required")
	// ErrInvalidBody is returned when a request body does not decode
	ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")
)

// toFiberError maps domain errors onto HTTP errors
func toFiberError(err error) error {
	switch {
	case errors.Is(err, predictor.ErrNotFitted):
		return ErrModelNotLoaded
	case errors.Is(err, imputer.ErrInvalidQuery),
		errors.Is(err, imputer.ErrInvalidLapCount),
		errors.Is(err, predictor.ErrNoRows),
		errors.Is(err, tasks.ErrModelKeyRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrAlreadyQueued):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
