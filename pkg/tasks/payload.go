package tasks

import (
	"errors"
	"fmt"
	"time"
)

// ErrModelKeyRequired is returned for payloads without a model key
var ErrModelKeyRequired = errors.New("model key is required")

// TrainPayload represents the payload of a training task
type TrainPayload struct {
	// ModelKey is the store key the trained bundle is saved under
	ModelKey string `json:"model_key"`
	// Events restricts training to these events; empty trains on every lap
	Events     []string  `json:"events,omitempty"`
	Trigger    string    `json:"trigger"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate validates the payload
func (p TrainPayload) Validate() error {
	if p.ModelKey == "" {
		return ErrModelKeyRequired
	}

	return nil
}

// UniqueID returns a unique identifier for this task. Only one training
// task per model key may be queued at a time.
func (p TrainPayload) UniqueID() string {
	return fmt.Sprintf("%s:%s", TypeTrainModel, p.ModelKey)
}
