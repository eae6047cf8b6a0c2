// Package tasks provides background model training using Asynq
package tasks

import (
	"time"
)

const (
	// TypeTrainModel is the task type for training and storing a model
	TypeTrainModel = "model:train"
	// QueueTraining is the queue training tasks run on
	QueueTraining = "training"
)

const (
	// TriggerManual marks tasks enqueued from the command line
	TriggerManual = "manual"
	// TriggerSchedule marks tasks enqueued by the retrain schedule
	TriggerSchedule = "schedule"
	// TriggerAPI marks tasks enqueued through the HTTP API
	TriggerAPI = "api"
)

// TaskResult contains the result of a training task
type TaskResult struct {
	ModelKey    string        `json:"model_key"`
	ModelID     string        `json:"model_id,omitempty"`
	Rows        int           `json:"rows"`
	TrainMAE    float64       `json:"train_mae"`
	TestMAE     float64       `json:"test_mae"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}
