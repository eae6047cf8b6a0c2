package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/store"
)

// TaskHandler trains models from a lap source and saves them to a store
type TaskHandler struct {
	source    laps.Source
	store     store.Store
	cfg       predictor.Config
	onTrained func(p *predictor.Predictor)
	log       logrus.FieldLogger
}

// NewTaskHandler creates a new task handler. onTrained, when set, receives
// every freshly trained predictor after it was saved.
func NewTaskHandler(
	log logrus.FieldLogger,
	source laps.Source,
	st store.Store,
	cfg predictor.Config,
	onTrained func(p *predictor.Predictor),
) *TaskHandler {
	return &TaskHandler{
		source:    source,
		store:     st,
		cfg:       cfg,
		onTrained: onTrained,
		log:       log.WithField("component", "task-handler"),
	}
}

// HandleTraining handles training tasks
func (h *TaskHandler) HandleTraining(ctx context.Context, t *asynq.Task) error {
	var payload TrainPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		observability.RecordError("task-handler", "unmarshal_error")
		observability.RecordTaskComplete(TypeTrainModel, "failed")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		observability.RecordTaskComplete(TypeTrainModel, "failed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := h.Train(ctx, payload)

	if w := t.ResultWriter(); w != nil && result != nil {
		if data, marshalErr := json.Marshal(result); marshalErr == nil {
			if _, writeErr := w.Write(data); writeErr != nil {
				h.log.WithError(writeErr).Warn("Failed to write task result")
			}
		}
	}

	return err
}

// Train loads laps, fits a predictor and saves its bundle under the
// payload's model key.
func (h *TaskHandler) Train(ctx context.Context, payload TrainPayload) (*TaskResult, error) {
	startTime := time.Now()

	result := &TaskResult{ModelKey: payload.ModelKey}

	fail := func(stage string, err error) (*TaskResult, error) {
		result.Duration = time.Since(startTime)
		result.Error = err.Error()
		result.CompletedAt = time.Now().UTC()

		h.log.WithError(err).WithField("model_key", payload.ModelKey).Error("Training task failed")
		observability.RecordTaskComplete(TypeTrainModel, "failed")
		observability.RecordError("task-handler", stage)

		return result, fmt.Errorf("%s: %w", stage, err)
	}

	h.log.WithFields(logrus.Fields{
		"model_key": payload.ModelKey,
		"events":    len(payload.Events),
		"trigger":   payload.Trigger,
	}).Info("Starting training task")

	raw, err := h.source.Load(ctx)
	if err != nil {
		return fail("load_error", err)
	}

	raw = filterEvents(raw, payload.Events)
	result.Rows = len(raw)

	p, err := predictor.New(h.log, h.cfg)
	if err != nil {
		return fail("config_error", err)
	}

	if err := p.Fit(ctx, raw); err != nil {
		return fail("fit_error", err)
	}

	bundle, err := p.Bundle()
	if err != nil {
		return fail("bundle_error", err)
	}

	if err := h.store.Save(ctx, payload.ModelKey, bundle); err != nil {
		return fail("store_error", err)
	}

	if h.onTrained != nil {
		h.onTrained(p)
	}

	result.ModelID = bundle.ID
	result.TrainMAE = bundle.Metrics.TrainMAE
	result.TestMAE = bundle.Metrics.TestMAE
	result.Duration = time.Since(startTime)
	result.Success = true
	result.CompletedAt = time.Now().UTC()

	observability.RecordTaskComplete(TypeTrainModel, "success")

	h.log.WithFields(logrus.Fields{
		"model_key": payload.ModelKey,
		"model_id":  bundle.ID,
		"rows":      result.Rows,
		"duration":  result.Duration,
	}).Info("Task completed successfully")

	return result, nil
}

func filterEvents(raw []laps.RawRecord, events []string) []laps.RawRecord {
	if len(events) == 0 {
		return raw
	}

	keep := make(map[string]bool, len(events))
	for _, e := range events {
		keep[e] = true
	}

	out := make([]laps.RawRecord, 0, len(raw))
	for i := range raw {
		if keep[raw[i].Event] {
			out = append(out, raw[i])
		}
	}

	return out
}

// Routes returns the task handler routes for Asynq
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeTrainModel: h.HandleTraining,
	}
}
