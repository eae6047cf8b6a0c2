package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/tasks"
)

// Enqueuer submits training tasks
type Enqueuer interface {
	EnqueueTraining(payload tasks.TrainPayload, opts ...asynq.Option) error
}

// retrainScheduler enqueues a training task on every tick of a cron schedule
type retrainScheduler struct {
	log      logrus.FieldLogger
	cron     *cron.Cron
	enqueuer Enqueuer
	modelKey string
	events   []string
}

func newRetrainScheduler(log logrus.FieldLogger, cfg *Config, enqueuer Enqueuer) (*retrainScheduler, error) {
	sched, err := parseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	s := &retrainScheduler{
		log:      log.WithField("component", "retrain-scheduler"),
		cron:     cron.New(),
		enqueuer: enqueuer,
		modelKey: cfg.ModelKey,
		events:   cfg.Events,
	}

	s.cron.Schedule(sched, cron.FuncJob(s.enqueue))

	return s, nil
}

func (s *retrainScheduler) start() {
	s.cron.Start()

	s.log.WithField("model_key", s.modelKey).Info("Retrain schedule started")
}

// stop waits for a running enqueue to finish or ctx to expire
func (s *retrainScheduler) stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for retrain schedule to stop")
	}
}

func (s *retrainScheduler) enqueue() {
	payload := tasks.TrainPayload{
		ModelKey:   s.modelKey,
		Events:     s.events,
		Trigger:    tasks.TriggerSchedule,
		EnqueuedAt: time.Now().UTC(),
	}

	err := s.enqueuer.EnqueueTraining(payload)

	switch {
	case errors.Is(err, tasks.ErrAlreadyQueued):
		s.log.WithField("model_key", s.modelKey).Debug("Training already queued, skipping tick")
	case err != nil:
		s.log.WithError(err).Error("Failed to enqueue scheduled training")
		observability.RecordError("retrain-scheduler", "enqueue_error")
	default:
		s.log.WithField("model_key", s.modelKey).Info("Enqueued scheduled training")
	}
}
