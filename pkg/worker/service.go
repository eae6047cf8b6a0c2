// Package worker runs background model training on asynq and optionally
// enqueues retraining on a cron schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	r "github.com/ethpandaops/laptime/pkg/redis"
	"github.com/ethpandaops/laptime/pkg/tasks"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// service encapsulates the worker application logic
type service struct {
	config *Config
	log    logrus.FieldLogger

	done chan struct{}
	wg   sync.WaitGroup

	redisOpt *redis.Options
	queue    string
	handler  *tasks.TaskHandler

	server    *asynq.Server
	queues    *tasks.QueueManager
	scheduler *retrainScheduler
}

// NewService creates a new worker consuming training tasks from queue
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *redis.Options, queue string, handler *tasks.TaskHandler) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		done:     make(chan struct{}),
		redisOpt: redisOpt,
		queue:    queue,
		handler:  handler,
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(_ context.Context) error {
	asynqOpt := r.NewAsynqRedisOptions(s.redisOpt)

	if s.config.Schedule != "" {
		s.queues = tasks.NewQueueManager(asynqOpt, s.queue)

		scheduler, err := newRetrainScheduler(s.log, s.config, s.queues)
		if err != nil {
			return err
		}

		s.scheduler = scheduler
	}

	s.log.WithFields(logrus.Fields{
		"queue":       s.queue,
		"concurrency": s.config.Concurrency,
		"schedule":    s.config.Schedule,
	}).Info("Starting worker service")

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency:     s.config.Concurrency,
		Queues:          map[string]int{s.queue: 10},
		ShutdownTimeout: time.Duration(s.config.ShutdownTimeout) * time.Second,
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range s.handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if runErr := srv.Run(mux); runErr != nil {
			s.log.WithError(runErr).Error("Worker server stopped with error")
		}
	}()

	s.server = srv

	if s.scheduler != nil {
		s.scheduler.start()
	}

	s.log.Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.ShutdownTimeout)*time.Second)
	defer cancel()

	if s.scheduler != nil {
		s.scheduler.stop(ctx)
	}

	if s.server != nil {
		s.server.Shutdown()
	}

	s.wg.Wait()

	if s.queues != nil {
		if err := s.queues.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close queue manager")
		}
	}

	s.log.Info("Worker service stopped successfully")

	return nil
}

// Ensure service implements the interface
var _ Service = (*service)(nil)
