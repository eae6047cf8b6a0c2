package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/api"
	"github.com/ethpandaops/laptime/pkg/api/handlers"
	"github.com/ethpandaops/laptime/pkg/lapdb"
	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/observability"
	"github.com/ethpandaops/laptime/pkg/predictor"
	r "github.com/ethpandaops/laptime/pkg/redis"
	"github.com/ethpandaops/laptime/pkg/store"
	"github.com/ethpandaops/laptime/pkg/tasks"
	"github.com/ethpandaops/laptime/pkg/worker"
)

// Components selects the long running services to start
type Components struct {
	API    bool
	Worker bool
}

// Service runs the API and the training worker against shared
// dependencies
type Service struct {
	config *Config
	log    logrus.FieldLogger

	source      laps.Source
	closeSource func() error
	store       store.Store
	models      *handlers.ModelHolder
	queues      *tasks.QueueManager

	api    api.Service
	worker worker.Service

	// Servers
	healthServer *http.Server
	pprofServer  *http.Server

	redisOptions *redis.Options
	redisClient  *redis.Client
}

// NewService creates the service and every enabled component
func NewService(log logrus.FieldLogger, cfg *Config, components Components) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	redisOptions, err := cfg.Redis.Options()
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(redisOptions)

	s := &Service{
		config:       cfg,
		log:          log,
		models:       handlers.NewModelHolder(nil),
		redisOptions: redisOptions,
		redisClient:  redisClient,
		queues:       tasks.NewQueueManager(r.NewAsynqRedisOptions(redisOptions), cfg.Redis.PrefixQueue(tasks.QueueTraining)),
	}

	s.store, err = NewStore(log, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	if components.Worker {
		s.source, s.closeSource, err = NewSource(log, &cfg.Data)
		if err != nil {
			return nil, err
		}

		handler := tasks.NewTaskHandler(log, s.source, s.store, cfg.Predictor, s.models.Set)

		s.worker, err = worker.NewService(log, &cfg.Worker, redisOptions, s.queues.Queue(), handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker service: %w", err)
		}
	}

	if components.API {
		server := handlers.NewServer(s.models, s.queues, cfg.Model.Key, cfg.API.MaxSimulationLaps, log)

		s.api, err = api.NewService(&cfg.API, server, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create API service: %w", err)
		}
	}

	return s, nil
}

// NewStore creates the configured bundle store. Redis keys are namespaced
// below the redis prefix.
func NewStore(log logrus.FieldLogger, cfg *Config, redisClient *redis.Client) (store.Store, error) {
	storeCfg := cfg.Store
	storeCfg.Prefix = cfg.Redis.PrefixKey(storeCfg.Prefix)

	st, err := store.New(log, storeCfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create model store: %w", err)
	}

	return st, nil
}

// NewSource opens the configured lap source. The returned func releases it.
func NewSource(log logrus.FieldLogger, cfg *DataConfig) (laps.Source, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.Kind == DataKindSQLite {
		db, err := lapdb.Open(log, cfg.Path)
		if err != nil {
			return nil, nil, err
		}

		return db, db.Close, nil
	}

	return &laps.CSVSource{Path: cfg.Path}, func() error { return nil }, nil
}

// LoadPredictor loads the bundle stored under key
func LoadPredictor(ctx context.Context, log logrus.FieldLogger, st store.Store, key string) (*predictor.Predictor, error) {
	bundle, err := st.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", key, err)
	}

	return predictor.FromBundle(log, bundle)
}

// Models returns the holder of the served predictor
func (a *Service) Models() *handlers.ModelHolder {
	return a.models
}

// Start loads the served model and starts every component
func (a *Service) Start(ctx context.Context) error {
	a.log.Info("Starting lap time service...")

	observability.StartMetricsServer(a.log, a.config.MetricsAddr)

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	p, err := LoadPredictor(ctx, a.log, a.store, a.config.Model.Key)

	switch {
	case errors.Is(err, store.ErrNotFound):
		a.log.WithField("key", a.config.Model.Key).Warn("No stored model yet, serving without one until training completes")
	case err != nil:
		return err
	default:
		a.models.Set(p)
	}

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if a.api != nil {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API service: %w", err)
		}
	}

	a.log.Info("Lap time service started successfully")

	return nil
}

// Stop gracefully shuts down every component
func (a *Service) Stop() error {
	a.log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if stopFunc == nil {
			return
		}
		if err := stopFunc(); err != nil {
			a.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// 1. Stop the API first (stop accepting requests)
	if a.api != nil {
		stopService("API service", a.api.Stop)
	}

	// 2. Stop worker (finish in-flight training)
	if a.worker != nil {
		stopService("worker service", a.worker.Stop)
	}

	stopService("queue manager", a.queues.Close)

	// 3. Close Redis (now safe, nothing is using it)
	stopService("Redis client", a.redisClient.Close)

	stopService("lap source", a.closeSource)

	if a.healthServer != nil {
		stopService("health check server", func() error { return a.healthServer.Shutdown(ctx) })
	}
	if a.pprofServer != nil {
		stopService("pprof server", func() error { return a.pprofServer.Shutdown(ctx) })
	}

	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	return nil
}

func (a *Service) startHealthCheck() {
	a.log.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// ready once a model is served
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if a.models.Get() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NO MODEL"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Service) startPProf() {
	a.log.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Pprof server failed")
		}
	}()
}
