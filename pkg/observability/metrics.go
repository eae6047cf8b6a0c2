package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// FitsTotal tracks the total number of predictor fits
	FitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_fits_total",
			Help: "Total number of predictor fits",
		},
		[]string{"regressor", "status"}, // status: success, failed
	)

	// FitDuration measures predictor fit duration in seconds
	FitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "laptime_fit_duration_seconds",
			Help:    "Predictor fit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
		},
		[]string{"regressor"},
	)

	// ModelMAE tracks the mean absolute error of the current model in seconds
	ModelMAE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "laptime_model_mae_seconds",
			Help: "Mean absolute error of the fitted model in seconds",
		},
		[]string{"split"}, // split: train, test
	)

	// RowsProcessed counts lap rows by pipeline outcome
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_rows_processed_total",
			Help: "Total number of lap rows processed",
		},
		[]string{"operation", "outcome"}, // outcome: kept, incomplete, outlier
	)

	// PredictionsTotal counts predicted laps
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_predictions_total",
			Help: "Total number of predicted laps",
		},
		[]string{"operation"}, // operation: predict, evaluate, simulate
	)

	// ImputationsTotal counts imputed columns by the fallback level they matched at
	ImputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_imputations_total",
			Help: "Total number of imputed columns by fallback level",
		},
		[]string{"column", "level"},
	)

	// StoreOperations counts model bundle store operations
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_store_operations_total",
			Help: "Total number of model bundle store operations",
		},
		[]string{"backend", "operation", "status"}, // operation: save, load
	)

	// TasksTotal tracks the total number of background tasks processed
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_tasks_total",
			Help: "Total number of tasks processed",
		},
		[]string{"type", "status"}, // status: success, failed
	)

	// TasksEnqueued counts total number of tasks enqueued
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_tasks_enqueued_total",
			Help: "Total number of tasks enqueued",
		},
		[]string{"type", "trigger"}, // trigger: schedule, manual, api
	)

	// HTTPRequests counts API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "status"},
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "laptime_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordFit records a completed predictor fit
func RecordFit(regressor, status string, duration float64) {
	FitsTotal.WithLabelValues(regressor, status).Inc()
	FitDuration.WithLabelValues(regressor).Observe(duration)
}

// RecordModelMAE records the train and test error of the current model
func RecordModelMAE(train, test float64) {
	ModelMAE.WithLabelValues("train").Set(train)
	ModelMAE.WithLabelValues("test").Set(test)
}

// RecordRows records rows kept or dropped while cleaning
func RecordRows(operation, outcome string, count int) {
	RowsProcessed.WithLabelValues(operation, outcome).Add(float64(count))
}

// RecordPredictions records predicted laps
func RecordPredictions(operation string, count int) {
	PredictionsTotal.WithLabelValues(operation).Add(float64(count))
}

// RecordImputation records the fallback level an imputed column matched at
func RecordImputation(column, level string) {
	ImputationsTotal.WithLabelValues(column, level).Inc()
}

// RecordStoreOperation records a bundle store operation
func RecordStoreOperation(backend, operation, status string) {
	StoreOperations.WithLabelValues(backend, operation, status).Inc()
}

// RecordTaskComplete records task completion
func RecordTaskComplete(taskType, status string) {
	TasksTotal.WithLabelValues(taskType, status).Inc()
}

// RecordTaskEnqueued records task enqueue
func RecordTaskEnqueued(taskType, trigger string) {
	TasksEnqueued.WithLabelValues(taskType, trigger).Inc()
}

// RecordHTTPRequest records an API request
func RecordHTTPRequest(route, status string) {
	HTTPRequests.WithLabelValues(route, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
