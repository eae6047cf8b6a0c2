package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ethpandaops/laptime/pkg/observability"
)

// ErrAlreadyQueued is returned when a training task for the same model key is pending or running
var ErrAlreadyQueued = errors.New("training task already queued")

// QueueManager manages task queuing
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// NewQueueManager creates a new queue manager enqueuing on queue
func NewQueueManager(redisOpt *asynq.RedisClientOpt, queue string) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
		queue:     queue,
	}
}

// Queue returns the queue name tasks are enqueued on
func (q *QueueManager) Queue() string {
	return q.queue
}

// taskOptions returns the default options of a training task followed by opts
func (q *QueueManager) taskOptions(payload TrainPayload, opts ...asynq.Option) []asynq.Option {
	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(q.queue),
		asynq.MaxRetry(1),
		asynq.Timeout(2 * time.Hour),
	}

	return append(defaultOpts, opts...)
}

// EnqueueTraining enqueues a training task
func (q *QueueManager) EnqueueTraining(payload TrainPayload, opts ...asynq.Option) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeTrainModel, data)

	if _, err := q.client.Enqueue(task, q.taskOptions(payload, opts...)...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return fmt.Errorf("%w: %s", ErrAlreadyQueued, payload.ModelKey)
		}

		return err
	}

	observability.RecordTaskEnqueued(TypeTrainModel, payload.Trigger)

	return nil
}

// IsTaskPendingOrRunning checks if a training task for the payload's model key is pending or running
func (q *QueueManager) IsTaskPendingOrRunning(payload TrainPayload) (bool, error) {
	info, err := q.inspector.GetTaskInfo(q.queue, payload.UniqueID())
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// GetQueueStats returns queue statistics
func (q *QueueManager) GetQueueStats() (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(q.queue)
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}

	return q.client.Close()
}
