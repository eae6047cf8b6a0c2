package tasks

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/laptime/internal/testutil"
)

func newTestQueueManager(t *testing.T) *QueueManager {
	t.Helper()

	mr := testutil.NewMiniredis(t)
	qm := NewQueueManager(&asynq.RedisClientOpt{Addr: mr.Addr()}, "laptime:training")

	t.Cleanup(func() {
		if err := qm.Close(); err != nil {
			t.Logf("failed to close queue manager: %v", err)
		}
	})

	return qm
}

func optionValues(opts []asynq.Option) map[asynq.OptionType]interface{} {
	values := make(map[asynq.OptionType]interface{}, len(opts))
	for _, o := range opts {
		values[o.Type()] = o.Value()
	}

	return values
}

func TestQueueManager_TaskOptions(t *testing.T) {
	qm := newTestQueueManager(t)
	assert.Equal(t, "laptime:training", qm.Queue())

	values := optionValues(qm.taskOptions(TrainPayload{ModelKey: "latest"}))

	assert.Equal(t, "model:train:latest", values[asynq.TaskIDOpt])
	assert.Equal(t, "laptime:training", values[asynq.QueueOpt])
	assert.Equal(t, 1, values[asynq.MaxRetryOpt])
	assert.Equal(t, 2*time.Hour, values[asynq.TimeoutOpt])

	// caller options are applied last and win
	values = optionValues(qm.taskOptions(TrainPayload{ModelKey: "latest"}, asynq.MaxRetry(5)))
	assert.Equal(t, 5, values[asynq.MaxRetryOpt])
}

func TestQueueManager_EnqueueTrainingValidates(t *testing.T) {
	qm := newTestQueueManager(t)

	require.ErrorIs(t, qm.EnqueueTraining(TrainPayload{}), ErrModelKeyRequired)
}
