package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainPayload_UniqueID(t *testing.T) {
	tests := []struct {
		name     string
		payload  TrainPayload
		expected string
	}{
		{
			name:     "plain key",
			payload:  TrainPayload{ModelKey: "latest"},
			expected: "model:train:latest",
		},
		{
			name:     "events do not change the id",
			payload:  TrainPayload{ModelKey: "latest", Events: []string{"Monaco Grand Prix"}},
			expected: "model:train:latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.payload.UniqueID())
		})
	}
}

func TestTrainPayload_Validate(t *testing.T) {
	require.NoError(t, TrainPayload{ModelKey: "latest"}.Validate())
	require.ErrorIs(t, TrainPayload{}.Validate(), ErrModelKeyRequired)
}
