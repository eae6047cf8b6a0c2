package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	r "github.com/ethpandaops/laptime/pkg/redis"
	"github.com/ethpandaops/laptime/pkg/tasks"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	enqueueModel  string
	enqueueEvents []string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a training task for the worker",
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.Flags().StringVar(&enqueueModel, "model", "", "model key to train (default is the configured model key)")
	enqueueCmd.Flags().StringSliceVar(&enqueueEvents, "events", nil, "only train on these events")
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opt, err := config.Redis.Options()
	if err != nil {
		return err
	}

	queues := tasks.NewQueueManager(r.NewAsynqRedisOptions(opt), config.Redis.PrefixQueue(tasks.QueueTraining))
	defer func() { _ = queues.Close() }()

	key := enqueueModel
	if key == "" {
		key = config.Model.Key
	}

	err = queues.EnqueueTraining(tasks.TrainPayload{
		ModelKey:   key,
		Events:     enqueueEvents,
		Trigger:    tasks.TriggerManual,
		EnqueuedAt: time.Now().UTC(),
	})

	switch {
	case errors.Is(err, tasks.ErrAlreadyQueued):
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Training of %s is already queued\n", key)
		return err
	case err != nil:
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Queued training of %s on %s\n", key, queues.Queue())

	return err
}
