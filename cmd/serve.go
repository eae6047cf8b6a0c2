package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/engine"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var serveWithWorker bool

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lap time API",
	Long: `Serve exposes predictions and simulations of the stored model over HTTP.
With --worker it also runs the training worker in process, and the API
switches to each freshly trained model.`,
	RunE: runServe,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the training worker",
	Long:  `The worker trains models from queued tasks and, when a schedule is configured, enqueues retraining periodically.`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	serveCmd.Flags().BoolVar(&serveWithWorker, "worker", false, "also run the training worker")
}

func runServe(cmd *cobra.Command, _ []string) error {
	return runService(cmd, engine.Components{API: true, Worker: serveWithWorker})
}

func runWorker(cmd *cobra.Command, _ []string) error {
	return runService(cmd, engine.Components{Worker: true})
}

func runService(cmd *cobra.Command, components engine.Components) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded")

	svc, err := engine.NewService(logger, config, components)
	if err != nil {
		return err
	}

	if err := svc.Start(cmd.Context()); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	return svc.Stop()
}
