package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/laps"
	"github.com/ethpandaops/laptime/pkg/report"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	predictCSV   string
	predictModel string
	predictOut   string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict lap times for the laps in a CSV",
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictCSV, "csv", "", "CSV of laps to predict")
	predictCmd.Flags().StringVar(&predictModel, "model", "", "model key (default is the configured model key)")
	predictCmd.Flags().StringVar(&predictOut, "out", "", "optional CSV to write the laps with a PredictedLapTime column to")
	_ = predictCmd.MarkFlagRequired("csv")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := loadModel(cmd.Context(), config, predictModel)
	if err != nil {
		return err
	}

	raw, err := laps.LoadCSV(predictCSV)
	if err != nil {
		return err
	}

	preds, err := p.Predict(raw)
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	if err := renderer.Predictions(cmd.OutOrStdout(), preds); err != nil {
		return err
	}

	if predictOut == "" {
		return nil
	}

	// laps dropped by cleaning get an empty prediction
	values := make([]float64, len(raw))
	for i := range values {
		values[i] = math.NaN()
	}

	for _, pred := range preds {
		values[pred.Source] = pred.LapTime
	}

	f, err := os.Create(predictOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", predictOut, err)
	}
	defer f.Close()

	if err := laps.WriteCSV(f, raw, "PredictedLapTime", values); err != nil {
		return err
	}

	logger.WithField("path", predictOut).Info("Wrote predictions")

	return nil
}
