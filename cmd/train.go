package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/report"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	trainCSV string
	trainOut string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a lap time model on historical laps",
	Long: `Train cleans the historical laps, engineers features, fits the
regressor on a group split by event and saves the model bundle.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&trainCSV, "csv", "", "CSV of historical laps (default is the configured data source)")
	trainCmd.Flags().StringVar(&trainOut, "out", "", "model key to save to (default is the configured model key)")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	raw, err := loadLaps(cmd.Context(), config, trainCSV)
	if err != nil {
		return err
	}

	p, err := predictor.New(logger, config.Predictor)
	if err != nil {
		return err
	}

	if err := p.Fit(cmd.Context(), raw); err != nil {
		return err
	}

	bundle, err := p.Bundle()
	if err != nil {
		return err
	}

	st, release, err := openStore(config)
	if err != nil {
		return err
	}
	defer release()

	key := trainOut
	if key == "" {
		key = config.Model.Key
	}

	if err := st.Save(cmd.Context(), key, bundle); err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	top := bundle.Importances
	if len(top) > 10 {
		top = top[:10]
	}

	out := cmd.OutOrStdout()
	if err := renderer.Training(out, &report.Training{Metrics: bundle.Metrics, Importances: top}); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "\nModel saved to %s\n", key)

	return err
}
