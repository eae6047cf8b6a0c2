package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/laps"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	evaluateCSV   string
	evaluateModel string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report the mean absolute error of a model on labelled laps",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evaluateCSV, "csv", "", "CSV of laps with actual lap times")
	evaluateCmd.Flags().StringVar(&evaluateModel, "model", "", "model key (default is the configured model key)")
	_ = evaluateCmd.MarkFlagRequired("csv")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := loadModel(cmd.Context(), config, evaluateModel)
	if err != nil {
		return err
	}

	raw, err := laps.LoadCSV(evaluateCSV)
	if err != nil {
		return err
	}

	mae, err := p.Evaluate(raw)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "MAE: %.3f s\n", mae)

	return err
}
