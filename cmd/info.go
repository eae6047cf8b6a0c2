package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/report"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var infoModel string

//nolint:gochecknoglobals // Cobra commands are typically global
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show model metrics, known inputs and feature importance",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoModel, "model", "", "model key (default is the configured model key)")
}

func runInfo(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := loadModel(cmd.Context(), config, infoModel)
	if err != nil {
		return err
	}

	info, err := modelInfo(p)
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	return renderer.Info(cmd.OutOrStdout(), info)
}

func modelInfo(p *predictor.Predictor) (*report.Info, error) {
	info := &report.Info{}

	var err error

	if info.ModelID, err = p.ModelID(); err != nil {
		return nil, err
	}

	if info.Metrics, err = p.Metrics(); err != nil {
		return nil, err
	}

	if info.Drivers, err = p.KnownDrivers(); err != nil {
		return nil, err
	}

	if info.Events, err = p.KnownEvents(); err != nil {
		return nil, err
	}

	if info.Compounds, err = p.KnownCompounds(); err != nil {
		return nil, err
	}

	if info.Importances, err = p.FeatureImportance(10); err != nil {
		return nil, err
	}

	if len(info.Importances) > 0 {
		info.MaxImportance = info.Importances[0].Score
	}

	return info, nil
}
