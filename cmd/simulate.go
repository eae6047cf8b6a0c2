package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/report"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	simulateModel string
	simulateQuery imputer.Query
	simulateLaps  int
)

//nolint:gochecknoglobals // Cobra commands are typically global
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a stint from driver, team, event, compound and tyre age",
	Long: `Simulate imputes everything a stint cannot know in advance from the
training history, falling back to coarser groupings when the exact
combination was never seen, and predicts each lap of the stint.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateModel, "model", "", "model key (default is the configured model key)")
	simulateCmd.Flags().StringVar(&simulateQuery.Driver, "driver", "", "driver abbreviation, e.g. VER")
	simulateCmd.Flags().StringVar(&simulateQuery.Team, "team", "", "team name")
	simulateCmd.Flags().StringVar(&simulateQuery.Event, "event", "", "event name, e.g. \"Bahrain Grand Prix\"")
	simulateCmd.Flags().StringVar(&simulateQuery.Compound, "compound", "", "tyre compound, e.g. SOFT")
	simulateCmd.Flags().IntVar(&simulateQuery.TyreLife, "tyre-life", 1, "tyre age of the first lap")
	simulateCmd.Flags().IntVar(&simulateLaps, "laps", 5, "number of laps to simulate")

	for _, name := range []string{"driver", "team", "event", "compound"} {
		_ = simulateCmd.MarkFlagRequired(name)
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := loadModel(cmd.Context(), config, simulateModel)
	if err != nil {
		return err
	}

	sim, err := p.Simulate(simulateQuery, simulateLaps)
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	return renderer.Simulation(cmd.OutOrStdout(), sim)
}
