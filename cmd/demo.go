package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/imputer"
	"github.com/ethpandaops/laptime/pkg/predictor"
	"github.com/ethpandaops/laptime/pkg/report"
)

// demoScenario is one stint simulated by the demo command
type demoScenario struct {
	Query imputer.Query
	Laps  int
}

// demoScenarios cover a spread of teams, circuits and compounds
//
//nolint:gochecknoglobals // Fixed demo inputs
var demoScenarios = []demoScenario{
	{Query: imputer.Query{Driver: "VER", Team: "Red Bull Racing", Event: "Bahrain Grand Prix", Compound: "MEDIUM", TyreLife: 1}, Laps: 5},
	{Query: imputer.Query{Driver: "HAM", Team: "Mercedes", Event: "British Grand Prix", Compound: "SOFT", TyreLife: 8}, Laps: 5},
	{Query: imputer.Query{Driver: "LEC", Team: "Ferrari", Event: "Monaco Grand Prix", Compound: "SOFT", TyreLife: 1}, Laps: 5},
	{Query: imputer.Query{Driver: "NOR", Team: "McLaren", Event: "Italian Grand Prix", Compound: "HARD", TyreLife: 15}, Laps: 5},
	{Query: imputer.Query{Driver: "ALO", Team: "Aston Martin", Event: "Spanish Grand Prix", Compound: "MEDIUM", TyreLife: 10}, Laps: 5},
}

//nolint:gochecknoglobals // Cobra flags are typically global
var demoModel string

//nolint:gochecknoglobals // Cobra commands are typically global
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Simulate a handful of example stints",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVar(&demoModel, "model", "", "model key (default is the configured model key)")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := loadModel(cmd.Context(), config, demoModel)
	if err != nil {
		return err
	}

	sims, err := simulateAll(p, demoScenarios)
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	return renderer.Demo(cmd.OutOrStdout(), sims)
}

func simulateAll(p *predictor.Predictor, scenarios []demoScenario) ([]*predictor.Simulation, error) {
	sims := make([]*predictor.Simulation, 0, len(scenarios))

	for _, s := range scenarios {
		sim, err := p.Simulate(s.Query, s.Laps)
		if err != nil {
			return nil, err
		}

		sims = append(sims, sim)
	}

	return sims, nil
}
