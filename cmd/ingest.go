package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/engine"
	"github.com/ethpandaops/laptime/pkg/lapdb"
	"github.com/ethpandaops/laptime/pkg/laps"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	ingestCSV string
	ingestDB  string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a CSV of laps into the SQLite lap database",
	Long: `Ingest appends the laps of a CSV export to the lap database, skipping
laps that are already stored. Train from it with data.kind set to sqlite.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestCSV, "csv", "", "CSV of laps to ingest")
	ingestCmd.Flags().StringVar(&ingestDB, "db", "", "lap database (default is data.path when data.kind is sqlite, else laps.db)")
	_ = ingestCmd.MarkFlagRequired("csv")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := ingestDB
	if path == "" {
		path = "laps.db"
		if config.Data.Kind == engine.DataKindSQLite {
			path = config.Data.Path
		}
	}

	raw, err := laps.LoadCSV(ingestCSV)
	if err != nil {
		return err
	}

	db, err := lapdb.Open(logger, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	inserted, err := db.InsertLaps(cmd.Context(), raw)
	if err != nil {
		return err
	}

	total, err := db.Count(cmd.Context())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d new laps (%d duplicates), %d laps stored in %s\n",
		inserted, len(raw)-inserted, total, path)

	return err
}
