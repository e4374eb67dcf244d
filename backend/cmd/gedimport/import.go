package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/app"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/importer"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/source"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

var importCmd = &cobra.Command{
	Use:   "import <file | s3://bucket/key>",
	Short: "Import a GEDCOM file",
	Long: `Import a GEDCOM file from the local filesystem or from S3.

With --dry-run the whole import is carried out and then rolled back, so the
summary shows what would have been written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("locale", "", "language of event type labels (en, nb)")
	importCmd.Flags().Bool("dry-run", false, "roll back instead of committing")
	importCmd.Flags().String("s3-region", "", "S3 region")
	importCmd.Flags().String("s3-endpoint", "", "S3-compatible endpoint, e.g. MinIO")

	v.BindPFlag("import.locale", importCmd.Flags().Lookup("locale"))
	v.BindPFlag("import.dry_run", importCmd.Flags().Lookup("dry-run"))
	v.BindPFlag("s3.region", importCmd.Flags().Lookup("s3-region"))
	v.BindPFlag("s3.endpoint", importCmd.Flags().Lookup("s3-endpoint"))
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loader, err := source.NewLoader(ctx, source.S3Params{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return err
	}

	opts := importer.Options{
		Locale: cfg.Locale,
		DryRun: cfg.DryRun,
		Logger: logger.Get(),
	}

	return app.WithStore(ctx, cfg, func(store graph.Store) error {
		result, err := app.ImportURI(ctx, store, loader, args[0], opts)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	})
}

func printResult(w io.Writer, r *importer.Result) {
	status := "committed"
	if r.DryRun {
		status = "dry run, rolled back"
	}
	fmt.Fprintf(w, "Import %s (%s) in %s\n", r.RunID, status, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  families:      %d\n", r.Families)
	fmt.Fprintf(w, "  persons:       %d created, %d reused\n", r.PersonsCreated, r.PersonsReused)
	fmt.Fprintf(w, "  sources:       %d created, %d reused\n", r.SourcesCreated, r.SourcesReused)
	fmt.Fprintf(w, "  places:        %d created, %d reused\n", r.PlacesCreated, r.PlacesReused)
	fmt.Fprintf(w, "  events:        %d\n", r.Events)
	fmt.Fprintf(w, "  relationships: %d\n", r.Relationships)
}
