package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"fbhash/internal/codec"
	"fbhash/internal/corpus"
	"fbhash/internal/domain"
	"fbhash/internal/service"
	"fbhash/internal/source"
	"fbhash/internal/store"
)

var (
	indexModel    string
	indexBuild    bool
	indexProgress bool
	dbPath        string
	dbType        string
)

var indexCmd = &cobra.Command{
	Use:   "index DIR...",
	Short: "Add file digests to a digest database",
	Long: `Digests every file below the given directories and stores the results
in a digest database. With --build the corpus model is first built over the
same directories and written to --model. A database created for another
model is reset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexModel, "model", "m", "model.fbm", "corpus model file")
	indexCmd.Flags().BoolVar(&indexBuild, "build", false, "build the corpus model from the same directories first")
	indexCmd.Flags().BoolVar(&indexProgress, "progress", false, "show a progress bar")
	addDatabaseFlags(indexCmd)
	rootCmd.AddCommand(indexCmd)
}

func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dbPath, "database", "d", "", "digest database path (default from config)")
	cmd.Flags().StringVar(&dbType, "db-type", "", "digest database backend: file or sqlite (default from config)")
}

// openStore opens the configured digest database and a service bound to it.
// The caller must close the store.
func openStore() (*service.HashService, domain.Storage, error) {
	path, kind := cfg.Database.Path, cfg.Database.Type
	if dbPath != "" {
		path = dbPath
	}
	if dbType != "" {
		kind = dbType
	}
	st, err := store.Open(kind, path, codecOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open digest database: %w", err)
	}
	svc, err := service.NewHashService(cfg.Scheme(), st, cfg.Corpus.Workers)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}

func runIndex(cmd *cobra.Command, args []string) (err error) {
	svc, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()

	var model *corpus.Model
	if indexBuild {
		var report corpus.Report
		model, report, err = buildModel(cmd, svc, args, indexProgress)
		if err != nil {
			return fmt.Errorf("corpus build failed: %w", err)
		}
		printFailures(cmd, report)
		if err := codec.WriteModelFile(indexModel, model, codecOptions()); err != nil {
			return fmt.Errorf("failed to write model: %w", err)
		}
		cmd.Printf("model %s written to %s\n", model.ID(), indexModel)
	} else {
		model, err = codec.ReadModelFile(indexModel)
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	}

	var report corpus.Report
	if indexProgress && isTerminal(cmd.OutOrStdout()) {
		docs := slices.Collect(source.Walk(args...))
		err = withProgress(cmd, "Indexing", len(docs), func(ctx context.Context, onFile func(corpus.FileResult)) error {
			var err error
			report, err = svc.Index(ctx, model, slices.Values(docs), onFile)
			return err
		})
	} else {
		report, err = svc.Index(cmd.Context(), model, source.Walk(args...), nil)
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	printFailures(cmd, report)
	cmd.Printf("indexed %d files (%d failed)\n", report.Processed, len(report.Failures))
	return nil
}
