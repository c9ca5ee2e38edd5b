package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"fbhash/internal/codec"
	"fbhash/internal/corpus"
	"fbhash/internal/service"
	"fbhash/internal/source"
	"fbhash/internal/summarizer"
	"fbhash/internal/tui"
)

var (
	corpusOutput   string
	corpusProgress bool
)

var corpusCmd = &cobra.Command{
	Use:   "corpus DIR...",
	Short: "Build a corpus model",
	Long: `Walks every directory and records in how many files each chunk occurs.
The resulting model is required to hash, index and query files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCorpus,
}

func init() {
	corpusCmd.Flags().StringVarP(&corpusOutput, "output", "o", "model.fbm", "model output file")
	corpusCmd.Flags().BoolVar(&corpusProgress, "progress", false, "show a progress bar")
	rootCmd.AddCommand(corpusCmd)
}

func runCorpus(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	model, report, err := buildModel(cmd, svc, args, corpusProgress)
	if err != nil {
		return fmt.Errorf("corpus build failed: %w", err)
	}
	printFailures(cmd, report)
	if err := codec.WriteModelFile(corpusOutput, model, codecOptions()); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	cmd.Println(summarizer.Summarize(model, 0).String())
	cmd.Printf("model %s written to %s\n", model.ID(), corpusOutput)
	return nil
}

func buildModel(cmd *cobra.Command, svc *service.HashService, roots []string, progress bool) (*corpus.Model, corpus.Report, error) {
	ctx := cmd.Context()
	if !progress || !isTerminal(cmd.OutOrStdout()) {
		return svc.BuildCorpus(ctx, source.Walk(roots...), nil)
	}
	docs := slices.Collect(source.Walk(roots...))
	var (
		model  *corpus.Model
		report corpus.Report
	)
	err := withProgress(cmd, "Building corpus model", len(docs), func(ctx context.Context, onFile func(corpus.FileResult)) error {
		var err error
		model, report, err = svc.BuildCorpus(ctx, slices.Values(docs), onFile)
		return err
	})
	return model, report, err
}

func withProgress(cmd *cobra.Command, title string, total int, work func(context.Context, func(corpus.FileResult)) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	return tui.RunProgress(cmd.OutOrStdout(), title, total, cancel, func(onFile func(corpus.FileResult)) error {
		return work(ctx, onFile)
	})
}

func printFailures(cmd *cobra.Command, report corpus.Report) {
	for _, f := range report.Failures {
		cmd.PrintErrf("warning: %s\n", f.Error())
	}
}
