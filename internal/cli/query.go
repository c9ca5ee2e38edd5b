package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
	"fbhash/internal/summarizer"
	"fbhash/internal/tui"
)

var (
	queryModel       string
	queryLimit       int
	queryJSON        bool
	queryInteractive bool
)

var queryCmd = &cobra.Command{
	Use:   "query FILE...",
	Short: "Find the most similar files in a digest database",
	Long: `Digests each file and ranks the stored digests by similarity to it.
--interactive opens a browser where further files can be looked up.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", "model.fbm", "corpus model file")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryInteractive, "interactive", false, "browse results interactively")
	addDatabaseFlags(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

type queryResult struct {
	Query   string        `json:"query"`
	Results []resultEntry `json:"results"`
}

type resultEntry struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

func runQuery(cmd *cobra.Command, args []string) (err error) {
	if len(args) == 0 && !queryInteractive {
		return errors.New("requires at least 1 file unless --interactive is set")
	}
	topK := queryLimit
	if topK <= 0 {
		topK = cfg.Query.TopK
	}
	model, err := codec.ReadModelFile(queryModel)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	svc, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()
	if err := svc.Verify(model); err != nil {
		return fmt.Errorf("digest database does not match model: %w", err)
	}

	if queryInteractive {
		var first string
		var results []domain.SearchResult
		if len(args) > 0 {
			first = args[0]
			if results, err = svc.QueryFile(model, first, topK); err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
		}
		summary := summarizer.Summarize(model, 0).String()
		m := tui.New(svc, model, topK, summary, first, results)
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}

	all := make([]queryResult, 0, len(args))
	for _, path := range args {
		results, err := svc.QueryFile(model, path, topK)
		if err != nil {
			return fmt.Errorf("query %s failed: %w", path, err)
		}
		qr := queryResult{Query: path, Results: make([]resultEntry, 0, len(results))}
		for _, r := range results {
			qr.Results = append(qr.Results, resultEntry{Path: r.Path, Score: r.Score.Float64()})
		}
		all = append(all, qr)
	}
	if queryJSON {
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for _, qr := range all {
		outputQueryTable(cmd, qr)
	}
	return nil
}

func outputQueryTable(cmd *cobra.Command, qr queryResult) {
	cmd.Printf("%s:\n", qr.Query)
	if len(qr.Results) == 0 {
		cmd.Println("  No results found.")
		return
	}
	for i, r := range qr.Results {
		cmd.Printf("  [%d] %s (%.6f)\n", i+1, r.Path, r.Score)
	}
}
