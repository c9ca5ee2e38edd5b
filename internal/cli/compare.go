package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
	"fbhash/internal/service"
)

var compareModel string

var compareCmd = &cobra.Command{
	Use:   "compare A B",
	Short: "Compare two digests",
	Long: `Prints the cosine similarity of two digest files. With --model the
arguments are read as plain files and digested first.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareModel, "model", "m", "", "corpus model; treat arguments as plain files")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	a, b, err := loadPair(svc, args[0], args[1])
	if err != nil {
		return err
	}
	score, err := svc.Compare(a, b)
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}
	cmd.Printf("%s %.2f%%\n", score, score.Percent())
	return nil
}

func loadPair(svc *service.HashService, pathA, pathB string) (domain.Digest, domain.Digest, error) {
	if compareModel == "" {
		a, err := codec.ReadDigestFile(pathA)
		if err != nil {
			return domain.Digest{}, domain.Digest{}, err
		}
		b, err := codec.ReadDigestFile(pathB)
		return a, b, err
	}
	model, err := codec.ReadModelFile(compareModel)
	if err != nil {
		return domain.Digest{}, domain.Digest{}, fmt.Errorf("failed to load model: %w", err)
	}
	a, err := svc.HashFile(model, pathA)
	if err != nil {
		return domain.Digest{}, domain.Digest{}, err
	}
	b, err := svc.HashFile(model, pathB)
	return a, b, err
}
