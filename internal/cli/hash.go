package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"fbhash/internal/codec"
)

var (
	hashModel  string
	hashOutput string
)

var hashCmd = &cobra.Command{
	Use:   "hash FILE...",
	Short: "Compute digests of files",
	Long: `Computes the digest of every file against a corpus model. Each digest is
written next to its file with a .fbd suffix unless --output is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringVarP(&hashModel, "model", "m", "model.fbm", "corpus model file")
	hashCmd.Flags().StringVarP(&hashOutput, "output", "o", "", "digest output file (single input only)")
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	if hashOutput != "" && len(args) > 1 {
		return errors.New("--output requires a single input file")
	}
	model, err := codec.ReadModelFile(hashModel)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	svc, err := newService()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range args {
		out := hashOutput
		if out == "" {
			out = path + ".fbd"
		}
		d, err := svc.HashFile(model, path)
		if err == nil {
			err = codec.WriteDigestFile(out, d, codecOptions())
		}
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("hash failed")
			failed++
			continue
		}
		cmd.Printf("%s -> %s (%d chunks)\n", path, out, d.Len())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
