// Package cli implements the fbhash command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fbhash/internal/codec"
	"fbhash/internal/config"
	"fbhash/internal/logger"
	"fbhash/internal/service"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgPath     string
	logLevel    string
	format      string
	compression string

	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "fbhash",
	Short: "Feature-based similarity digests for files",
	Long: `fbhash builds a document frequency model over a reference corpus and
uses it to compute TF-IDF weighted digests of fixed-size byte chunks.
Digests are compared by cosine similarity, so files that share rare
content score high even when they differ elsewhere.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./fbhash.yaml or ~/.config/fbhash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "output encoding (cbor, json)")
	rootCmd.PersistentFlags().StringVar(&compression, "compression", "", "output compression (none, lz4, zstd)")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if compression != "" {
		cfg.Output.Compression = compression
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return logger.Init(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
}

func newService() (*service.HashService, error) {
	return service.NewHashService(cfg.Scheme(), nil, cfg.Corpus.Workers)
}

func codecOptions() codec.Options {
	// validated in setup
	opts, _ := cfg.CodecOptions()
	return opts
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
