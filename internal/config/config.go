package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
)

// ChunkerConfig selects the window hash and length.
type ChunkerConfig struct {
	Hash   string `yaml:"hash"`
	Window int    `yaml:"window"`
}

// WeightingConfig selects the term frequency mode and unseen chunk policy.
type WeightingConfig struct {
	TF     string `yaml:"tf"`
	Unseen string `yaml:"unseen"`
}

// CorpusConfig controls corpus model builds.
type CorpusConfig struct {
	Workers int `yaml:"workers"`
}

// OutputConfig controls how files are written.
type OutputConfig struct {
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
}

// DatabaseConfig selects the digest database backend.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// QueryConfig sets ranked search defaults.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Weighting WeightingConfig `yaml:"weighting"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Output    OutputConfig    `yaml:"output"`
	Database  DatabaseConfig  `yaml:"database"`
	Query     QueryConfig     `yaml:"query"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./fbhash.yaml first, then ~/.config/fbhash/config.yaml.
// If neither exists, it writes defaults to ~/.config/fbhash/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "fbhash.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from FBHASH_* environment variables.
func (c *AppConfig) ApplyEnv() error {
	str := map[string]*string{
		"FBHASH_HASH":          &c.Chunker.Hash,
		"FBHASH_TF":            &c.Weighting.TF,
		"FBHASH_UNSEEN":        &c.Weighting.Unseen,
		"FBHASH_FORMAT":        &c.Output.Format,
		"FBHASH_COMPRESSION":   &c.Output.Compression,
		"FBHASH_DATABASE_TYPE": &c.Database.Type,
		"FBHASH_DATABASE":      &c.Database.Path,
		"FBHASH_LOG_LEVEL":     &c.Log.Level,
		"FBHASH_LOG_FORMAT":    &c.Log.Format,
	}
	for key, field := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
	ints := map[string]*int{
		"FBHASH_WINDOW":  &c.Chunker.Window,
		"FBHASH_WORKERS": &c.Corpus.Workers,
		"FBHASH_TOP_K":   &c.Query.TopK,
	}
	for key, field := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*field = n
	}
	return nil
}

// Validate checks that every setting names a supported value.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Scheme().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Corpus.Workers < 0 {
		errs = append(errs, fmt.Errorf("corpus.workers must not be negative"))
	}
	if _, err := codec.ParseEncoding(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.ParseCompression(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Database.Type) {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database type %q", c.Database.Type))
	}
	if c.Query.TopK < 1 {
		errs = append(errs, fmt.Errorf("query.top_k must be positive"))
	}
	return errors.Join(errs...)
}

// Scheme returns the digest scheme described by the config.
func (c *AppConfig) Scheme() domain.Scheme {
	return domain.Scheme{
		Version: domain.SchemeVersion,
		Hash:    c.Chunker.Hash,
		Window:  c.Chunker.Window,
		TF:      c.Weighting.TF,
		Unseen:  c.Weighting.Unseen,
	}
}

// CodecOptions returns the file encoding options described by the config.
func (c *AppConfig) CodecOptions() (codec.Options, error) {
	enc, err := codec.ParseEncoding(c.Output.Format)
	if err != nil {
		return codec.Options{}, err
	}
	comp, err := codec.ParseCompression(c.Output.Compression)
	if err != nil {
		return codec.Options{}, err
	}
	return codec.Options{Encoding: enc, Compression: comp}, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "fbhash", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Chunker:   ChunkerConfig{Hash: domain.HashRabin, Window: domain.DefaultWindow},
		Weighting: WeightingConfig{TF: domain.TFRaw, Unseen: domain.UnseenRare},
		Output:    OutputConfig{Format: "cbor", Compression: "zstd"},
		Database:  DatabaseConfig{Type: "file", Path: "fbhash.fbdb"},
		Query:     QueryConfig{TopK: 5},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Chunker.Hash == "" {
		cfg.Chunker.Hash = def.Chunker.Hash
	}
	if cfg.Chunker.Window == 0 {
		cfg.Chunker.Window = def.Chunker.Window
	}
	if cfg.Weighting.TF == "" {
		cfg.Weighting.TF = def.Weighting.TF
	}
	if cfg.Weighting.Unseen == "" {
		cfg.Weighting.Unseen = def.Weighting.Unseen
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = def.Output.Format
	}
	if cfg.Output.Compression == "" {
		cfg.Output.Compression = def.Output.Compression
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = def.Database.Type
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = def.Query.TopK
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
