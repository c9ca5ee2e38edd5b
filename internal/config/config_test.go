package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScheme(), cfg.Scheme())
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fbhash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  window: 32\nweighting:\n  tf: log\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Chunker.Window)
	assert.Equal(t, domain.HashRabin, cfg.Chunker.Hash)
	assert.Equal(t, domain.TFLog, cfg.Weighting.TF)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fbhash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Database.Type = "sqlite"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FBHASH_WINDOW", "16")
	t.Setenv("FBHASH_HASH", "xxh64")
	t.Setenv("FBHASH_DATABASE_TYPE", "sqlite")
	t.Setenv("FBHASH_TOP_K", "")

	cfg := defaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 16, cfg.Chunker.Window)
	assert.Equal(t, domain.HashXXH64, cfg.Chunker.Hash)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 5, cfg.Query.TopK)

	t.Setenv("FBHASH_WORKERS", "many")
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"hash", func(c *AppConfig) { c.Chunker.Hash = "md5" }},
		{"window", func(c *AppConfig) { c.Chunker.Window = -1 }},
		{"tf", func(c *AppConfig) { c.Weighting.TF = "bm25" }},
		{"unseen", func(c *AppConfig) { c.Weighting.Unseen = "zero" }},
		{"workers", func(c *AppConfig) { c.Corpus.Workers = -2 }},
		{"format", func(c *AppConfig) { c.Output.Format = "xml" }},
		{"compression", func(c *AppConfig) { c.Output.Compression = "gzip" }},
		{"database", func(c *AppConfig) { c.Database.Type = "qdrant" }},
		{"top_k", func(c *AppConfig) { c.Query.TopK = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCodecOptions(t *testing.T) {
	cfg := defaultConfig()
	cfg.Output.Format = "json"
	cfg.Output.Compression = "lz4"
	opts, err := cfg.CodecOptions()
	require.NoError(t, err)
	assert.Equal(t, codec.Options{Encoding: codec.EncodingJSON, Compression: codec.CompressionLZ4}, opts)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", filepath.Join(dir, "home"))
	require.NoError(t, os.WriteFile("fbhash.yaml", []byte("query:\n  top_k: 9\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "fbhash.yaml", path)
	assert.Equal(t, 9, cfg.Query.TopK)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", filepath.Join(dir, "home"))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "home", ".config", "fbhash", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, defaultConfig(), cfg)
}
