package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
)

func TestOpen_FileBackendPersistsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.fbdb")
	s, err := Open(TypeFile, path, codec.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoFileExists(t, path)

	s, err = Open(TypeFile, path, codec.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Init(domain.DefaultScheme(), "m"))
	d := domain.Digest{Scheme: domain.DefaultScheme(), Model: "m", Entries: []domain.Entry{{ID: 4, Weight: 1}}}
	require.NoError(t, s.Upsert([]domain.Record{{Path: "x", Digest: d}}))
	require.NoError(t, s.Close())
	assert.FileExists(t, path)

	reopened, err := Open(TypeFile, path, codec.Options{})
	require.NoError(t, err)
	records, err := reopened.Records()
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{Path: "x", Digest: d}}, records)
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := Open("SQLite", path, codec.Options{})
	require.NoError(t, err)
	defer s.Close()
	_, _, err = s.Meta()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("qdrant", "x", codec.Options{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.fbdb")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))
	_, err = Open(TypeFile, path, codec.Options{})
	assert.ErrorIs(t, err, domain.ErrFormat)
}
