// Package store opens the configured digest database backend.
package store

import (
	"fmt"
	"strings"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
	"fbhash/internal/store/memory"
	"fbhash/internal/store/sqlite"
)

// Backend names accepted by Open.
const (
	TypeFile   = "file"
	TypeSQLite = "sqlite"
)

// Open returns the digest database at path. The file backend keeps every
// digest in memory and writes the database file back on Close if anything
// changed.
func Open(kind, path string, opts codec.Options) (domain.Storage, error) {
	switch strings.ToLower(kind) {
	case TypeFile, "":
		s := memory.NewStorage()
		if err := s.Load(path); err != nil {
			return nil, err
		}
		return &fileStorage{Storage: s, path: path, opts: opts}, nil
	case TypeSQLite:
		s, err := sqlite.NewStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", kind)
	}
}

type fileStorage struct {
	*memory.Storage
	path  string
	opts  codec.Options
	dirty bool
}

func (f *fileStorage) Init(scheme domain.Scheme, model string) error {
	f.dirty = true
	return f.Storage.Init(scheme, model)
}

func (f *fileStorage) Upsert(records []domain.Record) error {
	f.dirty = true
	return f.Storage.Upsert(records)
}

func (f *fileStorage) Clear() error {
	f.dirty = true
	return f.Storage.Clear()
}

func (f *fileStorage) Close() error {
	if !f.dirty {
		return nil
	}
	if err := f.Save(f.path, f.opts); err != nil {
		return err
	}
	f.dirty = false
	return nil
}
