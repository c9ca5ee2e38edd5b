// Package source enumerates files on disk as lazily loaded documents.
package source

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"fbhash/internal/domain"
)

// File returns a document that reads path when loaded.
func File(path string) domain.Document {
	return domain.Document{Path: path, Load: func() ([]byte, error) { return os.ReadFile(path) }}
}

// Walk yields every regular file below roots in lexical order. Symbolic
// links are not followed. Entries that cannot be visited are yielded as
// documents whose Load returns the traversal error.
func Walk(roots ...string) iter.Seq[domain.Document] {
	return func(yield func(domain.Document) bool) {
		for _, root := range roots {
			stop := false
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if !yield(failed(path, err)) {
						stop = true
						return filepath.SkipAll
					}
					if d != nil && d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if !d.Type().IsRegular() {
					return nil
				}
				if !yield(File(path)) {
					stop = true
					return filepath.SkipAll
				}
				return nil
			})
			if stop {
				return
			}
			if err != nil && !yield(failed(root, err)) {
				return
			}
		}
	}
}

func failed(path string, err error) domain.Document {
	return domain.Document{Path: path, Load: func() ([]byte, error) { return nil, err }}
}
