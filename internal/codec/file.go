package codec

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"

	"fbhash/internal/corpus"
	"fbhash/internal/domain"
)

// ReadModelFile loads a model from path.
func ReadModelFile(path string) (*corpus.Model, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeModel(bytes.NewReader(data))
}

// WriteModelFile atomically replaces path with m.
func WriteModelFile(path string, m *corpus.Model, opts Options) error {
	return writeFile(path, func(w *bufio.Writer) error { return EncodeModel(w, m, opts) })
}

// ReadDigestFile loads a digest from path.
func ReadDigestFile(path string) (domain.Digest, error) {
	data, err := readFile(path)
	if err != nil {
		return domain.Digest{}, err
	}
	return DecodeDigest(bytes.NewReader(data))
}

// WriteDigestFile atomically replaces path with d.
func WriteDigestFile(path string, d domain.Digest, opts Options) error {
	return writeFile(path, func(w *bufio.Writer) error { return EncodeDigest(w, d, opts) })
}

// ReadDatabaseFile loads a digest database from path.
func ReadDatabaseFile(path string) (Database, error) {
	data, err := readFile(path)
	if err != nil {
		return Database{}, err
	}
	return DecodeDatabase(bytes.NewReader(data))
}

// WriteDatabaseFile atomically replaces path with db.
func WriteDatabaseFile(path string, db Database, opts Options) error {
	return writeFile(path, func(w *bufio.Writer) error { return EncodeDatabase(w, db, opts) })
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.FileError{Path: path, Err: err}
	}
	return data, nil
}

func writeFile(path string, fill func(*bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.FileError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return &domain.FileError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return &domain.FileError{Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return &domain.FileError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.FileError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &domain.FileError{Path: path, Err: err}
	}
	return nil
}

// DetectFile reports which kind of file path holds.
func DetectFile(path string) (Kind, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return Detect(data)
}
