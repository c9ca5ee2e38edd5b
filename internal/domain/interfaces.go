package domain

import (
	"iter"
	"sort"
)

// ChunkID identifies a fixed-size byte window. It is already hash-derived.
type ChunkID uint64

// Document represents a single input file. Content is read lazily so that
// large corpora never sit in memory at once.
type Document struct {
	Path string
	Load func() ([]byte, error)
}

// NewDocument wraps content that is already in memory.
func NewDocument(path string, content []byte) Document {
	return Document{Path: path, Load: func() ([]byte, error) { return content, nil }}
}

// Entry is one non-zero weight of a digest.
type Entry struct {
	ID     ChunkID
	Weight float64
}

// Digest is the normalized sparse weight vector of one file.
// Entries are sorted by ascending ID.
type Digest struct {
	Scheme  Scheme
	Model   string
	Entries []Entry
}

// Len returns the number of non-zero entries.
func (d Digest) Len() int { return len(d.Entries) }

// Empty reports whether the digest is the degenerate empty vector.
func (d Digest) Empty() bool { return len(d.Entries) == 0 }

// Weight returns the weight stored for id, or zero.
func (d Digest) Weight(id ChunkID) float64 {
	i := sort.Search(len(d.Entries), func(i int) bool { return d.Entries[i].ID >= id })
	if i < len(d.Entries) && d.Entries[i].ID == id {
		return d.Entries[i].Weight
	}
	return 0
}

// Record is a named digest kept in a digest database.
type Record struct {
	Path   string
	Digest Digest
}

// SearchResult represents a database record with a similarity score.
type SearchResult struct {
	Path  string
	Score Score
}

// Chunker turns byte content into a lazy sequence of chunk identifiers.
type Chunker interface {
	Scheme() Scheme
	Chunks(content []byte) iter.Seq[ChunkID]
}

// Storage persists named digests and supports ranked similarity search.
// Init discards any stored digests and binds the store to one scheme and
// corpus model.
type Storage interface {
	Init(scheme Scheme, model string) error
	Meta() (Scheme, string, error)
	Upsert(records []Record) error
	Search(query Digest, topK int) ([]SearchResult, error)
	Records() ([]Record, error)
	Clear() error
	Close() error
}
