package corpus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"fbhash/internal/chunkmap"
	"fbhash/internal/domain"
)

// identityKey separates model identities from any other BLAKE3 use.
var identityKey = blake3.Sum256([]byte("fbhash corpus model identity v1"))

// DFEntry is the document frequency of one chunk.
type DFEntry struct {
	ID domain.ChunkID
	DF uint64
}

// Model holds corpus-wide document frequencies. It is immutable once built
// and safe for concurrent readers.
type Model struct {
	scheme domain.Scheme
	n      uint64
	df     *chunkmap.Map

	once    sync.Once
	entries []DFEntry
	id      string
}

// NewModel validates entries and builds a model from them. It is used when
// loading a persisted model.
func NewModel(scheme domain.Scheme, n uint64, entries []DFEntry) (*Model, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("model covers no files")
	}
	df := chunkmap.New(len(entries))
	for _, e := range entries {
		if e.DF < 1 || e.DF > n {
			return nil, fmt.Errorf("chunk %d: df %d outside [1, %d]", e.ID, e.DF, n)
		}
		if df.Has(e.ID) {
			return nil, fmt.Errorf("chunk %d: duplicate entry", e.ID)
		}
		df.Add(e.ID, e.DF)
	}
	return &Model{scheme: scheme, n: n, df: df}, nil
}

func newModel(scheme domain.Scheme, n uint64, df *chunkmap.Map) *Model {
	return &Model{scheme: scheme, n: n, df: df}
}

// Scheme returns the chunking parameters the model was built with.
func (m *Model) Scheme() domain.Scheme { return m.scheme }

// N returns the number of files that contributed to the model.
func (m *Model) N() uint64 { return m.n }

// Len returns the number of distinct chunks.
func (m *Model) Len() int { return m.df.Len() }

// DF returns the document frequency of id, or 0 if it was never seen.
func (m *Model) DF(id domain.ChunkID) uint64 {
	v, _ := m.df.Get(id)
	return v
}

// Entries returns all document frequencies sorted by chunk ID.
func (m *Model) Entries() []DFEntry {
	m.init()
	return m.entries
}

// ID identifies the model by content: a keyed BLAKE3 hash over the scheme,
// N and every (chunk, df) pair in ID order.
func (m *Model) ID() string {
	m.init()
	return m.id
}

func (m *Model) init() {
	m.once.Do(func() {
		entries := make([]DFEntry, 0, m.df.Len())
		for id, df := range m.df.All() {
			entries = append(entries, DFEntry{ID: id, DF: df})
		}
		slices.SortFunc(entries, func(a, b DFEntry) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			}
			return 0
		})
		m.entries = entries

		hasher, err := blake3.NewKeyed(identityKey[:])
		if err != nil {
			panic("corpus: BLAKE3 keyed hash initialization failed: " + err.Error())
		}
		var buf [16]byte
		tag := m.scheme.String()
		binary.BigEndian.PutUint64(buf[:8], uint64(len(tag)))
		hasher.Write(buf[:8])
		hasher.Write([]byte(tag))
		binary.BigEndian.PutUint64(buf[:8], m.n)
		hasher.Write(buf[:8])
		for _, e := range entries {
			binary.BigEndian.PutUint64(buf[:8], uint64(e.ID))
			binary.BigEndian.PutUint64(buf[8:], e.DF)
			hasher.Write(buf[:])
		}
		m.id = hex.EncodeToString(hasher.Sum(nil))
	})
}
