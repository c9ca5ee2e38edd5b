// Package chunkmap provides a counting map keyed by chunk identifiers.
//
// Chunk identifiers are already uniformly distributed hash values, so the
// map uses the low bits of the key as the slot index instead of hashing the
// key again. Keys are stored in a flat slice with linear probing.
package chunkmap

import (
	"iter"
	"slices"

	"fbhash/internal/domain"
)

const minCapacity = 16

// Map counts occurrences per ChunkID. It is not safe for concurrent writes.
type Map struct {
	keys    []domain.ChunkID
	vals    []uint64
	mask    uint64
	size    int
	hasZero bool
	zero    uint64
}

// New returns a map sized for about hint keys.
func New(hint int) *Map {
	c := minCapacity
	for c*3/4 < hint {
		c <<= 1
	}
	return &Map{
		keys: make([]domain.ChunkID, c),
		vals: make([]uint64, c),
		mask: uint64(c - 1),
	}
}

// Len returns the number of distinct keys.
func (m *Map) Len() int {
	if m.hasZero {
		return m.size + 1
	}
	return m.size
}

// Add increments the count of id by delta.
func (m *Map) Add(id domain.ChunkID, delta uint64) {
	if id == 0 {
		m.hasZero = true
		m.zero += delta
		return
	}
	if (m.size+1)*4 > len(m.keys)*3 {
		m.grow()
	}
	i := uint64(id) & m.mask
	for {
		switch m.keys[i] {
		case id:
			m.vals[i] += delta
			return
		case 0:
			m.keys[i] = id
			m.vals[i] = delta
			m.size++
			return
		}
		i = (i + 1) & m.mask
	}
}

// Insert adds id with a count of one if it is absent. It reports whether
// the key was new.
func (m *Map) Insert(id domain.ChunkID) bool {
	if m.Has(id) {
		return false
	}
	m.Add(id, 1)
	return true
}

// Get returns the count for id.
func (m *Map) Get(id domain.ChunkID) (uint64, bool) {
	if id == 0 {
		return m.zero, m.hasZero
	}
	i := uint64(id) & m.mask
	for {
		switch m.keys[i] {
		case id:
			return m.vals[i], true
		case 0:
			return 0, false
		}
		i = (i + 1) & m.mask
	}
}

// Has reports whether id is present.
func (m *Map) Has(id domain.ChunkID) bool {
	_, ok := m.Get(id)
	return ok
}

// All yields every key and its count in slot order.
func (m *Map) All() iter.Seq2[domain.ChunkID, uint64] {
	return func(yield func(domain.ChunkID, uint64) bool) {
		if m.hasZero && !yield(0, m.zero) {
			return
		}
		for i, k := range m.keys {
			if k != 0 && !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

// SortedKeys returns the keys in ascending order.
func (m *Map) SortedKeys() []domain.ChunkID {
	out := make([]domain.ChunkID, 0, m.Len())
	for k := range m.All() {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Merge adds every count of other into m.
func (m *Map) Merge(other *Map) {
	for k, v := range other.All() {
		m.Add(k, v)
	}
}

// Reset empties the map but keeps its capacity.
func (m *Map) Reset() {
	clear(m.keys)
	clear(m.vals)
	m.size = 0
	m.hasZero = false
	m.zero = 0
}

func (m *Map) grow() {
	keys, vals := m.keys, m.vals
	c := len(keys) << 1
	m.keys = make([]domain.ChunkID, c)
	m.vals = make([]uint64, c)
	m.mask = uint64(c - 1)
	m.size = 0
	for i, k := range keys {
		if k == 0 {
			continue
		}
		j := uint64(k) & m.mask
		for m.keys[j] != 0 {
			j = (j + 1) & m.mask
		}
		m.keys[j] = k
		m.vals[j] = vals[i]
		m.size++
	}
}
