// Package chunker cuts byte content into overlapping fixed-size windows and
// reduces each window to a domain.ChunkID.
package chunker

import (
	"fmt"

	"fbhash/internal/chunkmap"
	"fbhash/internal/domain"
)

// New returns the chunker implementing scheme.Hash.
func New(scheme domain.Scheme) (domain.Chunker, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	switch scheme.Hash {
	case domain.HashRabin:
		return NewRabinChunker(scheme), nil
	case domain.HashXXH64:
		return NewXXH64Chunker(scheme), nil
	default:
		return nil, fmt.Errorf("unknown chunk hash: %s", scheme.Hash)
	}
}

// FeatureSet holds the term frequency of every chunk of one file.
type FeatureSet struct {
	counts *chunkmap.Map
	total  uint64
}

// Features folds the chunks of content into a FeatureSet in one pass.
func Features(c domain.Chunker, content []byte) *FeatureSet {
	fs := &FeatureSet{counts: chunkmap.New(estimate(len(content)))}
	for id := range c.Chunks(content) {
		fs.counts.Add(id, 1)
		fs.total++
	}
	return fs
}

// Len returns the number of distinct chunks.
func (fs *FeatureSet) Len() int { return fs.counts.Len() }

// Total returns the number of chunks including repeats.
func (fs *FeatureSet) Total() uint64 { return fs.total }

// TF returns the term frequency of id.
func (fs *FeatureSet) TF(id domain.ChunkID) uint64 {
	v, _ := fs.counts.Get(id)
	return v
}

// Counts exposes the underlying map for read-only iteration.
func (fs *FeatureSet) Counts() *chunkmap.Map { return fs.counts }

// Distinct resets set and fills it with the distinct chunks of content.
// Passing the same set for consecutive files avoids reallocating it.
func Distinct(c domain.Chunker, content []byte, set *chunkmap.Map) {
	set.Reset()
	for id := range c.Chunks(content) {
		set.Insert(id)
	}
}

func estimate(n int) int {
	return min(n/2, 1<<20)
}
