package chunker

import (
	"iter"
	"math/bits"

	"fbhash/internal/domain"
)

// Rabin-Karp parameters. Changing either invalidates every persisted digest.
const (
	rabinBase    = 255
	rabinModulus = 801385653117583579
)

// RabinChunker hashes every window with a polynomial rolling hash, so each
// step after the first costs O(1) regardless of the window length.
type RabinChunker struct {
	scheme domain.Scheme
	window int
	// top is base^(window-1) mod modulus, the weight of the outgoing byte.
	top uint64
}

// NewRabinChunker creates a rolling-hash chunker for the given scheme.
func NewRabinChunker(scheme domain.Scheme) *RabinChunker {
	top := uint64(1)
	for i := 1; i < scheme.Window; i++ {
		top = mulmod(top, rabinBase)
	}
	return &RabinChunker{scheme: scheme, window: scheme.Window, top: top}
}

// Scheme returns the parameters this chunker was built with.
func (c *RabinChunker) Scheme() domain.Scheme { return c.scheme }

// Chunks yields the hash of every window of content.
func (c *RabinChunker) Chunks(content []byte) iter.Seq[domain.ChunkID] {
	return func(yield func(domain.ChunkID) bool) {
		n := len(content)
		if n == 0 {
			return
		}
		if n <= c.window {
			yield(domain.ChunkID(rabinHash(content)))
			return
		}
		h := rabinHash(content[:c.window])
		if !yield(domain.ChunkID(h)) {
			return
		}
		for i := c.window; i < n; i++ {
			h = c.roll(h, content[i-c.window], content[i])
			if !yield(domain.ChunkID(h)) {
				return
			}
		}
	}
}

// roll drops out from the front of the window and appends in.
func (c *RabinChunker) roll(h uint64, out, in byte) uint64 {
	h = (h + rabinModulus - mulmod(uint64(out), c.top)) % rabinModulus
	return (mulmod(h, rabinBase) + uint64(in)) % rabinModulus
}

func rabinHash(window []byte) uint64 {
	var h uint64
	for _, b := range window {
		h = (mulmod(h, rabinBase) + uint64(b)) % rabinModulus
	}
	return h
}

func mulmod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, rabinModulus)
}
