package chunker

import (
	"iter"

	"github.com/cespare/xxhash/v2"

	"fbhash/internal/domain"
)

// XXH64Chunker hashes every window independently with xxHash64.
type XXH64Chunker struct {
	scheme domain.Scheme
	window int
}

// NewXXH64Chunker creates an xxHash64 chunker for the given scheme.
func NewXXH64Chunker(scheme domain.Scheme) *XXH64Chunker {
	return &XXH64Chunker{scheme: scheme, window: scheme.Window}
}

// Scheme returns the parameters this chunker was built with.
func (c *XXH64Chunker) Scheme() domain.Scheme { return c.scheme }

// Chunks yields the hash of every window of content. Content no longer
// than one window yields a single chunk covering all of it.
func (c *XXH64Chunker) Chunks(content []byte) iter.Seq[domain.ChunkID] {
	return func(yield func(domain.ChunkID) bool) {
		n := len(content)
		if n == 0 {
			return
		}
		if n <= c.window {
			yield(domain.ChunkID(xxhash.Sum64(content)))
			return
		}
		for i := 0; i+c.window <= n; i++ {
			if !yield(domain.ChunkID(xxhash.Sum64(content[i : i+c.window]))) {
				return
			}
		}
	}
}
