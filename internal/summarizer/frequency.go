// Package summarizer describes a corpus model by its document frequency
// distribution.
package summarizer

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"fbhash/internal/corpus"
)

// Bucket counts chunks whose df falls in [Low, High].
type Bucket struct {
	Low, High uint64
	Chunks    int
}

// Summary is a compact description of a model.
type Summary struct {
	Scheme     string
	ModelID    string
	N          uint64
	Distinct   int
	Singletons int
	MaxDF      uint64
	Histogram  []Bucket
	Common     []corpus.DFEntry
}

// Summarize ranks chunks by document frequency and buckets the df values by
// powers of two. maxChunks <= 0 keeps the five most common chunks.
func Summarize(m *corpus.Model, maxChunks int) Summary {
	if maxChunks <= 0 {
		maxChunks = 5
	}
	s := Summary{
		Scheme:   m.Scheme().String(),
		ModelID:  m.ID(),
		N:        m.N(),
		Distinct: m.Len(),
	}
	entries := m.Entries()
	var counts [65]int
	for _, e := range entries {
		if e.DF == 1 {
			s.Singletons++
		}
		s.MaxDF = max(s.MaxDF, e.DF)
		counts[bits.Len64(e.DF)]++
	}
	for b, c := range counts {
		if c == 0 {
			continue
		}
		low := uint64(1) << (b - 1)
		s.Histogram = append(s.Histogram, Bucket{Low: low, High: low<<1 - 1, Chunks: c})
	}

	// Keep original order among equal frequencies
	ranked := slices.Clone(entries)
	slices.SortStableFunc(ranked, func(a, b corpus.DFEntry) int {
		switch {
		case a.DF > b.DF:
			return -1
		case a.DF < b.DF:
			return 1
		}
		return 0
	})
	if maxChunks > len(ranked) {
		maxChunks = len(ranked)
	}
	s.Common = ranked[:maxChunks]
	return s
}

// String renders the summary on one line.
func (s Summary) String() string {
	return fmt.Sprintf("%d files, %d distinct chunks (%d unique to one file), max df %d",
		s.N, s.Distinct, s.Singletons, s.MaxDF)
}

// Report renders the summary over several lines.
func (s Summary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scheme:   %s\n", s.Scheme)
	fmt.Fprintf(&b, "model:    %s\n", s.ModelID)
	fmt.Fprintf(&b, "files:    %d\n", s.N)
	fmt.Fprintf(&b, "chunks:   %d distinct, %d in a single file\n", s.Distinct, s.Singletons)
	if len(s.Histogram) > 0 {
		b.WriteString("df histogram:\n")
		for _, h := range s.Histogram {
			fmt.Fprintf(&b, "  %8d-%-8d %d\n", h.Low, h.High, h.Chunks)
		}
	}
	if len(s.Common) > 0 {
		b.WriteString("most common chunks:\n")
		for _, e := range s.Common {
			fmt.Fprintf(&b, "  %016x  df=%d\n", uint64(e.ID), e.DF)
		}
	}
	return b.String()
}
