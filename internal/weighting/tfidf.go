// Package weighting turns a file's chunk frequencies into a normalized
// TF-IDF digest using a corpus model.
package weighting

import (
	"math"
	"slices"

	"fbhash/internal/chunker"
	"fbhash/internal/corpus"
	"fbhash/internal/domain"
)

// Weighter computes digests for one scheme. It holds no mutable state and
// may be shared between goroutines.
type Weighter struct {
	scheme domain.Scheme
}

// NewWeighter creates a weighter for the given scheme.
func NewWeighter(scheme domain.Scheme) *Weighter {
	return &Weighter{scheme: scheme}
}

// Scheme returns the scheme recorded in every digest.
func (w *Weighter) Scheme() domain.Scheme { return w.scheme }

// Digest weights every chunk of fs by tf·ln(N/df) and L2-normalizes the
// result. An all-zero vector yields the empty digest.
func (w *Weighter) Digest(fs *chunker.FeatureSet, model *corpus.Model) (domain.Digest, error) {
	if !model.Scheme().SameChunking(w.scheme) {
		return domain.Digest{}, &domain.CompatibilityError{
			Field: "chunking scheme",
			Want:  w.scheme.String(),
			Got:   model.Scheme().String(),
		}
	}
	d := domain.Digest{Scheme: w.scheme, Model: model.ID()}
	n := float64(model.N())
	entries := make([]domain.Entry, 0, fs.Len())
	for id, tf := range fs.Counts().All() {
		df := model.DF(id)
		if df == 0 {
			if w.scheme.Unseen == domain.UnseenSkip {
				continue
			}
			df = 1
		}
		weight := w.tf(tf) * math.Log(n/float64(df))
		if weight > 0 {
			entries = append(entries, domain.Entry{ID: id, Weight: weight})
		}
	}
	if len(entries) == 0 {
		return d, nil
	}
	slices.SortFunc(entries, func(a, b domain.Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	// L2 normalize
	norm := 0.0
	for _, e := range entries {
		norm += e.Weight * e.Weight
	}
	norm = math.Sqrt(norm)
	for i := range entries {
		entries[i].Weight /= norm
	}
	d.Entries = entries
	return d, nil
}

func (w *Weighter) tf(count uint64) float64 {
	if w.scheme.TF == domain.TFLog {
		return 1 + math.Log(float64(count))
	}
	return float64(count)
}
