// Package similarity scores digests against each other.
package similarity

import (
	"sort"

	"fbhash/internal/domain"
)

// Compare returns the cosine similarity of two digests. Both must share a
// scheme and come from the same corpus model.
func Compare(a, b domain.Digest) (domain.Score, error) {
	if err := Compatible(a, b); err != nil {
		return domain.Score{}, err
	}
	return domain.NewScore(dot(a.Entries, b.Entries))
}

// Compatible reports why a and b cannot be compared, if they cannot.
func Compatible(a, b domain.Digest) error {
	if a.Scheme != b.Scheme {
		return &domain.CompatibilityError{Field: "scheme", Want: a.Scheme.String(), Got: b.Scheme.String()}
	}
	if a.Model != b.Model {
		return &domain.CompatibilityError{Field: "corpus model", Want: a.Model, Got: b.Model}
	}
	return nil
}

// dot walks the shorter vector and searches the longer one. The cursor into
// the longer vector only moves forward since both are sorted by ID, and the
// products are summed in ID order whichever argument is shorter.
func dot(a, b []domain.Entry) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	sum := 0.0
	lo := 0
	for _, e := range a {
		rest := b[lo:]
		i := sort.Search(len(rest), func(i int) bool { return rest[i].ID >= e.ID })
		lo += i
		if lo == len(b) {
			break
		}
		if b[lo].ID == e.ID {
			sum += e.Weight * b[lo].Weight
			lo++
		}
	}
	return sum
}
