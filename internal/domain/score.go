package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrNaN is returned when a score would be built from NaN.
var ErrNaN = errors.New("score is NaN")

// Score is a similarity value in [0, 1] with a total order. The zero value
// is a valid score of 0.
type Score struct {
	v float64
}

// NewScore clamps f into [0, 1]. NaN is rejected.
func NewScore(f float64) (Score, error) {
	if math.IsNaN(f) {
		return Score{}, ErrNaN
	}
	return Score{v: min(max(f, 0), 1)}, nil
}

// MustScore is NewScore for values known to be valid.
func MustScore(f float64) Score {
	s, err := NewScore(f)
	if err != nil {
		panic(err)
	}
	return s
}

// Float64 returns the underlying value.
func (s Score) Float64() float64 { return s.v }

// Percent returns the score scaled to [0, 100].
func (s Score) Percent() float64 { return s.v * 100 }

// Compare returns -1, 0 or +1.
func (s Score) Compare(o Score) int {
	switch {
	case s.v < o.v:
		return -1
	case s.v > o.v:
		return 1
	}
	return 0
}

// Less reports whether s orders before o.
func (s Score) Less(o Score) bool { return s.v < o.v }

func (s Score) String() string { return fmt.Sprintf("%.6f", s.v) }
