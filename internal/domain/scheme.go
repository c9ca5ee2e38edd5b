package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemeVersion is bumped whenever the hashing or weighting math changes.
const SchemeVersion = 1

const schemePrefix = "fbhash/"

// Chunk hash functions.
const (
	HashRabin = "rabin"
	HashXXH64 = "xxh64"
)

// Term frequency modes.
const (
	TFRaw = "raw"
	TFLog = "log"
)

// Policies for chunks the corpus model has never seen.
const (
	UnseenRare = "rare"
	UnseenSkip = "skip"
)

// DefaultWindow is the default chunk length in bytes.
const DefaultWindow = 64

// Scheme records every parameter that affects digest values. Digests are
// comparable only when their schemes are equal.
type Scheme struct {
	Version int
	Hash    string
	Window  int
	TF      string
	Unseen  string
}

// DefaultScheme returns the scheme used when nothing is configured.
func DefaultScheme() Scheme {
	return Scheme{Version: SchemeVersion, Hash: HashRabin, Window: DefaultWindow, TF: TFRaw, Unseen: UnseenRare}
}

// String returns the canonical tag, e.g. "fbhash/1:rabin:64:raw:rare".
func (s Scheme) String() string {
	return fmt.Sprintf("%s%d:%s:%d:%s:%s", schemePrefix, s.Version, s.Hash, s.Window, s.TF, s.Unseen)
}

// SameChunking reports whether two schemes produce identical chunk IDs.
func (s Scheme) SameChunking(o Scheme) bool {
	return s.Version == o.Version && s.Hash == o.Hash && s.Window == o.Window
}

// Validate checks every field against the supported values.
func (s Scheme) Validate() error {
	if s.Version != SchemeVersion {
		return fmt.Errorf("unsupported scheme version %d", s.Version)
	}
	switch s.Hash {
	case HashRabin, HashXXH64:
	default:
		return fmt.Errorf("unknown chunk hash %q", s.Hash)
	}
	if s.Window < 1 {
		return fmt.Errorf("invalid window %d", s.Window)
	}
	switch s.TF {
	case TFRaw, TFLog:
	default:
		return fmt.Errorf("unknown tf mode %q", s.TF)
	}
	switch s.Unseen {
	case UnseenRare, UnseenSkip:
	default:
		return fmt.Errorf("unknown unseen policy %q", s.Unseen)
	}
	return nil
}

// ParseScheme parses the canonical tag produced by String.
func ParseScheme(tag string) (Scheme, error) {
	rest, ok := strings.CutPrefix(tag, schemePrefix)
	if !ok {
		return Scheme{}, Formatf("scheme tag %q", tag)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 5 {
		return Scheme{}, Formatf("scheme tag %q", tag)
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return Scheme{}, Formatf("scheme version %q", parts[0])
	}
	window, err := strconv.Atoi(parts[2])
	if err != nil {
		return Scheme{}, Formatf("scheme window %q", parts[2])
	}
	s := Scheme{Version: version, Hash: parts[1], Window: window, TF: parts[3], Unseen: parts[4]}
	if err := s.Validate(); err != nil {
		return Scheme{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return s, nil
}
