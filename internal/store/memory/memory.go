package memory

import (
	"errors"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"fbhash/internal/codec"
	"fbhash/internal/domain"
	"fbhash/internal/similarity"
)

// Storage is an in-memory digest database with brute-force ranking. It can
// be loaded from and saved to a codec database file.
type Storage struct {
	mu      sync.RWMutex
	ready   bool
	scheme  domain.Scheme
	model   string
	records []domain.Record
	index   map[string]int
}

func NewStorage() *Storage { return &Storage{index: map[string]int{}} }

// Load reads a database file written by Save. A missing file leaves the
// storage uninitialized.
func (s *Storage) Load(path string) error {
	db, err := codec.ReadDatabaseFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.scheme = db.Scheme
	s.model = db.Model
	s.records = db.Records
	s.index = make(map[string]int, len(db.Records))
	for i, r := range db.Records {
		s.index[r.Path] = i
	}
	return nil
}

// Save writes every record to path, sorted by path.
func (s *Storage) Save(path string, opts codec.Options) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return domain.ErrNotInitialized
	}
	records := slices.Clone(s.records)
	slices.SortFunc(records, func(a, b domain.Record) int { return strings.Compare(a.Path, b.Path) })
	return codec.WriteDatabaseFile(path, codec.Database{Scheme: s.scheme, Model: s.model, Records: records}, opts)
}

func (s *Storage) Init(scheme domain.Scheme, model string) error {
	if model == "" {
		return errors.New("empty corpus model id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.scheme = scheme
	s.model = model
	s.records = nil
	s.index = map[string]int{}
	return nil
}

func (s *Storage) Meta() (domain.Scheme, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return domain.Scheme{}, "", domain.ErrNotInitialized
	}
	return s.scheme, s.model, nil
}

// Upsert adds records, replacing any with the same path.
func (s *Storage) Upsert(records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return domain.ErrNotInitialized
	}
	for _, r := range records {
		if err := s.compatible(r.Digest); err != nil {
			return err
		}
	}
	for _, r := range records {
		if i, ok := s.index[r.Path]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.Path] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(query domain.Digest, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, domain.ErrNotInitialized
	}
	if err := s.compatible(query); err != nil {
		return nil, err
	}
	return similarity.TopK(query, s.records, topK)
}

func (s *Storage) Records() ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

// Clear removes every record but keeps the scheme and model binding.
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = map[string]int{}
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) compatible(d domain.Digest) error {
	return similarity.Compatible(domain.Digest{Scheme: s.scheme, Model: s.model}, d)
}

var _ domain.Storage = (*Storage)(nil)
