package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fbhash/internal/chunker"
	"fbhash/internal/corpus"
	"fbhash/internal/domain"
	"fbhash/internal/similarity"
	"fbhash/internal/source"
	"fbhash/internal/weighting"
)

const upsertBatch = 256

var errNoStore = errors.New("no digest database configured")

// HashService wires chunking, corpus building, weighting and the digest
// database together.
type HashService struct {
	scheme   domain.Scheme
	chunker  domain.Chunker
	weighter *weighting.Weighter
	store    domain.Storage
	workers  int
}

// NewHashService creates a service for scheme. store may be nil when only
// files are hashed and compared.
func NewHashService(scheme domain.Scheme, store domain.Storage, workers int) (*HashService, error) {
	c, err := chunker.New(scheme)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = corpus.DefaultWorkers()
	}
	return &HashService{
		scheme:   scheme,
		chunker:  c,
		weighter: weighting.NewWeighter(scheme),
		store:    store,
		workers:  workers,
	}, nil
}

// Scheme returns the scheme every digest is computed under.
func (s *HashService) Scheme() domain.Scheme { return s.scheme }

// BuildCorpus builds a document frequency model over docs. onFile may be nil.
func (s *HashService) BuildCorpus(ctx context.Context, docs iter.Seq[domain.Document], onFile func(corpus.FileResult)) (*corpus.Model, corpus.Report, error) {
	b := corpus.NewBuilder(s.chunker, s.workers)
	if onFile != nil {
		b.OnFile(onFile)
	}
	return b.Build(ctx, docs)
}

// Digest computes the digest of content against model.
func (s *HashService) Digest(model *corpus.Model, content []byte) (domain.Digest, error) {
	return s.weighter.Digest(chunker.Features(s.chunker, content), model)
}

// HashFile reads path and digests it.
func (s *HashService) HashFile(model *corpus.Model, path string) (domain.Digest, error) {
	return s.digestDocument(model, source.File(path))
}

// Compare scores two digests.
func (s *HashService) Compare(a, b domain.Digest) (domain.Score, error) {
	return similarity.Compare(a, b)
}

// Index digests every document and stores the results. A database bound to
// a different model is reinitialized once all documents are digested;
// otherwise records are added to it.
func (s *HashService) Index(ctx context.Context, model *corpus.Model, docs iter.Seq[domain.Document], onFile func(corpus.FileResult)) (corpus.Report, error) {
	if s.store == nil {
		return corpus.Report{}, errNoStore
	}
	if err := s.compatibleModel(model); err != nil {
		return corpus.Report{}, err
	}
	reinit := false
	if err := s.check(s.scheme, model.ID()); err != nil {
		if !errors.Is(err, domain.ErrNotInitialized) && !errors.Is(err, domain.ErrCompatibility) {
			return corpus.Report{}, err
		}
		reinit = true
	}

	var (
		mu       sync.Mutex
		records  []domain.Record
		failures []domain.FileError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := s.digestDocument(model, doc)
			res := corpus.FileResult{Path: doc.Path, Chunks: d.Len(), Err: err}
			mu.Lock()
			if err != nil {
				var fe *domain.FileError
				if !errors.As(err, &fe) {
					mu.Unlock()
					return err
				}
				failures = append(failures, *fe)
				log.Warn().Err(fe.Err).Str("path", doc.Path).Msg("skipping unreadable file")
			} else {
				records = append(records, domain.Record{Path: doc.Path, Digest: d})
			}
			mu.Unlock()
			if onFile != nil {
				onFile(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return corpus.Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return corpus.Report{}, err
	}

	// The existing database stays untouched until every digest is ready.
	if reinit {
		log.Info().Str("model", model.ID()).Msg("initializing digest database")
		if err := s.store.Init(s.scheme, model.ID()); err != nil {
			return corpus.Report{}, err
		}
	}

	slices.SortFunc(records, func(a, b domain.Record) int { return strings.Compare(a.Path, b.Path) })
	slices.SortFunc(failures, func(a, b domain.FileError) int { return strings.Compare(a.Path, b.Path) })
	for batch := range slices.Chunk(records, upsertBatch) {
		if err := s.store.Upsert(batch); err != nil {
			return corpus.Report{}, err
		}
	}
	log.Info().Int("files", len(records)).Int("failed", len(failures)).Msg("digest database updated")
	return corpus.Report{Processed: len(records), Failures: failures}, nil
}

// Query ranks the stored digests by similarity to query.
func (s *HashService) Query(query domain.Digest, topK int) ([]domain.SearchResult, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	if err := s.check(query.Scheme, query.Model); err != nil {
		return nil, err
	}
	return s.store.Search(query, topK)
}

// QueryFile digests path and ranks the stored digests against it.
func (s *HashService) QueryFile(model *corpus.Model, path string, topK int) ([]domain.SearchResult, error) {
	d, err := s.HashFile(model, path)
	if err != nil {
		return nil, err
	}
	return s.Query(d, topK)
}

// Verify checks that the database was built with model under this
// service's scheme.
func (s *HashService) Verify(model *corpus.Model) error {
	if s.store == nil {
		return errNoStore
	}
	if err := s.compatibleModel(model); err != nil {
		return err
	}
	return s.check(s.scheme, model.ID())
}

func (s *HashService) compatibleModel(model *corpus.Model) error {
	if !model.Scheme().SameChunking(s.scheme) {
		return &domain.CompatibilityError{Field: "chunking scheme", Want: s.scheme.String(), Got: model.Scheme().String()}
	}
	return nil
}

func (s *HashService) check(scheme domain.Scheme, model string) error {
	stored, id, err := s.store.Meta()
	if err != nil {
		return err
	}
	if stored != scheme {
		return &domain.CompatibilityError{Field: "scheme", Want: stored.String(), Got: scheme.String()}
	}
	if id != model {
		return &domain.CompatibilityError{Field: "corpus model", Want: id, Got: model}
	}
	return nil
}

func (s *HashService) digestDocument(model *corpus.Model, doc domain.Document) (domain.Digest, error) {
	content, err := doc.Load()
	if err != nil {
		return domain.Digest{}, &domain.FileError{Path: doc.Path, Err: err}
	}
	return s.Digest(model, content)
}
