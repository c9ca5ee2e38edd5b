// Package corpus builds document-frequency models over a reference corpus.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fbhash/internal/chunker"
	"fbhash/internal/chunkmap"
	"fbhash/internal/domain"
)

// FileResult is reported once per input document.
type FileResult struct {
	Path   string
	Chunks int
	Err    error
}

// Report summarizes a build.
type Report struct {
	Processed int
	Failures  []domain.FileError
}

// Builder folds documents into a Model. Each worker accumulates a private
// partial model; partials are combined by a pairwise merge tree so no
// locking happens on the hot path.
type Builder struct {
	chunker   domain.Chunker
	workers   int
	onFile    func(FileResult)
	completed atomic.Int64
}

// NewBuilder creates a builder. workers <= 0 selects DefaultWorkers.
func NewBuilder(c domain.Chunker, workers int) *Builder {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Builder{chunker: c, workers: workers}
}

// DefaultWorkers leaves a quarter of the CPUs to the rest of the system.
func DefaultWorkers() int {
	total := runtime.NumCPU()
	reserve := max(1, total/4)
	return max(1, total-reserve)
}

// OnFile registers fn to be called after every document. fn is called from
// worker goroutines and must be safe for concurrent use.
func (b *Builder) OnFile(fn func(FileResult)) { b.onFile = fn }

// Completed returns the number of documents finished so far.
func (b *Builder) Completed() int { return int(b.completed.Load()) }

// Workers returns the degree of parallelism.
func (b *Builder) Workers() int { return b.workers }

type partial struct {
	df       *chunkmap.Map
	seen     *chunkmap.Map
	n        uint64
	failures []domain.FileError
}

func (p *partial) add(c domain.Chunker, doc domain.Document) (int, error) {
	content, err := doc.Load()
	if err != nil {
		p.failures = append(p.failures, domain.FileError{Path: doc.Path, Err: err})
		return 0, err
	}
	chunker.Distinct(c, content, p.seen)
	for id := range p.seen.All() {
		p.df.Add(id, 1)
	}
	p.n++
	return p.seen.Len(), nil
}

// Build consumes docs and returns the model. Unreadable documents are
// listed in the report and skipped. A cancelled context discards all work.
func (b *Builder) Build(ctx context.Context, docs iter.Seq[domain.Document]) (*Model, Report, error) {
	b.completed.Store(0)
	log.Debug().Int("workers", b.workers).Str("scheme", b.chunker.Scheme().String()).Msg("corpus build started")

	jobs := make(chan domain.Document, b.workers*2)
	partials := make([]*partial, b.workers)
	var wg sync.WaitGroup
	for i := range partials {
		p := &partial{df: chunkmap.New(0), seen: chunkmap.New(0)}
		partials[i] = p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				if ctx.Err() != nil {
					continue
				}
				chunks, err := p.add(b.chunker, doc)
				b.completed.Add(1)
				if err != nil {
					log.Warn().Err(err).Str("path", doc.Path).Msg("skipping unreadable file")
				}
				if b.onFile != nil {
					b.onFile(FileResult{Path: doc.Path, Chunks: chunks, Err: err})
				}
			}
		}()
	}

feed:
	for doc := range docs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- doc:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, Report{}, err
	}

	var report Report
	var n uint64
	maps := make([]*chunkmap.Map, 0, len(partials))
	for _, p := range partials {
		n += p.n
		report.Failures = append(report.Failures, p.failures...)
		maps = append(maps, p.df)
	}
	report.Processed = int(n)
	slices.SortFunc(report.Failures, func(a, b domain.FileError) int { return strings.Compare(a.Path, b.Path) })

	if n == 0 {
		return nil, report, fmt.Errorf("%w (%d failed)", domain.ErrEmptyCorpus, len(report.Failures))
	}

	df, err := mergeTree(ctx, maps)
	if err != nil {
		return nil, Report{}, err
	}
	m := newModel(b.chunker.Scheme(), n, df)
	log.Info().
		Int("files", report.Processed).
		Int("failed", len(report.Failures)).
		Int("chunks", m.Len()).
		Msg("corpus model built")
	return m, report, nil
}

// mergeTree combines partial maps pairwise, one tree level at a time, with
// the pairs of each level merged in parallel.
func mergeTree(ctx context.Context, maps []*chunkmap.Map) (*chunkmap.Map, error) {
	for len(maps) > 1 {
		next := make([]*chunkmap.Map, (len(maps)+1)/2)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < len(maps); i += 2 {
			if i+1 == len(maps) {
				next[i/2] = maps[i]
				continue
			}
			a, b := maps[i], maps[i+1]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				// fold the smaller map into the larger one
				if a.Len() < b.Len() {
					a, b = b, a
				}
				a.Merge(b)
				next[i/2] = a
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		maps = next
	}
	if len(maps) == 0 {
		return nil, errors.New("no partial models to merge")
	}
	return maps[0], nil
}
