package corpus

import (
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbhash/internal/chunker"
	"fbhash/internal/domain"
)

func rabin(t *testing.T, window int) domain.Chunker {
	t.Helper()
	s := domain.DefaultScheme()
	s.Window = window
	c, err := chunker.New(s)
	require.NoError(t, err)
	return c
}

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func failing(path string) domain.Document {
	return domain.Document{Path: path, Load: func() ([]byte, error) { return nil, fs.ErrPermission }}
}

func build(t *testing.T, b *Builder, docs []domain.Document) (*Model, Report) {
	t.Helper()
	m, r, err := b.Build(context.Background(), slices.Values(docs))
	require.NoError(t, err)
	return m, r
}

func TestBuild_DistinctFiles(t *testing.T) {
	docs := []domain.Document{
		domain.NewDocument("a", randomBytes(1, 1024)),
		domain.NewDocument("b", randomBytes(2, 1024)),
		domain.NewDocument("c", randomBytes(3, 1024)),
	}
	m, r := build(t, NewBuilder(rabin(t, 64), 2), docs)

	assert.Equal(t, uint64(3), m.N())
	assert.Equal(t, 3, r.Processed)
	assert.Empty(t, r.Failures)
	assert.Equal(t, 3*961, m.Len())
	for _, e := range m.Entries() {
		require.Equal(t, uint64(1), e.DF)
	}
}

func TestBuild_CountsFilesNotOccurrences(t *testing.T) {
	repeated := make([]byte, 500) // one chunk id repeated 437 times
	docs := []domain.Document{
		domain.NewDocument("zeros-1", repeated),
		domain.NewDocument("zeros-2", repeated),
	}
	m, _ := build(t, NewBuilder(rabin(t, 64), 1), docs)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, uint64(2), m.DF(0))
}

func TestBuild_EmptyFileCountsTowardN(t *testing.T) {
	docs := []domain.Document{
		domain.NewDocument("a", randomBytes(1, 100)),
		domain.NewDocument("empty", nil),
	}
	m, r := build(t, NewBuilder(rabin(t, 64), 2), docs)
	assert.Equal(t, uint64(2), m.N())
	assert.Equal(t, 2, r.Processed)
	assert.Equal(t, 37, m.Len())
}

func TestBuild_OrderAndParallelismIndependent(t *testing.T) {
	var docs []domain.Document
	shared := randomBytes(99, 300)
	for i := range 20 {
		content := append(randomBytes(int64(i), 200+i*13), shared...)
		docs = append(docs, domain.NewDocument(string(rune('a'+i)), content))
	}
	docs = append(docs, domain.NewDocument("empty", nil))

	ref, _ := build(t, NewBuilder(rabin(t, 16), 1), docs)
	rng := rand.New(rand.NewSource(5))
	for _, workers := range []int{1, 2, 3, 8} {
		shuffled := slices.Clone(docs)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		m, _ := build(t, NewBuilder(rabin(t, 16), workers), shuffled)
		assert.Equal(t, ref.N(), m.N())
		assert.Equal(t, ref.Entries(), m.Entries())
		assert.Equal(t, ref.ID(), m.ID())
	}
}

func TestBuild_FailuresDoNotAbort(t *testing.T) {
	docs := []domain.Document{
		failing("z-locked"),
		domain.NewDocument("ok", randomBytes(1, 128)),
		failing("a-locked"),
	}
	m, r := build(t, NewBuilder(rabin(t, 64), 2), docs)
	assert.Equal(t, uint64(1), m.N())
	assert.Equal(t, 1, r.Processed)
	require.Len(t, r.Failures, 2)
	assert.Equal(t, "a-locked", r.Failures[0].Path)
	assert.ErrorIs(t, &r.Failures[1], domain.ErrIO)
}

func TestBuild_NothingProcessed(t *testing.T) {
	b := NewBuilder(rabin(t, 64), 2)
	m, r, err := b.Build(context.Background(), slices.Values([]domain.Document{failing("x")}))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
	assert.Len(t, r.Failures, 1)

	_, _, err = b.Build(context.Background(), slices.Values([]domain.Document(nil)))
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs := []domain.Document{domain.NewDocument("a", randomBytes(1, 100))}
	m, _, err := NewBuilder(rabin(t, 64), 2).Build(ctx, slices.Values(docs))
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuild_Progress(t *testing.T) {
	b := NewBuilder(rabin(t, 64), 3)
	var mu sync.Mutex
	seen := map[string]error{}
	b.OnFile(func(r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[r.Path] = r.Err
	})
	docs := []domain.Document{
		domain.NewDocument("a", randomBytes(1, 100)),
		domain.NewDocument("b", randomBytes(2, 100)),
		failing("c"),
	}
	build(t, b, docs)
	assert.Equal(t, 3, b.Completed())
	assert.Len(t, seen, 3)
	assert.NoError(t, seen["a"])
	assert.Error(t, seen["c"])
}

func TestNewModel_Validates(t *testing.T) {
	s := domain.DefaultScheme()
	_, err := NewModel(s, 2, []DFEntry{{ID: 1, DF: 3}})
	assert.Error(t, err)
	_, err = NewModel(s, 2, []DFEntry{{ID: 1, DF: 0}})
	assert.Error(t, err)
	_, err = NewModel(s, 2, []DFEntry{{ID: 1, DF: 1}, {ID: 1, DF: 2}})
	assert.Error(t, err)
	_, err = NewModel(s, 0, nil)
	assert.Error(t, err)

	m, err := NewModel(s, 2, []DFEntry{{ID: 9, DF: 2}, {ID: 1, DF: 1}})
	require.NoError(t, err)
	assert.Equal(t, []DFEntry{{ID: 1, DF: 1}, {ID: 9, DF: 2}}, m.Entries())
	assert.Equal(t, uint64(2), m.DF(9))
	assert.Equal(t, uint64(0), m.DF(5))
}

func TestModel_ID(t *testing.T) {
	s := domain.DefaultScheme()
	a, err := NewModel(s, 2, []DFEntry{{ID: 1, DF: 1}})
	require.NoError(t, err)
	b, err := NewModel(s, 2, []DFEntry{{ID: 1, DF: 1}})
	require.NoError(t, err)
	c, err := NewModel(s, 3, []DFEntry{{ID: 1, DF: 1}})
	require.NoError(t, err)

	assert.Len(t, a.ID(), 64)
	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
	assert.Equal(t, DefaultWorkers(), NewBuilder(rabin(t, 64), 0).Workers())
}
