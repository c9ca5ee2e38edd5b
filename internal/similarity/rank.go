package similarity

import (
	"container/heap"
	"slices"
	"strings"

	"fbhash/internal/domain"
)

// DefaultTopK is used when a caller asks for zero or fewer results.
const DefaultTopK = 5

// better orders results by descending score, then ascending path.
func better(a, b domain.SearchResult) bool {
	if c := a.Score.Compare(b.Score); c != 0 {
		return c > 0
	}
	return a.Path < b.Path
}

// resultHeap keeps the worst result at the root.
type resultHeap []domain.SearchResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(domain.SearchResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopK scores query against every record and returns the k best.
func TopK(query domain.Digest, records []domain.Record, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	h := make(resultHeap, 0, min(k, len(records)))
	for _, r := range records {
		score, err := Compare(query, r.Digest)
		if err != nil {
			return nil, err
		}
		offer(&h, domain.SearchResult{Path: r.Path, Score: score}, k)
	}
	return sorted(h), nil
}

// offer pushes res into h, evicting the worst entry once h holds k.
func offer(h *resultHeap, res domain.SearchResult, k int) {
	if h.Len() < k {
		heap.Push(h, res)
		return
	}
	if better(res, (*h)[0]) {
		(*h)[0] = res
		heap.Fix(h, 0)
	}
}

// sorted returns results best first.
func sorted(results []domain.SearchResult) []domain.SearchResult {
	out := slices.Clone(results)
	slices.SortFunc(out, func(a, b domain.SearchResult) int {
		if c := b.Score.Compare(a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}
