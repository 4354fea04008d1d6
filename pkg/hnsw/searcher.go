package hnsw

// candidate is an entry in a Searcher's frontier: a feature-id yet to be
// expanded, ordered by distance to the active query.
type candidate struct {
	id       uint32
	distance uint32
}

type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].distance < h[j].distance }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Searcher is caller-owned scratch state borrowed by Index.Insert and
// Index.Nearest for the duration of a single call. It holds the candidate
// frontier, the current best-k, and a visited set, all reused rather than
// reallocated across calls. A Searcher must not be shared between
// concurrently executing calls; independent Searchers may be used by
// independent callers.
type Searcher struct {
	candidates candidateHeap
	nearest    *NearestQueue[uint32]
	seen       map[uint32]struct{}
}

// NewSearcher returns an empty, ready-to-use Searcher. Its internal queue
// is sized lazily on first use against an Index, then reused as long as
// that Index's DMax does not change.
func NewSearcher() *Searcher {
	return &Searcher{seen: make(map[uint32]struct{})}
}

// prepare resets the searcher for a new search with the given bound and
// beam width, reallocating the nearest-queue buckets only if dMax changed
// since the last search (the common case reuses them in place).
func (s *Searcher) prepare(dMax uint32, cap int) {
	if s.nearest == nil || s.nearest.dMax != dMax {
		s.nearest = NewNearestQueue[uint32](dMax)
	}
	s.nearest.Reset(cap)
	if s.seen == nil {
		s.seen = make(map[uint32]struct{}, cap*2)
	} else {
		for k := range s.seen {
			delete(s.seen, k)
		}
	}
	s.candidates = s.candidates[:0]
}
