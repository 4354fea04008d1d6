package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// MinM and MaxM bound the build-time out-degree parameter M (§4.4.1).
const (
	MinM = 1
	MaxM = 64

	// DefaultDMax is the distance bound used when a Config leaves DMax
	// unset; it matches the 128-bit Hamming features the package's own
	// recall benchmark exercises.
	DefaultDMax = 128
)

// Config configures a new Index.
type Config[T any] struct {
	// M is the maximum out-degree on layers >= 1; layer 0 uses 2*M.
	// Must be in [MinM, MaxM].
	M int

	// EfConstruction is the build-time beam width (§4.4.1). Defaults to
	// 2*M when zero.
	EfConstruction int

	// DMax bounds every distance this Index's Distance function can
	// return. Defaults to DefaultDMax when zero.
	DMax uint32

	// Seed drives the level sampler's PRNG so that a fixed seed and
	// insert order reproduce byte-identical neighbor lists (P5).
	// Defaults to 1 when zero.
	Seed int64

	// Distance is the pluggable similarity function. Required.
	Distance Distance[T]
}

// Index is a layered proximity graph over features of type T. It is
// single-threaded and synchronous: the caller must serialize all Insert and
// Nearest calls on a given Index, and must not share a Searcher across
// concurrently executing calls. Multiple independent Searchers may be used
// by independent callers against the same Index provided the Index itself
// is not being mutated concurrently.
type Index[T any] struct {
	m              int
	m0             int
	efConstruction int
	dMax           uint32
	mlInv          float64
	distance       Distance[T]
	rng            *rand.Rand

	features   []T
	nodes      []node
	entryPoint int64 // -1 when the index is empty
	maxLayer   int
}

// New constructs an empty Index. It panics if cfg.M is out of range or no
// Distance function is supplied — an invalid build-time parameter is a
// fatal precondition failure, not a recoverable error (§7).
func New[T any](cfg Config[T]) *Index[T] {
	if cfg.M < MinM || cfg.M > MaxM {
		panic("hnsw: M must be in [1, 64]")
	}
	if cfg.Distance == nil {
		panic("hnsw: Config.Distance is required")
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = cfg.M * 2
	}
	if cfg.DMax == 0 {
		cfg.DMax = DefaultDMax
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}

	// mL = 1/ln(M) is undefined at M=1; a single-connection graph has no
	// meaningful layer decay, so every node lives on layer 0 only.
	mlInv := 0.0
	if cfg.M > 1 {
		mlInv = 1 / math.Log(float64(cfg.M))
	}

	return &Index[T]{
		m:              cfg.M,
		m0:             cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		dMax:           cfg.DMax,
		mlInv:          mlInv,
		distance:       cfg.Distance,
		rng:            rand.New(rand.NewSource(seed)),
		entryPoint:     -1,
		maxLayer:       -1,
	}
}

// Len returns the number of features inserted so far.
func (idx *Index[T]) Len() int { return len(idx.features) }

// IsEmpty reports whether the index holds no features.
func (idx *Index[T]) IsEmpty() bool { return len(idx.features) == 0 }

// Feature returns the feature stored under id. It panics if id is out of
// range, mirroring slice-index semantics since feature-ids are dense.
func (idx *Index[T]) Feature(id uint32) T { return idx.features[id] }

// MaxLayer returns the current top layer, or -1 if the index is empty.
func (idx *Index[T]) MaxLayer() int { return idx.maxLayer }

// EntryPoint returns the current entry-point feature-id and whether one
// exists (false only when the index is empty).
func (idx *Index[T]) EntryPoint() (uint32, bool) {
	if idx.entryPoint < 0 {
		return 0, false
	}
	return uint32(idx.entryPoint), true
}

// Level returns the highest layer the given feature-id was sampled onto.
func (idx *Index[T]) Level(id uint32) int {
	return len(idx.nodes[id].neighbors) - 1
}

// Neighbors returns a copy of id's neighbor feature-ids at layer, or nil if
// layer is out of range for id. Intended for snapshotting and tests, not
// the hot path.
func (idx *Index[T]) Neighbors(id uint32, layer int) []uint32 {
	if layer < 0 || layer >= len(idx.nodes[id].neighbors) {
		return nil
	}
	src := idx.nodes[id].neighbors[layer]
	out := make([]uint32, len(src))
	copy(out, src)
	return out
}

func (idx *Index[T]) capAtLayer(layer int) int {
	if layer == 0 {
		return idx.m0
	}
	return idx.m
}

// randomLevel draws a target layer from the geometric-equivalent
// exponential distribution floor(-ln(U) * mL) (§4.4.1).
func (idx *Index[T]) randomLevel() int {
	if idx.mlInv == 0 {
		return 0
	}
	r := idx.rng.Float64()
	for r == 0 {
		r = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(r) * idx.mlInv))
}

// greedyDescend performs beam-width-1 greedy search from (ep, epDist) at a
// single layer, returning the locally closest feature-id found.
func (idx *Index[T]) greedyDescend(x T, ep uint32, epDist uint32, layer int) (uint32, uint32) {
	for {
		changed := false
		for _, n := range idx.nodes[ep].neighbors[layer] {
			d := idx.distance(x, idx.features[n])
			if d < epDist {
				epDist = d
				ep = n
				changed = true
			}
		}
		if !changed {
			return ep, epDist
		}
	}
}

// searchLayer runs the greedy beam search of §4.4.4, leaving its result in
// s.nearest. s must already be prepared with the desired capacity.
func (idx *Index[T]) searchLayer(x T, entry uint32, layer int, s *Searcher) {
	d0 := idx.distance(x, idx.features[entry])
	s.seen[entry] = struct{}{}
	heap.Push(&s.candidates, candidate{id: entry, distance: d0})
	s.nearest.Insert(entry, d0)

	for s.candidates.Len() > 0 {
		c := heap.Pop(&s.candidates).(candidate)
		if s.nearest.Len() >= s.nearest.Cap() && c.distance > s.nearest.Worst() {
			break
		}
		for _, n := range idx.nodes[c.id].neighbors[layer] {
			if _, ok := s.seen[n]; ok {
				continue
			}
			s.seen[n] = struct{}{}
			d := idx.distance(x, idx.features[n])
			if s.nearest.Len() < s.nearest.Cap() || d < s.nearest.Worst() {
				heap.Push(&s.candidates, candidate{id: n, distance: d})
				s.nearest.Insert(n, d)
			}
		}
	}
}

// selectNeighbors implements the heuristic neighbor selector (§4.4.5): walk
// candidates in ascending distance to the target and keep a candidate only
// if no already-selected neighbor lies strictly closer to it than it is to
// the target, biasing the result toward a spatially diverse set.
func (idx *Index[T]) selectNeighbors(target T, candidates []Entry[uint32], m int) []uint32 {
	limit := m
	if limit > len(candidates) {
		limit = len(candidates)
	}
	selected := make([]uint32, 0, limit)
	for _, c := range candidates {
		if len(selected) == m {
			break
		}
		bridged := false
		for _, s := range selected {
			if idx.distance(idx.features[c.Item], idx.features[s]) < c.Distance {
				bridged = true
				break
			}
		}
		if !bridged {
			selected = append(selected, c.Item)
		}
	}
	return selected
}

// pruneIfNeeded re-runs the heuristic selector over id's own neighbor list
// at layer if it exceeds its cap, then re-symmetrizes: any neighbor dropped
// by the re-selection has its own back-edge to id removed too, so the
// symmetry invariant (P1) holds again once pruning settles.
func (idx *Index[T]) pruneIfNeeded(id uint32, layer int) {
	cap := idx.capAtLayer(layer)
	neighbors := idx.nodes[id].neighbors[layer]
	if len(neighbors) <= cap {
		return
	}

	target := idx.features[id]
	candidates := make([]Entry[uint32], len(neighbors))
	for i, n := range neighbors {
		candidates[i] = Entry[uint32]{Item: n, Distance: idx.distance(target, idx.features[n])}
	}
	sortEntriesByDistance(candidates)

	selected := idx.selectNeighbors(target, candidates, cap)
	keep := make(map[uint32]struct{}, len(selected))
	for _, s := range selected {
		keep[s] = struct{}{}
	}
	for _, n := range neighbors {
		if _, ok := keep[n]; !ok {
			idx.nodes[n].removeNeighbor(layer, id)
		}
	}
	idx.nodes[id].neighbors[layer] = selected
}

func sortEntriesByDistance(entries []Entry[uint32]) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Distance < entries[j].Distance })
}
