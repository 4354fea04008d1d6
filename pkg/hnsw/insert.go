package hnsw

import "math"

// Insert adds x to the index and returns its assigned feature-id. s is
// borrowed for the duration of the call and left ready for reuse.
//
// Insert panics if the feature-id space is exhausted (§4.5): the id space
// is uint32, so this can only happen after inserting math.MaxUint32
// features into a single Index.
func (idx *Index[T]) Insert(x T, s *Searcher) uint32 {
	if len(idx.features) >= math.MaxUint32 {
		panic("hnsw: feature-id space exhausted")
	}

	id := uint32(len(idx.features))
	level := idx.randomLevel()

	idx.features = append(idx.features, x)
	idx.nodes = append(idx.nodes, newNode(level))

	if idx.entryPoint < 0 {
		idx.entryPoint = int64(id)
		idx.maxLayer = level
		return id
	}

	ep := uint32(idx.entryPoint)
	topLayer := idx.maxLayer
	epDist := idx.distance(x, idx.features[ep])

	// Descent phase: beam-width-1 greedy search down to layer L+1.
	for lc := topLayer; lc > level; lc-- {
		ep, epDist = idx.greedyDescend(x, ep, epDist, lc)
	}
	_ = epDist

	// Connection phase: layer min(L, topLayer) down to 0.
	for lc := min(level, topLayer); lc >= 0; lc-- {
		s.prepare(idx.dMax, idx.efConstruction)
		idx.searchLayer(x, ep, lc, s)

		candidates := s.nearest.Drain()
		selected := idx.selectNeighbors(x, candidates, idx.capAtLayer(lc))
		idx.nodes[id].neighbors[lc] = selected

		for _, n := range selected {
			idx.nodes[n].addNeighbor(lc, id)
			idx.pruneIfNeeded(n, lc)
		}

		if len(candidates) > 0 {
			ep = candidates[0].Item
		}
	}

	if level > idx.maxLayer {
		idx.maxLayer = level
		idx.entryPoint = int64(id)
	}

	return id
}
