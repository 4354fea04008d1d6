package hnsw

// Nearest finds up to k approximate nearest neighbors of query, writing
// their feature-ids into out (ascending distance) and returning the
// written prefix. ef controls the beam width used at layer 0; it is raised
// to k if smaller, per §4.4.3. s is borrowed for the duration of the call.
//
// Nearest never fails: on an empty index it returns out[:0].
func (idx *Index[T]) Nearest(query T, ef, k int, s *Searcher, out []uint32) []uint32 {
	if idx.entryPoint < 0 {
		return out[:0]
	}
	if ef < k {
		ef = k
	}

	ep := uint32(idx.entryPoint)
	epDist := idx.distance(query, idx.features[ep])
	for lc := idx.maxLayer; lc > 0; lc-- {
		ep, epDist = idx.greedyDescend(query, ep, epDist, lc)
	}
	_ = epDist

	s.prepare(idx.dMax, ef)
	idx.searchLayer(query, ep, 0, s)

	if len(out) > k {
		out = out[:k]
	}
	return s.nearest.FillSlice(out)
}
