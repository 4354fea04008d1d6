package hnsw

import (
	"reflect"
	"testing"
)

// buildDeterministic constructs an index from a fixed feature sequence under
// a fixed seed and returns the neighbor list of every node at every layer,
// flattened in (id, layer) order.
func buildDeterministic(seed int64, features []uint32) [][]uint32 {
	idx := New(Config[uint32]{
		M:              10,
		EfConstruction: 40,
		DMax:           32,
		Seed:           seed,
		Distance:       HammingUint32,
	})
	s := NewSearcher()
	for _, f := range features {
		idx.Insert(f, s)
	}

	var snapshot [][]uint32
	for id := uint32(0); id < uint32(idx.Len()); id++ {
		level := idx.Level(id)
		for l := 0; l <= level; l++ {
			snapshot = append(snapshot, idx.Neighbors(id, l))
		}
	}
	return snapshot
}

// TestDeterministicBuild is P5: a fixed seed and a fixed insert order
// produce identical neighbor lists across two independent builds.
func TestDeterministicBuild(t *testing.T) {
	features := make([]uint32, 400)
	state := uint32(12345)
	for i := range features {
		state = state*1664525 + 1013904223
		features[i] = state
	}

	a := buildDeterministic(77, features)
	b := buildDeterministic(77, features)

	if len(a) != len(b) {
		t.Fatalf("snapshot length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Fatalf("neighbor list %d diverged: %v vs %v", i, a[i], b[i])
		}
	}
}

// TestDifferentSeedsCanDiverge documents that the determinism guarantee is
// specific to a fixed seed: a different seed is not required to reproduce
// the same graph (it may, by chance, for a tiny input, so this only checks
// that both builds succeed and produce non-empty snapshots).
func TestDifferentSeedsCanDiverge(t *testing.T) {
	features := make([]uint32, 300)
	state := uint32(999)
	for i := range features {
		state = state*1664525 + 1013904223
		features[i] = state
	}

	a := buildDeterministic(1, features)
	b := buildDeterministic(2, features)
	if len(a) == 0 || len(b) == 0 {
		t.Fatal("expected non-empty snapshots")
	}
}
