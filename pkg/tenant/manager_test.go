package tenant

import (
	"testing"
	"time"

	"github.com/kavach-labs/hnswgo/pkg/hnsw"
)

func testConfig() hnsw.Config[hnsw.Hamming128] {
	return hnsw.Config[hnsw.Hamming128]{
		M:              8,
		EfConstruction: 32,
		DMax:           128,
		Seed:           1,
	}
}

func TestManager_CreateNamespace(t *testing.T) {
	manager := NewManager(testConfig())

	quota := Quota{MaxFeatures: 10000, RateLimitQPS: 100}

	ns, err := manager.CreateNamespace("test-namespace", quota)
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	if ns.Name != "test-namespace" {
		t.Errorf("Expected name 'test-namespace', got '%s'", ns.Name)
	}
	if ns.Quota.MaxFeatures != 10000 {
		t.Errorf("Expected MaxFeatures 10000, got %d", ns.Quota.MaxFeatures)
	}
	if !ns.IsActive {
		t.Error("Expected namespace to be active")
	}
	if ns.Index == nil || ns.Searcher == nil {
		t.Error("Expected namespace to own an index and searcher")
	}
}

func TestManager_CreateDuplicateNamespace(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	if _, err := manager.CreateNamespace("test", quota); err != nil {
		t.Fatalf("first CreateNamespace failed: %v", err)
	}

	if _, err := manager.CreateNamespace("test", quota); err == nil {
		t.Error("expected error when creating duplicate namespace")
	}
}

func TestManager_GetNamespace(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	created, err := manager.CreateNamespace("test", quota)
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	retrieved, err := manager.GetNamespace("test")
	if err != nil {
		t.Fatalf("GetNamespace failed: %v", err)
	}

	if retrieved.ID != created.ID {
		t.Errorf("Expected ID '%s', got '%s'", created.ID, retrieved.ID)
	}
}

func TestManager_GetNonexistentNamespace(t *testing.T) {
	manager := NewManager(testConfig())

	if _, err := manager.GetNamespace("nonexistent"); err == nil {
		t.Error("expected error when getting nonexistent namespace")
	}
}

func TestManager_GetOrCreateNamespace(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	first, err := manager.GetOrCreateNamespace("auto", quota)
	if err != nil {
		t.Fatalf("GetOrCreateNamespace failed: %v", err)
	}

	second, err := manager.GetOrCreateNamespace("auto", UnlimitedQuota())
	if err != nil {
		t.Fatalf("GetOrCreateNamespace (second call) failed: %v", err)
	}

	if first.ID != second.ID {
		t.Error("expected GetOrCreateNamespace to return the existing namespace, not recreate it")
	}
}

func TestManager_DeleteNamespace(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	if _, err := manager.CreateNamespace("test", quota); err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	if err := manager.DeleteNamespace("test"); err != nil {
		t.Fatalf("DeleteNamespace failed: %v", err)
	}

	if _, err := manager.GetNamespace("test"); err == nil {
		t.Error("expected error when getting deleted namespace")
	}
}

func TestManager_ListNamespaces(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	manager.CreateNamespace("ns1", quota)
	manager.CreateNamespace("ns2", quota)
	manager.CreateNamespace("ns3", quota)

	namespaces := manager.ListNamespaces()
	if len(namespaces) != 3 {
		t.Errorf("Expected 3 namespaces, got %d", len(namespaces))
	}
	if manager.Count() != 3 {
		t.Errorf("Expected Count() 3, got %d", manager.Count())
	}
}

func TestManager_UpdateQuota(t *testing.T) {
	manager := NewManager(testConfig())
	quota := DefaultQuota()

	if _, err := manager.CreateNamespace("test", quota); err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	newQuota := Quota{MaxFeatures: 50000, RateLimitQPS: 500}
	if err := manager.UpdateQuota("test", newQuota); err != nil {
		t.Fatalf("UpdateQuota failed: %v", err)
	}

	ns, _ := manager.GetNamespace("test")
	if ns.Quota.MaxFeatures != 50000 {
		t.Errorf("Expected MaxFeatures 50000, got %d", ns.Quota.MaxFeatures)
	}
}

func TestNamespace_InsertAndNearest(t *testing.T) {
	manager := NewManager(testConfig())
	ns, err := manager.CreateNamespace("vectors", UnlimitedQuota())
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	var ids []uint32
	for i := 0; i < 50; i++ {
		id, err := ns.Insert(hnsw.Hamming128{Lo: uint64(i)})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ids = append(ids, id)
	}

	if ns.Len() != 50 {
		t.Fatalf("expected 50 features, got %d", ns.Len())
	}

	got, err := ns.Nearest(hnsw.Hamming128{Lo: 7}, 16, 1)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if ns.Feature(got[0]) != (hnsw.Hamming128{Lo: 7}) {
		t.Errorf("Nearest did not find the exact match: got feature %+v", ns.Feature(got[0]))
	}
}

func TestNamespace_InsertRespectsFeatureQuota(t *testing.T) {
	manager := NewManager(testConfig())
	ns, err := manager.CreateNamespace("limited", Quota{MaxFeatures: 2})
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	if _, err := ns.Insert(hnsw.Hamming128{Lo: 1}); err != nil {
		t.Fatalf("first insert should succeed: %v", err)
	}
	if _, err := ns.Insert(hnsw.Hamming128{Lo: 2}); err != nil {
		t.Fatalf("second insert should succeed: %v", err)
	}
	if _, err := ns.Insert(hnsw.Hamming128{Lo: 3}); err == nil {
		t.Error("expected third insert to fail the feature quota")
	}
}

func TestNamespace_NearestRespectsRateLimit(t *testing.T) {
	manager := NewManager(testConfig())
	ns, err := manager.CreateNamespace("throttled", Quota{MaxFeatures: -1, RateLimitQPS: 5})
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}
	ns.Insert(hnsw.Hamming128{Lo: 1})

	for i := 0; i < 5; i++ {
		if _, err := ns.Nearest(hnsw.Hamming128{}, 4, 1); err != nil {
			t.Errorf("query %d should pass: %v", i+1, err)
		}
	}

	if _, err := ns.Nearest(hnsw.Hamming128{}, 4, 1); err == nil {
		t.Error("expected rate limit to trigger after exceeding quota")
	}

	time.Sleep(1100 * time.Millisecond)
	if _, err := ns.Nearest(hnsw.Hamming128{}, 4, 1); err != nil {
		t.Errorf("query should pass after rate limit reset: %v", err)
	}
}

func TestNamespace_UsagePercentage(t *testing.T) {
	manager := NewManager(testConfig())
	ns, err := manager.CreateNamespace("usage", Quota{MaxFeatures: 1000})
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	for i := 0; i < 500; i++ {
		ns.Insert(hnsw.Hamming128{Lo: uint64(i)})
	}

	pct := ns.UsagePercentage()
	if pct["features"] != 50.0 {
		t.Errorf("Expected features 50%%, got %.2f%%", pct["features"])
	}
}

func TestNamespace_IsOverQuota(t *testing.T) {
	ns := &Namespace{
		Quota: Quota{MaxFeatures: 100},
		Usage: Usage{FeatureCount: 90},
	}

	if ns.IsOverQuota() {
		t.Error("expected namespace to not be over quota")
	}

	ns.Usage.FeatureCount = 110
	if !ns.IsOverQuota() {
		t.Error("expected namespace to be over quota")
	}
}

func TestNamespace_Metadata(t *testing.T) {
	ns := &Namespace{
		Metadata: make(map[string]interface{}),
	}

	ns.SetMetadata("owner", "test-user")
	ns.SetMetadata("plan", "premium")

	owner, exists := ns.GetMetadata("owner")
	if !exists {
		t.Error("expected metadata 'owner' to exist")
	}
	if owner != "test-user" {
		t.Errorf("Expected owner 'test-user', got '%v'", owner)
	}

	if _, exists := ns.GetMetadata("nonexistent"); exists {
		t.Error("expected metadata 'nonexistent' to not exist")
	}
}

func TestDefaultQuota(t *testing.T) {
	quota := DefaultQuota()

	if quota.MaxFeatures <= 0 {
		t.Error("expected positive MaxFeatures in default quota")
	}
	if quota.RateLimitQPS <= 0 {
		t.Error("expected positive RateLimitQPS in default quota")
	}
}

func TestUnlimitedQuota(t *testing.T) {
	quota := UnlimitedQuota()

	if quota.MaxFeatures != -1 {
		t.Error("expected unlimited MaxFeatures (-1)")
	}
	if quota.RateLimitQPS != -1 {
		t.Error("expected unlimited RateLimitQPS (-1)")
	}
}

func TestNamespace_ConcurrentInsert(t *testing.T) {
	manager := NewManager(testConfig())
	ns, err := manager.CreateNamespace("concurrent", UnlimitedQuota())
	if err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 100; i++ {
		go func(n int) {
			ns.Insert(hnsw.Hamming128{Lo: uint64(n)})
			done <- true
		}(i)
	}

	for i := 0; i < 100; i++ {
		<-done
	}

	if ns.Len() != 100 {
		t.Errorf("expected 100 features, got %d (race condition)", ns.Len())
	}
}
