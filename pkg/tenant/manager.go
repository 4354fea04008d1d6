package tenant

import (
	"fmt"
	"sync"
	"time"

	"github.com/kavach-labs/hnswgo/pkg/hnsw"
)

// Quota represents resource limits for a namespace.
type Quota struct {
	MaxFeatures  int64 // Maximum number of indexed features, -1 for unlimited
	RateLimitQPS int   // Queries per second limit, -1 for unlimited
}

// Usage tracks current resource usage for a namespace.
type Usage struct {
	FeatureCount  int64
	LastQueryTime time.Time
	QueryCount    int64
}

// Namespace owns one HNSW index and its reusable search state. The core
// hnsw package is single-threaded by design (see pkg/hnsw), so every access
// to Index and Searcher must hold mu for the duration of the call.
type Namespace struct {
	ID        string
	Name      string
	Quota     Quota
	Usage     Usage
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
	Metadata  map[string]interface{}

	Index    *hnsw.Index[hnsw.Hamming128]
	Searcher *hnsw.Searcher

	mu sync.Mutex
}

// Manager handles namespace lifecycle, index ownership, and quota
// enforcement.
type Manager struct {
	namespaces map[string]*Namespace
	hnswConfig hnsw.Config[hnsw.Hamming128]
	mu         sync.RWMutex
}

// NewManager creates a new namespace manager. Every namespace it creates
// builds its HNSW index from cfg (the Distance field is always overridden
// with hnsw.HammingDistance128, since a Manager only hosts fixed-width
// 128-bit feature namespaces).
func NewManager(cfg hnsw.Config[hnsw.Hamming128]) *Manager {
	cfg.Distance = hnsw.HammingDistance128
	return &Manager{
		namespaces: make(map[string]*Namespace),
		hnswConfig: cfg,
	}
}

// CreateNamespace creates a new namespace with its own HNSW index.
func (m *Manager) CreateNamespace(name string, quota Quota) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.namespaces[name]; exists {
		return nil, fmt.Errorf("namespace '%s' already exists", name)
	}

	ns := &Namespace{
		ID:        generateNamespaceID(name),
		Name:      name,
		Quota:     quota,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		IsActive:  true,
		Metadata:  make(map[string]interface{}),
		Index:     hnsw.New(m.hnswConfig),
		Searcher:  hnsw.NewSearcher(),
	}

	m.namespaces[name] = ns
	return ns, nil
}

// GetNamespace retrieves a namespace by name.
func (m *Manager) GetNamespace(name string) (*Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, exists := m.namespaces[name]
	if !exists {
		return nil, fmt.Errorf("namespace '%s' not found", name)
	}

	return ns, nil
}

// GetOrCreateNamespace retrieves a namespace, creating it with quota if it
// does not already exist.
func (m *Manager) GetOrCreateNamespace(name string, quota Quota) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, exists := m.namespaces[name]; exists {
		return ns, nil
	}

	ns := &Namespace{
		ID:        generateNamespaceID(name),
		Name:      name,
		Quota:     quota,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		IsActive:  true,
		Metadata:  make(map[string]interface{}),
		Index:     hnsw.New(m.hnswConfig),
		Searcher:  hnsw.NewSearcher(),
	}
	m.namespaces[name] = ns
	return ns, nil
}

// DeleteNamespace removes a namespace and its index.
func (m *Manager) DeleteNamespace(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.namespaces[name]; !exists {
		return fmt.Errorf("namespace '%s' not found", name)
	}

	delete(m.namespaces, name)
	return nil
}

// ListNamespaces returns all namespaces.
func (m *Manager) ListNamespaces() []*Namespace {
	m.mu.RLock()
	defer m.mu.RUnlock()

	namespaces := make([]*Namespace, 0, len(m.namespaces))
	for _, ns := range m.namespaces {
		namespaces = append(namespaces, ns)
	}

	return namespaces
}

// Count returns the number of namespaces, active or not.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces)
}

// UpdateQuota updates the quota for a namespace.
func (m *Manager) UpdateQuota(name string, quota Quota) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, exists := m.namespaces[name]
	if !exists {
		return fmt.Errorf("namespace '%s' not found", name)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.Quota = quota
	ns.UpdatedAt = time.Now()

	return nil
}

// Insert inserts a feature into the namespace's index, enforcing the
// feature quota. It returns the assigned feature-id.
func (ns *Namespace) Insert(feature hnsw.Hamming128) (uint32, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.Quota.MaxFeatures > 0 && int64(ns.Index.Len())+1 > ns.Quota.MaxFeatures {
		return 0, fmt.Errorf("feature quota exceeded: current=%d, max=%d",
			ns.Index.Len(), ns.Quota.MaxFeatures)
	}

	id := ns.Index.Insert(feature, ns.Searcher)
	ns.Usage.FeatureCount = int64(ns.Index.Len())
	ns.UpdatedAt = time.Now()
	return id, nil
}

// Nearest finds the k approximate nearest neighbors of query, enforcing the
// namespace's rate limit.
func (ns *Namespace) Nearest(query hnsw.Hamming128, ef, k int) ([]uint32, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if err := ns.checkRateLimitLocked(); err != nil {
		return nil, err
	}

	out := make([]uint32, k)
	result := ns.Index.Nearest(query, ef, k, ns.Searcher, out)
	ids := make([]uint32, len(result))
	copy(ids, result)
	return ids, nil
}

// Feature returns the feature stored under id.
func (ns *Namespace) Feature(id uint32) hnsw.Hamming128 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.Index.Feature(id)
}

// Len returns the number of features currently indexed.
func (ns *Namespace) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.Index.Len()
}

// checkRateLimitLocked enforces RateLimitQPS. Callers must hold ns.mu.
func (ns *Namespace) checkRateLimitLocked() error {
	if ns.Quota.RateLimitQPS <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(ns.Usage.LastQueryTime) < time.Second {
		if ns.Usage.QueryCount >= int64(ns.Quota.RateLimitQPS) {
			return fmt.Errorf("rate limit exceeded: %d queries per second (max: %d)",
				ns.Usage.QueryCount, ns.Quota.RateLimitQPS)
		}
	} else {
		ns.Usage.QueryCount = 0
		ns.Usage.LastQueryTime = now
	}

	ns.Usage.QueryCount++
	return nil
}

// UsagePercentage returns feature-count usage as a percentage of quota.
func (ns *Namespace) UsagePercentage() map[string]float64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	percentages := make(map[string]float64)
	if ns.Quota.MaxFeatures > 0 {
		percentages["features"] = float64(ns.Usage.FeatureCount) / float64(ns.Quota.MaxFeatures) * 100
	}
	return percentages
}

// IsOverQuota reports whether the namespace exceeds its feature quota.
func (ns *Namespace) IsOverQuota() bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.Quota.MaxFeatures > 0 && ns.Usage.FeatureCount > ns.Quota.MaxFeatures
}

// SetActive sets the namespace active status.
func (ns *Namespace) SetActive(active bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.IsActive = active
	ns.UpdatedAt = time.Now()
}

// GetMetadata retrieves namespace metadata.
func (ns *Namespace) GetMetadata(key string) (interface{}, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	value, exists := ns.Metadata[key]
	return value, exists
}

// SetMetadata sets namespace metadata.
func (ns *Namespace) SetMetadata(key string, value interface{}) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.Metadata[key] = value
	ns.UpdatedAt = time.Now()
}

// generateNamespaceID generates a unique namespace ID.
func generateNamespaceID(name string) string {
	return fmt.Sprintf("ns_%s_%d", name, time.Now().UnixNano())
}

// DefaultQuota returns a conservative default quota.
func DefaultQuota() Quota {
	return Quota{
		MaxFeatures:  1000000, // 1M features
		RateLimitQPS: 1000,
	}
}

// UnlimitedQuota returns an unlimited quota configuration.
func UnlimitedQuota() Quota {
	return Quota{
		MaxFeatures:  -1,
		RateLimitQPS: -1,
	}
}
