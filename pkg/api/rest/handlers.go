package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kavach-labs/hnswgo/pkg/hnsw"
	"github.com/kavach-labs/hnswgo/pkg/observability"
	"github.com/kavach-labs/hnswgo/pkg/search"
	"github.com/kavach-labs/hnswgo/pkg/tenant"
)

// Handler serves the HNSW namespace and search API over the tenant manager.
type Handler struct {
	manager *tenant.Manager

	cacheEnabled  bool
	cacheCapacity int
	cacheTTL      time.Duration

	defaultEfSearch int

	metrics *observability.Metrics
	logger  *observability.Logger

	mu     sync.Mutex
	caches map[string]*search.CachedNamespace
}

// NewHandler creates a new API handler backed by manager. defaultEfSearch
// is used as the search beam width when a request omits ef.
func NewHandler(manager *tenant.Manager, cacheEnabled bool, cacheCapacity int, cacheTTL time.Duration, defaultEfSearch int, metrics *observability.Metrics, logger *observability.Logger) *Handler {
	return &Handler{
		manager:         manager,
		cacheEnabled:    cacheEnabled,
		cacheCapacity:   cacheCapacity,
		cacheTTL:        cacheTTL,
		defaultEfSearch: defaultEfSearch,
		metrics:         metrics,
		logger:          logger,
		caches:          make(map[string]*search.CachedNamespace),
	}
}

// cachedNamespace returns the namespace and, if caching is enabled, its
// lazily-created query cache wrapper.
func (h *Handler) cachedNamespace(name string) (*tenant.Namespace, *search.CachedNamespace, error) {
	ns, err := h.manager.GetNamespace(name)
	if err != nil {
		return nil, nil, err
	}
	if !h.cacheEnabled {
		return ns, nil, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cn, ok := h.caches[name]
	if !ok {
		cn = search.NewCachedNamespace(ns, h.cacheCapacity, h.cacheTTL)
		h.caches[name] = cn
	}
	return ns, cn, nil
}

// featureJSON is the wire representation of a 128-bit Hamming feature.
type featureJSON struct {
	Hi uint64 `json:"hi"`
	Lo uint64 `json:"lo"`
}

func (f featureJSON) toFeature() hnsw.Hamming128 {
	return hnsw.Hamming128{Hi: f.Hi, Lo: f.Lo}
}

func fromFeature(f hnsw.Hamming128) featureJSON {
	return featureJSON{Hi: f.Hi, Lo: f.Lo}
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	namespaces := h.manager.ListNamespaces()
	h.metrics.UpdateNamespaceCount(len(namespaces))

	stats := make([]map[string]interface{}, 0, len(namespaces))
	for _, ns := range namespaces {
		stats = append(stats, map[string]interface{}{
			"name":     ns.Name,
			"features": ns.Len(),
			"active":   ns.IsActive,
		})
	}

	writeJSON(w, map[string]interface{}{
		"namespace_count": len(namespaces),
		"namespaces":      stats,
	}, http.StatusOK)
}

// createNamespaceRequest is the body for POST /v1/namespaces
type createNamespaceRequest struct {
	Name         string `json:"name"`
	MaxFeatures  int64  `json:"max_features"`
	RateLimitQPS int    `json:"rate_limit_qps"`
}

// CreateNamespace handles POST /v1/namespaces
func (h *Handler) CreateNamespace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createNamespaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	quota := tenant.DefaultQuota()
	if req.MaxFeatures != 0 {
		quota.MaxFeatures = req.MaxFeatures
	}
	if req.RateLimitQPS != 0 {
		quota.RateLimitQPS = req.RateLimitQPS
	}

	ns, err := h.manager.CreateNamespace(req.Name, quota)
	if err != nil {
		h.metrics.RecordError("CreateNamespace", "already_exists")
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":   ns.ID,
		"name": ns.Name,
	}, http.StatusCreated)
}

// ListNamespaces handles GET /v1/namespaces
func (h *Handler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	namespaces := h.manager.ListNamespaces()
	names := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		names = append(names, ns.Name)
	}
	writeJSON(w, map[string]interface{}{"namespaces": names}, http.StatusOK)
}

// GetNamespace handles GET /v1/namespaces/{ns}
func (h *Handler) GetNamespace(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ns, err := h.manager.GetNamespace(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":        ns.ID,
		"name":      ns.Name,
		"features":  ns.Len(),
		"active":    ns.IsActive,
		"usage_pct": ns.UsagePercentage(),
		"quota": map[string]interface{}{
			"max_features":   ns.Quota.MaxFeatures,
			"rate_limit_qps": ns.Quota.RateLimitQPS,
		},
	}, http.StatusOK)
}

// DeleteNamespace handles DELETE /v1/namespaces/{ns}
func (h *Handler) DeleteNamespace(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.manager.DeleteNamespace(name); err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	h.mu.Lock()
	delete(h.caches, name)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// insertRequest is the body for POST /v1/namespaces/{ns}/vectors
type insertRequest struct {
	Feature featureJSON `json:"feature"`
}

// InsertFeature handles POST /v1/namespaces/{ns}/vectors
func (h *Handler) InsertFeature(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ns, cn, err := h.cachedNamespace(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	id, err := ns.Insert(req.Feature.toFeature())
	if err != nil {
		h.metrics.RecordError("Insert", "quota_exceeded")
		writeError(w, err.Error(), http.StatusInsufficientStorage)
		return
	}

	if cn != nil {
		cn.InvalidateCache()
	}

	h.metrics.RecordInsert(name, 1)
	h.metrics.UpdateIndexSize(name, ns.Len())
	h.metrics.RecordRequest("Insert", "success", time.Since(start))

	writeJSON(w, map[string]interface{}{"id": id}, http.StatusCreated)
}

// searchRequest is the body for POST /v1/namespaces/{ns}/search
type searchRequest struct {
	Query featureJSON `json:"query"`
	Ef    int         `json:"ef"`
	K     int         `json:"k"`
}

// Nearest handles POST /v1/namespaces/{ns}/search
func (h *Handler) Nearest(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.K < 1 {
		writeError(w, "k must be >= 1", http.StatusBadRequest)
		return
	}
	if req.Ef <= 0 {
		req.Ef = h.defaultEfSearch
	}
	if req.Ef < req.K {
		req.Ef = req.K
	}

	ns, cn, err := h.cachedNamespace(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	var ids []uint32
	if cn != nil {
		ids, err = cn.Nearest(req.Query.toFeature(), req.Ef, req.K)
	} else {
		ids, err = ns.Nearest(req.Query.toFeature(), req.Ef, req.K)
	}
	if err != nil {
		h.metrics.RecordError("Nearest", "rate_limited")
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	results := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		results[i] = map[string]interface{}{
			"id":      id,
			"feature": fromFeature(ns.Feature(id)),
		}
	}

	h.metrics.RecordSearch(time.Since(start), len(ids))
	h.metrics.RecordRequest("Nearest", "success", time.Since(start))

	writeJSON(w, map[string]interface{}{"results": results}, http.StatusOK)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// ParseIntQuery parses an integer query parameter
func ParseIntQuery(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// splitNamespacePath splits "/v1/namespaces/{name}/{rest...}" into the
// namespace name and whatever trails it.
func splitNamespacePath(path string) (name string, rest string) {
	trimmed := strings.TrimPrefix(path, "/v1/namespaces/")
	parts := strings.SplitN(trimmed, "/", 2)
	name = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return name, rest
}
