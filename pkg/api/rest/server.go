package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kavach-labs/hnswgo/pkg/api/rest/middleware"
	"github.com/kavach-labs/hnswgo/pkg/observability"
	"github.com/kavach-labs/hnswgo/pkg/tenant"
)

// Config holds the REST server configuration
type Config struct {
	Host          string
	Port          int
	CORSEnabled   bool
	CORSOrigins   []string
	Auth          middleware.AuthConfig
	RateLimit     middleware.RateLimitConfig
	CacheEnabled  bool
	CacheCapacity int
	CacheTTL      time.Duration

	DefaultEfSearch int
}

// Server represents the REST API server
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new REST API server backed by manager.
func NewServer(config Config, manager *tenant.Manager, metrics *observability.Metrics, logger *observability.Logger) (*Server, error) {
	handler := NewHandler(manager, config.CacheEnabled, config.CacheCapacity, config.CacheTTL, config.DefaultEfSearch, metrics, logger)

	server := &Server{
		config:  config,
		handler: handler,
		mux:     http.NewServeMux(),
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health and stats endpoints
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/stats", s.handler.GetStats)

	// Namespace management
	s.mux.HandleFunc("/v1/namespaces", s.routeNamespaces)
	s.mux.HandleFunc("/v1/namespaces/", s.routeNamespacesWithPath)
}

// routeNamespaces handles /v1/namespaces
func (s *Server) routeNamespaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handler.CreateNamespace(w, r)
	case http.MethodGet:
		s.handler.ListNamespaces(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// routeNamespacesWithPath handles:
//
//	GET/DELETE /v1/namespaces/{ns}
//	POST       /v1/namespaces/{ns}/vectors
//	POST       /v1/namespaces/{ns}/search
func (s *Server) routeNamespacesWithPath(w http.ResponseWriter, r *http.Request) {
	name, rest := splitNamespacePath(r.URL.Path)
	if name == "" {
		writeError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}

	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handler.GetNamespace(w, r, name)
		case http.MethodDelete:
			s.handler.DeleteNamespace(w, r, name)
		default:
			writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "vectors":
		s.handler.InsertFeature(w, r, name)
	case "search":
		s.handler.Nearest(w, r, name)
	default:
		http.NotFound(w, r)
	}
}

// withMiddleware wraps the handler with all middleware
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	// Each wrap below becomes the new outermost layer, so requests pass
	// through the middleware in the reverse of the order it is applied.

	// 1. Logging middleware (innermost, runs last before routing)
	handler = loggingMiddleware(handler)

	// 2. CORS middleware
	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}

	// 3. Rate limiting
	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	// 4. Authentication (outermost, runs first)
	handler = middleware.AuthMiddleware(s.config.Auth)(handler)

	return handler
}

// Handler returns the server's fully wrapped HTTP handler, for use with
// httptest or an externally managed listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	log.Printf("Starting REST API server on %s:%d", s.config.Host, s.config.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down REST API server...")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
