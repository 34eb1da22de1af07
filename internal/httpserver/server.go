package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/catalog"
	"storefront-sync/internal/identity"
	"storefront-sync/internal/notifications"
)

// Deps are the subsystem services the HTTP surface consumes
type Deps struct {
	Cache         *cache.KeyedCache
	Catalog       *catalog.Catalog
	Notifications *notifications.Service
	Surfaces      notifications.SurfaceDeps
	Verifier      *identity.Verifier
}

// Server exposes the freshness subsystem to browser clients
type Server struct {
	deps   Deps
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{
		deps:   deps,
		logger: logger,
	}
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: event streams stay open
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", listener.Addr().String()))
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.createRouter()
}

// createRouter creates and configures the HTTP router
func (s *Server) createRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware, s.loggingMiddleware, s.identityMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/cache/stats", s.handleCacheStats).Methods("GET")
	router.HandleFunc("/cache/invalidate", s.requireAdmin(s.handleCacheInvalidate)).Methods("POST")

	router.HandleFunc("/categories", s.handleCategories).Methods("GET")
	router.HandleFunc("/categories/revalidate", s.requireAdmin(s.handleCategoriesRevalidate)).Methods("POST")
	router.HandleFunc("/dashboard/stats", s.handleDashboardStats).Methods("GET")
	router.HandleFunc("/query", s.handleQuery).Methods("POST")

	router.HandleFunc("/notifications", s.handleNotifications).Methods("GET")
	router.HandleFunc("/notifications/unread-count", s.handleUnreadCount).Methods("GET")
	router.HandleFunc("/notifications/read-all", s.handleMarkAllRead).Methods("POST")
	router.HandleFunc("/notifications/stream", s.handleStream).Methods("GET")
	router.HandleFunc("/notifications/{id}/read", s.handleMarkRead).Methods("POST")

	return router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// parseRequest parses JSON request body
func (s *Server) parseRequest(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	return json.Unmarshal(body, v)
}

// writeResponse writes JSON response
func (s *Server) writeResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeErrorResponse writes error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{Success: false, Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to write error response", zap.Error(err))
	}
}
