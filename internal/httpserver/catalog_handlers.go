package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/models"
	"storefront-sync/internal/swr"
)

// handleCategories serves the shared categories resource
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	serveResource(r.Context(), s, w, s.deps.Catalog.Categories())
}

// handleCategoriesRevalidate forces a refetch after an admin write
func (s *Server) handleCategoriesRevalidate(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Catalog.Categories()
	data, err := res.Revalidate(r.Context())
	if err != nil {
		s.logger.Warn("Categories revalidation failed", zap.Error(err))
		s.writeErrorResponse(w, fmt.Sprintf("Revalidation failed: %v", err), http.StatusBadGateway)
		return
	}
	s.writeResponse(w, resourceResponse(res.State(), data))
}

// handleDashboardStats serves the admin dashboard summary
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	serveResource(r.Context(), s, w, s.deps.Catalog.DashboardStats())
}

// handleQuery serves an arbitrary table query through a cached resource
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q models.Query
	if err := s.parseRequest(r, &q); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	res, err := s.deps.Catalog.Query(q)
	if errors.Is(err, catalog.ErrTableNotQueryable) {
		s.writeErrorResponse(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	serveResource(r.Context(), s, w, res)
}

// serveResource loads res and writes its value. A failed load that still
// has data to show serves that data.
func serveResource[T any](ctx context.Context, s *Server, w http.ResponseWriter, res *swr.Resource[T]) {
	data, err := res.Load(ctx)
	state := res.State()
	if err != nil && !state.HasData {
		s.writeErrorResponse(w, fmt.Sprintf("Upstream error: %v", err), http.StatusBadGateway)
		return
	}
	res.Check(ctx)
	s.writeResponse(w, resourceResponse(state, data))
}

func resourceResponse[T any](state swr.State[T], data T) ResourceResponse {
	resp := ResourceResponse{Data: data, Validating: state.Validating}
	if !state.FetchedAt.IsZero() {
		fetchedAt := state.FetchedAt.UTC()
		resp.FetchedAt = &fetchedAt
	}
	return resp
}
