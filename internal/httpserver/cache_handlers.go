package httpserver

import (
	"net/http"

	"go.uber.org/zap"
)

// handleCacheStats reports the keyed cache counters
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, s.deps.Cache.Stats())
}

// handleCacheInvalidate drops entries by key, prefix, query table or all of them
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := s.parseRequest(r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !req.All && req.Prefix == "" && req.Table == "" && len(req.Keys) == 0 {
		s.writeErrorResponse(w, "Missing required fields: one of keys, prefix, table, all", http.StatusBadRequest)
		return
	}

	removed := 0
	if req.All {
		removed = s.deps.Cache.Stats().TotalEntries
		s.deps.Cache.Clear()
	} else {
		// keys count whether or not they were cached
		for _, key := range req.Keys {
			s.deps.Cache.Delete(key)
			removed++
		}
		if req.Prefix != "" {
			removed += s.deps.Cache.DeletePrefix(req.Prefix)
		}
		if req.Table != "" {
			removed += s.deps.Catalog.InvalidateQueries(req.Table)
		}
	}

	s.logger.Info("Invalidated cache entries",
		zap.Bool("all", req.All),
		zap.String("prefix", req.Prefix),
		zap.String("table", req.Table),
		zap.Int("removed", removed))

	s.writeResponse(w, &InvalidateResponse{Success: true, Removed: removed})
}
