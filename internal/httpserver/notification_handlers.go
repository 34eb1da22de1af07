package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storefront-sync/internal/identity"
	"storefront-sync/internal/notifications"
)

const streamEventName = "notifications"

// handleNotifications serves the latest notifications of the caller
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := s.deps.Notifications.GetLatest(r.Context(), limit, identity.UserID(r.Context()))
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Upstream error: %v", err), http.StatusBadGateway)
		return
	}
	s.writeResponse(w, &NotificationsResponse{Items: items})
}

// handleUnreadCount serves the inbox badge count
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.deps.Notifications.GetUnreadCount(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Upstream error: %v", err), http.StatusBadGateway)
		return
	}
	s.writeResponse(w, &UnreadCountResponse{Count: count})
}

// handleMarkRead marks one notification read. Failures are absorbed by the service.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.deps.Notifications.MarkAsRead(r.Context(), id, identity.UserID(r.Context()))
	s.writeResponse(w, &SuccessResponse{Success: true})
}

// handleMarkAllRead marks every notification of the caller read
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	s.deps.Notifications.MarkAllAsRead(r.Context(), identity.UserID(r.Context()))
	s.writeResponse(w, &SuccessResponse{Success: true})
}

// handleStream mounts a toast surface for the connection and streams its
// view as server-sent events until the client goes away
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErrorResponse(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	userID := identity.UserID(ctx)

	surface, err := notifications.MountSurface(ctx, s.deps.Surfaces, userID)
	if err != nil {
		s.logger.Warn("Failed to mount notification surface", zap.String("user_id", userID), zap.Error(err))
		s.writeErrorResponse(w, "Failed to open notification stream", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if err := surface.Close(); err != nil {
			s.logger.Warn("Failed to close notification surface", zap.Error(err))
		}
	}()

	// only the latest view matters to the client
	views := make(chan notifications.View, 1)
	unsubscribe := surface.Subscribe(func(v notifications.View) {
		for {
			select {
			case views <- v:
				return
			default:
			}
			select {
			case <-views:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	transport := surface.Transport()
	if err := s.writeEvent(w, StreamEvent{Transport: transport, View: surface.Items()}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-views:
			if err := s.writeEvent(w, StreamEvent{Transport: transport, View: v}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, event StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode stream event", zap.Error(err))
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", streamEventName, payload); err != nil {
		s.logger.Debug("Notification stream closed by client", zap.Error(err))
		return err
	}
	return nil
}
