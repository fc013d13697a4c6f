package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// ─── Notifications API ──────────────────────────────────────────────────────

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": s.app.Notify.List(),
		"unread_count":  s.app.Notify.UnreadCount(),
	})
}

func (s *Server) handleAddNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string `json:"type"`
		Action  string `json:"action"`
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" && req.Message == "" {
		writeError(w, http.StatusBadRequest, "title or message is required")
		return
	}
	action := domain.Action(req.Action)
	if action == "" {
		action = domain.ActionSystem
	}
	rec, added := s.app.Notify.Add(domain.NotificationType(req.Type), action, req.Title, req.Message)
	if !added {
		writeJSON(w, http.StatusOK, map[string]interface{}{"deduplicated": true})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Notify.MarkAsRead(chi.URLParam(r, "id")); err != nil {
		writeNotificationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	s.app.Notify.MarkAllAsRead()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Notify.Delete(chi.URLParam(r, "id")); err != nil {
		writeNotificationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.app.Notify.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"toasts": s.app.Notify.Toasts(),
	})
}

func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	if !s.app.Notify.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "toast not visible")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeNotificationError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
