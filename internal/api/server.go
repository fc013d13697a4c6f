// Package api provides the HTTP server for inkwell: a JSON API over the
// ledger, notification center, sync coordinator and note store, plus a
// server-sent event stream of bus traffic.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/daemon"
	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// Server is the inkwell HTTP API server.
type Server struct {
	app            *daemon.App
	events         *EventsHub
	log            *zap.Logger
	metricsEnabled bool
	version        string
}

// NewServer creates a server over app. The event hub is attached to the
// app's bus until Close.
func NewServer(app *daemon.App) *Server {
	hub := NewEventsHub()
	hub.Attach(app.Bus)
	return &Server{
		app:            app,
		events:         hub,
		log:            logging.OrNop(app.Log).Named("api"),
		metricsEnabled: app.Config.API.Metrics,
		version:        "dev",
	}
}

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Events returns the event hub.
func (s *Server) Events() *EventsHub { return s.events }

// Close detaches the event hub and ends open streams.
func (s *Server) Close() { s.events.Close() }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	r.Route("/api/points", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/", s.handlePoints)
		r.Post("/earn", s.handleEarn)
		r.Post("/spend", s.handleSpend)
		r.Get("/afford", s.handleAfford)
		r.Post("/daily", s.handleDaily)
	})

	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", s.handleListNotifications)
		r.Post("/", s.handleAddNotification)
		r.Delete("/", s.handleClearNotifications)
		r.Post("/read-all", s.handleReadAll)
		r.Post("/{id}/read", s.handleMarkRead)
		r.Delete("/{id}", s.handleDeleteNotification)
	})

	r.Get("/api/toasts", s.handleToasts)
	r.Delete("/api/toasts/{id}", s.handleDismissToast)

	r.Route("/api/sync", func(r chi.Router) {
		r.Get("/", s.handleSyncState)
		r.Post("/", s.handleSynchronize)
		r.Put("/mode", s.handleSyncMode)
		r.Get("/runs", s.handleSyncRuns)
	})
	r.Post("/api/connectivity", s.handleConnectivity)

	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", s.handleListNotes)
		r.Post("/", s.handleCreateNote)
		r.Get("/{id}", s.handleGetNote)
		r.Put("/{id}", s.handleUpdateNote)
		r.Delete("/{id}", s.handleDeleteNote)
	})

	r.Get("/api/milestones", s.handleMilestones)
	r.Get("/api/events", s.events.HandleSSE)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// instrument counts requests by route pattern and status code.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// ─── Sync & Connectivity ────────────────────────────────────────────────────

type syncStateResponse struct {
	domain.ConnectionState
	Phase domain.Phase `json:"phase"`
}

func stateResponse(st domain.ConnectionState) syncStateResponse {
	return syncStateResponse{ConnectionState: st, Phase: st.Phase()}
}

func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse(s.app.Sync.State()))
}

func (s *Server) handleSynchronize(w http.ResponseWriter, r *http.Request) {
	err := s.app.Synchronize(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, stateResponse(s.app.Sync.State()))
	case errors.Is(err, domain.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleSyncMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.Sync.SetMode(domain.SyncMode(req.Mode)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(s.app.Sync.State()))
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": s.app.Tracer.Spans(limit),
	})
}

// handleConnectivity pins the online state, or resumes probing with
// {"release": true}.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online  *bool `json:"online"`
		Release bool  `json:"release"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.Release:
		s.app.Connectivity.Release()
		s.app.Connectivity.ProbeOnce(r.Context())
	case req.Online != nil:
		s.app.Connectivity.Force(*req.Online)
	default:
		writeError(w, http.StatusBadRequest, `expected "online" or "release"`)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(s.app.Sync.State()))
}

// ─── Milestones ─────────────────────────────────────────────────────────────

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	if s.app.Milestones == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"milestones": []domain.Milestone{}})
		return
	}
	list, err := s.app.Milestones.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"milestones": list})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
