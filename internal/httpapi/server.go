// Package httpapi is the HTTP boundary: a chi router exposing health,
// WebSocket status, test-alert, EventLog, and Alert/Variation/Template/
// Setting CRUD endpoints over the core components.
//
// This generalizes the dashboard server's rest package: the same
// chi.Router + middleware.RequestID/RealIP/Recoverer foundation, the same
// writeError/writeJSON response shape, but JWT auth is dropped (the sidecar
// binds loopback-only, per its own Non-goals) in favor of an explicit
// localhost CORS allow-list.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/streamforge/sidecar/internal/alertqueue"
	"github.com/streamforge/sidecar/internal/apperr"
	"github.com/streamforge/sidecar/internal/hub"
	"github.com/streamforge/sidecar/internal/models"
	"github.com/streamforge/sidecar/internal/repository"
	"github.com/streamforge/sidecar/internal/resolver"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	repo     *repository.Repository
	resolver *resolver.Resolver
	queue    *alertqueue.Queue
	hub      *hub.Hub
	logger   *slog.Logger

	port      int
	startedAt time.Time
}

// New builds a Server. port is the bound listen port, reported by
// /api/health.
func New(repo *repository.Repository, res *resolver.Resolver, queue *alertqueue.Queue, h *hub.Hub, logger *slog.Logger, port int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		repo:      repo,
		resolver:  res,
		queue:     queue,
		hub:       h,
		logger:    logger,
		port:      port,
		startedAt: time.Now(),
	}
}

// localhostOrigins is the explicit CORS allow-list: loopback over any port,
// plus the two well-known desktop-shell webview origins the companion app
// embeds the overlay editor under.
var localhostOrigins = []string{
	"http://127.0.0.1:*",
	"http://localhost:*",
	"tauri://localhost",
	"app://.",
}

// Router builds the full chi.Router for the sidecar's HTTP boundary.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   localhostOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws/status", s.handleWSStatus)

	r.Post("/api/test-alert", s.handleTestAlert)
	r.Post("/api/test-alert/clear", s.handleTestAlertClear)
	r.Get("/api/test-alert/status", s.handleTestAlertStatus)

	r.Get("/api/events", s.handleListEvents)
	r.Get("/api/events/range", s.handleListEventsByRange)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", s.handleListAlerts)
		r.Post("/", s.handleCreateAlert)
		r.Get("/{id}", s.handleGetAlert)
		r.Patch("/{id}", s.handleUpdateAlert)
		r.Delete("/{id}", s.handleDeleteAlert)
		r.Post("/{id}/variations", s.handleCreateVariation)
	})

	r.Route("/api/variations", func(r chi.Router) {
		r.Patch("/{id}", s.handleUpdateVariation)
		r.Delete("/{id}", s.handleDeleteVariation)
	})

	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/", s.handleCreateTemplate)
		r.Get("/{id}", s.handleGetTemplate)
		r.Put("/{id}", s.handleUpdateTemplate)
		r.Delete("/{id}", s.handleDeleteTemplate)
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/{key}", s.handleGetSetting)
		r.Put("/{key}", s.handleSetSetting)
	})

	for _, ns := range []string{hub.NamespaceAlerts, hub.NamespaceChat, hub.NamespaceWidgets, hub.NamespaceDashboard} {
		r.Get("/ws"+ns, s.hub.ServeWS(ns))
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"port":           s.port,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	namespaces := []string{hub.NamespaceAlerts, hub.NamespaceChat, hub.NamespaceWidgets, hub.NamespaceDashboard}
	clients := map[string]int{}
	total := 0
	for _, ns := range namespaces {
		n := s.hub.ClientCount(ns)
		clients[ns] = n
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespaces":   namespaces,
		"clients":      clients,
		"totalClients": total,
	})
}

type testAlertRequest struct {
	Type        models.AlertType `json:"type"`
	Username    string           `json:"username"`
	DisplayName string           `json:"displayName"`
	Amount      *float64         `json:"amount"`
	Tier        string           `json:"tier"`
	Message     string           `json:"message"`
	AnimationIn string           `json:"animation_in"`
	AnimationOut string          `json:"animation_out"`
	DurationMs  *int             `json:"duration_ms"`
}

func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	var req testAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Username == "" {
		req.Username = "TestUser"
	}

	facts := models.Facts{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Amount:      req.Amount,
		Tier:        req.Tier,
	}

	spec, err := s.resolver.Resolve(r.Context(), req.Type, facts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolve failed")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	s.logTestAlertEvent(r.Context(), req, displayName, spec != nil)

	if spec == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "no_match",
			"queueLength": s.queue.Length(),
		})
		return
	}

	merged := *spec
	if req.AnimationIn != "" {
		merged.AnimationIn = req.AnimationIn
	}
	if req.AnimationOut != "" {
		merged.AnimationOut = req.AnimationOut
	}
	if req.DurationMs != nil {
		merged.DurationMs = *req.DurationMs
	}

	instanceID, ok := s.queue.Enqueue(alertqueue.Request{
		Type:        req.Type,
		Username:    req.Username,
		DisplayName: displayName,
		Amount:      req.Amount,
		Message:     req.Message,
		Config:      merged,
	})
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid test alert request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "queued",
		"alertId":     instanceID,
		"queueLength": s.queue.Length(),
	})
}

// logTestAlertEvent writes the Event Logger record for a test-alert event
// before any dispatch decision is surfaced to the caller. Logging failures
// never block or fail the request; they are only logged.
func (s *Server) logTestAlertEvent(ctx context.Context, req testAlertRequest, displayName string, alertFired bool) {
	var message *string
	if req.Message != "" {
		message = &req.Message
	}
	_, err := s.repo.CreateEventLog(ctx, models.EventLog{
		Platform:    "test",
		EventType:   string(req.Type),
		Username:    req.Username,
		DisplayName: displayName,
		Amount:      req.Amount,
		Message:     message,
		AlertFired:  alertFired,
	})
	if err != nil {
		s.logger.Warn("event logger: failed to record test-alert event", "error", err)
	}
}

func (s *Server) handleTestAlertClear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cleared": s.queue.Clear()})
}

func (s *Server) handleTestAlertStatus(w http.ResponseWriter, r *http.Request) {
	current, ok := s.queue.Current()
	var currentAlert any
	if ok {
		currentAlert = current
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currentAlert": currentAlert,
		"queueLength":  s.queue.Length(),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EventLogFilter{
		EventType: q.Get("eventType"),
		Platform:  q.Get("platform"),
		Search:    q.Get("search"),
	}
	if q.Get("alertFired") == "true" {
		filter.AlertFiredOnly = true
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	events, err := s.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []models.EventLog{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListEventsByRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "'from' must be a valid RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "'to' must be a valid RFC3339 timestamp")
		return
	}

	events, err := s.repo.ListByRange(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []models.EventLog{}
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps an apperr-wrapped error to its documented HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case apperr.Is(err, apperr.Validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case apperr.Is(err, apperr.NotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case apperr.Is(err, apperr.Forbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case apperr.Is(err, apperr.Conflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
