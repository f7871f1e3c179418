package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/whackboard/internal/domain"
	"github.com/whackboard/internal/service"
	"github.com/whackboard/internal/websocket"
)

// Handler provides HTTP handlers for the scoring ledger API
type Handler struct {
	ledger *service.Ledger
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(ledger *service.Ledger, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		hub:    hub,
		logger: logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Scoring events
		r.Post("/events", h.SubmitEvent)
		r.Post("/events/batch", h.SubmitEventBatch)

		// Leaderboard views
		r.Get("/leaderboard", h.GetLeaderboard)

		// Player profiles
		r.Route("/players/{userID}", func(r chi.Router) {
			r.Get("/", h.GetProfile)
			r.Get("/position", h.GetPosition)
		})

		// Aggregate stats
		r.Get("/stats", h.GetStats)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a pipeline error to its HTTP status
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidUserID), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrUnknownEventKind):
		h.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrProfileNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.Error("profile store unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitEvent handles a single scoring event
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.ScoreEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.ledger.RecordEvent(r.Context(), event)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, profile)
}

// SubmitEventBatch handles batch event submission
func (h *Handler) SubmitEventBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchScoreEvents
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if len(batch.Events) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.ledger.RecordEventBatch(r.Context(), batch); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"status":   "accepted",
		"received": len(batch.Events),
	})
}

// GetLeaderboard returns the top N ranked profiles for a scope
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	scope := domain.ParseScope(r.URL.Query().Get("scope"))

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.ledger.Leaderboard(r.Context(), scope, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, entries)
}

// GetProfile returns a player's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.ledger.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, profile)
}

// GetPosition returns a player's leaderboard position for a scope
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	scope := domain.ParseScope(r.URL.Query().Get("scope"))

	pos, err := h.ledger.GetPosition(r.Context(), scope, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, pos)
}

// GetStats returns aggregate ledger statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, stats)
}
