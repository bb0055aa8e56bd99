package episodes

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// Handlers provides HTTP handlers for episode lifecycle endpoints
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new episode handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "episodes").Logger(),
	}
}

// RegisterRoutes registers all episode routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/episodes", func(r chi.Router) {
		r.Post("/start", h.HandleStart)
		r.Get("/active", h.HandleGetActive)
		r.Get("/completed", h.HandleGetCompleted)
		r.Post("/decisions", h.HandleRecordDecision)
		r.Post("/close", h.HandleClose)
	})
}

// StartRequest is the request body for starting an episode
type StartRequest struct {
	UserID string `json:"user_id"`
}

// HandleStart begins a new trading episode
// POST /api/episodes/start
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	episode, err := h.service.Start(req.UserID)
	if err != nil {
		h.writeError(w, err, "Failed to start episode")
		return
	}

	h.writeJSON(w, http.StatusCreated, episode)
}

// HandleGetActive returns the user's currently active episode
// GET /api/episodes/active?user_id=
func (h *Handlers) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	episode, err := h.service.GetActive(userID)
	if err != nil {
		h.writeError(w, err, "Failed to get active episode")
		return
	}

	h.writeJSON(w, http.StatusOK, episode)
}

// HandleGetCompleted returns the user's completed episodes, most recent first
// GET /api/episodes/completed?user_id=&limit=
func (h *Handlers) HandleGetCompleted(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	episodes, err := h.service.GetCompleted(userID, limit)
	if err != nil {
		h.writeError(w, err, "Failed to get completed episodes")
		return
	}

	h.writeJSON(w, http.StatusOK, episodes)
}

// RecordDecisionRequest is the request body for recording a decision
type RecordDecisionRequest struct {
	UserID   string          `json:"user_id"`
	Decision domain.Decision `json:"decision"`
}

// HandleRecordDecision appends a decision to the user's active episode
// POST /api/episodes/decisions
func (h *Handlers) HandleRecordDecision(w http.ResponseWriter, r *http.Request) {
	var req RecordDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	decision, err := h.service.RecordDecision(req.UserID, req.Decision)
	if err != nil {
		h.writeError(w, err, "Failed to record decision")
		return
	}

	h.writeJSON(w, http.StatusCreated, decision)
}

// CloseRequest is the request body for closing an episode
type CloseRequest struct {
	UserID   string                `json:"user_id"`
	Metrics  domain.EpisodeMetrics `json:"metrics"`
	RunCycle *bool                 `json:"run_cycle,omitempty"`
}

// HandleClose completes the active episode and, by default, runs the
// belief-update cycle against the previous completed episode
// POST /api/episodes/close
func (h *Handlers) HandleClose(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	runCycle := true
	if req.RunCycle != nil {
		runCycle = *req.RunCycle
	}

	result, err := h.service.Close(req.UserID, req.Metrics, runCycle)
	if err != nil {
		h.writeError(w, err, "Failed to close episode")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) // Ignore encode error - already committed response
}

// writeError maps domain error kinds to HTTP statuses
func (h *Handlers) writeError(w http.ResponseWriter, err error, msg string) {
	switch domain.ErrorKind(err) {
	case domain.KindValidation:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.KindAlreadyActive, domain.KindConflict:
		http.Error(w, err.Error(), http.StatusConflict)
	case domain.KindNoActiveEpisode:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
