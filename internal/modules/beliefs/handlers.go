package beliefs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// Handlers provides HTTP handlers for belief-state endpoints
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new beliefs handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "beliefs").Logger(),
	}
}

// RegisterRoutes registers all belief routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/beliefs", func(r chi.Router) {
		r.Get("/current", h.HandleGetCurrent)
		r.Get("/constraints", h.HandleGetConstraints)
	})
}

// HandleGetCurrent returns the user's belief state, creating the default on
// first access
// GET /api/beliefs/current?user_id=
func (h *Handlers) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	state, err := h.service.GetCurrentBeliefs(userID)
	if err != nil {
		h.writeError(w, err, "Failed to get belief state")
		return
	}

	h.writeJSON(w, http.StatusOK, state)
}

// HandleGetConstraints returns the optimizer constraint set derived from the
// user's current belief state
// GET /api/beliefs/constraints?user_id=
func (h *Handlers) HandleGetConstraints(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	constraints, err := h.service.GetConstraints(userID)
	if err != nil {
		h.writeError(w, err, "Failed to derive constraints")
		return
	}

	h.writeJSON(w, http.StatusOK, constraints)
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
	case domain.KindConflict:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
