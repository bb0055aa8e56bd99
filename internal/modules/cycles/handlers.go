package cycles

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// Handlers provides HTTP handlers for cycle-history endpoints
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new cycles handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "cycles").Logger(),
	}
}

// RegisterRoutes registers all cycle routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/cycles", func(r chi.Router) {
		r.Get("/history", h.HandleGetHistory)
		r.Get("/correlations", h.HandleGetCorrelations)
	})
}

// HandleGetHistory returns the user's cycle records in chronological order
// GET /api/cycles/history?user_id=
func (h *Handlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	history, err := h.service.GetHistory(userID)
	if err != nil {
		h.writeError(w, err, "Failed to get cycle history")
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// HandleGetCorrelations returns the pairwise factor-weight correlation
// matrix computed over the user's cycle history
// GET /api/cycles/correlations?user_id=
func (h *Handlers) HandleGetCorrelations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	result, err := h.service.GetCorrelations(userID)
	if err != nil {
		h.writeError(w, err, "Failed to compute correlations")
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
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
