package beliefs

import (
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// Service exposes the read side of belief state: the current beliefs and
// the optimizer constraints derived from them. Writes happen only through
// the cycle updater.
type Service struct {
	repo    *BeliefRepository
	deriver *ConstraintDeriver
	log     zerolog.Logger
}

// NewService creates a new beliefs service
func NewService(repo *BeliefRepository, deriver *ConstraintDeriver, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		deriver: deriver,
		log:     log.With().Str("service", "beliefs").Logger(),
	}
}

// GetCurrentBeliefs returns the user's belief state, creating the default
// state on first access
func (s *Service) GetCurrentBeliefs(userID string) (*domain.BeliefState, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user_id is required")
	}
	return s.repo.GetOrCreate(userID)
}

// GetConstraints derives the optimizer constraint set from the user's
// current belief state
func (s *Service) GetConstraints(userID string) (domain.Constraints, error) {
	state, err := s.GetCurrentBeliefs(userID)
	if err != nil {
		return domain.Constraints{}, err
	}
	return s.deriver.Derive(state), nil
}
