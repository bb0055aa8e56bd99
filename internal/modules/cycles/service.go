package cycles

import (
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// Service exposes the read side of cycle history: the append-only record
// list and the correlation analytics computed over it
type Service struct {
	repo     *CycleRepository
	analyzer *Analyzer
	log      zerolog.Logger
}

// NewService creates a new cycles service
func NewService(repo *CycleRepository, analyzer *Analyzer, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		log:      log.With().Str("service", "cycles").Logger(),
	}
}

// GetHistory returns the user's cycle records in chronological order
func (s *Service) GetHistory(userID string) ([]domain.CycleRecord, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user_id is required")
	}
	return s.repo.GetHistory(userID)
}

// GetCorrelations computes the pairwise factor-weight correlation matrix
// over the user's cycle history
func (s *Service) GetCorrelations(userID string) (*CorrelationResult, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "user_id is required")
	}
	return s.analyzer.Analyze(userID)
}
