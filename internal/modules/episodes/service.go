package episodes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
	"github.com/frontieralpha/cvrf/internal/events"
)

// EpisodeRepositoryInterface defines the interface for episode persistence
type EpisodeRepositoryInterface interface {
	// CreateActive inserts a new active episode (compare-and-set on the
	// one-active-per-user invariant)
	CreateActive(episode domain.Episode) error

	// GetActive retrieves the active episode for a user, nil when none
	GetActive(userID string) (*domain.Episode, error)

	// GetByID retrieves an episode with decisions, nil when not found
	GetByID(id string) (*domain.Episode, error)

	// AppendDecision appends a decision while the episode is still active
	AppendDecision(episodeID string, dec domain.Decision) error

	// Close transitions an episode to completed with supplied metrics
	Close(episodeID string, endDate time.Time, metrics domain.EpisodeMetrics) error

	// GetMostRecentCompleted retrieves the latest completed episode excluding one
	GetMostRecentCompleted(userID, excludeID string) (*domain.Episode, error)

	// GetCompleted retrieves completed episodes, most recent first
	GetCompleted(userID string, limit int) ([]domain.Episode, error)
}

// Compile-time check that EpisodeRepository implements the interface
var _ EpisodeRepositoryInterface = (*EpisodeRepository)(nil)

// CycleRunner executes one belief-update cycle for a pair of completed
// episodes. Implemented by the beliefs module; decoupled behind an interface
// so the episode lifecycle does not depend on belief internals.
type CycleRunner interface {
	ExecuteCycle(userID string, current, previous *domain.Episode) (*domain.CycleResult, error)
}

// CloseResult is returned by Close: the completed episode plus the cycle
// result, which is nil when no prior episode existed or runCycle was false.
type CloseResult struct {
	Episode     *domain.Episode     `json:"episode"`
	CycleResult *domain.CycleResult `json:"cycle_result"`
}

// Service owns the episode lifecycle: start, decision recording, and close
// (optionally triggering the belief-update cycle).
type Service struct {
	repo         EpisodeRepositoryInterface
	cycleRunner  CycleRunner
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new episode service
func NewService(
	repo EpisodeRepositoryInterface,
	cycleRunner CycleRunner,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		cycleRunner:  cycleRunner,
		eventManager: eventManager,
		log:          log.With().Str("service", "episodes").Logger(),
	}
}

// Start creates a new active episode for the user. Returns
// domain.ErrAlreadyActive when one already exists.
func (s *Service) Start(userID string) (*domain.Episode, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user_id", "user_id must not be empty")
	}

	episode := domain.Episode{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartDate: time.Now().UTC(),
		Status:    domain.EpisodeStatusActive,
		Decisions: []domain.Decision{},
	}

	if err := s.repo.CreateActive(episode); err != nil {
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped("episodes", &events.EpisodeStartedData{
			UserID:    userID,
			EpisodeID: episode.ID,
		})
	}

	return &episode, nil
}

// GetActive returns the user's active episode, or domain.ErrNoActiveEpisode
func (s *Service) GetActive(userID string) (*domain.Episode, error) {
	episode, err := s.repo.GetActive(userID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, domain.ErrNoActiveEpisode
	}
	return episode, nil
}

// RecordDecision validates and appends a decision to the user's active
// episode. Side effect only - no belief mutation happens here.
func (s *Service) RecordDecision(userID string, dec domain.Decision) (*domain.Decision, error) {
	if err := dec.Validate(); err != nil {
		return nil, err
	}

	active, err := s.repo.GetActive(userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, domain.ErrNoActiveEpisode
	}

	if dec.ID == "" {
		dec.ID = uuid.NewString()
	}
	if dec.Timestamp.IsZero() {
		dec.Timestamp = time.Now().UTC()
	}
	dec.Symbol = strings.ToUpper(strings.TrimSpace(dec.Symbol))

	if err := s.repo.AppendDecision(active.ID, dec); err != nil {
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped("episodes", &events.DecisionRecordedData{
			UserID:     userID,
			EpisodeID:  active.ID,
			DecisionID: dec.ID,
			Symbol:     dec.Symbol,
			Action:     string(dec.Action),
			Confidence: dec.Confidence,
		})
	}

	return &dec, nil
}

// Close completes the user's active episode, assigning supplied metrics
// verbatim. With runCycle and a prior completed episode, it synchronously
// runs the compare/extract/update pipeline; with no prior episode the close
// still succeeds and the cycle result is nil - there is nothing to learn
// from yet.
func (s *Service) Close(userID string, metrics domain.EpisodeMetrics, runCycle bool) (*CloseResult, error) {
	active, err := s.repo.GetActive(userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, domain.ErrNoActiveEpisode
	}

	if err := s.repo.Close(active.ID, time.Now().UTC(), metrics); err != nil {
		return nil, err
	}

	closed, err := s.repo.GetByID(active.ID)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, fmt.Errorf("episode %s disappeared after close", active.ID)
	}

	result := &CloseResult{Episode: closed}

	if runCycle {
		previous, err := s.repo.GetMostRecentCompleted(userID, closed.ID)
		if err != nil {
			return nil, err
		}
		if previous != nil {
			cycleResult, err := s.cycleRunner.ExecuteCycle(userID, closed, previous)
			if err != nil {
				return nil, err
			}
			result.CycleResult = cycleResult
		} else {
			s.log.Debug().
				Str("user_id", userID).
				Msg("No prior completed episode, skipping cycle")
		}
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped("episodes", &events.EpisodeClosedData{
			UserID:    userID,
			EpisodeID: closed.ID,
			Decisions: len(closed.Decisions),
			CycleRun:  result.CycleResult != nil,
		})
	}

	return result, nil
}

// GetCompleted returns the user's completed episodes, most recent first
func (s *Service) GetCompleted(userID string, limit int) ([]domain.Episode, error) {
	return s.repo.GetCompleted(userID, limit)
}
