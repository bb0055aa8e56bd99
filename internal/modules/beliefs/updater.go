package beliefs

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/config"
	"github.com/frontieralpha/cvrf/internal/database"
	"github.com/frontieralpha/cvrf/internal/domain"
	"github.com/frontieralpha/cvrf/internal/events"
	"github.com/frontieralpha/cvrf/internal/modules/cycles"
	"github.com/frontieralpha/cvrf/pkg/formulas"
)

// maxConceptualPriors caps the belief's free-text prior list; the oldest
// statements roll off
const maxConceptualPriors = 25

// Updater runs the full belief-update cycle: compare the episodes, extract
// insights, fold them into a new belief-state version, and append the cycle
// record. The belief write is optimistic-concurrency controlled; on a
// version conflict the numeric updates are recomputed against the freshly
// read state and retried a bounded number of times.
type Updater struct {
	db           *sql.DB
	beliefRepo   *BeliefRepository
	cycleRepo    *cycles.CycleRepository
	comparator   *cycles.Comparator
	extractor    *cycles.Extractor
	classifier   RegimeClassifier
	eventManager *events.Manager
	cfg          config.EngineConfig
	log          zerolog.Logger
}

// NewUpdater creates a new belief updater
func NewUpdater(
	db *sql.DB,
	beliefRepo *BeliefRepository,
	cycleRepo *cycles.CycleRepository,
	comparator *cycles.Comparator,
	extractor *cycles.Extractor,
	classifier RegimeClassifier,
	eventManager *events.Manager,
	cfg config.EngineConfig,
	log zerolog.Logger,
) *Updater {
	return &Updater{
		db:           db,
		beliefRepo:   beliefRepo,
		cycleRepo:    cycleRepo,
		comparator:   comparator,
		extractor:    extractor,
		classifier:   classifier,
		eventManager: eventManager,
		cfg:          cfg,
		log:          log.With().Str("service", "belief_updater").Logger(),
	}
}

// ExecuteCycle runs one compare/extract/update cycle for a pair of completed
// episodes and returns the result handed back to the close caller.
func (u *Updater) ExecuteCycle(userID string, current, previous *domain.Episode) (*domain.CycleResult, error) {
	// Comparison and insight extraction are pure functions of the two
	// episodes, so they sit outside the retry loop
	comparison := u.comparator.Compare(current, previous)
	insights := u.extractor.Extract(comparison, current, previous)

	var (
		result *domain.CycleResult
		err    error
	)
	attempts := u.cfg.ConflictRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		result, err = u.tryCycle(userID, current, comparison, insights)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		u.log.Warn().
			Str("user_id", userID).
			Int("attempt", attempt+1).
			Msg("Belief version conflict, retrying against fresh state")
	}
	if err != nil {
		// Retries exhausted
		return nil, err
	}

	if u.eventManager != nil {
		u.eventManager.EmitTyped("beliefs", &events.CycleCompletedData{
			UserID:      userID,
			CycleNumber: result.CycleNumber,
			NewVersion:  result.NewVersion,
			Insights:    len(result.Insights),
			Updates:     len(result.Updates),
			Delta:       comparison.PerformanceDelta,
		})
	}

	u.log.Info().
		Str("user_id", userID).
		Int64("cycle_number", result.CycleNumber).
		Int64("new_version", result.NewVersion).
		Int("insights", len(result.Insights)).
		Msg("Belief cycle completed")

	return result, nil
}

// tryCycle performs one attempt: read the current state and the latest cycle
// record, compute the new version, and commit the belief write plus cycle
// record in one transaction. Both reads happen per attempt so a retry after a
// version conflict sees the directions of whichever cycle won the race.
func (u *Updater) tryCycle(
	userID string,
	current *domain.Episode,
	comparison domain.EpisodeComparison,
	insights []domain.Insight,
) (*domain.CycleResult, error) {
	state, err := u.beliefRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	lastRecord, err := u.cycleRepo.GetLatest(userID)
	if err != nil {
		return nil, err
	}
	previousDirections := directionsFromRecord(lastRecord)

	newState, updates := u.applyInsights(state, insights, previousDirections)
	u.applyRegime(newState, current.EpisodeMetrics)
	u.appendPriors(newState, insights)

	newState.Version = state.Version + 1
	newState.LastUpdated = time.Now().UTC()

	record := domain.CycleRecord{
		Timestamp:   newState.LastUpdated,
		UserID:      userID,
		CycleNumber: state.Version,
		Comparison:  comparison,
		Insights:    insights,
		Updates:     updates,
		NewBeliefState: domain.BeliefSnapshot{
			Version:          newState.Version,
			FactorWeights:    newState.FactorWeights.Clone(),
			CurrentRegime:    newState.CurrentRegime,
			RegimeConfidence: newState.RegimeConfidence,
			AggregateDelta:   aggregateDelta(updates),
		},
	}

	// The belief write and the history append are logically one operation;
	// both tables live in the beliefs database so they share a transaction
	err = database.WithTransaction(u.db, func(tx *sql.Tx) error {
		if err := u.beliefRepo.SaveTx(tx, newState, state.Version); err != nil {
			return err
		}
		return u.cycleRepo.AppendTx(tx, record)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	if u.eventManager != nil {
		u.eventManager.EmitTyped("beliefs", &events.BeliefUpdatedData{
			UserID:  userID,
			Version: newState.Version,
			Regime:  string(newState.CurrentRegime),
		})
	}

	return &domain.CycleResult{
		Comparison:  comparison,
		Insights:    insights,
		Updates:     updates,
		NewVersion:  newState.Version,
		CycleNumber: record.CycleNumber,
	}, nil
}

// applyInsights folds each insight into the factor weights as a bounded
// delta and applies the reinforcement/decay rule to factor confidences: a
// direction matching the previous cycle's update for the factor steps
// confidence toward 1; an opposing direction regresses it halfway toward
// the neutral 0.5.
func (u *Updater) applyInsights(
	state *domain.BeliefState,
	insights []domain.Insight,
	previousDirections map[string]float64,
) (*domain.BeliefState, []domain.BeliefUpdate) {
	newState := state.Clone()
	updates := make([]domain.BeliefUpdate, 0, len(insights))

	for _, insight := range insights {
		delta := insight.Direction() * insight.Magnitude * u.cfg.LearningRate

		oldWeight := newState.FactorWeights[insight.RelatedFactor]
		newState.FactorWeights[insight.RelatedFactor] = formulas.Clamp(oldWeight+delta, -1, 1)

		confidence, seen := newState.FactorConfidences[insight.RelatedFactor]
		if !seen {
			confidence = 0.5
		}

		lastDirection, hadPrevious := previousDirections[insight.RelatedFactor]
		if !hadPrevious || sameSign(delta, lastDirection) {
			// Reinforcement: repeated evidence in the same direction
			confidence = formulas.Clamp(confidence+u.cfg.ConfidenceStep, 0, 1)
		} else {
			// Contradiction: regress halfway toward neutral
			confidence = formulas.Clamp(confidence+(0.5-confidence)*0.5, 0, 1)
		}
		newState.FactorConfidences[insight.RelatedFactor] = confidence

		updates = append(updates, domain.BeliefUpdate{
			Factor: insight.RelatedFactor,
			Delta:  delta,
			Reason: insight.Statement,
		})
	}

	return newState, updates
}

// applyRegime classifies the closed episode's realized metrics. Without a
// usable signal the regime is left unchanged and its confidence decays
// slightly.
func (u *Updater) applyRegime(state *domain.BeliefState, metrics domain.EpisodeMetrics) {
	regime, confidence, ok := u.classifier.Classify(metrics)
	if !ok {
		state.RegimeConfidence = formulas.Clamp(state.RegimeConfidence*0.9, 0, 1)
		return
	}
	state.CurrentRegime = regime
	state.RegimeConfidence = formulas.Clamp(confidence, 0, 1)
}

// appendPriors records the insights' statements as conceptual priors, the
// verbal half of the reinforcement loop, keeping only the most recent ones
func (u *Updater) appendPriors(state *domain.BeliefState, insights []domain.Insight) {
	for _, insight := range insights {
		state.ConceptualPriors = append(state.ConceptualPriors, insight.Statement)
	}
	if len(state.ConceptualPriors) > maxConceptualPriors {
		state.ConceptualPriors = state.ConceptualPriors[len(state.ConceptualPriors)-maxConceptualPriors:]
	}
}

// directionsFromRecord maps each factor to the sign of its delta in the
// previous cycle
func directionsFromRecord(record *domain.CycleRecord) map[string]float64 {
	directions := make(map[string]float64)
	if record == nil {
		return directions
	}
	for _, update := range record.Updates {
		directions[update.Factor] = update.Delta
	}
	return directions
}

func aggregateDelta(updates []domain.BeliefUpdate) float64 {
	var total float64
	for _, update := range updates {
		total += update.Delta
	}
	return total
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a < 0 && b < 0)
}
