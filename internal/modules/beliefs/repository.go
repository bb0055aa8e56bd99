// Package beliefs owns the versioned per-user belief state: storage with
// optimistic concurrency, the belief updater that folds insights into factor
// weights, regime classification, and the optimizer-facing constraint
// projection.
package beliefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

const beliefColumns = `user_id, version, factor_weights, factor_confidences, current_regime,
	regime_confidence, risk_tolerance, max_drawdown_threshold, volatility_target,
	concentration_limit, min_position_size, conceptual_priors, last_updated`

// BeliefRepository handles belief-state persistence. Every write is
// conditioned on the expected version (compare-and-set); there is no
// unconditional update path.
type BeliefRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBeliefRepository creates a new belief state repository
func NewBeliefRepository(db *sql.DB, log zerolog.Logger) *BeliefRepository {
	return &BeliefRepository{
		db:  db,
		log: log.With().Str("repo", "beliefs").Logger(),
	}
}

// GetOrCreate retrieves the user's belief state, creating the default state
// on first access. The INSERT OR IGNORE keeps concurrent first accesses from
// racing - both end up reading the same row.
func (r *BeliefRepository) GetOrCreate(userID string) (*domain.BeliefState, error) {
	state, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	defaults := domain.DefaultBeliefState(userID)
	if err := r.insertDefault(defaults); err != nil {
		return nil, err
	}

	// Re-read: a concurrent creator may have won the insert
	state, err = r.get(userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("belief state for %s missing after create", userID)
	}
	return state, nil
}

// Save writes a new belief-state version conditioned on the stored version
// still being expectedVersion. Returns domain.ErrConflict when a concurrent
// cycle got there first.
func (r *BeliefRepository) Save(state *domain.BeliefState, expectedVersion int64) error {
	return r.SaveTx(r.db, state, expectedVersion)
}

// SaveTx is Save running on the given executor, so the belief write and the
// cycle-record append can commit in one transaction.
func (r *BeliefRepository) SaveTx(tx execer, state *domain.BeliefState, expectedVersion int64) error {
	weightsJSON, err := json.Marshal(state.FactorWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal factor weights: %w", err)
	}
	confidencesJSON, err := json.Marshal(state.FactorConfidences)
	if err != nil {
		return fmt.Errorf("failed to marshal factor confidences: %w", err)
	}
	priorsJSON, err := json.Marshal(state.ConceptualPriors)
	if err != nil {
		return fmt.Errorf("failed to marshal conceptual priors: %w", err)
	}

	query := `
		UPDATE belief_states
		SET version = ?, factor_weights = ?, factor_confidences = ?, current_regime = ?,
			regime_confidence = ?, risk_tolerance = ?, max_drawdown_threshold = ?,
			volatility_target = ?, concentration_limit = ?, min_position_size = ?,
			conceptual_priors = ?, last_updated = ?
		WHERE user_id = ? AND version = ?
	`

	result, err := tx.Exec(query,
		state.Version,
		string(weightsJSON),
		string(confidencesJSON),
		string(state.CurrentRegime),
		state.RegimeConfidence,
		state.RiskTolerance,
		state.MaxDrawdownThreshold,
		state.VolatilityTarget,
		state.ConcentrationLimit,
		state.MinPositionSize,
		string(priorsJSON),
		state.LastUpdated.Unix(),
		state.UserID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save belief state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check belief save: %w", err)
	}
	if rows == 0 {
		return domain.ErrConflict
	}

	r.log.Info().
		Str("user_id", state.UserID).
		Int64("version", state.Version).
		Msg("Belief state saved")

	return nil
}

func (r *BeliefRepository) get(userID string) (*domain.BeliefState, error) {
	query := "SELECT " + beliefColumns + " FROM belief_states WHERE user_id = ?"

	var state domain.BeliefState
	var weightsJSON, confidencesJSON, priorsJSON, regime string
	var lastUpdated int64

	err := r.db.QueryRow(query, userID).Scan(
		&state.UserID,
		&state.Version,
		&weightsJSON,
		&confidencesJSON,
		&regime,
		&state.RegimeConfidence,
		&state.RiskTolerance,
		&state.MaxDrawdownThreshold,
		&state.VolatilityTarget,
		&state.ConcentrationLimit,
		&state.MinPositionSize,
		&priorsJSON,
		&lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get belief state: %w", err)
	}

	state.CurrentRegime = domain.Regime(regime)
	state.LastUpdated = time.Unix(lastUpdated, 0).UTC()

	if err := json.Unmarshal([]byte(weightsJSON), &state.FactorWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal factor weights: %w", err)
	}
	if err := json.Unmarshal([]byte(confidencesJSON), &state.FactorConfidences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal factor confidences: %w", err)
	}
	if err := json.Unmarshal([]byte(priorsJSON), &state.ConceptualPriors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conceptual priors: %w", err)
	}

	return &state, nil
}

func (r *BeliefRepository) insertDefault(state *domain.BeliefState) error {
	weightsJSON, _ := json.Marshal(state.FactorWeights)
	confidencesJSON, _ := json.Marshal(state.FactorConfidences)
	priorsJSON, _ := json.Marshal(state.ConceptualPriors)

	query := `
		INSERT OR IGNORE INTO belief_states (` + beliefColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		state.UserID,
		state.Version,
		string(weightsJSON),
		string(confidencesJSON),
		string(state.CurrentRegime),
		state.RegimeConfidence,
		state.RiskTolerance,
		state.MaxDrawdownThreshold,
		state.VolatilityTarget,
		state.ConcentrationLimit,
		state.MinPositionSize,
		string(priorsJSON),
		state.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create default belief state: %w", err)
	}

	return nil
}
