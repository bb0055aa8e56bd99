package episodes

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// episodesColumns is the list of columns for the episodes table.
// Column order must match scanEpisode().
const episodesColumns = `id, user_id, start_date, end_date, status, portfolio_return, sharpe_ratio, max_drawdown, volatility`

// EpisodeRepository handles episode and decision persistence
type EpisodeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewEpisodeRepository creates a new episode repository
func NewEpisodeRepository(db *sql.DB, log zerolog.Logger) *EpisodeRepository {
	return &EpisodeRepository{
		db:  db,
		log: log.With().Str("repo", "episodes").Logger(),
	}
}

// CreateActive inserts a new active episode. The partial unique index on
// (user_id) WHERE status='active' makes this a compare-and-set: when two
// starts race for the same user, exactly one insert wins and the loser gets
// domain.ErrAlreadyActive.
func (r *EpisodeRepository) CreateActive(episode domain.Episode) error {
	query := `
		INSERT INTO episodes (id, user_id, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`

	_, err := r.db.Exec(query,
		episode.ID,
		episode.UserID,
		episode.StartDate.Unix(),
		string(domain.EpisodeStatusActive),
		time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyActive
		}
		return fmt.Errorf("failed to create episode: %w", err)
	}

	r.log.Info().
		Str("episode_id", episode.ID).
		Str("user_id", episode.UserID).
		Msg("Episode started")

	return nil
}

// GetActive retrieves the active episode for a user, or nil when none exists
func (r *EpisodeRepository) GetActive(userID string) (*domain.Episode, error) {
	query := "SELECT " + episodesColumns + " FROM episodes WHERE user_id = ? AND status = 'active'"

	episode, err := r.scanEpisode(r.db.QueryRow(query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active episode: %w", err)
	}

	if err := r.loadDecisions(episode); err != nil {
		return nil, err
	}

	return episode, nil
}

// GetByID retrieves an episode with its decisions, or nil when not found
func (r *EpisodeRepository) GetByID(id string) (*domain.Episode, error) {
	query := "SELECT " + episodesColumns + " FROM episodes WHERE id = ?"

	episode, err := r.scanEpisode(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	if err := r.loadDecisions(episode); err != nil {
		return nil, err
	}

	return episode, nil
}

// AppendDecision appends a decision to an episode. The insert is guarded on
// the episode still being active, so a decision racing an in-flight close
// lands on the floor with domain.ErrNoActiveEpisode instead of mutating a
// completed episode.
func (r *EpisodeRepository) AppendDecision(episodeID string, dec domain.Decision) error {
	factorsJSON, err := json.Marshal(dec.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal decision factors: %w", err)
	}

	query := `
		INSERT INTO decisions (id, episode_id, ts, symbol, action, weight_before,
			weight_after, reason, confidence, factors, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM episodes WHERE id = ? AND status = 'active')
	`

	result, err := r.db.Exec(query,
		dec.ID,
		episodeID,
		dec.Timestamp.Unix(),
		strings.ToUpper(strings.TrimSpace(dec.Symbol)),
		string(dec.Action),
		dec.WeightBefore,
		dec.WeightAfter,
		dec.Reason,
		dec.Confidence,
		string(factorsJSON),
		time.Now().Unix(),
		episodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check decision insert: %w", err)
	}
	if rows == 0 {
		// Episode was closed between the caller's read and this write
		return domain.ErrNoActiveEpisode
	}

	r.log.Debug().
		Str("episode_id", episodeID).
		Str("decision_id", dec.ID).
		Str("symbol", dec.Symbol).
		Msg("Decision appended")

	return nil
}

// Close transitions an episode to completed, assigning any supplied metrics
// verbatim. The status guard in the WHERE clause makes the transition a
// compare-and-set; a second close observes domain.ErrNoActiveEpisode.
func (r *EpisodeRepository) Close(episodeID string, endDate time.Time, metrics domain.EpisodeMetrics) error {
	query := `
		UPDATE episodes
		SET status = 'completed', end_date = ?,
			portfolio_return = ?, sharpe_ratio = ?, max_drawdown = ?, volatility = ?
		WHERE id = ? AND status = 'active'
	`

	result, err := r.db.Exec(query,
		endDate.Unix(),
		nullFloat(metrics.PortfolioReturn),
		nullFloat(metrics.SharpeRatio),
		nullFloat(metrics.MaxDrawdown),
		nullFloat(metrics.Volatility),
		episodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to close episode: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check episode close: %w", err)
	}
	if rows == 0 {
		return domain.ErrNoActiveEpisode
	}

	r.log.Info().
		Str("episode_id", episodeID).
		Msg("Episode closed")

	return nil
}

// GetMostRecentCompleted retrieves the most recently completed episode for a
// user, excluding the given episode (typically the one just closed).
func (r *EpisodeRepository) GetMostRecentCompleted(userID, excludeID string) (*domain.Episode, error) {
	query := "SELECT " + episodesColumns + ` FROM episodes
		WHERE user_id = ? AND status = 'completed' AND id != ?
		ORDER BY end_date DESC, created_at DESC LIMIT 1`

	episode, err := r.scanEpisode(r.db.QueryRow(query, userID, excludeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get most recent completed episode: %w", err)
	}

	if err := r.loadDecisions(episode); err != nil {
		return nil, err
	}

	return episode, nil
}

// GetCompleted retrieves completed episodes for a user, most recent first
func (r *EpisodeRepository) GetCompleted(userID string, limit int) ([]domain.Episode, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + episodesColumns + ` FROM episodes
		WHERE user_id = ? AND status = 'completed'
		ORDER BY end_date DESC, created_at DESC LIMIT ?`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed episodes: %w", err)
	}
	defer rows.Close()

	var result []domain.Episode
	for rows.Next() {
		episode, err := r.scanEpisodeFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed episode: %w", err)
		}
		result = append(result, *episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed episodes: %w", err)
	}

	for i := range result {
		if err := r.loadDecisions(&result[i]); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// loadDecisions populates an episode's decision sequence in append order
func (r *EpisodeRepository) loadDecisions(episode *domain.Episode) error {
	query := `
		SELECT id, ts, symbol, action, weight_before, weight_after, reason, confidence, factors
		FROM decisions WHERE episode_id = ? ORDER BY ts ASC, created_at ASC
	`

	rows, err := r.db.Query(query, episode.ID)
	if err != nil {
		return fmt.Errorf("failed to load decisions: %w", err)
	}
	defer rows.Close()

	episode.Decisions = []domain.Decision{}
	for rows.Next() {
		var dec domain.Decision
		var ts int64
		var action string
		var factorsJSON sql.NullString

		if err := rows.Scan(&dec.ID, &ts, &dec.Symbol, &action, &dec.WeightBefore,
			&dec.WeightAfter, &dec.Reason, &dec.Confidence, &factorsJSON); err != nil {
			return fmt.Errorf("failed to scan decision: %w", err)
		}

		dec.Timestamp = time.Unix(ts, 0).UTC()
		dec.Action = domain.DecisionAction(action)

		if factorsJSON.Valid && factorsJSON.String != "" {
			if err := json.Unmarshal([]byte(factorsJSON.String), &dec.Factors); err != nil {
				return fmt.Errorf("failed to unmarshal decision factors: %w", err)
			}
		}

		episode.Decisions = append(episode.Decisions, dec)
	}

	return rows.Err()
}

// scanEpisode scans a single episode row (without decisions)
func (r *EpisodeRepository) scanEpisode(row *sql.Row) (*domain.Episode, error) {
	var episode domain.Episode
	var startDate int64
	var endDate sql.NullInt64
	var status string
	var portfolioReturn, sharpeRatio, maxDrawdown, volatility sql.NullFloat64

	err := row.Scan(&episode.ID, &episode.UserID, &startDate, &endDate, &status,
		&portfolioReturn, &sharpeRatio, &maxDrawdown, &volatility)
	if err != nil {
		return nil, err
	}

	applyEpisodeFields(&episode, startDate, endDate, status, portfolioReturn, sharpeRatio, maxDrawdown, volatility)
	return &episode, nil
}

// scanEpisodeFromRows scans an episode from a multi-row result set
func (r *EpisodeRepository) scanEpisodeFromRows(rows *sql.Rows) (*domain.Episode, error) {
	var episode domain.Episode
	var startDate int64
	var endDate sql.NullInt64
	var status string
	var portfolioReturn, sharpeRatio, maxDrawdown, volatility sql.NullFloat64

	err := rows.Scan(&episode.ID, &episode.UserID, &startDate, &endDate, &status,
		&portfolioReturn, &sharpeRatio, &maxDrawdown, &volatility)
	if err != nil {
		return nil, err
	}

	applyEpisodeFields(&episode, startDate, endDate, status, portfolioReturn, sharpeRatio, maxDrawdown, volatility)
	return &episode, nil
}

func applyEpisodeFields(
	episode *domain.Episode,
	startDate int64,
	endDate sql.NullInt64,
	status string,
	portfolioReturn, sharpeRatio, maxDrawdown, volatility sql.NullFloat64,
) {
	episode.StartDate = time.Unix(startDate, 0).UTC()
	if endDate.Valid {
		end := time.Unix(endDate.Int64, 0).UTC()
		episode.EndDate = &end
	}
	episode.Status = domain.EpisodeStatus(status)
	episode.PortfolioReturn = floatPtr(portfolioReturn)
	episode.SharpeRatio = floatPtr(sharpeRatio)
	episode.MaxDrawdown = floatPtr(maxDrawdown)
	episode.Volatility = floatPtr(volatility)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
// Matched by message so both the modernc and mattn drivers are covered.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
