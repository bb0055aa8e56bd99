package cycles

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx, so cycle appends can run
// inside the belief updater's transaction.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// CycleRepository handles the append-only cycle history. Records are never
// mutated or deleted.
type CycleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCycleRepository creates a new cycle history repository
func NewCycleRepository(db *sql.DB, log zerolog.Logger) *CycleRepository {
	return &CycleRepository{
		db:  db,
		log: log.With().Str("repo", "cycles").Logger(),
	}
}

// Append appends a cycle record to the history
func (r *CycleRepository) Append(record domain.CycleRecord) error {
	return r.AppendTx(r.db, record)
}

// AppendTx appends a cycle record using the given executor, allowing the
// write to share a transaction with the belief-state save.
func (r *CycleRepository) AppendTx(tx execer, record domain.CycleRecord) error {
	comparisonJSON, err := json.Marshal(record.Comparison)
	if err != nil {
		return fmt.Errorf("failed to marshal comparison: %w", err)
	}
	insightsJSON, err := json.Marshal(record.Insights)
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}
	updatesJSON, err := json.Marshal(record.Updates)
	if err != nil {
		return fmt.Errorf("failed to marshal updates: %w", err)
	}

	// Snapshots are stored as msgpack: compact binary rows for an
	// append-only table that grows one row per cycle forever
	snapshot, err := msgpack.Marshal(record.NewBeliefState)
	if err != nil {
		return fmt.Errorf("failed to marshal belief snapshot: %w", err)
	}

	query := `
		INSERT INTO cycle_history (user_id, cycle_number, ts, comparison, insights, updates, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		record.UserID,
		record.CycleNumber,
		record.Timestamp.Unix(),
		string(comparisonJSON),
		string(insightsJSON),
		string(updatesJSON),
		snapshot,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append cycle record: %w", err)
	}

	r.log.Info().
		Str("user_id", record.UserID).
		Int64("cycle_number", record.CycleNumber).
		Msg("Cycle record appended")

	return nil
}

// GetHistory retrieves a user's cycle records in chronological order
func (r *CycleRepository) GetHistory(userID string) ([]domain.CycleRecord, error) {
	query := `
		SELECT user_id, cycle_number, ts, comparison, insights, updates, snapshot
		FROM cycle_history WHERE user_id = ? ORDER BY cycle_number ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle history: %w", err)
	}
	defer rows.Close()

	var records []domain.CycleRecord
	for rows.Next() {
		record, err := scanCycleRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// GetLatest retrieves the most recent cycle record for a user, or nil when
// no cycle has run yet. The belief updater reads this to learn the previous
// cycle's update directions.
func (r *CycleRepository) GetLatest(userID string) (*domain.CycleRecord, error) {
	query := `
		SELECT user_id, cycle_number, ts, comparison, insights, updates, snapshot
		FROM cycle_history WHERE user_id = ? ORDER BY cycle_number DESC LIMIT 1
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cycle record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanCycleRecord(rows)
}

func scanCycleRecord(rows *sql.Rows) (*domain.CycleRecord, error) {
	var record domain.CycleRecord
	var ts int64
	var comparisonJSON, insightsJSON, updatesJSON string
	var snapshot []byte

	if err := rows.Scan(&record.UserID, &record.CycleNumber, &ts,
		&comparisonJSON, &insightsJSON, &updatesJSON, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to scan cycle record: %w", err)
	}

	record.Timestamp = time.Unix(ts, 0).UTC()

	if err := json.Unmarshal([]byte(comparisonJSON), &record.Comparison); err != nil {
		return nil, fmt.Errorf("failed to unmarshal comparison: %w", err)
	}
	if err := json.Unmarshal([]byte(insightsJSON), &record.Insights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	if err := json.Unmarshal([]byte(updatesJSON), &record.Updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	if err := msgpack.Unmarshal(snapshot, &record.NewBeliefState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal belief snapshot: %w", err)
	}

	return &record, nil
}
