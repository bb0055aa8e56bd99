// Package events provides event management functionality.
package events

// EventType identifies a system event
type EventType string

const (
	// EpisodeStarted - a new active episode was created
	EpisodeStarted EventType = "episode_started"
	// DecisionRecorded - a decision was appended to an active episode
	DecisionRecorded EventType = "decision_recorded"
	// EpisodeClosed - an episode transitioned to completed
	EpisodeClosed EventType = "episode_closed"
	// CycleCompleted - a full compare/extract/update cycle finished
	CycleCompleted EventType = "cycle_completed"
	// BeliefUpdated - a new belief-state version was written
	BeliefUpdated EventType = "belief_updated"
	// BackupCompleted - a cloud backup finished
	BackupCompleted EventType = "backup_completed"
	// ErrorOccurred - a component reported an error
	ErrorOccurred EventType = "error_occurred"
)
