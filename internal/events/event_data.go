package events

// EventData is the interface that all typed event payloads implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// EpisodeStartedData contains data for EpisodeStarted events
type EpisodeStartedData struct {
	UserID    string `json:"user_id"`
	EpisodeID string `json:"episode_id"`
}

// EventType returns the event type for EpisodeStartedData
func (d *EpisodeStartedData) EventType() EventType { return EpisodeStarted }

// DecisionRecordedData contains data for DecisionRecorded events
type DecisionRecordedData struct {
	UserID     string  `json:"user_id"`
	EpisodeID  string  `json:"episode_id"`
	DecisionID string  `json:"decision_id"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// EventType returns the event type for DecisionRecordedData
func (d *DecisionRecordedData) EventType() EventType { return DecisionRecorded }

// EpisodeClosedData contains data for EpisodeClosed events
type EpisodeClosedData struct {
	UserID    string `json:"user_id"`
	EpisodeID string `json:"episode_id"`
	Decisions int    `json:"decisions"`
	CycleRun  bool   `json:"cycle_run"`
}

// EventType returns the event type for EpisodeClosedData
func (d *EpisodeClosedData) EventType() EventType { return EpisodeClosed }

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	UserID      string  `json:"user_id"`
	CycleNumber int64   `json:"cycle_number"`
	NewVersion  int64   `json:"new_version"`
	Insights    int     `json:"insights"`
	Updates     int     `json:"updates"`
	Delta       float64 `json:"performance_delta"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType { return CycleCompleted }

// BeliefUpdatedData contains data for BeliefUpdated events
type BeliefUpdatedData struct {
	UserID  string `json:"user_id"`
	Version int64  `json:"version"`
	Regime  string `json:"regime"`
}

// EventType returns the event type for BeliefUpdatedData
func (d *BeliefUpdatedData) EventType() EventType { return BeliefUpdated }

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
