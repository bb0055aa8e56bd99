// Package domain provides core domain models and types for the belief engine.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// EpisodeStatus represents the lifecycle state of an episode
type EpisodeStatus string

const (
	// EpisodeStatusActive - episode is open and accepting decisions
	EpisodeStatusActive EpisodeStatus = "active"
	// EpisodeStatusCompleted - episode is closed and immutable
	EpisodeStatusCompleted EpisodeStatus = "completed"
)

// DecisionAction represents the trading action taken by a decision
type DecisionAction string

const (
	ActionBuy       DecisionAction = "buy"
	ActionSell      DecisionAction = "sell"
	ActionHold      DecisionAction = "hold"
	ActionRebalance DecisionAction = "rebalance"
)

// Regime represents a coarse categorical market condition
type Regime string

const (
	RegimeRiskOn   Regime = "risk_on"
	RegimeRiskOff  Regime = "risk_off"
	RegimeNeutral  Regime = "neutral"
	RegimeVolatile Regime = "volatile"
)

// InsightPolarity marks the direction an insight pushes a factor weight
type InsightPolarity string

const (
	PolarityFavor InsightPolarity = "favor"
	PolarityAvoid InsightPolarity = "avoid"
)

// FactorExposure describes one factor's contribution to a decision
type FactorExposure struct {
	Factor       string  `json:"factor"`
	Exposure     float64 `json:"exposure"`
	TStat        float64 `json:"t_stat"`
	Confidence   float64 `json:"confidence"`
	Contribution float64 `json:"contribution"`
}

// Decision represents a single recorded trading decision within an episode.
// Decisions are immutable once appended.
type Decision struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Symbol       string           `json:"symbol"`
	Action       DecisionAction   `json:"action"`
	WeightBefore float64          `json:"weight_before"`
	WeightAfter  float64          `json:"weight_after"`
	Reason       string           `json:"reason"`
	Confidence   float64          `json:"confidence"`
	Factors      []FactorExposure `json:"factors,omitempty"`
}

// Validate checks a decision before it is appended to an episode
func (d *Decision) Validate() error {
	if strings.TrimSpace(d.Symbol) == "" {
		return NewValidationError("symbol", "symbol must not be empty")
	}
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold, ActionRebalance:
	default:
		return NewValidationError("action", fmt.Sprintf("unknown action %q", d.Action))
	}
	if d.WeightBefore < 0 || d.WeightBefore > 1 {
		return NewValidationError("weight_before", "weight_before must be in [0,1]")
	}
	if d.WeightAfter < 0 || d.WeightAfter > 1 {
		return NewValidationError("weight_after", "weight_after must be in [0,1]")
	}
	if strings.TrimSpace(d.Reason) == "" {
		return NewValidationError("reason", "reason must not be empty")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return NewValidationError("confidence", "confidence must be in [0,1]")
	}
	for i := range d.Factors {
		f := &d.Factors[i]
		if strings.TrimSpace(f.Factor) == "" {
			return NewValidationError("factors", "factor name must not be empty")
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			return NewValidationError("factors", fmt.Sprintf("factor %q confidence must be in [0,1]", f.Factor))
		}
	}
	return nil
}

// EpisodeMetrics holds realized performance figures supplied at close time.
// All fields are optional - the engine records them verbatim and never
// computes them itself.
type EpisodeMetrics struct {
	PortfolioReturn *float64 `json:"portfolio_return,omitempty"`
	SharpeRatio     *float64 `json:"sharpe_ratio,omitempty"`
	MaxDrawdown     *float64 `json:"max_drawdown,omitempty"`
	Volatility      *float64 `json:"volatility,omitempty"`
}

// Episode represents a bounded period of recorded trading decisions
type Episode struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	StartDate time.Time     `json:"start_date"`
	EndDate   *time.Time    `json:"end_date,omitempty"`
	Status    EpisodeStatus `json:"status"`
	Decisions []Decision    `json:"decisions"`
	EpisodeMetrics
}

// Symbols returns the set of distinct traded symbols in this episode
func (e *Episode) Symbols() map[string]bool {
	symbols := make(map[string]bool, len(e.Decisions))
	for i := range e.Decisions {
		symbols[e.Decisions[i].Symbol] = true
	}
	return symbols
}

// BeliefState is the versioned, per-user snapshot of what the engine
// currently believes works. Mutated only by the belief updater, which always
// writes a new version.
type BeliefState struct {
	UserID                string    `json:"user_id"`
	Version               int64     `json:"version"`
	FactorWeights         FactorMap `json:"factor_weights"`
	FactorConfidences     FactorMap `json:"factor_confidences"`
	CurrentRegime         Regime    `json:"current_regime"`
	RegimeConfidence      float64   `json:"regime_confidence"`
	RiskTolerance         float64   `json:"risk_tolerance"`
	MaxDrawdownThreshold  float64   `json:"max_drawdown_threshold"`
	VolatilityTarget      float64   `json:"volatility_target"`
	ConcentrationLimit    float64   `json:"concentration_limit"`
	MinPositionSize       float64   `json:"min_position_size"`
	ConceptualPriors      []string  `json:"conceptual_priors"`
	LastUpdated           time.Time `json:"last_updated"`
}

// DefaultBeliefState returns the belief state a user starts from
func DefaultBeliefState(userID string) *BeliefState {
	return &BeliefState{
		UserID:               userID,
		Version:              1,
		FactorWeights:        FactorMap{},
		FactorConfidences:    FactorMap{},
		CurrentRegime:        RegimeNeutral,
		RegimeConfidence:     0.5,
		RiskTolerance:        0.5,
		MaxDrawdownThreshold: 0.15,
		VolatilityTarget:     0.12,
		ConcentrationLimit:   0.25,
		MinPositionSize:      0.01,
		ConceptualPriors:     []string{},
		LastUpdated:          time.Now().UTC(),
	}
}

// Clone returns a deep copy of the belief state
func (b *BeliefState) Clone() *BeliefState {
	clone := *b
	clone.FactorWeights = b.FactorWeights.Clone()
	clone.FactorConfidences = b.FactorConfidences.Clone()
	clone.ConceptualPriors = append([]string(nil), b.ConceptualPriors...)
	return &clone
}

// EpisodeComparison is the structured result of comparing two completed
// episodes. PerformanceDelta is better minus worse, always >= 0.
type EpisodeComparison struct {
	BetterEpisodeID  string  `json:"better_episode_id"`
	WorseEpisodeID   string  `json:"worse_episode_id"`
	Metric           string  `json:"metric"`
	PerformanceDelta float64 `json:"performance_delta"`
	DecisionOverlap  float64 `json:"decision_overlap"`
}

// Insight is a directional, factor-scoped statement extracted from an
// episode comparison
type Insight struct {
	Statement     string          `json:"statement"`
	RelatedFactor string          `json:"related_factor"`
	Magnitude     float64         `json:"magnitude"`
	Polarity      InsightPolarity `json:"polarity"`
}

// Direction returns +1 for favor, -1 for avoid
func (i Insight) Direction() float64 {
	if i.Polarity == PolarityAvoid {
		return -1
	}
	return 1
}

// BeliefUpdate records one bounded numeric delta applied to a factor weight
type BeliefUpdate struct {
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// BeliefSnapshot is the denormalized belief summary stored on each cycle
// record (serialized as msgpack in storage)
type BeliefSnapshot struct {
	Version          int64     `json:"version" msgpack:"version"`
	FactorWeights    FactorMap `json:"factor_weights" msgpack:"factor_weights"`
	CurrentRegime    Regime    `json:"current_regime" msgpack:"current_regime"`
	RegimeConfidence float64   `json:"regime_confidence" msgpack:"regime_confidence"`
	AggregateDelta   float64   `json:"aggregate_delta" msgpack:"aggregate_delta"`
}

// CycleRecord is the append-only record of one completed belief-update cycle
type CycleRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	UserID         string            `json:"user_id"`
	CycleNumber    int64             `json:"cycle_number"`
	Comparison     EpisodeComparison `json:"episode_comparison"`
	Insights       []Insight         `json:"extracted_insights"`
	Updates        []BeliefUpdate    `json:"belief_updates"`
	NewBeliefState BeliefSnapshot    `json:"new_belief_state"`
}

// CycleResult is returned to the caller of a close-with-cycle operation
type CycleResult struct {
	Comparison  EpisodeComparison `json:"episode_comparison"`
	Insights    []Insight         `json:"extracted_insights"`
	Updates     []BeliefUpdate    `json:"belief_updates"`
	NewVersion  int64             `json:"new_version"`
	CycleNumber int64             `json:"cycle_number"`
}

// Constraints is the optimizer-facing projection of a belief state.
// Pure copy, no transformation - the seam between this engine and the
// external optimizer.
type Constraints struct {
	FactorTargets        FactorMap `json:"factor_targets"`
	MaxDrawdownThreshold float64   `json:"max_drawdown_threshold"`
	VolatilityTarget     float64   `json:"volatility_target"`
	ConcentrationLimit   float64   `json:"concentration_limit"`
	MinPositionSize      float64   `json:"min_position_size"`
}
