package beliefs

import (
	"github.com/frontieralpha/cvrf/internal/domain"
)

// ConstraintDeriver projects a belief state onto the optimizer-facing
// constraint surface. The projection is a straight copy: interpretation of
// the targets (scaling, feasibility) belongs to the optimizer, not here.
type ConstraintDeriver struct{}

// NewConstraintDeriver creates a new constraint deriver
func NewConstraintDeriver() *ConstraintDeriver {
	return &ConstraintDeriver{}
}

// Derive builds the constraint set from a belief state
func (d *ConstraintDeriver) Derive(state *domain.BeliefState) domain.Constraints {
	return domain.Constraints{
		FactorTargets:        state.FactorWeights.Clone(),
		MaxDrawdownThreshold: state.MaxDrawdownThreshold,
		VolatilityTarget:     state.VolatilityTarget,
		ConcentrationLimit:   state.ConcentrationLimit,
		MinPositionSize:      state.MinPositionSize,
	}
}
