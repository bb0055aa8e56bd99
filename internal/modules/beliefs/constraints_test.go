package beliefs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frontieralpha/cvrf/internal/domain"
)

func TestDerive(t *testing.T) {
	deriver := NewConstraintDeriver()

	state := domain.DefaultBeliefState("user-1")
	state.FactorWeights["momentum"] = 0.04
	state.FactorWeights["value"] = -0.02

	constraints := deriver.Derive(state)
	assert.Equal(t, 0.15, constraints.MaxDrawdownThreshold)
	assert.Equal(t, 0.12, constraints.VolatilityTarget)
	assert.Equal(t, 0.25, constraints.ConcentrationLimit)
	assert.Equal(t, 0.01, constraints.MinPositionSize)
	assert.InDelta(t, 0.04, constraints.FactorTargets["momentum"], 1e-9)
	assert.InDelta(t, -0.02, constraints.FactorTargets["value"], 1e-9)
}

func TestDerive_TargetsAreACopy(t *testing.T) {
	deriver := NewConstraintDeriver()

	state := domain.DefaultBeliefState("user-1")
	state.FactorWeights["momentum"] = 0.04

	constraints := deriver.Derive(state)
	constraints.FactorTargets["momentum"] = 0.99

	assert.InDelta(t, 0.04, state.FactorWeights["momentum"], 1e-9)
}
