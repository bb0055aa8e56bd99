package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDecision() Decision {
	return Decision{
		Symbol:       "AAPL",
		Action:       ActionBuy,
		WeightBefore: 0.05,
		WeightAfter:  0.08,
		Reason:       "momentum signal",
		Confidence:   0.7,
		Factors: []FactorExposure{
			{Factor: "momentum", Exposure: 0.8, Confidence: 0.9},
		},
	}
}

func TestDecisionValidate(t *testing.T) {
	t.Run("valid decision passes", func(t *testing.T) {
		dec := validDecision()
		assert.NoError(t, dec.Validate())
	})

	t.Run("empty symbol rejected", func(t *testing.T) {
		dec := validDecision()
		dec.Symbol = "  "
		err := dec.Validate()
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		dec := validDecision()
		dec.Action = "short"
		assert.True(t, IsValidation(dec.Validate()))
	})

	t.Run("confidence above one rejected", func(t *testing.T) {
		dec := validDecision()
		dec.Confidence = 1.5
		err := dec.Validate()
		require.Error(t, err)
		assert.Equal(t, KindValidation, ErrorKind(err))
	})

	t.Run("weight outside unit interval rejected", func(t *testing.T) {
		dec := validDecision()
		dec.WeightAfter = -0.1
		assert.True(t, IsValidation(dec.Validate()))
	})

	t.Run("empty reason rejected", func(t *testing.T) {
		dec := validDecision()
		dec.Reason = ""
		assert.True(t, IsValidation(dec.Validate()))
	})

	t.Run("factor confidence out of range rejected", func(t *testing.T) {
		dec := validDecision()
		dec.Factors[0].Confidence = 2
		assert.True(t, IsValidation(dec.Validate()))
	})
}

func TestEpisodeSymbols(t *testing.T) {
	episode := Episode{
		Decisions: []Decision{
			{Symbol: "AAPL"},
			{Symbol: "MSFT"},
			{Symbol: "AAPL"},
		},
	}

	symbols := episode.Symbols()
	assert.Len(t, symbols, 2)
	assert.True(t, symbols["AAPL"])
	assert.True(t, symbols["MSFT"])
}

func TestDefaultBeliefState(t *testing.T) {
	state := DefaultBeliefState("user-1")

	assert.Equal(t, "user-1", state.UserID)
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, RegimeNeutral, state.CurrentRegime)
	assert.Equal(t, 0.5, state.RegimeConfidence)
	assert.NotNil(t, state.FactorWeights)
	assert.NotNil(t, state.FactorConfidences)
	assert.Empty(t, state.ConceptualPriors)
}

func TestBeliefStateClone(t *testing.T) {
	state := DefaultBeliefState("user-1")
	state.FactorWeights["momentum"] = 0.3
	state.ConceptualPriors = []string{"prior one"}

	clone := state.Clone()
	clone.FactorWeights["momentum"] = -0.5
	clone.ConceptualPriors = append(clone.ConceptualPriors, "prior two")

	assert.Equal(t, 0.3, state.FactorWeights["momentum"])
	assert.Len(t, state.ConceptualPriors, 1)
}

func TestInsightDirection(t *testing.T) {
	favor := Insight{Polarity: PolarityFavor}
	avoid := Insight{Polarity: PolarityAvoid}

	assert.Equal(t, 1.0, favor.Direction())
	assert.Equal(t, -1.0, avoid.Direction())
}

func TestFactorMapJSONDeterministic(t *testing.T) {
	fm := FactorMap{"value": 0.2, "momentum": 0.1, "quality": -0.3}

	first, err := json.Marshal(fm)
	require.NoError(t, err)

	// Keys are emitted sorted, so repeated marshals are byte-identical
	for i := 0; i < 10; i++ {
		next, err := json.Marshal(fm)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(next))
	}

	var decoded FactorMap
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, fm, decoded)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindAlreadyActive, ErrorKind(ErrAlreadyActive))
	assert.Equal(t, KindNoActiveEpisode, ErrorKind(ErrNoActiveEpisode))
	assert.Equal(t, KindConflict, ErrorKind(ErrConflict))
	assert.Equal(t, KindValidation, ErrorKind(NewValidationError("f", "bad")))
	assert.Equal(t, "", ErrorKind(nil))
}
