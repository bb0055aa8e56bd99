package cycles

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/cvrf/internal/domain"
)

// fakeHistory serves canned cycle records to the analyzer
type fakeHistory struct {
	records []domain.CycleRecord
	err     error
}

func (f *fakeHistory) GetHistory(userID string) ([]domain.CycleRecord, error) {
	return f.records, f.err
}

func recordWithWeights(cycleNumber int64, weights domain.FactorMap) domain.CycleRecord {
	return domain.CycleRecord{
		UserID:      "user-1",
		CycleNumber: cycleNumber,
		NewBeliefState: domain.BeliefSnapshot{
			Version:       cycleNumber + 1,
			FactorWeights: weights,
		},
	}
}

func TestAnalyze_PerfectNegativeCorrelation(t *testing.T) {
	history := &fakeHistory{records: []domain.CycleRecord{
		recordWithWeights(1, domain.FactorMap{"momentum": 0.1, "value": -0.1}),
		recordWithWeights(2, domain.FactorMap{"momentum": 0.2, "value": -0.2}),
		recordWithWeights(3, domain.FactorMap{"momentum": 0.3, "value": -0.3}),
	}}
	analyzer := NewAnalyzer(history, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"momentum", "value"}, result.Factors)
	assert.Equal(t, 3, result.CycleCount)

	require.Len(t, result.Matrix, 2)
	assert.Equal(t, 1.0, result.Matrix[0][0])
	assert.Equal(t, 1.0, result.Matrix[1][1])
	assert.InDelta(t, -1.0, result.Matrix[0][1], 0.0001)
	assert.Equal(t, result.Matrix[0][1], result.Matrix[1][0])

	require.Len(t, result.StrongCorrelations, 1)
	assert.Equal(t, "momentum", result.StrongCorrelations[0].FactorA)
	assert.Equal(t, "value", result.StrongCorrelations[0].FactorB)
	assert.InDelta(t, -1.0, result.StrongCorrelations[0].Correlation, 0.0001)
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	analyzer := NewAnalyzer(&fakeHistory{}, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	assert.Empty(t, result.Factors)
	assert.Empty(t, result.Matrix)
	assert.Equal(t, 0, result.CycleCount)
	assert.Empty(t, result.StrongCorrelations)
}

func TestAnalyze_SingleRecordHasNoCorrelations(t *testing.T) {
	history := &fakeHistory{records: []domain.CycleRecord{
		recordWithWeights(1, domain.FactorMap{"momentum": 0.1, "value": 0.2}),
	}}
	analyzer := NewAnalyzer(history, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Matrix[0][0])
	// A single observation cannot support a correlation estimate
	assert.Equal(t, 0.0, result.Matrix[0][1])
	assert.Empty(t, result.StrongCorrelations)
}

func TestAnalyze_BackFillAvoidsSpuriousCorrelation(t *testing.T) {
	// "quality" only appears from the third cycle on. Its leading entries are
	// back-filled at its first observed value, so it is flat until it actually
	// starts moving.
	history := &fakeHistory{records: []domain.CycleRecord{
		recordWithWeights(1, domain.FactorMap{"momentum": 0.1}),
		recordWithWeights(2, domain.FactorMap{"momentum": 0.2}),
		recordWithWeights(3, domain.FactorMap{"momentum": 0.3, "quality": 0.5}),
		recordWithWeights(4, domain.FactorMap{"momentum": 0.4, "quality": 0.5}),
	}}
	analyzer := NewAnalyzer(history, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"momentum", "quality"}, result.Factors)
	// quality's series is constant, so the pair correlates at 0
	assert.Equal(t, 0.0, result.Matrix[0][1])
	assert.Empty(t, result.StrongCorrelations)
}

func TestAnalyze_CarryForwardInteriorGap(t *testing.T) {
	// "value" is missing from the middle snapshot; its series carries last
	// known value forward rather than dropping to zero.
	history := &fakeHistory{records: []domain.CycleRecord{
		recordWithWeights(1, domain.FactorMap{"momentum": 0.1, "value": 0.3}),
		recordWithWeights(2, domain.FactorMap{"momentum": 0.2}),
		recordWithWeights(3, domain.FactorMap{"momentum": 0.3, "value": 0.3}),
	}}
	analyzer := NewAnalyzer(history, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	// value stayed flat at 0.3 across all three cycles
	assert.Equal(t, 0.0, result.Matrix[0][1])
}

func TestAnalyze_WeakPairsExcluded(t *testing.T) {
	// momentum trends up while "noise" wiggles with near-zero correlation
	history := &fakeHistory{records: []domain.CycleRecord{
		recordWithWeights(1, domain.FactorMap{"momentum": 0.1, "noise": 0.5}),
		recordWithWeights(2, domain.FactorMap{"momentum": 0.2, "noise": -0.5}),
		recordWithWeights(3, domain.FactorMap{"momentum": 0.3, "noise": 0.5}),
		recordWithWeights(4, domain.FactorMap{"momentum": 0.4, "noise": -0.5}),
	}}
	analyzer := NewAnalyzer(history, zerolog.Nop())

	result, err := analyzer.Analyze("user-1")
	require.NoError(t, err)
	require.Len(t, result.Matrix, 2)
	assert.Less(t, math.Abs(result.Matrix[0][1]), StrongCorrelationThreshold)
	assert.Empty(t, result.StrongCorrelations)
}
