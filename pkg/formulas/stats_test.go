package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{}))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
}

func TestWeightedMean(t *testing.T) {
	t.Run("equal weights match plain mean", func(t *testing.T) {
		assert.InDelta(t, 2.0, WeightedMean([]float64{1, 2, 3}, []float64{1, 1, 1}), 1e-9)
	})

	t.Run("weights shift the result", func(t *testing.T) {
		// 1*0.1 + 3*0.9 = 2.8
		assert.InDelta(t, 2.8, WeightedMean([]float64{1, 3}, []float64{0.1, 0.9}), 1e-9)
	})

	t.Run("zero weight sum returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, WeightedMean([]float64{1, 2}, []float64{0, 0}))
	})

	t.Run("mismatched lengths return zero", func(t *testing.T) {
		assert.Equal(t, 0.0, WeightedMean([]float64{1, 2}, []float64{1}))
	})
}

func TestCorrelation(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		r := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6})
		assert.InDelta(t, 1.0, r, 1e-9)
	})

	t.Run("perfect negative", func(t *testing.T) {
		r := Correlation([]float64{0.1, 0.2, 0.3}, []float64{-0.1, -0.2, -0.3})
		assert.InDelta(t, -1.0, r, 1e-9)
	})

	t.Run("short series returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Correlation([]float64{1}, []float64{2}))
	})

	t.Run("zero variance returns zero not NaN", func(t *testing.T) {
		r := Correlation([]float64{5, 5, 5}, []float64{1, 2, 3})
		assert.Equal(t, 0.0, r)
	})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-2, 0, 1))
	assert.Equal(t, 1.0, Clamp(7, 0, 1))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.1235, Round(0.12345, 4))
	assert.Equal(t, -1.0, Round(-0.99999, 2))
}
