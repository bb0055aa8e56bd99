package cycles

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/frontieralpha/cvrf/internal/domain"
	"github.com/frontieralpha/cvrf/pkg/formulas"
)

// StrongCorrelationThreshold marks factor pairs worth surfacing
const StrongCorrelationThreshold = 0.5

// MaxStrongCorrelations caps the presented strong-pair list
const MaxStrongCorrelations = 20

// CorrelationPair names two factors and their Pearson correlation
type CorrelationPair struct {
	FactorA     string  `json:"factor_a"`
	FactorB     string  `json:"factor_b"`
	Correlation float64 `json:"correlation"`
}

// CorrelationResult is the full output of a correlation analysis
type CorrelationResult struct {
	Factors            []string          `json:"factors"`
	Matrix             [][]float64       `json:"matrix"`
	CycleCount         int               `json:"cycle_count"`
	StrongCorrelations []CorrelationPair `json:"strong_correlations"`
}

// CycleHistoryReader is the slice of the cycle repository the analyzer needs
type CycleHistoryReader interface {
	GetHistory(userID string) ([]domain.CycleRecord, error)
}

// Analyzer builds a factor-to-factor correlation matrix from the historical
// sequence of belief snapshots, one factor-weight observation per completed
// cycle.
type Analyzer struct {
	history CycleHistoryReader
	log     zerolog.Logger
}

// NewAnalyzer creates a new correlation analyzer
func NewAnalyzer(history CycleHistoryReader, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		history: history,
		log:     log.With().Str("component", "correlation_analyzer").Logger(),
	}
}

// Analyze computes the correlation matrix for a user's belief history
func (a *Analyzer) Analyze(userID string) (*CorrelationResult, error) {
	records, err := a.history.GetHistory(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle history: %w", err)
	}

	series := buildFactorSeries(records)

	factors := make([]string, 0, len(series))
	for factor := range series {
		factors = append(factors, factor)
	}
	sort.Strings(factors)

	matrix := correlationMatrix(factors, series)

	return &CorrelationResult{
		Factors:            factors,
		Matrix:             matrix,
		CycleCount:         len(records),
		StrongCorrelations: strongPairs(factors, matrix),
	}, nil
}

// buildFactorSeries assembles each factor's weight time series across cycles
// in chronological order. Factors introduced in a later cycle are back-filled
// with their own earliest known value - never with zero - so alignment does
// not manufacture spurious zero-variance artifacts. Interior gaps carry the
// last known value forward.
func buildFactorSeries(records []domain.CycleRecord) map[string][]float64 {
	series := make(map[string][]float64)

	for i, record := range records {
		weights := record.NewBeliefState.FactorWeights

		// Extend existing series, carrying forward factors missing from
		// this snapshot
		for factor, values := range series {
			if w, ok := weights[factor]; ok {
				series[factor] = append(values, w)
			} else {
				series[factor] = append(values, values[len(values)-1])
			}
		}

		// New factors get back-filled leading entries at their first value
		for factor, w := range weights {
			if _, ok := series[factor]; ok {
				continue
			}
			values := make([]float64, i+1)
			for j := range values {
				values[j] = w
			}
			series[factor] = values
		}
	}

	return series
}

// correlationMatrix computes the symmetric Pearson matrix with an exact 1.0
// diagonal, rounded to 4 decimal places. Series shorter than 2 observations
// and zero-variance series correlate at 0.
func correlationMatrix(factors []string, series map[string][]float64) [][]float64 {
	n := len(factors)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := formulas.Round(formulas.Correlation(series[factors[i]], series[factors[j]]), 4)
			// Symmetric by construction
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}

	return matrix
}

// strongPairs lists factor pairs with |r| above the threshold, excluding
// self-pairs, sorted descending by |r| and capped for presentation
func strongPairs(factors []string, matrix [][]float64) []CorrelationPair {
	pairs := make([]CorrelationPair, 0)

	for i := 0; i < len(factors); i++ {
		for j := i + 1; j < len(factors); j++ {
			if math.Abs(matrix[i][j]) > StrongCorrelationThreshold {
				pairs = append(pairs, CorrelationPair{
					FactorA:     factors[i],
					FactorB:     factors[j],
					Correlation: matrix[i][j],
				})
			}
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})

	if len(pairs) > MaxStrongCorrelations {
		pairs = pairs[:MaxStrongCorrelations]
	}

	return pairs
}
