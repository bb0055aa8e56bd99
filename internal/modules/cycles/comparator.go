// Package cycles implements the episode comparison pipeline: comparator,
// insight extraction, the append-only cycle history, and correlation
// analytics over historical belief snapshots.
package cycles

import (
	"github.com/frontieralpha/cvrf/internal/domain"
)

// Metric names recorded on comparisons
const (
	MetricPortfolioReturn = "portfolio_return"
	MetricSharpeRatio     = "sharpe_ratio"
)

// Comparator computes a structured comparison between a just-closed episode
// and the most recent previously completed episode. Pure function of its
// inputs - no clock, no storage - so it is trivially safe under concurrency.
type Comparator struct{}

// NewComparator creates a new episode comparator
func NewComparator() *Comparator {
	return &Comparator{}
}

// Compare selects the comparison metric (portfolio return when both episodes
// carry one, Sharpe ratio otherwise), names the better and worse episode, and
// computes the performance delta and decision overlap. Ties go to the more
// recent episode (current).
func (c *Comparator) Compare(current, previous *domain.Episode) domain.EpisodeComparison {
	metric, currentValue, previousValue := selectMetric(current, previous)

	comparison := domain.EpisodeComparison{
		Metric:          metric,
		DecisionOverlap: DecisionOverlap(current, previous),
	}

	if currentValue >= previousValue {
		comparison.BetterEpisodeID = current.ID
		comparison.WorseEpisodeID = previous.ID
		comparison.PerformanceDelta = currentValue - previousValue
	} else {
		comparison.BetterEpisodeID = previous.ID
		comparison.WorseEpisodeID = current.ID
		comparison.PerformanceDelta = previousValue - currentValue
	}

	return comparison
}

// selectMetric picks portfolio return when present on both episodes, falling
// back to Sharpe ratio when present on both. When neither pair is complete,
// missing values read as 0 under the return metric.
func selectMetric(current, previous *domain.Episode) (string, float64, float64) {
	if current.PortfolioReturn != nil && previous.PortfolioReturn != nil {
		return MetricPortfolioReturn, *current.PortfolioReturn, *previous.PortfolioReturn
	}
	if current.SharpeRatio != nil && previous.SharpeRatio != nil {
		return MetricSharpeRatio, *current.SharpeRatio, *previous.SharpeRatio
	}
	return MetricPortfolioReturn, valueOrZero(current.PortfolioReturn), valueOrZero(previous.PortfolioReturn)
}

// DecisionOverlap computes the Jaccard similarity of the two episodes'
// traded-symbol sets. Defined as 0 when both sets are empty.
func DecisionOverlap(a, b *domain.Episode) float64 {
	symbolsA := a.Symbols()
	symbolsB := b.Symbols()

	if len(symbolsA) == 0 && len(symbolsB) == 0 {
		return 0
	}

	intersection := 0
	for symbol := range symbolsA {
		if symbolsB[symbol] {
			intersection++
		}
	}

	union := len(symbolsA) + len(symbolsB) - intersection
	return float64(intersection) / float64(union)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
