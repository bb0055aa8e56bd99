package cycles

import (
	"fmt"
	"math"
	"sort"

	"github.com/frontieralpha/cvrf/internal/domain"
	"github.com/frontieralpha/cvrf/pkg/formulas"
)

// Extractor turns an episode comparison into a small set of directional,
// factor-scoped insights. Pure function of its inputs.
type Extractor struct {
	// threshold is the minimum absolute difference between the better and
	// worse episode's mean factor exposure that produces an insight
	threshold float64
	// maxInsights caps how many insights a single cycle may emit, keeping
	// belief updates conservative and explainable
	maxInsights int
}

// NewExtractor creates a new insight extractor
func NewExtractor(threshold float64, maxInsights int) *Extractor {
	if threshold <= 0 {
		threshold = 0.15
	}
	if maxInsights <= 0 {
		maxInsights = 5
	}
	return &Extractor{threshold: threshold, maxInsights: maxInsights}
}

// Extract computes, for every factor appearing in either episode, the
// confidence-weighted mean exposure within each episode, and emits an
// insight where the better/worse difference exceeds the threshold. Insights
// are sorted descending by magnitude and capped.
func (e *Extractor) Extract(comparison domain.EpisodeComparison, current, previous *domain.Episode) []domain.Insight {
	better, worse := current, previous
	if comparison.BetterEpisodeID == previous.ID {
		better, worse = previous, current
	}

	betterExposures := meanFactorExposures(better)
	worseExposures := meanFactorExposures(worse)

	factors := make(map[string]bool, len(betterExposures)+len(worseExposures))
	for factor := range betterExposures {
		factors[factor] = true
	}
	for factor := range worseExposures {
		factors[factor] = true
	}

	insights := make([]domain.Insight, 0, len(factors))
	for factor := range factors {
		delta := betterExposures[factor] - worseExposures[factor]
		if math.Abs(delta) <= e.threshold {
			continue
		}

		insight := domain.Insight{
			RelatedFactor: factor,
			Magnitude:     math.Abs(delta),
		}

		if delta > 0 {
			// The better episode carried more of this factor
			insight.Polarity = domain.PolarityFavor
			insight.Statement = fmt.Sprintf(
				"Higher %s exposure coincided with better performance (exposure gap %.3f, performance gap %.4f)",
				factor, delta, comparison.PerformanceDelta)
		} else {
			insight.Polarity = domain.PolarityAvoid
			insight.Statement = fmt.Sprintf(
				"Lower %s exposure coincided with better performance (exposure gap %.3f, performance gap %.4f)",
				factor, -delta, comparison.PerformanceDelta)
		}

		insights = append(insights, insight)
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Magnitude > insights[j].Magnitude
	})

	if len(insights) > e.maxInsights {
		insights = insights[:e.maxInsights]
	}

	return insights
}

// meanFactorExposures computes the confidence-weighted mean exposure per
// factor across an episode's decisions. Decisions without an entry for a
// factor contribute nothing for that factor.
func meanFactorExposures(episode *domain.Episode) map[string]float64 {
	exposures := make(map[string][]float64)
	weights := make(map[string][]float64)

	for i := range episode.Decisions {
		for _, f := range episode.Decisions[i].Factors {
			exposures[f.Factor] = append(exposures[f.Factor], f.Exposure)
			weights[f.Factor] = append(weights[f.Factor], f.Confidence)
		}
	}

	means := make(map[string]float64, len(exposures))
	for factor, values := range exposures {
		means[factor] = formulas.WeightedMean(values, weights[factor])
	}

	return means
}
