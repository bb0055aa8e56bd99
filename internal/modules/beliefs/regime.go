package beliefs

import (
	"github.com/frontieralpha/cvrf/internal/config"
	"github.com/frontieralpha/cvrf/internal/domain"
	"github.com/frontieralpha/cvrf/pkg/formulas"
)

// RegimeClassifier maps a closed episode's realized metrics to a market
// regime. Kept behind an interface so a more sophisticated external
// classifier can be substituted without touching the updater's
// reinforcement/decay logic.
type RegimeClassifier interface {
	// Classify returns the regime and a confidence in [0,1]. ok is false
	// when the metrics carry no usable signal, in which case the updater
	// leaves the regime unchanged and decays its confidence slightly.
	Classify(metrics domain.EpisodeMetrics) (regime domain.Regime, confidence float64, ok bool)
}

// ThresholdClassifier is the default rule-based classifier: realized
// volatility and return compared against configurable thresholds, with
// confidence scaling by how far the signal sits from the boundary.
type ThresholdClassifier struct {
	volatilityHigh float64
	returnHigh     float64
	returnLow      float64
}

// NewThresholdClassifier creates a classifier from engine configuration
func NewThresholdClassifier(cfg config.EngineConfig) *ThresholdClassifier {
	return &ThresholdClassifier{
		volatilityHigh: cfg.VolatilityHigh,
		returnHigh:     cfg.ReturnHigh,
		returnLow:      cfg.ReturnLow,
	}
}

// Compile-time check that ThresholdClassifier implements RegimeClassifier
var _ RegimeClassifier = (*ThresholdClassifier)(nil)

// Classify applies the threshold rules. Volatility dominates: a high-vol
// episode is "volatile" regardless of its return.
func (c *ThresholdClassifier) Classify(metrics domain.EpisodeMetrics) (domain.Regime, float64, bool) {
	vol := metrics.Volatility
	ret := metrics.PortfolioReturn

	if vol == nil && ret == nil {
		return "", 0, false
	}

	if vol != nil && *vol > c.volatilityHigh {
		confidence := formulas.Clamp((*vol-c.volatilityHigh)/c.volatilityHigh, 0, 1)
		return domain.RegimeVolatile, confidence, true
	}

	if ret != nil {
		switch {
		case *ret > c.returnHigh:
			confidence := formulas.Clamp((*ret-c.returnHigh)/c.returnHigh, 0, 1)
			return domain.RegimeRiskOn, confidence, true
		case *ret < c.returnLow:
			confidence := formulas.Clamp((c.returnLow-*ret)/(-c.returnLow), 0, 1)
			return domain.RegimeRiskOff, confidence, true
		default:
			// Inside the band: confidence grows toward the band center
			confidence := formulas.Clamp(1-absFloat(*ret)/c.returnHigh, 0, 1)
			return domain.RegimeNeutral, confidence, true
		}
	}

	// Only volatility available, and it is below the high-vol threshold
	confidence := formulas.Clamp(1-*vol/c.volatilityHigh, 0, 1)
	return domain.RegimeNeutral, confidence, true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
