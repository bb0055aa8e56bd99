package cycles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frontieralpha/cvrf/internal/domain"
)

func floatp(v float64) *float64 { return &v }

func episodeWithMetrics(id string, ret, sharpe *float64, symbols ...string) *domain.Episode {
	ep := &domain.Episode{
		ID:     id,
		UserID: "user-1",
		Status: domain.EpisodeStatusCompleted,
	}
	ep.PortfolioReturn = ret
	ep.SharpeRatio = sharpe
	for _, symbol := range symbols {
		ep.Decisions = append(ep.Decisions, domain.Decision{
			Symbol: symbol,
			Action: domain.ActionBuy,
		})
	}
	return ep
}

func TestCompare_ReturnMetricPreferred(t *testing.T) {
	comparator := NewComparator()

	current := episodeWithMetrics("cur", floatp(0.034), floatp(0.5))
	previous := episodeWithMetrics("prev", floatp(0.021), floatp(1.5))

	comparison := comparator.Compare(current, previous)
	assert.Equal(t, MetricPortfolioReturn, comparison.Metric)
	assert.Equal(t, "cur", comparison.BetterEpisodeID)
	assert.Equal(t, "prev", comparison.WorseEpisodeID)
	assert.InDelta(t, 0.013, comparison.PerformanceDelta, 1e-9)
}

func TestCompare_SharpeFallback(t *testing.T) {
	comparator := NewComparator()

	current := episodeWithMetrics("cur", nil, floatp(0.8))
	previous := episodeWithMetrics("prev", floatp(0.02), floatp(1.2))

	comparison := comparator.Compare(current, previous)
	assert.Equal(t, MetricSharpeRatio, comparison.Metric)
	assert.Equal(t, "prev", comparison.BetterEpisodeID)
	assert.InDelta(t, 0.4, comparison.PerformanceDelta, 1e-9)
}

func TestCompare_MissingMetricsReadAsZero(t *testing.T) {
	comparator := NewComparator()

	current := episodeWithMetrics("cur", floatp(-0.01), nil)
	previous := episodeWithMetrics("prev", nil, nil)

	comparison := comparator.Compare(current, previous)
	assert.Equal(t, MetricPortfolioReturn, comparison.Metric)
	assert.Equal(t, "prev", comparison.BetterEpisodeID)
	assert.InDelta(t, 0.01, comparison.PerformanceDelta, 1e-9)
}

func TestCompare_TieGoesToCurrent(t *testing.T) {
	comparator := NewComparator()

	current := episodeWithMetrics("cur", floatp(0.02), nil)
	previous := episodeWithMetrics("prev", floatp(0.02), nil)

	comparison := comparator.Compare(current, previous)
	assert.Equal(t, "cur", comparison.BetterEpisodeID)
	assert.Equal(t, 0.0, comparison.PerformanceDelta)
}

func TestDecisionOverlap(t *testing.T) {
	a := episodeWithMetrics("a", nil, nil, "AAPL", "MSFT")
	b := episodeWithMetrics("b", nil, nil, "MSFT", "NVDA")
	empty := episodeWithMetrics("e", nil, nil)

	// {AAPL,MSFT} and {MSFT,NVDA} share one of three symbols
	assert.InDelta(t, 1.0/3.0, DecisionOverlap(a, b), 1e-9)
	assert.Equal(t, DecisionOverlap(a, b), DecisionOverlap(b, a))

	assert.Equal(t, 1.0, DecisionOverlap(a, a))
	assert.Equal(t, 0.0, DecisionOverlap(a, empty))
	assert.Equal(t, 0.0, DecisionOverlap(empty, empty))

	disjointA := episodeWithMetrics("da", nil, nil, "AAPL")
	disjointB := episodeWithMetrics("db", nil, nil, "TSLA")
	assert.Equal(t, 0.0, DecisionOverlap(disjointA, disjointB))
}
