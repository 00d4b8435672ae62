package risk

// Trend is the direction of a site's score series.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// trendMargin is the score-point difference below which movement counts as
// noise.
const trendMargin = 5.0

// ComputeTrend compares the recent end of a time-ordered series (oldest
// first) against its start.  It averages the most recent min(3, n) points
// and the earliest min(3, n) points; risk falling by more than the margin is
// improving, rising by more than the margin is declining, anything else is
// stable.  Fewer than two points is always stable.
func ComputeTrend(points []HistoryPoint) Trend {
	n := len(points)
	if n < 2 {
		return TrendStable
	}
	k := 3
	if n < k {
		k = n
	}

	oldest := mean(points[:k])
	newest := mean(points[n-k:])

	switch {
	case newest < oldest-trendMargin:
		return TrendImproving
	case newest > oldest+trendMargin:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(points []HistoryPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += float64(p.Value)
	}
	return sum / float64(len(points))
}
