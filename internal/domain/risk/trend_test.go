package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func series(values ...int) []HistoryPoint {
	points := make([]HistoryPoint, len(values))
	for i, v := range values {
		points[i] = HistoryPoint{Value: v}
	}
	return points
}

func TestComputeTrend(t *testing.T) {
	cases := []struct {
		name   string
		points []HistoryPoint
		want   Trend
	}{
		{"empty", nil, TrendStable},
		{"single point", series(60), TrendStable},
		{"risk falling is improving", series(80, 75, 70, 50, 45, 40), TrendImproving},
		{"risk rising is declining", series(20, 25, 30, 55, 60, 65), TrendDeclining},
		{"flat", series(50, 51, 49, 50, 52, 50), TrendStable},
		{"movement within margin", series(50, 50, 50, 54, 54, 54), TrendStable},
		{"movement just past margin", series(50, 50, 50, 56, 56, 56), TrendDeclining},
		// With three or fewer points the two windows cover the same points,
		// so the series is always stable until it grows.
		{"two points", series(70, 40), TrendStable},
		{"three points", series(60, 50, 40), TrendStable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ComputeTrend(c.points))
		})
	}
}

func TestComputeTrendWindowsOverlapSafely(t *testing.T) {
	// Four points: windows of three overlap in the middle, which is fine;
	// the comparison is still oldest-mean vs newest-mean.
	assert.Equal(t, TrendDeclining, ComputeTrend(series(10, 10, 10, 40)))
}
