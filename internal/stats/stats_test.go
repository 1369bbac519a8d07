package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	values := []float64{40, 10, 30, 20}

	assert.Equal(t, 10.0, Quantile(values, 0))
	assert.Equal(t, 40.0, Quantile(values, 1))
	assert.Equal(t, 25.0, Quantile(values, 0.5))
	assert.InDelta(t, 37.0, Quantile(values, 0.9), 1e-9)
	assert.Equal(t, []float64{40, 10, 30, 20}, values, "input is not reordered")
	assert.Zero(t, Quantile(nil, 0.5))
}

func TestMeanMedianMax(t *testing.T) {
	values := []float64{3, 1, 2}
	assert.Equal(t, 2.0, Mean(values))
	assert.Equal(t, 2.0, Median(values))
	assert.Equal(t, 3.0, Max(values))
	assert.Equal(t, 6.0, Sum(values))
	assert.Zero(t, Mean(nil))
	assert.Zero(t, Max(nil))
}

func TestSummarizeDurations(t *testing.T) {
	summary := SummarizeDurations([]int64{60, 120, 180, 3600})

	assert.Equal(t, 4, summary.Count)
	assert.Equal(t, int64(3960), summary.Total)
	assert.Equal(t, 990.0, summary.Mean)
	assert.Equal(t, 150.0, summary.Median)
	assert.Equal(t, int64(3600), summary.Longest)
	assert.InDelta(t, 2574.0, summary.P90, 1e-9)

	unordered := SummarizeDurations([]int64{86400, 0, 45})
	assert.Equal(t, int64(86445), unordered.Total)
	assert.Equal(t, int64(86400), unordered.Longest)

	assert.Equal(t, DurationSummary{}, SummarizeDurations(nil))
}
