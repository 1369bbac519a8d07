package stats

// DurationSummary describes a set of durations in seconds
type DurationSummary struct {
	Count   int
	Total   int64
	Mean    float64
	Median  float64
	P90     float64
	Longest int64
}

// SummarizeDurations computes the distribution of a set of durations.
// An empty input yields the zero summary.
func SummarizeDurations(seconds []int64) DurationSummary {
	if len(seconds) == 0 {
		return DurationSummary{}
	}

	values := make([]float64, len(seconds))
	for i, s := range seconds {
		values[i] = float64(s)
	}

	// durations are whole seconds, well inside float64's exact range
	return DurationSummary{
		Count:   len(seconds),
		Total:   int64(Sum(values)),
		Mean:    Mean(values),
		Median:  Median(values),
		P90:     Quantile(values, 0.9),
		Longest: int64(Max(values)),
	}
}
