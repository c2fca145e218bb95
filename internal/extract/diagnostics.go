package extract

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencyReport summarizes how long the pattern cascade took to resolve a
// batch of sample (text, axes) pairs. Diagnostic only — never computed on
// the request path.
type LatencyReport struct {
	SampleCount int
	P50         time.Duration
	P95         time.Duration
	Mean        time.Duration
}

// SelfTest runs ExtractAll once per sample, timing each call, and reports
// p50/p95/mean latency across the batch via gonum/stat's quantile function.
func SelfTest(samples []struct {
	Text string
	Axes []AxisKeyword
}) LatencyReport {
	if len(samples) == 0 {
		return LatencyReport{}
	}

	durations := make([]float64, len(samples))
	for i, sample := range samples {
		start := time.Now()
		ExtractAll(sample.Text, sample.Axes)
		durations[i] = float64(time.Since(start))
	}

	sort.Float64s(durations)
	weights := make([]float64, len(durations))
	for i := range weights {
		weights[i] = 1
	}

	return LatencyReport{
		SampleCount: len(samples),
		P50:         time.Duration(stat.Quantile(0.50, stat.Empirical, durations, weights)),
		P95:         time.Duration(stat.Quantile(0.95, stat.Empirical, durations, weights)),
		Mean:        time.Duration(stat.Mean(durations, weights)),
	}
}
