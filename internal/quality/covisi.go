package quality

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"emgpipe/internal/emgjson"
)

// DefaultCovisiThreshold is the CoVISI percentage above which a motor unit
// counts as unreliable.
const DefaultCovisiThreshold = 30.0

// CoVISI returns the coefficient of variation of a unit's inter-spike
// intervals, in percent. Units with fewer than two intervals have no
// defined value and yield NaN.
func CoVISI(discharges []int64) float64 {
	if len(discharges) < 2 {
		return math.NaN()
	}
	sorted := slices.Clone(discharges)
	slices.Sort(sorted)
	intervals := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals[i-1] = float64(sorted[i] - sorted[i-1])
	}
	if len(intervals) < 2 {
		return math.NaN()
	}
	mean := stat.Mean(intervals, nil)
	if mean <= 0 {
		return math.NaN()
	}
	return stat.PopStdDev(intervals, nil) / mean * 100
}

// UnitValues computes CoVISI for every unit, in unit order.
func UnitValues(units []emgjson.Unit) []float64 {
	values := make([]float64, len(units))
	for i, u := range units {
		values[i] = CoVISI(u.Discharges)
	}
	return values
}

// Category buckets a CoVISI value for display and reporting.
func Category(v float64) string {
	switch {
	case math.IsNaN(v):
		return "unknown"
	case v <= 20:
		return "excellent"
	case v <= 30:
		return "good"
	case v <= 50:
		return "marginal"
	default:
		return "poor"
	}
}

// nullable maps NaN onto a JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// nanMean averages the defined values. Nil when none are defined.
func nanMean(values []float64) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
