// Package aggregate reconciles the inventory and registry snapshots of a
// cluster into a per-node view and computes the counters and resource
// summaries shown for it.
//
// Every function in this package is pure: inputs are never mutated, results
// are freshly allocated, and no state survives between calls.
package aggregate

// WeightedValue is one input to WeightedAverage
type WeightedValue struct {
	Weight float64
	Value  float64
}

// Sum adds up values; an empty slice sums to 0
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, or nil for an empty slice
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	mean := Sum(values) / float64(len(values))
	return &mean
}

// WeightedAverage returns Σ(weight·value) / Σweight. It returns nil when
// there is nothing to average or the weights sum to zero.
func WeightedAverage(values []WeightedValue) *float64 {
	var weighted, totalWeight float64
	for _, v := range values {
		weighted += v.Weight * v.Value
		totalWeight += v.Weight
	}
	if totalWeight == 0 {
		return nil
	}
	avg := weighted / totalWeight
	return &avg
}
