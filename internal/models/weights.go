package models

import "math"

// Weight categories. The set is fixed.
const (
	CategoryMomentum    = "momentum"
	CategoryRelStrength = "rel_strength"
	CategoryVolume      = "volatility_volume"
	CategoryCatalyst    = "catalyst"
	CategoryRegime      = "market_regime"
)

// Categories lists the weight categories in canonical order.
var Categories = []string{
	CategoryMomentum,
	CategoryRelStrength,
	CategoryVolume,
	CategoryCatalyst,
	CategoryRegime,
}

// WeightVector maps each category to a non-negative weight.
type WeightVector map[string]float64

// EqualWeights returns the vector with 0.2 on every category.
func EqualWeights() WeightVector {
	w := make(WeightVector, len(Categories))
	for _, c := range Categories {
		w[c] = 1.0 / float64(len(Categories))
	}
	return w
}

// Sum returns the total weight over the known categories.
func (w WeightVector) Sum() float64 {
	var s float64
	for _, c := range Categories {
		s += w[c]
	}
	return s
}

// Normalized returns a copy restricted to the known categories that sums to 1.0.
// Negative or NaN entries count as zero; a vector with no positive mass becomes EqualWeights.
func (w WeightVector) Normalized() WeightVector {
	out := make(WeightVector, len(Categories))
	var total float64
	for _, c := range Categories {
		v := w[c]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[c] = v
		total += v
	}
	if total <= 0 {
		return EqualWeights()
	}
	for _, c := range Categories {
		out[c] /= total
	}
	return out
}

// Clone returns an independent copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Clamp bounds one category to [lo, hi] in place.
func (w WeightVector) Clamp(category string, lo, hi float64) {
	v := w[category]
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	w[category] = v
}
