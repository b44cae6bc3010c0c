package learner

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// trainable categories are adjusted from correlations; the rest are only clamped.
var trainable = []string{
	models.CategoryMomentum,
	models.CategoryRelStrength,
	models.CategoryVolume,
}

var fixed = []string{
	models.CategoryCatalyst,
	models.CategoryRegime,
}

// Bounds controls how far one learning run may move the weights.
type Bounds struct {
	MinFixed    float64
	MaxFixed    float64
	MaxShift    float64
	ShiftFactor float64
}

func DefaultBounds() Bounds {
	return Bounds{MinFixed: 0.10, MaxFixed: 0.40, MaxShift: 0.12, ShiftFactor: 0.25}
}

// Correlation is the Pearson correlation of x and y, or 0 when either
// side has no variance or the inputs are unusable.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// Correlations computes each proxy's correlation with the forward return.
func Correlations(samples []Sample) map[string]float64 {
	mom := make([]float64, len(samples))
	rs := make([]float64, len(samples))
	vol := make([]float64, len(samples))
	fwd := make([]float64, len(samples))
	for i, s := range samples {
		mom[i], rs[i], vol[i], fwd[i] = s.Momentum, s.RelStrength, s.VolRatio, s.Forward
	}
	return map[string]float64{
		models.CategoryMomentum:    Correlation(mom, fwd),
		models.CategoryRelStrength: Correlation(rs, fwd),
		models.CategoryVolume:      Correlation(vol, fwd),
	}
}

// SignalShares turns correlations into non-negative shares summing to 1.
// All-zero strength yields equal thirds.
func SignalShares(corr map[string]float64) map[string]float64 {
	shares := make(map[string]float64, len(trainable))
	var total float64
	for _, c := range trainable {
		v := math.Abs(corr[c])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		shares[c] = v
		total += v
	}
	for _, c := range trainable {
		if total == 0 {
			shares[c] = 1.0 / float64(len(trainable))
		} else {
			shares[c] /= total
		}
	}
	return shares
}

// Blend moves the trainable weights toward correlation-implied targets,
// clamps the fixed categories and returns a vector summing to 1.
func Blend(current models.WeightVector, corr map[string]float64, b Bounds) models.WeightVector {
	return finalize(blend(current.Normalized(), SignalShares(corr), b), b)
}

// blend interpolates each trainable weight between its prior value and its target.
func blend(w models.WeightVector, shares map[string]float64, b Bounds) models.WeightVector {
	out := w.Clone()
	var pool float64
	for _, c := range trainable {
		pool += w[c]
	}
	shift := math.Min(b.MaxShift, b.ShiftFactor*pool)
	for _, c := range trainable {
		target := pool * (0.20 + 0.80*shares[c])
		out[c] = (1-shift)*w[c] + shift*target
	}
	return out
}

// finalize clamps the fixed categories and scales the trainable pool so the
// vector sums to 1 while the fixed categories stay inside their band.
func finalize(w models.WeightVector, b Bounds) models.WeightVector {
	out := w.Clone()
	var fixedMass float64
	for _, c := range fixed {
		out.Clamp(c, b.MinFixed, b.MaxFixed)
		fixedMass += out[c]
	}
	if fixedMass >= 1 {
		return out.Normalized()
	}

	var pool float64
	for _, c := range trainable {
		pool += out[c]
	}
	residual := 1 - fixedMass
	for _, c := range trainable {
		if pool <= 0 {
			out[c] = residual / float64(len(trainable))
		} else {
			out[c] = out[c] / pool * residual
		}
	}
	return out
}
