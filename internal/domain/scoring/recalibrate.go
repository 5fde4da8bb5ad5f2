package scoring

import "math"

// minRecalibrationSample is the smallest population worth refreshing the
// feature scaling from. Below this the existing scaling is kept.
const minRecalibrationSample = 12

// Recalibrate returns a copy of b whose feature means and scales are
// recomputed from the supplied solve population. Model weights and the
// score curve are untouched; only the standardization layer moves. DNF
// attempts are skipped since most of their features are undefined.
func Recalibrate(b *Bundle, inputs []Input) *Bundle {
	sums := make(map[string]float64, len(featureOrder))
	squares := make(map[string]float64, len(featureOrder))
	n := 0

	for _, in := range inputs {
		if in.DNF {
			continue
		}
		raw := buildFeatures(in, baseline(in))
		n++
		for _, name := range featureOrder {
			v := raw[name]
			sums[name] += v
			squares[name] += v * v
		}
	}
	if n < minRecalibrationSample {
		return b
	}

	out := *b
	out.Means = make(map[string]float64, len(featureOrder))
	out.Scales = make(map[string]float64, len(featureOrder))
	for _, name := range featureOrder {
		mean := sums[name] / float64(n)
		variance := squares[name]/float64(n) - mean*mean
		if variance < 0 {
			variance = 0
		}
		sd := math.Sqrt(variance)
		out.Means[name] = mean
		if sd > 0 {
			out.Scales[name] = sd
		} else {
			out.Scales[name] = 1
		}
	}
	return &out
}
