package audio

import "math"

const (
	// levelEpsilon keeps the dB conversion finite on all-zero buffers.
	levelEpsilon = 1e-5
	// levelFloorDB is the meter floor; anything quieter reads as zero.
	levelFloorDB = -60.0
)

// Level computes a normalized meter value in [0,1] from interleaved samples.
// peak = max(|s|) across all channels, converted to dB and mapped linearly
// from [-60dB, 0dB]. Allocation-free; safe to call from the capture callback.
func Level(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}

	db := 20 * math.Log10(math.Max(peak, levelEpsilon))
	normalized := (db - levelFloorDB) / -levelFloorDB
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}
