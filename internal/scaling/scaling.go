// Package scaling turns a scalar signal into integer position levels with a
// one-sided hysteresis band.
package scaling

import "math"

// NoLimit disables the level limit. A limit of 0 keeps the level flat.
const NoLimit = -1

// ScaledStep returns floor(value / stepLength)
func ScaledStep(value, stepLength float64) int {
	return int(math.Floor(value / stepLength))
}

// State is the current scaling level. The zero value starts flat.
type State struct {
	Level int `json:"level"`
}

// Output is the level after one step together with the display bands
type Output struct {
	Level   int     `json:"level"`
	BandInf float64 `json:"band_inf"`
	BandMid float64 `json:"band_mid"`
	BandSup float64 `json:"band_sup"`
}

// Step advances the state by one observation.
//
// The level moves up to the band as soon as the band exceeds it, and moves down
// to band+1 only once the band is below level-1. A limit of 0 or more blocks
// any move whose new level would exceed it in magnitude; the level then stays
// where it is rather than saturating at the limit. A negative limit, such as
// NoLimit, leaves the level unbounded.
func (s State) Step(value, reference, stepSize float64, limit int) (State, Output) {
	band := ScaledStep(value-reference, stepSize)
	next := s.Level
	switch {
	case band > s.Level:
		if !exceeds(band, limit) {
			next = band
		}
	case band < s.Level-1:
		if !exceeds(band+1, limit) {
			next = band + 1
		}
	}
	s.Level = next
	return s, s.output(reference, stepSize)
}

func exceeds(level, limit int) bool {
	return limit >= 0 && abs(level) > limit
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (s State) output(reference, stepSize float64) Output {
	l := float64(s.Level)
	return Output{
		Level:   s.Level,
		BandInf: reference + (l-1)*stepSize,
		BandMid: reference + l*stepSize,
		BandSup: reference + (l+1)*stepSize,
	}
}

// Scale folds Step over values in order, starting flat
func Scale(values []float64, reference, stepSize float64, limit int) []Output {
	out := make([]Output, len(values))
	var s State
	for i, v := range values {
		s, out[i] = s.Step(v, reference, stepSize, limit)
	}
	return out
}
