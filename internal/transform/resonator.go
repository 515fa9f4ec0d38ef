// SPDX-License-Identifier: MIT
package transform

import (
	"fmt"
	"math"
)

const (
	defaultResonanceHz = 440.0
	defaultResonanceQ  = 4.0
	minResonanceQ      = 1e-3
	maxResonanceRatio  = 0.499 // Fraction of the sample rate, keeps tan() finite.
)

// Resonator runs each frame through a topology-preserving state-variable
// band-pass filter. Each frame starts from rest, so the two overlapping
// copies of every input sample are filtered independently and the envelope
// hides the start-up transient.
type Resonator struct {
	a1, a2, a3 float64 // TPT coefficients.
	k          float64 // 1/Q, scales the band-pass back to unity peak gain.
	blend      float64
}

// NewResonator returns a resonator centred on freqHz. Zero values select a
// 440 Hz centre, Q of 4 and a fully wet blend.
func NewResonator(sampleRate, freqHz, q, blend float64) (*Resonator, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("resonator sample rate must be > 0: %f", sampleRate)
	}
	if freqHz <= 0 || math.IsNaN(freqHz) {
		freqHz = defaultResonanceHz
	}
	if q <= 0 || math.IsNaN(q) {
		q = defaultResonanceQ
	}
	if q < minResonanceQ {
		q = minResonanceQ
	}
	if blend <= 0 || blend > 1 || math.IsNaN(blend) {
		blend = 1
	}

	ratio := math.Min(freqHz/sampleRate, maxResonanceRatio)
	g := math.Tan(math.Pi * ratio)
	k := 1 / q

	denom := 1 + g*(g+k)
	a1 := 1 / denom
	a2 := g * a1
	a3 := g * a2

	return &Resonator{a1: a1, a2: a2, a3: a3, k: k, blend: blend}, nil
}

// Transform implements Transform.
func (r *Resonator) Transform(frame []float64, res *Result) {
	out := res.Samples[:len(frame)]

	var ic1, ic2 float64
	peak, peakVal := 0, 0.0
	for i, x := range frame {
		v3 := x - ic2
		v1 := r.a1*ic1 + r.a2*v3
		v2 := ic2 + r.a2*ic1 + r.a3*v3
		ic1 = 2*v1 - ic1
		ic2 = 2*v2 - ic2

		y := r.k * v1 // Unity gain at the centre frequency.
		out[i] = x + (y-x)*r.blend

		if a := math.Abs(out[i]); a > peakVal {
			peak, peakVal = i, a
		}
	}

	if peakVal > 0 {
		res.AddLandmark(peak, out[peak])
	}
}
