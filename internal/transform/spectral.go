// SPDX-License-Identifier: MIT
package transform

import (
	"fmt"
	"math"
	"math/cmplx"

	"olafx/internal/window"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	spectralMagFloor  = 1e-12 // Below this a bin's phase is treated as undefined.
	spectralPeakFloor = 1e-6  // Minimum normalised magnitude for a peak landmark.
	maxEchoFeedback   = 0.95
)

// Pre-allocated buffers for spectral processing, sized for the largest frame.
type spectralWorkspace struct {
	coeffs []complex128 // Forward FFT output, maxFrameSize/2 + 1 bins.
	mags   []float64    // Normalised magnitude per bin.
	held   []float64    // Echo feedback state per bin.
}

// Spectral quantises bin magnitudes and feeds them back as a decaying echo.
// Peaks of the resulting spectrum are reported as landmarks (bin index,
// normalised magnitude).
type Spectral struct {
	plans     map[int]*fourier.FFT // One reusable plan per supported frame size.
	step      float64
	feedback  float64
	workspace spectralWorkspace
}

// NewSpectral pre-builds an FFT plan for every supported frame size up to
// maxFrameSize. quantizeStep <= 0 disables quantisation; feedback is
// clamped to [0, 0.95].
func NewSpectral(maxFrameSize int, quantizeStep, feedback float64) (*Spectral, error) {
	if !window.IsSupportedFrameSize(maxFrameSize) {
		return nil, fmt.Errorf("spectral: %w: %d", window.ErrUnsupportedFrameSize, maxFrameSize)
	}
	if math.IsNaN(quantizeStep) || quantizeStep < 0 {
		quantizeStep = 0
	}
	if math.IsNaN(feedback) || feedback < 0 {
		feedback = 0
	}
	if feedback > maxEchoFeedback {
		feedback = maxEchoFeedback
	}

	plans := make(map[int]*fourier.FFT)
	for _, n := range window.SupportedFrameSizes {
		if n > maxFrameSize {
			break
		}
		plans[n] = fourier.NewFFT(n)
	}

	bins := maxFrameSize/2 + 1
	return &Spectral{
		plans:    plans,
		step:     quantizeStep,
		feedback: feedback,
		workspace: spectralWorkspace{
			coeffs: make([]complex128, bins),
			mags:   make([]float64, bins),
			held:   make([]float64, bins),
		},
	}, nil
}

// Transform implements Transform.
func (s *Spectral) Transform(frame []float64, res *Result) {
	n := len(frame)
	plan, ok := s.plans[n]
	if !ok {
		panic(fmt.Sprintf("spectral: no plan for frame size %d", n))
	}
	bins := n/2 + 1
	coeffs := s.workspace.coeffs[:bins]
	mags := s.workspace.mags[:bins]
	held := s.workspace.held[:bins]

	// --- 1. Analysis ---
	plan.Coefficients(coeffs, frame)

	// --- 2. Bin manipulation ---
	scale := 2 / float64(n)
	for k, c := range coeffs {
		mag := cmplx.Abs(c)
		m := mag * scale

		if s.step > 0 {
			m = math.Round(m/s.step) * s.step
		}
		if s.feedback > 0 {
			m += s.feedback * held[k]
			held[k] = m
		}
		mags[k] = m

		if mag < spectralMagFloor {
			coeffs[k] = complex(m/scale, 0)
			continue
		}
		coeffs[k] = c * complex(m/scale/mag, 0)
	}

	// --- 3. Peak landmarks ---
	for k := 1; k < bins-1; k++ {
		if mags[k] > spectralPeakFloor && mags[k] >= mags[k-1] && mags[k] > mags[k+1] {
			if !res.AddLandmark(k, mags[k]) {
				break
			}
		}
	}

	// --- 4. Synthesis ---
	out := res.Samples[:n]
	plan.Sequence(out, coeffs)
	inv := 1 / float64(n)
	for i := range out {
		out[i] *= inv
	}
}

// Reset clears the echo feedback state.
func (s *Spectral) Reset() {
	for i := range s.workspace.held {
		s.workspace.held[i] = 0
	}
}
