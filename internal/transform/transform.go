// SPDX-License-Identifier: MIT
/*
Package transform defines the per-frame contract the overlap-add engine calls
once for every completed analysis frame, plus the reference effects that
implement it.

Real-Time Contract:
  - Transform runs synchronously on the audio thread
  - No allocations, no locks, bounded time
  - Scratch buffers are sized for the largest frame at construction
  - Numerical edge cases are clamped internally, there is no error path
*/
package transform

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLandmarks is the capacity of Result.Landmarks.
const MaxLandmarks = 64

var ErrUnknownTransform = errors.New("unknown transform")

// Landmark marks a point of interest in a frame for display only. Position
// is a sample index for time-domain transforms and a bin index for spectral
// ones.
type Landmark struct {
	Position int
	Value    float64
}

// Result receives the output of one Transform call. It is owned and
// pre-sized by the engine so the call never allocates.
type Result struct {
	Samples       []float64
	Landmarks     [MaxLandmarks]Landmark
	LandmarkCount int
}

// AddLandmark appends a landmark, dropping it silently once the capacity is
// reached. Reports whether the landmark was stored.
func (r *Result) AddLandmark(pos int, value float64) bool {
	if r.LandmarkCount >= MaxLandmarks {
		return false
	}
	r.Landmarks[r.LandmarkCount] = Landmark{Position: pos, Value: value}
	r.LandmarkCount++
	return true
}

// LandmarkSlice returns the populated part of Landmarks without copying.
func (r *Result) LandmarkSlice() []Landmark {
	return r.Landmarks[:r.LandmarkCount]
}

// Transform reshapes one raw, unwindowed analysis frame. Implementations
// must write exactly len(frame) samples into res.Samples; the engine applies
// the envelope afterwards.
type Transform interface {
	Transform(frame []float64, res *Result)
}

// Resetter is implemented by transforms that carry private state between
// frames. The engine calls Reset whenever its stream state is reset.
type Resetter interface {
	Reset()
}

// Options holds the parameters of every reference transform. Zero values
// select the documented defaults.
type Options struct {
	QuantizeStep   float64 // spectral: magnitude quantisation step, 0 disables
	EchoFeedback   float64 // spectral: [0, 0.95] magnitude echo feedback
	Threshold      float64 // geometer: minimum |value| for a landmark
	MinSpacing     int     // geometer: minimum samples between landmarks
	ResonanceHz    float64 // resonator: centre frequency
	ResonanceQ     float64 // resonator: quality factor
	ResonatorBlend float64 // resonator: [0, 1] wet amount
}

// Names lists the transforms New understands.
var Names = []string{"identity", "spectral", "geometer", "resonator"}

// IsKnown reports whether New accepts name.
func IsKnown(name string) bool {
	switch strings.ToLower(name) {
	case "", "identity", "bypass", "spectral", "geometer", "resonator":
		return true
	}
	return false
}

// New selects a reference transform by name. maxFrameSize bounds every
// frame the returned transform will ever see.
func New(name string, opts Options, maxFrameSize int, sampleRate float64) (Transform, error) {
	switch strings.ToLower(name) {
	case "", "identity", "bypass":
		return Identity{}, nil
	case "spectral":
		return NewSpectral(maxFrameSize, opts.QuantizeStep, opts.EchoFeedback)
	case "geometer":
		return NewGeometer(maxFrameSize, opts.Threshold, opts.MinSpacing), nil
	case "resonator":
		return NewResonator(sampleRate, opts.ResonanceHz, opts.ResonanceQ, opts.ResonatorBlend)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTransform, name)
	}
}

// Identity returns the frame unchanged.
type Identity struct{}

// Transform implements Transform.
func (Identity) Transform(frame []float64, res *Result) {
	copy(res.Samples, frame)
}

// Compile-time checks for interface implementations.
var (
	_ Transform = Identity{}
	_ Transform = (*Spectral)(nil)
	_ Resetter  = (*Spectral)(nil)
	_ Transform = (*Geometer)(nil)
	_ Transform = (*Resonator)(nil)
)
