// SPDX-License-Identifier: MIT
/*
Package snapshot carries recent engine state from the audio thread to
non-real-time observers (scope, UDP, WebSocket).

Concurrency Model:
  - Exactly one producer (the audio thread) calls Publish
  - Any number of observers call Read and Revision
  - The producer never waits: it fills a private slot, then try-locks a swap
  - A failed try-lock drops that frame's update, it is not an error
  - Observers only ever see whole frames, never a mix of two publishes

Wire Format:

	Snapshot is a fixed-size record with a stable little-endian layout
	(Size bytes) so it can be copied verbatim across process boundaries.
*/
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"olafx/internal/transform"
)

const (
	// MaxSamples caps the input and output traces. Longer frames are
	// decimated to fit.
	MaxSamples = 476

	// MaxLandmarks matches the transform result capacity.
	MaxLandmarks = transform.MaxLandmarks
)

// ErrShortBuffer is returned by UnmarshalBinary for truncated input.
var ErrShortBuffer = errors.New("snapshot: short buffer")

// Snapshot is a self-consistent copy of one processed frame. All fields are
// fixed size so the struct is trivially copyable.
type Snapshot struct {
	Revision      uint64
	FrameSize     int32
	InputCount    int32
	OutputCount   int32
	LandmarkCount int32
	Input         [MaxSamples]float32
	Output        [MaxSamples]float32
	LandmarkPos   [MaxLandmarks]int32
	LandmarkVal   [MaxLandmarks]float32
}

// Size is the encoded length of a Snapshot in bytes.
var Size = binary.Size(Snapshot{})

// Frame is what the engine offers after every completed frame. The slices
// are borrowed and only valid for the duration of Publish.
type Frame struct {
	Input     []float64
	Output    []float64
	Landmarks []transform.Landmark
}

// InputSlice returns the populated part of Input.
func (s *Snapshot) InputSlice() []float32 { return s.Input[:s.InputCount] }

// OutputSlice returns the populated part of Output.
func (s *Snapshot) OutputSlice() []float32 { return s.Output[:s.OutputCount] }

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, Size))
}

// AppendBinary appends the encoded snapshot to b. Reusing b across calls
// keeps periodic publishers allocation free once b has grown to Size.
func (s *Snapshot) AppendBinary(b []byte) ([]byte, error) {
	out, err := binary.Append(b, binary.LittleEndian, s)
	if err != nil {
		return b, fmt.Errorf("snapshot: encode: %w", err)
	}
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return fmt.Errorf("%w: %d < %d bytes", ErrShortBuffer, len(data), Size)
	}
	if _, err := binary.Decode(data[:Size], binary.LittleEndian, s); err != nil {
		return fmt.Errorf("snapshot: decode: %w", err)
	}
	if s.InputCount < 0 || s.InputCount > MaxSamples ||
		s.OutputCount < 0 || s.OutputCount > MaxSamples ||
		s.LandmarkCount < 0 || s.LandmarkCount > MaxLandmarks {
		return fmt.Errorf("snapshot: counts out of range (in=%d out=%d landmarks=%d)",
			s.InputCount, s.OutputCount, s.LandmarkCount)
	}
	return nil
}

// fill overwrites s from f, decimating traces longer than MaxSamples.
func (s *Snapshot) fill(rev uint64, f Frame) {
	s.Revision = rev
	s.FrameSize = int32(len(f.Input))
	s.InputCount = int32(decimate(s.Input[:], f.Input))
	s.OutputCount = int32(decimate(s.Output[:], f.Output))

	n := min(len(f.Landmarks), MaxLandmarks)
	for i := range n {
		s.LandmarkPos[i] = int32(f.Landmarks[i].Position)
		s.LandmarkVal[i] = float32(f.Landmarks[i].Value)
	}
	s.LandmarkCount = int32(n)
}

// decimate copies src into dst, picking evenly spaced samples when src is
// longer than dst. Returns the number of samples written.
func decimate(dst []float32, src []float64) int {
	n := len(src)
	if n <= len(dst) {
		for i, v := range src {
			dst[i] = float32(v)
		}
		return n
	}
	for i := range dst {
		dst[i] = float32(src[i*n/len(dst)])
	}
	return len(dst)
}
