// SPDX-License-Identifier: MIT
package transform

import "math"

// Geometer simplifies the waveform to its turning points: every local
// extremum that clears the threshold becomes a landmark, and the frame is
// redrawn as straight lines between consecutive landmarks. The frame end
// points are always landmarks so the redraw spans the whole frame.
type Geometer struct {
	threshold float64
	spacing   int
	points    []int // Landmark positions for the current frame, sized maxFrameSize.
}

// NewGeometer returns a geometer for frames up to maxFrameSize samples.
// minSpacing < 1 is treated as 1.
func NewGeometer(maxFrameSize int, threshold float64, minSpacing int) *Geometer {
	if minSpacing < 1 {
		minSpacing = 1
	}
	if math.IsNaN(threshold) || threshold < 0 {
		threshold = 0
	}
	return &Geometer{
		threshold: threshold,
		spacing:   minSpacing,
		points:    make([]int, maxFrameSize),
	}
}

// Transform implements Transform.
func (g *Geometer) Transform(frame []float64, res *Result) {
	n := len(frame)
	out := res.Samples[:n]
	if n < 3 {
		copy(out, frame)
		return
	}

	// --- 1. Landmark extraction ---
	points := g.points[:0]
	points = append(points, 0)
	last := 0
	for i := 1; i < n-1; i++ {
		d0 := frame[i] - frame[i-1]
		d1 := frame[i+1] - frame[i]
		turning := (d0 > 0 && d1 <= 0) || (d0 < 0 && d1 >= 0)
		if !turning || math.Abs(frame[i]) < g.threshold || i-last < g.spacing {
			continue
		}
		points = append(points, i)
		last = i
	}
	if n-1-last < g.spacing && len(points) > 1 {
		points = points[:len(points)-1]
	}
	points = append(points, n-1)

	for _, p := range points {
		res.AddLandmark(p, frame[p])
	}

	// --- 2. Piecewise-linear redraw ---
	for j := 1; j < len(points); j++ {
		a, b := points[j-1], points[j]
		va, vb := frame[a], frame[b]
		span := float64(b - a)
		for i := a; i < b; i++ {
			t := float64(i-a) / span
			out[i] = va + (vb-va)*t
		}
	}
	out[n-1] = frame[n-1]
}
