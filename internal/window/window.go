// SPDX-License-Identifier: MIT
/*
Package window builds the cross-fade envelopes applied to every analysis
frame before it is overlap-added into the output stream.

Every shape is generated from a single rising curve p(z) over the first half
of the frame. The second half mirrors it as 1-p(z), so the two halves of
consecutive frames, which share the same samples, always sum to exactly one:

	table[z] + table[z+half] = p(z) + 1 - p(z) = 1

That identity is what makes the reconstruction seamless for every shape.
*/
package window

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"olafx/pkg/bitint"
)

// Shape selects the rising curve used for the frame envelope.
type Shape int

// Enum for available envelope shapes.
const (
	Linear  Shape = iota // p = z/h
	Arrow                // p = (z/h)^2
	Wedge                // p = sqrt(z/h)
	Cosine               // p = 0.5(1 - cos(pi z/h))
	Cosine2              // raised cosine, squared
)

var (
	ErrUnknownShape         = errors.New("unknown envelope shape")
	ErrUnsupportedFrameSize = errors.New("unsupported frame size")
)

// MinFrameSize and MaxFrameSize bound SupportedFrameSizes.
const (
	MinFrameSize = 4
	MaxFrameSize = 32768
)

// SupportedFrameSizes lists every frame size the engine accepts, in
// ascending order: each power of two from 4 to 32768 plus the 3*2^k sizes in
// between.
var SupportedFrameSizes = buildFrameSizes()

func buildFrameSizes() []int {
	sizes := make([]int, 0, 32)
	for p := MinFrameSize; p <= MaxFrameSize; p *= 2 {
		sizes = append(sizes, p)
		if t := p + p/2; t < MaxFrameSize {
			sizes = append(sizes, t)
		}
	}
	return sizes
}

// IsSupportedFrameSize reports whether n is one of SupportedFrameSizes.
func IsSupportedFrameSize(n int) bool {
	if n < MinFrameSize || n > MaxFrameSize || n%2 != 0 {
		return false
	}
	return bitint.IsPowerOfTwoOrTriple(n)
}

// FrameSizeFor returns the smallest supported frame size holding at least
// samples samples, for callers that specify latency in time.
func FrameSizeFor(samples int) (int, error) {
	n := bitint.NextPowerOfTwoOrTriple(max(samples, MinFrameSize))
	if n > MaxFrameSize {
		return 0, fmt.Errorf("%w: %d samples exceeds %d", ErrUnsupportedFrameSize, samples, MaxFrameSize)
	}
	return n, nil
}

// String returns the configuration name of the shape.
func (s Shape) String() string {
	switch s {
	case Linear:
		return "linear"
	case Arrow:
		return "arrow"
	case Wedge:
		return "wedge"
	case Cosine:
		return "cosine"
	case Cosine2:
		return "cosine2"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape converts a string name (case-insensitive) to a Shape. Returns
// Cosine and an error wrapping ErrUnknownShape if the name is not recognised.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear":
		return Linear, nil
	case "arrow", "squared":
		return Arrow, nil
	case "wedge", "sqrt":
		return Wedge, nil
	case "cosine", "hann":
		return Cosine, nil
	case "cosine2", "cosine-squared", "cos2":
		return Cosine2, nil
	default:
		return Cosine, fmt.Errorf("%w: '%s'", ErrUnknownShape, name)
	}
}

// Config is the analysis window configuration consumed at reset time.
type Config struct {
	FrameSize int
	Shape     Shape
}

// Half returns the hop size, which is also the length of the overlap carry.
func (c Config) Half() int {
	return c.FrameSize / 2
}

// Validate checks the frame size against SupportedFrameSizes and the shape
// against the known enumeration.
func (c Config) Validate() error {
	if !IsSupportedFrameSize(c.FrameSize) {
		return fmt.Errorf("%w: %d", ErrUnsupportedFrameSize, c.FrameSize)
	}
	if c.Shape < Linear || c.Shape > Cosine2 {
		return fmt.Errorf("%w: %d", ErrUnknownShape, int(c.Shape))
	}
	return nil
}

// Table is a frame envelope of 2*half gain values in [0, 1].
type Table []float64

// Build allocates and returns the envelope for the given half length.
func Build(half int, shape Shape) Table {
	t := make(Table, 2*half)
	BuildInto(t, half, shape)
	return t
}

// BuildInto writes the envelope into dst, which must hold exactly 2*half
// values. It does not allocate and is safe to call from the audio thread.
// An unknown shape is a programming error and panics.
func BuildInto(dst []float64, half int, shape Shape) {
	if half < 1 || len(dst) != 2*half {
		panic(fmt.Sprintf("window: table length %d does not match half %d", len(dst), half))
	}

	h := float64(half)
	for z := range half {
		x := float64(z) / h

		var p float64
		switch shape {
		case Linear:
			p = x
		case Arrow:
			p = x * x
		case Wedge:
			p = math.Sqrt(x)
		case Cosine:
			p = 0.5 * (1 - math.Cos(math.Pi*x))
		case Cosine2:
			c := 0.5 * (1 - math.Cos(math.Pi*x))
			p = c * c
		default:
			panic(fmt.Sprintf("window: %v", shape))
		}

		dst[z] = p
		dst[z+half] = 1 - p
	}
}
