// SPDX-License-Identifier: MIT
package engine

import "fmt"

// frameAssembler collects incoming samples until a full frame is available.
type frameAssembler struct {
	buf  []float64 // Capacity maxFrameSize.
	size int       // Active frame size.
	fill int       // Valid samples in buf[:fill], always within [0, size].
}

// reset empties the assembler for frames of 2*half samples and pre-fills
// the first half with silence.
func (a *frameAssembler) reset(half int) {
	a.size = 2 * half
	if a.size > len(a.buf) {
		panic(fmt.Sprintf("engine: frame size %d exceeds assembler capacity %d", a.size, len(a.buf)))
	}
	clear(a.buf[:a.size])
	a.fill = half
}

// push appends x and reports whether the frame is now full.
func (a *frameAssembler) push(x float64) bool {
	a.buf[a.fill] = x
	a.fill++
	return a.fill == a.size
}

// frame returns the full frame. Only valid right after push returned true.
func (a *frameAssembler) frame() []float64 {
	return a.buf[:a.size]
}

// slide drops the oldest half of the frame, keeping the newest half as the
// start of the next one.
func (a *frameAssembler) slide(half int) {
	copy(a.buf, a.buf[half:a.fill])
	a.fill -= half
}

func (a *frameAssembler) check(frameSize int) error {
	if a.size != frameSize {
		return fmt.Errorf("engine: assembler sized %d for frame size %d", a.size, frameSize)
	}
	if a.fill < 0 || a.fill >= a.size {
		return fmt.Errorf("engine: assembler fill %d outside [0, %d)", a.fill, a.size)
	}
	return nil
}

// outputArena is a linear buffer of reconstructed samples waiting to be
// emitted. Samples live in buf[start:start+size]; compact moves them back
// to the front.
type outputArena struct {
	buf   []float64 // Capacity 2*maxFrameSize.
	start int
	size  int
}

// reset queues half samples of silence.
func (o *outputArena) reset(half int) {
	clear(o.buf)
	o.start = 0
	o.size = half
}

// append queues src after the live samples.
func (o *outputArena) append(src []float64) {
	end := o.start + o.size
	if end+len(src) > len(o.buf) {
		panic(fmt.Sprintf("engine: output arena overflow: %d+%d > %d", end, len(src), len(o.buf)))
	}
	copy(o.buf[end:], src)
	o.size += len(src)
}

// pop removes and returns the oldest queued sample.
func (o *outputArena) pop() float64 {
	if o.size <= 0 {
		panic("engine: output arena underflow")
	}
	x := o.buf[o.start]
	o.start++
	o.size--
	return x
}

// compact moves the live samples to the front of buf.
func (o *outputArena) compact() {
	copy(o.buf, o.buf[o.start:o.start+o.size])
	o.start = 0
}

func (o *outputArena) check() error {
	if o.start < 0 || o.size < 0 {
		return fmt.Errorf("engine: output arena cursors negative (start %d, size %d)", o.start, o.size)
	}
	if o.start+o.size > len(o.buf) {
		return fmt.Errorf("engine: output arena %d+%d exceeds capacity %d", o.start, o.size, len(o.buf))
	}
	return nil
}
