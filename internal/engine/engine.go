// SPDX-License-Identifier: MIT
/*
Package engine implements the windowed overlap-add streaming engine: it
absorbs host blocks of any size, re-chunks them into fixed frames that
overlap by half, runs a transform once per frame and cross-fades the results
back into a continuous stream.

Thread Safety:
  - Process, Reset and Configure belong to the audio thread
  - Request may be called from any goroutine, the audio thread picks the
    new configuration up at the next callback without waiting
  - The snapshot cache is the only state shared with observers

Latency:

	Output is the input delayed by exactly FrameSize samples. The engine
	starts with half a frame of silence queued for output and half a frame
	of silence in the assembler, so the first real frame completes just in
	time to be emitted.
*/
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"olafx/internal/snapshot"
	"olafx/internal/transform"
	"olafx/internal/window"

	"gonum.org/v1/gonum/floats"
)

type Engine struct {
	cfg          window.Config
	maxFrameSize int

	// Envelope. table aliases tableBuf unless a Request handed over a
	// table built off-thread.
	table    []float64
	tableBuf []float64

	// Stream state, all sized for maxFrameSize at construction.
	input  frameAssembler
	output outputArena
	tail   []float64 // Enveloped second half of the previous frame.
	shaped []float64 // Enveloped transform output.
	result transform.Result

	transform transform.Transform
	cache     *snapshot.Cache
	pending   handoff

	frames uint64
}

// handoff carries a configuration built by Request to the audio thread.
type handoff struct {
	mu    sync.Mutex
	ready atomic.Bool
	cfg   window.Config
	table []float64
}

// New allocates every buffer for maxFrameSize and resets the engine to cfg.
// cache may be nil when nothing observes the engine.
func New(cfg window.Config, maxFrameSize int, t transform.Transform, cache *snapshot.Cache) (*Engine, error) {
	if t == nil {
		return nil, fmt.Errorf("engine: transform cannot be nil")
	}
	if !window.IsSupportedFrameSize(maxFrameSize) {
		return nil, fmt.Errorf("engine: max frame size: %w: %d", window.ErrUnsupportedFrameSize, maxFrameSize)
	}
	if err := validate(cfg, maxFrameSize); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		maxFrameSize: maxFrameSize,
		tableBuf:     make([]float64, maxFrameSize),
		input:        frameAssembler{buf: make([]float64, maxFrameSize)},
		output:       outputArena{buf: make([]float64, 2*maxFrameSize)},
		tail:         make([]float64, maxFrameSize/2),
		shaped:       make([]float64, maxFrameSize),
		result:       transform.Result{Samples: make([]float64, maxFrameSize)},
		transform:    t,
		cache:        cache,
	}
	e.Reset()
	return e, nil
}

func validate(cfg window.Config, maxFrameSize int) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if cfg.FrameSize > maxFrameSize {
		return fmt.Errorf("engine: frame size %d exceeds max %d: %w",
			cfg.FrameSize, maxFrameSize, window.ErrUnsupportedFrameSize)
	}
	return nil
}

// Process consumes len(in) samples and writes the same number to out.
// Block sizes may change from call to call.
//
// Hot Path: no allocations, no blocking.
func (e *Engine) Process(in, out []float64) {
	if len(in) != len(out) {
		panic(fmt.Sprintf("engine: in/out length mismatch: %d != %d", len(in), len(out)))
	}
	if e.pending.ready.Load() {
		e.applyPending()
	}

	half := e.cfg.Half()
	for i, x := range in {
		if e.input.push(x) {
			e.processFrame(half)
		}
		out[i] = e.output.pop()
		if e.output.start == half {
			e.output.compact()
		}
	}
}

// processFrame runs one full frame through the transform and the
// overlap-add stage, then slides the assembler by half.
func (e *Engine) processFrame(half int) {
	n := e.cfg.FrameSize
	frame := e.input.frame()

	e.result.Samples = e.result.Samples[:n]
	e.result.LandmarkCount = 0
	e.transform.Transform(frame, &e.result)
	if len(e.result.Samples) != n {
		panic(fmt.Sprintf("engine: transform returned %d samples for a %d frame", len(e.result.Samples), n))
	}

	shaped := e.shaped[:n]
	floats.MulTo(shaped, e.result.Samples, e.table)
	floats.Add(shaped[:half], e.tail[:half])
	e.output.append(shaped[:half])
	copy(e.tail[:half], shaped[half:])

	if e.cache != nil {
		e.cache.Publish(snapshot.Frame{
			Input:     frame,
			Output:    e.result.Samples,
			Landmarks: e.result.LandmarkSlice(),
		})
	}

	e.input.slide(half)
	e.frames++
}

// Reset rebuilds the envelope for the current configuration and returns
// the stream to its initial, silent state.
func (e *Engine) Reset() {
	e.table = e.tableBuf[:e.cfg.FrameSize]
	window.BuildInto(e.table, e.cfg.Half(), e.cfg.Shape)
	e.resetStream()
}

func (e *Engine) resetStream() {
	half := e.cfg.Half()

	clear(e.tail)
	e.input.reset(half)
	e.output.reset(half)
	e.frames = 0

	if r, ok := e.transform.(transform.Resetter); ok {
		r.Reset()
	}
	if e.cache != nil {
		e.cache.Reset()
	}
}

// Configure switches to cfg immediately. Call it between Process calls;
// it does not allocate. Any configuration queued by Request is discarded.
func (e *Engine) Configure(cfg window.Config) error {
	if err := validate(cfg, e.maxFrameSize); err != nil {
		return err
	}

	e.pending.mu.Lock()
	e.pending.ready.Store(false)
	e.pending.table = nil
	e.pending.mu.Unlock()

	e.cfg = cfg
	e.Reset()
	return nil
}

// Request queues cfg for the audio thread. The envelope is built here, on
// the caller's goroutine; Process swaps it in at the start of its next call.
// A later Request before that replaces an earlier one.
func (e *Engine) Request(cfg window.Config) error {
	if err := validate(cfg, e.maxFrameSize); err != nil {
		return err
	}
	table := window.Build(cfg.Half(), cfg.Shape)

	e.pending.mu.Lock()
	e.pending.cfg = cfg
	e.pending.table = table
	e.pending.ready.Store(true)
	e.pending.mu.Unlock()
	return nil
}

// applyPending installs a requested configuration if the requester is not
// holding the handoff lock; otherwise it tries again next callback.
func (e *Engine) applyPending() {
	if !e.pending.mu.TryLock() {
		return
	}
	defer e.pending.mu.Unlock()
	if !e.pending.ready.Load() {
		return
	}

	e.cfg = e.pending.cfg
	e.table = e.pending.table
	e.pending.table = nil
	e.pending.ready.Store(false)
	e.resetStream()
}

// Config returns the active configuration.
func (e *Engine) Config() window.Config { return e.cfg }

// MaxFrameSize returns the frame size the buffers were allocated for.
func (e *Engine) MaxFrameSize() int { return e.maxFrameSize }

// LatencySamples is the fixed delay between input and output, for host
// delay compensation.
func (e *Engine) LatencySamples() int { return e.cfg.FrameSize }

// TailSamples is how many samples of silence must follow the input before
// its last sample has been fully emitted.
func (e *Engine) TailSamples() int { return e.cfg.FrameSize }

// Frames returns the number of frames transformed since the last reset.
func (e *Engine) Frames() uint64 { return e.frames }

// Check verifies the stream bookkeeping invariants. It is meant for tests
// and debug builds, not for the audio thread.
func (e *Engine) Check() error {
	n, half := e.cfg.FrameSize, e.cfg.Half()
	if err := e.input.check(n); err != nil {
		return err
	}
	if err := e.output.check(); err != nil {
		return err
	}
	if e.output.start >= half {
		return fmt.Errorf("engine: output start %d not compacted (half %d)", e.output.start, half)
	}
	if len(e.table) != n {
		return fmt.Errorf("engine: envelope has %d entries for frame size %d", len(e.table), n)
	}
	// Every queued output sample is matched by a sample still to arrive
	// before the next frame completes.
	if got := e.output.size + e.input.fill; got != n {
		return fmt.Errorf("engine: output %d + assembled %d != frame size %d", e.output.size, e.input.fill, n)
	}
	return nil
}
