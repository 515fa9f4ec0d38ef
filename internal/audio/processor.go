// SPDX-License-Identifier: MIT
/*
Package audio connects the overlap-add engines to real audio I/O:
- Processor runs one engine per channel over interleaved float32 blocks
- Host drives a Processor from a PortAudio duplex stream
- Player drives a Processor from a decoded file played through oto
- Recorder writes processed output to WAV off the audio thread

Thread Safety:
- Processor.ProcessInterleaved belongs to the audio thread
- Gate settings and the recorder are swapped atomically
- Buffers are pre-allocated; the hot path does not allocate
*/
package audio

import (
	"fmt"
	"sync/atomic"

	"olafx/internal/config"
	"olafx/internal/engine"
	"olafx/internal/snapshot"
	"olafx/internal/window"
)

// Processor splits interleaved blocks into channels, runs each through
// its own engine and interleaves the result.
type Processor struct {
	channels    int
	sampleRate  int
	blockFrames int

	engines []*engine.Engine
	in      [][]float64 // Per-channel scratch, blockFrames long.
	out     [][]float64

	// Noise gate on the input block.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64 // math.Float64bits of the linear threshold.
	gated         atomic.Uint64 // Blocks silenced by the gate.

	recorder atomic.Pointer[Recorder]
	recCfg   config.RecordingConfig
}

// NewProcessor builds channels engines from cfg. Only channel 0 publishes
// snapshots to cache; cache may be nil.
func NewProcessor(cfg *config.Config, channels int, cache *snapshot.Cache) (*Processor, error) {
	if channels < 1 || channels > config.MaxChannels {
		return nil, fmt.Errorf("channels must be between 1 and %d, got %d", config.MaxChannels, channels)
	}
	wc, err := cfg.WindowConfig()
	if err != nil {
		return nil, err
	}

	blockFrames := cfg.Audio.FramesPerBuffer
	if blockFrames <= 0 {
		blockFrames = config.DefaultFramesPerBuffer
	}

	p := &Processor{
		channels:    channels,
		sampleRate:  int(cfg.Audio.SampleRate),
		blockFrames: blockFrames,
		engines:     make([]*engine.Engine, channels),
		in:          make([][]float64, channels),
		out:         make([][]float64, channels),
		recCfg:      cfg.Recording,
	}

	for ch := range channels {
		t, err := cfg.NewTransform()
		if err != nil {
			return nil, err
		}
		var c *snapshot.Cache
		if ch == 0 {
			c = cache
		}
		e, err := engine.New(wc, cfg.Engine.MaxFrameSize, t, c)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		p.engines[ch] = e
		p.in[ch] = make([]float64, blockFrames)
		p.out[ch] = make([]float64, blockFrames)
	}

	p.gateEnabled.Store(cfg.Audio.GateEnabled)
	p.SetGateThreshold(cfg.Audio.GateThreshold)

	return p, nil
}

// Channels returns the number of interleaved channels.
func (p *Processor) Channels() int { return p.channels }

// SampleRate returns the configured sample rate in Hz.
func (p *Processor) SampleRate() int { return p.sampleRate }

// ProcessInterleaved processes one host block. in and out hold the same
// number of whole frames and must not overlap. A gated block is processed
// as silence so the stream delay stays constant.
func (p *Processor) ProcessInterleaved(in, out []float32) {
	if len(in) != len(out) {
		panic(fmt.Sprintf("audio: input has %d samples, output %d", len(in), len(out)))
	}
	if len(in)%p.channels != 0 {
		panic(fmt.Sprintf("audio: %d samples is not a whole number of %d-channel frames", len(in), p.channels))
	}

	silent := p.gateEnabled.Load() && peak(in) < p.GetGateThreshold()
	if silent {
		p.gated.Add(1)
	}

	nch := p.channels
	frames := len(in) / nch
	for done := 0; done < frames; {
		n := min(frames-done, p.blockFrames)
		base := done * nch

		for ch := range nch {
			dst := p.in[ch][:n]
			if silent {
				clear(dst)
				continue
			}
			for i := range dst {
				dst[i] = float64(in[base+i*nch+ch])
			}
		}
		for ch, e := range p.engines {
			e.Process(p.in[ch][:n], p.out[ch][:n])
		}
		for ch := range nch {
			for i, v := range p.out[ch][:n] {
				out[base+i*nch+ch] = float32(v)
			}
		}
		done += n
	}

	if r := p.recorder.Load(); r != nil {
		r.Write(out)
	}
}

// peak returns the largest absolute sample value.
func peak(buf []float32) float64 {
	var m float32
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return float64(m)
}

// Request asks every channel to switch to cfg at its next block.
func (p *Processor) Request(cfg window.Config) error {
	for ch, e := range p.engines {
		if err := e.Request(cfg); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	return nil
}

// Configure switches every channel to cfg immediately. It must not run
// concurrently with ProcessInterleaved.
func (p *Processor) Configure(cfg window.Config) error {
	for ch, e := range p.engines {
		if err := e.Configure(cfg); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	return nil
}

// Reset returns every channel to the just-configured state.
func (p *Processor) Reset() {
	for _, e := range p.engines {
		e.Reset()
	}
}

// Config returns the configuration currently applied to the engines.
func (p *Processor) Config() window.Config { return p.engines[0].Config() }

// LatencySamples is the constant delay between input and output, in frames.
func (p *Processor) LatencySamples() int { return p.engines[0].LatencySamples() }

// Frames returns how many analysis frames channel 0 has processed.
func (p *Processor) Frames() uint64 { return p.engines[0].Frames() }

// GatedBlocks returns how many blocks the gate has silenced.
func (p *Processor) GatedBlocks() uint64 { return p.gated.Load() }
