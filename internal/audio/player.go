// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"olafx/internal/decode"
	applog "olafx/internal/log"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process.
var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
	otoRate      int
	otoChannels  int
)

func initOto(sampleRate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
			otoRate, otoChannels = sampleRate, channels
		}
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if sampleRate != otoRate || channels != otoChannels {
		return nil, fmt.Errorf("output already opened at %d Hz, %d ch", otoRate, otoChannels)
	}
	return globalOtoCtx, nil
}

// StreamReader pulls audio from a decoded stream through a Processor and
// encodes it as float32 little-endian bytes. After the stream ends it
// feeds silence until the engine tail has been flushed, then returns
// io.EOF. Block sizes follow the reader's callers.
type StreamReader struct {
	src  decode.Stream
	proc *Processor

	in, out []float32
	pending []byte // Encoded bytes not yet returned.
	enc     []byte

	tail     int // Frames of silence still to feed after EOF.
	srcDone  bool
	produced atomic.Int64 // Frames returned to the caller.

	errMu sync.Mutex
	err   error
}

// NewStreamReader checks that src matches the processor's channel count.
func NewStreamReader(src decode.Stream, proc *Processor) (*StreamReader, error) {
	if src.Channels() != proc.Channels() {
		return nil, fmt.Errorf("stream has %d channels, processor %d", src.Channels(), proc.Channels())
	}
	return &StreamReader{
		src:  src,
		proc: proc,
		tail: proc.LatencySamples(),
	}, nil
}

func (r *StreamReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if err := r.fill(len(p)); err != nil {
			r.errMu.Lock()
			r.err = err
			r.errMu.Unlock()
			if len(r.pending) == 0 {
				return 0, err
			}
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill processes enough frames to cover want bytes.
func (r *StreamReader) fill(want int) error {
	nch := r.proc.Channels()
	frameBytes := 4 * nch
	frames := max(want/frameBytes, 1)
	samples := frames * nch

	if cap(r.in) < samples {
		r.in = make([]float32, samples)
		r.out = make([]float32, samples)
		r.enc = make([]byte, samples*4)
	}
	in, out := r.in[:samples], r.out[:samples]

	got := 0
	for !r.srcDone && got < samples {
		n, err := r.src.Read(in[got:])
		got += n
		if errors.Is(err, io.EOF) {
			r.srcDone = true
			break
		}
		if err != nil {
			return err
		}
	}

	if r.srcDone && got < samples {
		pad := min(samples-got, r.tail*nch)
		clear(in[got : got+pad])
		got += pad
		r.tail -= pad / nch
	}
	if got == 0 {
		return io.EOF
	}

	in, out = in[:got], out[:got]
	r.proc.ProcessInterleaved(in, out)

	enc := r.enc[:got*4]
	for i, v := range out {
		binary.LittleEndian.PutUint32(enc[4*i:], math.Float32bits(v))
	}
	r.pending = enc
	r.produced.Add(int64(got / nch))
	return nil
}

// Err returns the error that ended the stream, io.EOF after a clean end.
func (r *StreamReader) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Frames returns how many processed frames have been produced.
func (r *StreamReader) Frames() int64 { return r.produced.Load() }

// Player plays a decoded file through a Processor on the default output.
type Player struct {
	src    decode.Stream
	reader *StreamReader
	player *oto.Player
	rate   int

	mu     sync.Mutex
	closed bool
}

// NewPlayer opens the output at the stream's format. The processor must
// have been built for the stream's channel count and sample rate.
func NewPlayer(src decode.Stream, proc *Processor) (*Player, error) {
	if src.SampleRate() != proc.SampleRate() {
		return nil, fmt.Errorf("stream is %d Hz, processor %d Hz", src.SampleRate(), proc.SampleRate())
	}
	reader, err := NewStreamReader(src, proc)
	if err != nil {
		return nil, err
	}
	ctx, err := initOto(src.SampleRate(), src.Channels())
	if err != nil {
		return nil, err
	}

	return &Player{
		src:    src,
		reader: reader,
		player: ctx.NewPlayer(reader),
		rate:   src.SampleRate(),
	}, nil
}

// Play starts playback in the background.
func (p *Player) Play() {
	p.player.Play()
	applog.Debugf("Playback started at %d Hz", p.rate)
}

// Wait blocks until playback finishes or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !p.player.IsPlaying() {
			if err := p.reader.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Position returns how much processed audio has been produced.
func (p *Player) Position() time.Duration {
	return time.Duration(p.reader.Frames()) * time.Second / time.Duration(p.rate)
}

// Close stops playback and closes the stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.src.Close()
}
