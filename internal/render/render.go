// SPDX-License-Identifier: MIT
/*
Package render runs audio files through the effect engine offline and
writes the processed result as WAV.

Blocks are fed to the processor the way a host would: either a fixed size
or a pseudo-random size per call. The engine delay can be removed so the
output lines up with the input, and the tail is always flushed so no input
is lost.
*/
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"olafx/internal/audio"
	"olafx/internal/config"
	"olafx/internal/decode"
	applog "olafx/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Options controls how a file is fed through the engine.
type Options struct {
	// BlockFrames is the block size per call. With RandomBlocks each call
	// uses a size in [1, 2*BlockFrames].
	BlockFrames  int
	RandomBlocks bool
	Seed         uint64

	// Compensate drops the first LatencySamples frames so the output is
	// aligned with the input and has the same length.
	Compensate bool

	BitDepth int // 16, 24 or 32; the recording bit depth when 0.

	// Progress, when set, is called after each block with the input frames
	// consumed so far and the total (-1 if unknown).
	Progress func(done, total int64)
}

// Result summarizes a render.
type Result struct {
	InputFrames  int64
	OutputFrames int64
	Blocks       int
	Latency      int
	SampleRate   int
	Channels     int
	Elapsed      time.Duration
}

// File renders inPath to outPath using cfg for the engine settings. The
// sample rate and channel count follow the input file.
func File(ctx context.Context, cfg *config.Config, inPath, outPath string, opts Options) (Result, error) {
	src, err := decode.Open(inPath)
	if err != nil {
		return Result{}, err
	}
	defer src.Close()

	local := *cfg
	local.Audio.SampleRate = float64(src.SampleRate())
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = local.Audio.FramesPerBuffer
	}
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = config.DefaultFramesPerBuffer
	}
	local.Audio.FramesPerBuffer = opts.BlockFrames
	local.Audio.GateEnabled = false
	if opts.BitDepth == 0 {
		opts.BitDepth = local.Recording.BitDepth
	}

	proc, err := audio.NewProcessor(&local, src.Channels(), nil)
	if err != nil {
		return Result{}, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return Result{}, err
	}
	w, err := newWAVWriter(out, src.SampleRate(), src.Channels(), opts.BitDepth)
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return Result{}, err
	}

	res, err := Stream(ctx, src, proc, w, opts)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return res, err
	}

	applog.WithFields(applog.Fields{
		"input":   inPath,
		"output":  outPath,
		"frames":  res.OutputFrames,
		"blocks":  res.Blocks,
		"latency": res.Latency,
		"elapsed": res.Elapsed.Round(time.Millisecond),
	}).Info("Render complete")
	return res, nil
}

// FrameWriter receives processed interleaved frames.
type FrameWriter interface {
	WriteFrames(samples []float32) error
}

// Stream feeds src through proc until src is exhausted and the engine
// tail has been flushed, writing the output to w.
func Stream(ctx context.Context, src decode.Stream, proc *audio.Processor, w FrameWriter, opts Options) (Result, error) {
	nch := src.Channels()
	if nch != proc.Channels() {
		return Result{}, fmt.Errorf("stream has %d channels, processor %d", nch, proc.Channels())
	}
	if opts.BlockFrames <= 0 {
		return Result{}, fmt.Errorf("block size must be positive, got %d", opts.BlockFrames)
	}

	maxBlock := opts.BlockFrames
	var rng *rand.Rand
	if opts.RandomBlocks {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
		maxBlock = 2 * opts.BlockFrames
	}

	res := Result{
		Latency:    proc.LatencySamples(),
		SampleRate: src.SampleRate(),
		Channels:   nch,
	}
	start := time.Now()

	in := make([]float32, maxBlock*nch)
	out := make([]float32, maxBlock*nch)
	skip := 0
	if opts.Compensate {
		skip = res.Latency
	}
	tail := res.Latency
	total := src.Frames()
	srcDone := false

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		n := opts.BlockFrames
		if rng != nil {
			n = 1 + rng.IntN(maxBlock)
		}
		want := n * nch

		got := 0
		for !srcDone && got < want {
			k, err := src.Read(in[got:want])
			got += k
			if errors.Is(err, io.EOF) {
				srcDone = true
				break
			}
			if err != nil {
				return res, fmt.Errorf("decoding: %w", err)
			}
		}
		res.InputFrames += int64(got / nch)

		if srcDone && got < want {
			pad := min(want-got, tail*nch)
			clear(in[got : got+pad])
			got += pad
			tail -= pad / nch
		}
		if got == 0 {
			break
		}

		proc.ProcessInterleaved(in[:got], out[:got])
		res.Blocks++

		frames := out[:got]
		if skip > 0 {
			drop := min(skip, got/nch)
			frames = frames[drop*nch:]
			skip -= drop
		}
		if len(frames) > 0 {
			if err := w.WriteFrames(frames); err != nil {
				return res, fmt.Errorf("writing output: %w", err)
			}
			res.OutputFrames += int64(len(frames) / nch)
		}

		if opts.Progress != nil {
			opts.Progress(res.InputFrames, total)
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// wavWriter encodes float frames as integer PCM.
type wavWriter struct {
	file  *os.File
	enc   *wav.Encoder
	buf   *goaudio.IntBuffer
	scale float64
}

func newWAVWriter(f *os.File, sampleRate, channels, bitDepth int) (*wavWriter, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	return &wavWriter{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, bitDepth, channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		scale: math.Pow(2, float64(bitDepth-1)) - 1,
	}, nil
}

func (w *wavWriter) WriteFrames(samples []float32) error {
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	data := w.buf.Data[:len(samples)]
	for i, v := range samples {
		x := math.Max(-1, math.Min(1, float64(v)))
		data[i] = int(math.Round(x * w.scale))
	}
	w.buf.Data = data
	return w.enc.Write(w.buf)
}

func (w *wavWriter) Close() error {
	err := w.enc.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
