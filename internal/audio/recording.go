// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"olafx/internal/config"
	applog "olafx/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recorderBlocks is the number of blocks circulating between the audio
// thread and the writer goroutine.
const recorderBlocks = 32

var ErrAlreadyRecording = errors.New("already recording")

// RecorderOptions describes the WAV file a Recorder writes.
type RecorderOptions struct {
	SampleRate   int
	Channels     int
	BitDepth     int   // 16, 24 or 32.
	BlockSamples int   // Interleaved samples per block, rounded down to whole frames.
	MaxFrames    int64 // Stop writing after this many frames, 0 for unlimited.
}

// Recorder writes interleaved float32 blocks to a WAV file. Write never
// blocks: blocks are copied into a pre-allocated pool and encoded on a
// separate goroutine. When the pool is exhausted the block is dropped and
// counted.
type Recorder struct {
	path     string
	file     *os.File
	enc      *wav.Encoder
	buf      *audio.IntBuffer
	scale    float64
	channels int

	maxFrames int64
	written   atomic.Int64
	dropped   atomic.Uint64

	free chan []float32
	full chan []float32
	quit chan struct{}
	done chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// Owned by the writer goroutine.
	failures int
	failed   bool
	err      error
}

// NewRecorder creates path and starts the writer goroutine.
func NewRecorder(path string, opts RecorderOptions) (*Recorder, error) {
	if opts.BitDepth == 0 {
		opts.BitDepth = config.DefaultBitDepth
	}
	switch opts.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", opts.BitDepth)
	}
	if opts.Channels < 1 || opts.SampleRate < 1 {
		return nil, fmt.Errorf("invalid recording format: %d channels, %d Hz", opts.Channels, opts.SampleRate)
	}
	block := opts.BlockSamples - opts.BlockSamples%opts.Channels
	if block <= 0 {
		block = config.DefaultFramesPerBuffer * opts.Channels
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:     path,
		file:     file,
		enc:      wav.NewEncoder(file, opts.SampleRate, opts.BitDepth, opts.Channels, 1),
		scale:    math.Pow(2, float64(opts.BitDepth-1)) - 1,
		channels: opts.Channels,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: opts.Channels,
				SampleRate:  opts.SampleRate,
			},
			Data:           make([]int, block),
			SourceBitDepth: opts.BitDepth,
		},
		maxFrames: opts.MaxFrames,
		free:      make(chan []float32, recorderBlocks),
		full:      make(chan []float32, recorderBlocks),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for range recorderBlocks {
		r.free <- make([]float32, block)
	}

	go r.run()

	applog.Infof("Recording to %s (%d Hz, %d ch, %d-bit)", path, opts.SampleRate, opts.Channels, opts.BitDepth)
	return r, nil
}

// Write queues samples for encoding. It returns false if any part of the
// block was dropped or the recorder is closed.
func (r *Recorder) Write(samples []float32) bool {
	if r.closed.Load() {
		return false
	}
	for len(samples) > 0 {
		var b []float32
		select {
		case b = <-r.free:
		default:
			r.dropped.Add(1)
			return false
		}
		n := copy(b[:cap(b)], samples)
		samples = samples[n:]
		// Never blocks: full has room for every block in the pool.
		r.full <- b[:n]
	}
	return true
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case b := <-r.full:
			r.encode(b)
			r.free <- b[:cap(b)]
		case <-r.quit:
			for {
				select {
				case b := <-r.full:
					r.encode(b)
					r.free <- b[:cap(b)]
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(b []float32) {
	if r.failed {
		return
	}
	frames := int64(len(b) / r.channels)
	if r.maxFrames > 0 {
		remaining := r.maxFrames - r.written.Load()
		if remaining <= 0 {
			return
		}
		if frames > remaining {
			frames = remaining
			b = b[:frames*int64(r.channels)]
		}
	}

	data := r.buf.Data[:len(b)]
	for i, v := range b {
		x := float64(v)
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		data[i] = int(math.Round(x * r.scale))
	}
	r.buf.Data = data

	if err := r.enc.Write(r.buf); err != nil {
		r.failures++
		applog.Warnf("Error writing to WAV file: %v", err)
		if r.failures >= config.DefaultMaxConsecutiveWriteFailures {
			r.failed = true
			r.err = fmt.Errorf("recording stopped after %d consecutive write failures: %w", r.failures, err)
			applog.Errorf("%v", r.err)
		}
		return
	}
	r.failures = 0
	r.written.Add(frames)
}

// Close flushes queued blocks, finalizes the WAV header and closes the
// file. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.quit)
		<-r.done

		err := r.enc.Close()
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = r.err
		}
		r.closeErr = err

		applog.WithFields(applog.Fields{
			"path":    r.path,
			"frames":  r.written.Load(),
			"dropped": r.dropped.Load(),
		}).Info("Recording saved")
	})
	return r.closeErr
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Frames returns how many frames have been encoded.
func (r *Recorder) Frames() int64 { return r.written.Load() }

// Dropped returns how many blocks were lost because the writer fell behind.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// RecordingPath returns the file name for a new recording: the configured
// output file, or a timestamped name, inside the output directory.
func RecordingPath(cfg config.RecordingConfig, now time.Time) string {
	name := cfg.OutputFile
	if name == "" {
		name = "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
	}
	if filepath.IsAbs(name) || cfg.OutputDir == "" {
		return name
	}
	return filepath.Join(cfg.OutputDir, name)
}

// StartRecording starts writing the processed output to filename.
func (p *Processor) StartRecording(filename string) error {
	if p.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating recording directory: %w", err)
		}
	}

	r, err := NewRecorder(filename, RecorderOptions{
		SampleRate:   p.sampleRate,
		Channels:     p.channels,
		BitDepth:     p.recCfg.BitDepth,
		BlockSamples: p.blockFrames * p.channels,
		MaxFrames:    int64(p.recCfg.MaxDuration) * int64(p.sampleRate),
	})
	if err != nil {
		return err
	}
	if !p.recorder.CompareAndSwap(nil, r) {
		r.Close()
		os.Remove(filename)
		return ErrAlreadyRecording
	}
	return nil
}

// StopRecording detaches the recorder and finalizes its file. It does
// nothing when no recording is active.
func (p *Processor) StopRecording() error {
	r := p.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// Recording reports whether a recorder is attached.
func (p *Processor) Recording() bool {
	return p.recorder.Load() != nil
}
