// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"olafx/internal/config"
	"olafx/internal/snapshot"
	"olafx/internal/window"
)

const (
	testSampleRate  = 48000
	testFrameSize   = 64
	testBlockFrames = 128
)

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testBlockFrames
	cfg.Engine.FrameSize = testFrameSize
	cfg.Engine.MaxFrameSize = 256
	cfg.Engine.Transform = "identity"
	cfg.Recording.BitDepth = 16
	return &cfg
}

func newTestProcessor(t testing.TB, channels int, cache *snapshot.Cache) *Processor {
	t.Helper()
	p, err := NewProcessor(newTestConfig(), channels, cache)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

// stereoSignal returns interleaved frames with different content per channel.
func stereoSignal(frames int) []float32 {
	s := make([]float32, 2*frames)
	for i := range frames {
		s[2*i] = float32(0.5 * math.Sin(2*math.Pi*float64(i)/37))
		s[2*i+1] = float32(0.25 * math.Cos(2*math.Pi*float64(i)/11))
	}
	return s
}

// runBlocks processes in with the given repeating block sizes (in frames).
func runBlocks(p *Processor, in []float32, sizes ...int) []float32 {
	nch := p.Channels()
	out := make([]float32, len(in))
	for pos, k := 0, 0; pos < len(in); k++ {
		n := min(sizes[k%len(sizes)]*nch, len(in)-pos)
		p.ProcessInterleaved(in[pos:pos+n], out[pos:pos+n])
		pos += n
	}
	return out
}

func TestNewProcessorValidation(t *testing.T) {
	if _, err := NewProcessor(newTestConfig(), 0, nil); err == nil {
		t.Error("0 channels accepted")
	}
	if _, err := NewProcessor(newTestConfig(), config.MaxChannels+1, nil); err == nil {
		t.Error("too many channels accepted")
	}

	cfg := newTestConfig()
	cfg.Engine.FrameSize = 100
	if _, err := NewProcessor(cfg, 2, nil); err == nil {
		t.Error("unsupported frame size accepted")
	}

	cfg = newTestConfig()
	cfg.Engine.Transform = "chorus"
	if _, err := NewProcessor(cfg, 2, nil); err == nil {
		t.Error("unknown transform accepted")
	}
}

func TestProcessorDelaysEachChannel(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
	}{
		{"Host block", []int{testBlockFrames}},
		{"Larger than scratch", []int{1000}},
		{"Irregular", []int{1, 7, 64, 300, 0, 33}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, 2, nil)
			in := stereoSignal(4000)
			out := runBlocks(p, in, tt.sizes...)

			lat := p.LatencySamples()
			if lat != testFrameSize {
				t.Fatalf("LatencySamples = %d, want %d", lat, testFrameSize)
			}
			for i := range 4000 {
				for ch := range 2 {
					var want float32
					if i >= lat {
						want = in[2*(i-lat)+ch]
					}
					if got := out[2*i+ch]; math.Abs(float64(got-want)) > 1e-6 {
						t.Fatalf("frame %d ch %d = %f, want %f", i, ch, got, want)
					}
				}
			}
		})
	}
}

func TestProcessorPanicsOnBadBlocks(t *testing.T) {
	p := newTestProcessor(t, 2, nil)

	for name, fn := range map[string]func(){
		"length mismatch": func() { p.ProcessInterleaved(make([]float32, 4), make([]float32, 6)) },
		"partial frame":   func() { p.ProcessInterleaved(make([]float32, 3), make([]float32, 3)) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestProcessorPublishesChannelZero(t *testing.T) {
	cache := snapshot.NewCache()
	p := newTestProcessor(t, 2, cache)
	runBlocks(p, stereoSignal(640), testBlockFrames)

	// 640 frames at hop 32 after the first frame of 64.
	if got, want := cache.Revision(), uint64(p.Frames()); got != want || got == 0 {
		t.Errorf("Revision = %d, Frames = %d", got, want)
	}

	var s snapshot.Snapshot
	cache.Read(&s)
	if s.FrameSize != testFrameSize {
		t.Errorf("FrameSize = %d, want %d", s.FrameSize, testFrameSize)
	}
}

func TestProcessorRequestAndConfigure(t *testing.T) {
	p := newTestProcessor(t, 2, nil)
	next := window.Config{FrameSize: 128, Shape: window.Linear}

	if err := p.Request(next); err != nil {
		t.Fatal(err)
	}
	if p.Config() == next {
		t.Error("request applied before the next block")
	}
	runBlocks(p, stereoSignal(16), 16)
	if p.Config() != next || p.LatencySamples() != 128 {
		t.Errorf("Config = %+v, latency %d", p.Config(), p.LatencySamples())
	}

	if err := p.Configure(window.Config{FrameSize: 4096, Shape: window.Cosine}); err == nil {
		t.Error("frame size above the maximum accepted")
	}
	if err := p.Request(window.Config{FrameSize: 12, Shape: window.Shape(99)}); err == nil {
		t.Error("unknown shape accepted")
	}

	// After Configure the stream restarts with the new latency.
	if err := p.Configure(window.Config{FrameSize: 32, Shape: window.Cosine}); err != nil {
		t.Fatal(err)
	}
	in := stereoSignal(200)
	out := runBlocks(p, in, 50)
	for i := 32; i < 200; i++ {
		if got, want := out[2*i], in[2*(i-32)]; math.Abs(float64(got-want)) > 1e-6 {
			t.Fatalf("frame %d = %f, want %f", i, got, want)
		}
	}
}

func TestProcessorDoesNotAllocate(t *testing.T) {
	p := newTestProcessor(t, 2, snapshot.NewCache())
	in := stereoSignal(testBlockFrames)
	out := make([]float32, len(in))

	allocs := testing.AllocsPerRun(100, func() {
		p.ProcessInterleaved(in, out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ProcessInterleaved, got %.1f", allocs)
	}
}

func BenchmarkProcessInterleaved(b *testing.B) {
	cfg := newTestConfig()
	cfg.Engine.FrameSize = 1024
	cfg.Engine.MaxFrameSize = 1024
	cfg.Engine.Transform = "spectral"
	cfg.Audio.FramesPerBuffer = 512
	p, err := NewProcessor(cfg, 2, snapshot.NewCache())
	if err != nil {
		b.Fatal(err)
	}
	in := stereoSignal(512)
	out := make([]float32, len(in))

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		p.ProcessInterleaved(in, out)
	}
}
