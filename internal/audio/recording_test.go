// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"olafx/internal/config"
	"olafx/internal/decode"
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "takes", "test_recording.wav")
	p := newTestProcessor(t, 2, nil)

	if err := p.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !p.Recording() {
		t.Error("Processor should be in recording state")
	}

	// Fewer blocks than the recorder pool, so none can be dropped.
	const blocks = 20
	in := stereoSignal(blocks * testBlockFrames)
	out := runBlocks(p, in, testBlockFrames)

	r := p.recorder.Load()
	if err := p.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if p.Recording() {
		t.Error("Processor should not be in recording state after stopping")
	}
	if r.Dropped() != 0 {
		t.Errorf("dropped %d blocks", r.Dropped())
	}
	if r.Frames() != blocks*testBlockFrames {
		t.Errorf("recorded %d frames, want %d", r.Frames(), blocks*testBlockFrames)
	}

	s, err := decode.Open(filename)
	if err != nil {
		t.Fatalf("Recording is not readable: %v", err)
	}
	defer s.Close()
	if s.SampleRate() != testSampleRate || s.Channels() != 2 {
		t.Errorf("format = %d Hz, %d ch", s.SampleRate(), s.Channels())
	}
	got, err := decode.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(out) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(out))
	}
	for i := range out {
		if math.Abs(float64(got[i]-out[i])) > 2.0/32768 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], out[i])
		}
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("Already recording", func(t *testing.T) {
		p := newTestProcessor(t, 2, nil)
		if err := p.StartRecording(filepath.Join(dir, "first.wav")); err != nil {
			t.Fatal(err)
		}
		defer p.StopRecording()
		if err := p.StartRecording(filepath.Join(dir, "second.wav")); !errors.Is(err, ErrAlreadyRecording) {
			t.Errorf("got %v, want ErrAlreadyRecording", err)
		}
	})

	t.Run("Invalid path", func(t *testing.T) {
		p := newTestProcessor(t, 2, nil)
		if err := p.StartRecording(filepath.Join(blocker, "sub", "take.wav")); err == nil {
			t.Error("Expected error but got none")
		}
		if p.Recording() {
			t.Error("failed start left a recorder attached")
		}
	})

	t.Run("Stop when not recording", func(t *testing.T) {
		p := newTestProcessor(t, 2, nil)
		if err := p.StopRecording(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("Unsupported bit depth", func(t *testing.T) {
		_, err := NewRecorder(filepath.Join(dir, "eight.wav"), RecorderOptions{
			SampleRate: testSampleRate, Channels: 2, BitDepth: 8,
		})
		if err == nil {
			t.Error("8-bit recorder accepted")
		}
	})
}

func TestRecorderMaxFrames(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "short.wav")
	r, err := NewRecorder(filename, RecorderOptions{
		SampleRate:   8000,
		Channels:     1,
		BitDepth:     24,
		BlockSamples: 100,
		MaxFrames:    250,
	})
	if err != nil {
		t.Fatal(err)
	}

	block := make([]float32, 100)
	for i := range block {
		block[i] = 0.5
	}
	for range 5 {
		if !r.Write(block) {
			t.Fatal("Write dropped a block")
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if r.Write(block) {
		t.Error("Write after Close succeeded")
	}

	s, err := decode.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Frames() != 250 {
		t.Errorf("Frames = %d, want 250", s.Frames())
	}
}

func TestRecorderSplitsLargeWrites(t *testing.T) {
	r, err := NewRecorder(filepath.Join(t.TempDir(), "split.wav"), RecorderOptions{
		SampleRate:   8000,
		Channels:     2,
		BlockSamples: 64,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Write(make([]float32, 10*64)) {
		t.Fatal("Write dropped a block")
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 320 {
		t.Errorf("Frames = %d, want 320", r.Frames())
	}
}

func TestRecordingPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	tests := []struct {
		cfg  config.RecordingConfig
		want string
	}{
		{config.RecordingConfig{OutputDir: "rec"}, filepath.Join("rec", "recording-09-03-2024-140506.wav")},
		{config.RecordingConfig{OutputDir: "rec", OutputFile: "take.wav"}, filepath.Join("rec", "take.wav")},
		{config.RecordingConfig{OutputDir: "rec", OutputFile: "/tmp/take.wav"}, "/tmp/take.wav"},
		{config.RecordingConfig{OutputFile: "take.wav"}, "take.wav"},
	}
	for _, tt := range tests {
		if got := RecordingPath(tt.cfg, now); got != tt.want {
			t.Errorf("RecordingPath(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
