// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, rate, channels, bitDepth int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenWAV(t *testing.T) {
	const frames = 10000 // Spans several decode chunks.
	path := filepath.Join(t.TempDir(), "ramp.wav")
	samples := make([]int, 2*frames)
	for i := range frames {
		samples[2*i] = (i % 200) * 100
		samples[2*i+1] = -(i % 200) * 100
	}
	writeWAV(t, path, 44100, 2, 16, samples)

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.SampleRate() != 44100 || s.Channels() != 2 {
		t.Fatalf("format = %d Hz, %d ch", s.SampleRate(), s.Channels())
	}
	if s.Frames() != frames {
		t.Errorf("Frames() = %d, want %d", s.Frames(), frames)
	}

	got, err := ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i, v := range samples {
		want := float32(v) / 32768
		if math.Abs(float64(got[i]-want)) > 1e-6 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], want)
		}
	}
}

func TestReadReturnsWholeFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 8000, 2, 16, make([]int, 2*100))

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	buf := make([]float32, 7) // Odd length, room for 3 frames.
	total := 0
	for {
		n, err := s.Read(buf)
		if n%2 != 0 {
			t.Fatalf("Read returned %d samples, not whole frames", n)
		}
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if total != 200 {
		t.Errorf("read %d samples, want 200", total)
	}

	if _, err := s.Read(make([]float32, 1)); err == nil {
		t.Error("Read into a buffer smaller than one frame succeeded")
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(filepath.Join(dir, "song.aiff")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("aiff: got %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Open(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v, want ErrNotExist", err)
	}

	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage); err == nil {
		t.Error("garbage WAV accepted")
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.wav": true, "b.MP3": true, "c.flac": true, "d.ogg": true,
		"e.aac": false, "f": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
