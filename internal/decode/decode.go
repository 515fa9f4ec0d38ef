// SPDX-License-Identifier: MIT
/*
Package decode opens audio files as streams of interleaved float32 samples
in [-1, 1]. The format is chosen by file extension: .wav, .mp3, .flac and
.ogg are supported.
*/
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// Stream is a decoded audio source.
type Stream interface {
	SampleRate() int
	Channels() int

	// Frames is the total length in sample frames, or -1 when the
	// container does not say.
	Frames() int64

	// Read fills dst with interleaved samples and returns how many were
	// written, always a whole number of frames. It returns io.EOF once the
	// stream is exhausted. len(dst) must be at least Channels().
	Read(dst []float32) (int, error)

	Close() error
}

// Extensions lists the supported file extensions.
var Extensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Open detects the format by file extension and returns a stream.
func Open(path string) (Stream, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src chunkSource
	switch ext {
	case ".wav":
		src, err = newWAVSource(f)
	case ".mp3":
		src, err = newMP3Source(f)
	case ".flac":
		src, err = newFLACSource(f)
	case ".ogg":
		src, err = newOGGSource(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if src.channels() < 1 || src.sampleRate() < 1 {
		f.Close()
		return nil, fmt.Errorf("decoding %s: invalid format (%d channels, %d Hz)",
			filepath.Base(path), src.channels(), src.sampleRate())
	}
	return &stream{src: src, file: f}, nil
}

// chunkSource is implemented by each format. next returns the following
// block of whole, interleaved frames; the slice is only valid until the
// next call.
type chunkSource interface {
	next() ([]float32, error)
	sampleRate() int
	channels() int
	frames() int64
}

// stream adapts a chunkSource to arbitrary read sizes.
type stream struct {
	src     chunkSource
	file    *os.File
	pending []float32
	err     error
}

func (s *stream) SampleRate() int { return s.src.sampleRate() }
func (s *stream) Channels() int   { return s.src.channels() }
func (s *stream) Frames() int64   { return s.src.frames() }

func (s *stream) Read(dst []float32) (int, error) {
	ch := s.src.channels()
	want := len(dst) - len(dst)%ch
	if want == 0 {
		return 0, io.ErrShortBuffer
	}

	n := 0
	for n < want {
		if len(s.pending) == 0 {
			if s.err != nil {
				break
			}
			s.pending, s.err = s.src.next()
			continue
		}
		c := copy(dst[n:want], s.pending)
		s.pending = s.pending[c:]
		n += c
	}

	if n == 0 && s.err != nil {
		return 0, s.err
	}
	return n, nil
}

func (s *stream) Close() error {
	return s.file.Close()
}

// ReadAll decodes the rest of s into one interleaved slice.
func ReadAll(s Stream) ([]float32, error) {
	var out []float32
	if n := s.Frames(); n > 0 {
		out = make([]float32, 0, n*int64(s.Channels()))
	}
	buf := make([]float32, 4096*s.Channels())
	for {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

func clamp(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
