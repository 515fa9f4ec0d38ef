// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

const chunkFrames = 4096

// --- WAV ---

type wavSource struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	out      []float32
	rate     int
	nch      int
	bitDepth int
	total    int64
}

func newWAVSource(f *os.File) (*wavSource, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	// FwdToPCM positions the reader at the start of PCM data
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	format := dec.Format()
	bitDepth := int(dec.SampleBitDepth())
	if bitDepth == 0 || format == nil || format.NumChannels < 1 {
		return nil, fmt.Errorf("unknown WAV sample format")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: WAV audio format %d (only PCM)", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	bytesPerSample := (bitDepth-1)/8 + 1
	total := dec.PCMLen() / int64(bytesPerSample*format.NumChannels)

	return &wavSource{
		dec: dec,
		buf: &audio.IntBuffer{
			Format:         format,
			Data:           make([]int, chunkFrames*format.NumChannels),
			SourceBitDepth: bitDepth,
		},
		out:      make([]float32, chunkFrames*format.NumChannels),
		rate:     format.SampleRate,
		nch:      format.NumChannels,
		bitDepth: bitDepth,
		total:    total,
	}, nil
}

func (s *wavSource) next() ([]float32, error) {
	n, err := s.dec.PCMBuffer(s.buf)
	n -= n % s.nch
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}

	// 8-bit WAV is unsigned, wider depths are signed.
	if s.bitDepth == 8 {
		for i, v := range s.buf.Data[:n] {
			s.out[i] = float32(v-128) / 128
		}
	} else {
		scale := float32(1 / math.Pow(2, float64(s.bitDepth-1)))
		for i, v := range s.buf.Data[:n] {
			s.out[i] = clamp(float32(v) * scale)
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return s.out[:n], err
}

func (s *wavSource) sampleRate() int { return s.rate }
func (s *wavSource) channels() int   { return s.nch }
func (s *wavSource) frames() int64   { return s.total }

// --- MP3 ---

// go-mp3 always produces 16-bit little-endian stereo.
type mp3Source struct {
	dec *mp3.Decoder
	raw []byte
	out []float32
}

func newMP3Source(f *os.File) (*mp3Source, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Source{
		dec: dec,
		raw: make([]byte, chunkFrames*4),
		out: make([]float32, chunkFrames*2),
	}, nil
}

func (s *mp3Source) next() ([]float32, error) {
	n, err := io.ReadFull(s.dec, s.raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	n -= n % 4
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	samples := n / 2
	for i := range samples {
		s.out[i] = float32(int16(binary.LittleEndian.Uint16(s.raw[2*i:]))) / 32768
	}
	return s.out[:samples], err
}

func (s *mp3Source) sampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) channels() int   { return 2 }
func (s *mp3Source) frames() int64 {
	if n := s.dec.Length(); n > 0 {
		return n / 4
	}
	return -1
}

// --- FLAC ---

type flacSource struct {
	stream *flac.Stream
	out    []float32
	scale  float32
}

func newFLACSource(f *os.File) (*flacSource, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, err
	}
	bps := int(stream.Info.BitsPerSample)
	if bps < 4 || bps > 32 {
		return nil, fmt.Errorf("unsupported FLAC bit depth %d", bps)
	}
	return &flacSource{
		stream: stream,
		scale:  float32(1 / math.Pow(2, float64(bps-1))),
	}, nil
}

func (s *flacSource) next() ([]float32, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return nil, err
	}

	nch := len(frame.Subframes)
	if nch != s.channels() {
		return nil, fmt.Errorf("FLAC frame has %d channels, stream has %d", nch, s.channels())
	}
	nSamples := int(frame.Subframes[0].NSamples)
	if need := nSamples * nch; cap(s.out) < need {
		s.out = make([]float32, need)
	}
	out := s.out[:nSamples*nch]
	for i := range nSamples {
		for ch := range nch {
			out[i*nch+ch] = clamp(float32(frame.Subframes[ch].Samples[i]) * s.scale)
		}
	}
	return out, nil
}

func (s *flacSource) sampleRate() int { return int(s.stream.Info.SampleRate) }
func (s *flacSource) channels() int   { return int(s.stream.Info.NChannels) }
func (s *flacSource) frames() int64 {
	if n := s.stream.Info.NSamples; n > 0 {
		return int64(n)
	}
	return -1
}

// --- OGG Vorbis ---

type oggSource struct {
	reader *oggvorbis.Reader
	out    []float32
}

func newOGGSource(f *os.File) (*oggSource, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, err
	}
	return &oggSource{
		reader: reader,
		out:    make([]float32, chunkFrames*reader.Channels()),
	}, nil
}

func (s *oggSource) next() ([]float32, error) {
	n, err := s.reader.Read(s.out)
	n -= n % s.channels()
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	for i := range s.out[:n] {
		s.out[i] = clamp(s.out[i])
	}
	if errors.Is(err, io.EOF) {
		err = nil // Report EOF on the following call, after these samples.
	}
	return s.out[:n], err
}

func (s *oggSource) sampleRate() int { return s.reader.SampleRate() }
func (s *oggSource) channels() int   { return s.reader.Channels() }
func (s *oggSource) frames() int64 {
	if n := s.reader.Length(); n > 0 {
		return n
	}
	return -1
}
