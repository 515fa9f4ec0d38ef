// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"sync"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

func peakedMagnitudes(size, peak int) []float64 {
	mags := make([]float64, size)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-peak), 2))
	}
	return mags
}

func TestMockTransport(t *testing.T) {
	mt := &MockTransport{}
	if mt.Last() != nil {
		t.Error("Last() on empty transport should be nil")
	}

	for _, v := range []any{1, "two", []float64{3}} {
		if err := mt.Send(v); err != nil {
			t.Fatalf("Send(%v) error = %v", v, err)
		}
	}
	if got := len(mt.Sent()); got != 3 {
		t.Errorf("len(Sent()) = %d, want 3", got)
	}
	if s, ok := mt.Last().([]float64); !ok || s[0] != 3 {
		t.Errorf("Last() = %v, want [3]", mt.Last())
	}

	sent := mt.Sent()
	sent[0] = "changed"
	if mt.Sent()[0] != 1 {
		t.Error("Sent() returned internal storage")
	}

	mt.Close()
	if !mt.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := mt.Send(4); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close error = %v, want ErrClosed", err)
	}
}

func TestMockTransportError(t *testing.T) {
	boom := errors.New("boom")
	mt := &MockTransport{Err: boom}
	if err := mt.Send(1); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want %v", err, boom)
	}
	if len(mt.Sent()) != 0 {
		t.Error("failed send was recorded")
	}
}

func TestMockTransportConcurrent(t *testing.T) {
	mt := &MockTransport{}
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				mt.Send(i*100 + j)
			}
		}()
	}
	wg.Wait()
	if got := len(mt.Sent()); got != 800 {
		t.Errorf("len(Sent()) = %d, want 800", got)
	}
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d",
					len(result), tt.size)
			}

			hasNonZero := false
			for _, v := range result {
				if math.Abs(v) > 0.9 {
					t.Fatalf("sample %f exceeds 0.9", v)
				}
				if v != 0 {
					hasNonZero = true
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency)

			if len(result) != tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d",
					len(result), tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			if samplesPerCycle > 2 && float64(tt.size) > samplesPerCycle {
				crossCount := 0
				for i := 1; i < tt.size; i++ {
					if (result[i-1] < 0 && result[i] >= 0) ||
						(result[i-1] >= 0 && result[i] < 0) {
						crossCount++
					}
				}

				// Two crossings per cycle, give or take phase alignment.
				expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
				tolerance := 0.2 * expectedCrossings

				if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
					t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
						crossCount, expectedCrossings, tolerance)
				}
			}
		})
	}
}

func TestGenerateImpulse(t *testing.T) {
	x := GenerateImpulse(8, 3)
	for i, v := range x {
		want := 0.0
		if i == 3 {
			want = 1
		}
		if v != want {
			t.Errorf("x[%d] = %f, want %f", i, v, want)
		}
	}
	for _, v := range GenerateImpulse(4, 9) {
		if v != 0 {
			t.Fatal("out of range position should give silence")
		}
	}
}

func TestGenerateNoise(t *testing.T) {
	a := GenerateNoise(testSize, 1)
	b := GenerateNoise(testSize, 1)
	c := GenerateNoise(testSize, 2)

	same := true
	for i := range a {
		if a[i] < -1 || a[i] >= 1 {
			t.Fatalf("a[%d] = %f out of range", i, a[i])
		}
		if a[i] != b[i] {
			t.Fatalf("same seed differs at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds gave the same noise")
	}
}

func TestToFloat32(t *testing.T) {
	got := ToFloat32([]float64{0.5, -0.25})
	if len(got) != 2 || got[0] != 0.5 || got[1] != -0.25 {
		t.Errorf("ToFloat32() = %v", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	mags := peakedMagnitudes(testSize, testSize/4)

	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", mags, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", mags, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", mags, 0, testSize / 3, testSize / 4},
		{"Negative Start", mags, -10, testSize - 1, testSize / 4},
		{"Out of Range End", mags, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(mags, 0, len(mags)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		GenerateSineWave(testSize, testSampleRate, testFrequency)
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	mags := peakedMagnitudes(8192, 4096)
	b.ReportAllocs()
	for b.Loop() {
		FindPeakBin(mags, 0, len(mags)-1)
	}
}
