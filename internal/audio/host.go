// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"olafx/internal/config"
	applog "olafx/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Host runs a Processor on a PortAudio duplex stream: every input block
// is processed and written to the matching output block.
type Host struct {
	config *config.Config
	proc   *Processor

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	callbacks atomic.Uint64
	underruns atomic.Uint64 // Callbacks with mismatched buffers.
}

// NewHost resolves the configured devices. PortAudio must be initialized.
func NewHost(cfg *config.Config, proc *Processor) (*Host, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, fmt.Errorf("input device: %w", err)
	}
	outputDevice, err := OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return nil, fmt.Errorf("output device: %w", err)
	}

	h := &Host{
		config:       cfg,
		proc:         proc,
		inputDevice:  inputDevice,
		outputDevice: outputDevice,
	}

	if cfg.Audio.LowLatency {
		h.inputLatency = inputDevice.DefaultLowInputLatency
		h.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		h.inputLatency = inputDevice.DefaultHighInputLatency
		h.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return h, nil
}

// Start opens and starts the duplex stream.
func (h *Host) Start() error {
	if h.stream != nil {
		return fmt.Errorf("stream already started")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: h.proc.Channels(),
			Device:   h.inputDevice,
			Latency:  h.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: h.proc.Channels(),
			Device:   h.outputDevice,
			Latency:  h.outputLatency,
		},
		FramesPerBuffer: h.config.Audio.FramesPerBuffer,
		SampleRate:      h.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, h.process)
	if err != nil {
		return err
	}
	h.stream = stream

	if err := h.stream.Start(); err != nil {
		h.stream.Close()
		h.stream = nil
		return err
	}

	applog.WithFields(applog.Fields{
		"input":   h.inputDevice.Name,
		"output":  h.outputDevice.Name,
		"rate":    h.config.Audio.SampleRate,
		"block":   h.config.Audio.FramesPerBuffer,
		"latency": h.proc.LatencySamples(),
	}).Info("Audio stream started")

	return nil
}

// Stop stops and closes the stream. It is safe to call when stopped.
func (h *Host) Stop() error {
	if h.stream != nil {
		if err := h.stream.Stop(); err != nil {
			return err
		}

		if err := h.stream.Close(); err != nil {
			return err
		}

		h.stream = nil
	}

	return nil
}

// Close stops recording and the stream.
func (h *Host) Close() error {
	if err := h.proc.StopRecording(); err != nil {
		return err
	}

	return h.Stop()
}

// Callbacks returns how many blocks the stream has delivered.
func (h *Host) Callbacks() uint64 { return h.callbacks.Load() }

// process is the real-time callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (h *Host) process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	h.callbacks.Add(1)
	if len(in) != len(out) {
		h.underruns.Add(1)
		clear(out)
		return
	}
	h.proc.ProcessInterleaved(in, out)
}
