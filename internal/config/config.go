// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the effect engine and its host.
const (
	// Audio host defaults
	DefaultInputDevice     = MinDeviceID // System default device
	DefaultOutputDevice    = MinDeviceID
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 512 // Host block size, independent of the frame size
	DefaultChannels        = 2
	DefaultLowLatency      = false
	DefaultGateThreshold   = 0.001 // Linear amplitude, about -60 dBFS

	// Engine defaults
	DefaultFrameSize    = 1024
	DefaultMaxFrameSize = 4096
	DefaultShape        = "cosine"
	DefaultTransform    = "identity"

	// Recording defaults
	DefaultFormat    = "wav"
	DefaultBitDepth  = 16
	DefaultOutputDir = "./recordings"

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress = ":8080"
	DefaultObserverInterval = 16 * time.Millisecond // ~60Hz

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per host buffer
	MaxChannels     = 8

	// Error handling configuration
	DefaultMaxConsecutiveWriteFailures = 5 // Max failures before recording stops
)

// Default returns the built-in configuration used when no file is found.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			Channels:        DefaultChannels,
			GateThreshold:   DefaultGateThreshold,
		},
		Engine: EngineConfig{
			FrameSize:      DefaultFrameSize,
			MaxFrameSize:   DefaultMaxFrameSize,
			Shape:          DefaultShape,
			Transform:      DefaultTransform,
			MinSpacing:     4,
			ResonanceHz:    440,
			ResonanceQ:     4,
			ResonatorBlend: 1,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
			ObserverInterval: DefaultObserverInterval,
		},
	}
}
