// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "olafx/internal/log"
	"olafx/internal/transform"
	"olafx/internal/window"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces log_level debug).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	LogJSON   bool            `yaml:"log_json"`  // Emit JSON log lines instead of text.
	Audio     AudioConfig     `yaml:"audio"`     // Audio host settings.
	Engine    EngineConfig    `yaml:"engine"`    // Overlap-add engine and transform settings.
	Recording RecordingConfig `yaml:"recording"` // Processed-output recording settings.
	Transport TransportConfig `yaml:"transport"` // Snapshot transport settings (UDP, WebSocket).
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for audio output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Host block size; the engine re-chunks it into frames.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	Channels        int     `yaml:"channels"`          // Channels processed, one engine each.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Silence input blocks below the gate threshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Linear peak amplitude, 0..1.
}

// EngineConfig holds the overlap-add engine and transform parameters.
type EngineConfig struct {
	FrameSize    int    `yaml:"frame_size"`     // Analysis frame length; also the latency in samples.
	MaxFrameSize int    `yaml:"max_frame_size"` // Buffers are sized for this, frame_size may change up to it at run time.
	Shape        string `yaml:"shape"`          // Envelope shape: linear, arrow, wedge, cosine, cosine2.
	Transform    string `yaml:"transform"`      // identity, spectral, geometer, resonator.

	QuantizeStep   float64 `yaml:"quantize_step"`   // spectral
	EchoFeedback   float64 `yaml:"echo_feedback"`   // spectral
	Threshold      float64 `yaml:"threshold"`       // geometer
	MinSpacing     int     `yaml:"min_spacing"`     // geometer
	ResonanceHz    float64 `yaml:"resonance_hz"`    // resonator
	ResonanceQ     float64 `yaml:"resonance_q"`     // resonator
	ResonatorBlend float64 `yaml:"resonator_blend"` // resonator
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Record the processed output to file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	OutputFile  string `yaml:"output_file"`          // Explicit file name; generated when empty.
	Format      string `yaml:"format"`               // File format for recordings (wav only).
	BitDepth    int    `yaml:"bit_depth"`            // Bit depth for recorded audio (16, 24 or 32).
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a single recording file in seconds (0 for unlimited).
}

// TransportConfig holds settings related to sending snapshots over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send snapshot packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve snapshots to WebSocket clients.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the WebSocket server.
	ObserverInterval time.Duration `yaml:"observer_interval"`  // Scheduler tick for observers (scope, WebSocket).
}

var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "olafx.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applog.Debugf("Config: Loaded %s", path)

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section and returns the first problem found,
// wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: log_level '%s'", ErrInvalidConfig, c.LogLevel)
	}

	// Audio Validation
	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalidConfig, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d outside [1, %d]", ErrInvalidConfig, a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.Channels < 1 || a.Channels > MaxChannels {
		return fmt.Errorf("%w: audio.channels %d outside [1, %d]", ErrInvalidConfig, a.Channels, MaxChannels)
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return fmt.Errorf("%w: device index below %d", ErrInvalidConfig, MinDeviceID)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return fmt.Errorf("%w: audio.gate_threshold %f outside [0, 1]", ErrInvalidConfig, a.GateThreshold)
	}

	// Engine Validation
	if _, err := c.WindowConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !window.IsSupportedFrameSize(c.Engine.MaxFrameSize) {
		return fmt.Errorf("%w: engine.max_frame_size: %w: %d", ErrInvalidConfig, window.ErrUnsupportedFrameSize, c.Engine.MaxFrameSize)
	}
	if c.Engine.FrameSize > c.Engine.MaxFrameSize {
		return fmt.Errorf("%w: engine.frame_size %d exceeds max_frame_size %d", ErrInvalidConfig, c.Engine.FrameSize, c.Engine.MaxFrameSize)
	}
	if !transform.IsKnown(c.Engine.Transform) {
		return fmt.Errorf("%w: engine.transform: %w: '%s'", ErrInvalidConfig, transform.ErrUnknownTransform, c.Engine.Transform)
	}

	// Recording Validation
	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, "wav") {
			return fmt.Errorf("%w: recording.format '%s' (only wav is supported)", ErrInvalidConfig, c.Recording.Format)
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording.bit_depth %d (want 16, 24 or 32)", ErrInvalidConfig, c.Recording.BitDepth)
		}
	}

	// Transport Validation
	t := c.Transport
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("%w: transport.udp_target_address must be set when UDP is enabled", ErrInvalidConfig)
		}
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return fmt.Errorf("%w: transport.udp_target_address '%s' appears invalid (missing port?)", ErrInvalidConfig, t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalidConfig)
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return fmt.Errorf("%w: transport.websocket_address must be set when WebSocket is enabled", ErrInvalidConfig)
	}
	if t.ObserverInterval < 0 {
		return fmt.Errorf("%w: transport.observer_interval must not be negative", ErrInvalidConfig)
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.
	envBool("ENV_DEBUG", "debug", &cfg.Debug)
	envString("ENV_LOG_LEVEL", "log_level", &cfg.LogLevel)

	// ENV_ENGINE_{...}
	envInt("ENV_FRAME_SIZE", "engine.frame_size", &cfg.Engine.FrameSize)
	envString("ENV_SHAPE", "engine.shape", &cfg.Engine.Shape)
	envString("ENV_TRANSFORM", "engine.transform", &cfg.Engine.Transform)

	// ENV_UDP_{...}
	// These are specific to the transport layer.
	envBool("ENV_UDP_ENABLED", "transport.udp_enabled", &cfg.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", "transport.udp_target_address", &cfg.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", "transport.udp_send_interval", &cfg.Transport.UDPSendInterval)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", "transport.websocket_enabled", &cfg.Transport.WebSocketEnabled)
	envString("ENV_WS_ADDRESS", "transport.websocket_address", &cfg.Transport.WebSocketAddress)
}

func envString(key, field string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		applog.Infof("Config: Overriding %s from env: %s", field, val)
	}
}

func envBool(key, field string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = b
	applog.Infof("Config: Overriding %s from env: %v", field, b)
}

func envInt(key, field string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	applog.Infof("Config: Overriding %s from env: %d", field, n)
}

func envDuration(key, field string, dst *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = d
	applog.Infof("Config: Overriding %s from env: %s", field, d)
}
