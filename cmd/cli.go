// SPDX-License-Identifier: MIT

// Package cmd implements the olafx command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"olafx/internal/config"
	applog "olafx/internal/log"
	"olafx/internal/window"
	"olafx/pkg/build"

	"github.com/spf13/cobra"
)

// options holds flag values. Flags only override the configuration when
// they were set on the command line.
type options struct {
	configPath string
	logLevel   string
	logFile    string
	debug      bool

	frameSize    int
	latency      int
	maxFrameSize int
	shape        string
	transform    string

	inputDevice     int
	outputDevice    int
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool
	gate            bool
	gateThreshold   float64

	record bool
	output string

	scope        bool
	logSnapshots bool
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		// Without a subcommand the engine runs with the scope attached.
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.scope = true
			return runLive(cmd, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()

	// Configuration and logging
	pf.StringVar(&opts.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./olafx.yaml if present)")
	pf.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "",
		"Write logs to this file instead of stderr")
	pf.BoolVar(&opts.debug, "debug", false,
		"Enable debug logging")

	// Engine Configuration
	pf.IntVarP(&opts.frameSize, "frame-size", "f", config.DefaultFrameSize,
		"Frame size in samples (power of two or three times one); also the latency")
	pf.IntVar(&opts.latency, "latency", 0,
		"Target latency in samples, rounded up to a supported frame size")
	pf.IntVar(&opts.maxFrameSize, "max-frame-size", config.DefaultMaxFrameSize,
		"Largest frame size reachable at run time")
	pf.StringVar(&opts.shape, "shape", config.DefaultShape,
		"Envelope shape: linear, arrow, wedge, cosine, cosine2")
	pf.StringVarP(&opts.transform, "transform", "t", config.DefaultTransform,
		"Frame transform: identity, spectral, geometer, resonator")
	rootCmd.MarkFlagsMutuallyExclusive("frame-size", "latency")

	// Audio Device Configuration
	pf.IntVarP(&opts.inputDevice, "input-device", "d", config.DefaultInputDevice,
		"Input device ID. Use 'list' command to see available devices.")
	pf.IntVar(&opts.outputDevice, "output-device", config.DefaultOutputDevice,
		"Output device ID")
	pf.IntVarP(&opts.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to process (1=mono, 2=stereo)")
	pf.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per host buffer")
	pf.BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.BoolVar(&opts.gate, "gate", false,
		"Treat input blocks below the gate threshold as silence")
	pf.Float64Var(&opts.gateThreshold, "gate-threshold", config.DefaultGateThreshold,
		"Gate threshold as a linear peak amplitude (0-1)")

	// Recording Configuration
	pf.BoolVarP(&opts.record, "record", "r", false,
		"Record the processed output")
	pf.StringVarP(&opts.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newPlayCommand(opts),
		newRenderCommand(opts),
		newListCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// loadConfig reads the configuration file, applies the flags that were
// set and sets up logging.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	applog.SetLevel(cfg.Level())
	applog.SetJSON(cfg.LogJSON)
	return cfg, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := flags.Changed

	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if changed("debug") {
		cfg.Debug = o.debug
	}

	if changed("frame-size") {
		cfg.Engine.FrameSize = o.frameSize
	}
	if changed("latency") {
		n, err := window.FrameSizeFor(o.latency)
		if err != nil {
			return fmt.Errorf("--latency: %w", err)
		}
		cfg.Engine.FrameSize = n
	}
	if changed("max-frame-size") {
		cfg.Engine.MaxFrameSize = o.maxFrameSize
	}
	// A larger frame size raises the limit rather than failing validation.
	if cfg.Engine.FrameSize > cfg.Engine.MaxFrameSize && !changed("max-frame-size") {
		cfg.Engine.MaxFrameSize = cfg.Engine.FrameSize
	}
	if changed("shape") {
		cfg.Engine.Shape = o.shape
	}
	if changed("transform") {
		cfg.Engine.Transform = o.transform
	}

	if changed("input-device") {
		cfg.Audio.InputDevice = o.inputDevice
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = o.outputDevice
	}
	if changed("channels") {
		cfg.Audio.Channels = o.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateEnabled = o.gate
	}
	if changed("gate-threshold") {
		cfg.Audio.GateThreshold = o.gateThreshold
	}

	if changed("record") {
		cfg.Recording.Enabled = o.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = o.output
		cfg.Recording.Enabled = true
	}
	return nil
}

// redirectLogs sends logs to the log file, or discards them while a full
// screen UI owns the terminal. The returned func restores stderr.
func redirectLogs(opts *options, fullScreen bool) (func(), error) {
	var w io.Writer
	var f *os.File
	switch {
	case opts.logFile != "":
		var err error
		f, err = os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
	case fullScreen:
		w = io.Discard
	default:
		return func() {}, nil
	}

	applog.SetOutput(w)
	return func() {
		applog.SetOutput(os.Stderr)
		if f != nil {
			f.Close()
		}
	}, nil
}
