// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"olafx/internal/audio"
	"olafx/internal/config"
	"olafx/internal/decode"
	applog "olafx/internal/log"
	"olafx/internal/scheduler"
	"olafx/internal/snapshot"
	"olafx/internal/transport"
	"olafx/internal/transport/udp"
	"olafx/internal/tui"
	"olafx/pkg/build"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process live input to output through the effect engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, opts)
		},
	}
	addObserverFlags(cmd, opts)
	return cmd
}

func newPlayCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play an audio file through the effect engine",
		Long:  "Play a WAV, MP3, FLAC or OGG file through the effect engine on the default output device.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts, args[0])
		},
	}
	addObserverFlags(cmd, opts)
	return cmd
}

func addObserverFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.scope, "scope", false,
		"Show the live scope while audio runs")
	cmd.Flags().BoolVar(&opts.logSnapshots, "log-snapshots", false,
		"Log a summary of every snapshot at debug level")
}

// observers wires the snapshot consumers configured in cfg to a scheduler.
type observers struct {
	sched   *scheduler.Scheduler
	closers []func() error
}

func startObservers(ctx context.Context, cfg *config.Config, opts *options, cache *snapshot.Cache) (*observers, error) {
	o := &observers{sched: scheduler.New(cfg.Transport.ObserverInterval)}

	t := cfg.Transport
	if t.UDPEnabled {
		sender, err := udp.NewUDPSender(t.UDPTargetAddress)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.closers = append(o.closers, sender.Close)

		pub, err := udp.NewUDPPublisher(t.UDPSendInterval, sender, cache)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.sched.Register(pub)
	}

	if t.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(t.WebSocketAddress)
		o.closers = append(o.closers, ws.Close)
		if err := ws.Start(); err != nil {
			o.Close()
			return nil, fmt.Errorf("websocket: %w", err)
		}
		o.sched.Register(transport.NewSnapshotObserver(cache, ws))
	}

	if opts.logSnapshots {
		lt := transport.NewLoggingTransport()
		o.closers = append(o.closers, lt.Close)
		o.sched.Register(transport.NewSnapshotObserver(cache, lt))
	}

	if err := o.sched.Start(ctx); err != nil {
		o.Close()
		return nil, err
	}
	return o, nil
}

// Close stops the scheduler before closing the transports it feeds.
func (o *observers) Close() error {
	o.sched.Stop()
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		errs = append(errs, o.closers[i]())
	}
	o.closers = nil
	return errors.Join(errs...)
}

func startRecording(cfg *config.Config, proc *audio.Processor) error {
	if !cfg.Recording.Enabled {
		return nil
	}
	return proc.StartRecording(audio.RecordingPath(cfg.Recording, time.Now()))
}

func scopeOptions(cfg *config.Config, proc *audio.Processor, title string) tui.ScopeOptions {
	return tui.ScopeOptions{
		Controller:   proc,
		Config:       proc.Config(),
		MaxFrameSize: cfg.Engine.MaxFrameSize,
		SampleRate:   float64(proc.SampleRate()),
		Title:        title,
	}
}

func runLive(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	restore, err := redirectLogs(opts, opts.scope)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	cache := snapshot.NewCache()
	proc, err := audio.NewProcessor(cfg, cfg.Audio.Channels, cache)
	if err != nil {
		return err
	}
	host, err := audio.NewHost(cfg, proc)
	if err != nil {
		return err
	}

	obs, err := startObservers(ctx, cfg, opts, cache)
	if err != nil {
		return err
	}
	defer obs.Close()

	// The first callback marks the start of the real-time path.
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			applog.Errorf("Error closing audio host: %v", err)
		}
	}()

	if err := startRecording(cfg, proc); err != nil {
		return err
	}

	if opts.scope {
		return tui.RunScope(ctx, obs.sched, cache, scopeOptions(cfg, proc, build.GetBuildFlags().Name))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Processing with %d samples of latency. Press Ctrl+C to stop.\n", proc.LatencySamples())
	<-ctx.Done()

	applog.WithFields(applog.Fields{
		"callbacks": host.Callbacks(),
		"frames":    proc.Frames(),
		"gated":     proc.GatedBlocks(),
	}).Info("Audio stream stopped")
	return nil
}

func runPlay(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	restore, err := redirectLogs(opts, opts.scope)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, err := decode.Open(path)
	if err != nil {
		return err
	}

	// The engine runs at the file's format.
	fileCfg := *cfg
	fileCfg.Audio.SampleRate = float64(src.SampleRate())
	fileCfg.Audio.Channels = src.Channels()

	cache := snapshot.NewCache()
	proc, err := audio.NewProcessor(&fileCfg, src.Channels(), cache)
	if err != nil {
		src.Close()
		return err
	}
	player, err := audio.NewPlayer(src, proc)
	if err != nil {
		src.Close()
		return err
	}
	defer player.Close()

	obs, err := startObservers(ctx, &fileCfg, opts, cache)
	if err != nil {
		return err
	}
	defer obs.Close()

	if err := startRecording(&fileCfg, proc); err != nil {
		return err
	}
	defer proc.StopRecording()

	player.Play()

	if opts.scope {
		done := make(chan error, 1)
		go func() {
			done <- player.Wait(ctx)
			cancel()
		}()
		if err := tui.RunScope(ctx, obs.sched, cache, scopeOptions(&fileCfg, proc, path)); err != nil {
			return err
		}
		cancel()
		return ignoreCanceled(<-done)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%d Hz, %d ch). Press Ctrl+C to stop.\n",
		path, src.SampleRate(), src.Channels())
	if err := ignoreCanceled(player.Wait(ctx)); err != nil {
		return err
	}
	applog.Infof("Played %s of processed audio", player.Position().Round(time.Millisecond))
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
