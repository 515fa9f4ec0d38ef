// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"olafx/internal/audio"
	"olafx/internal/render"
	"olafx/internal/tui"
	"olafx/pkg/build"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newListCommand(opts *options) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, opts); err != nil {
				return err
			}
			if interactive {
				sel, err := tui.StartDeviceListUI()
				if err != nil {
					return err
				}
				if sel != nil {
					fmt.Fprintln(cmd.OutOrStdout(), sel.Flags())
				}
				return nil
			}

			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"Browse devices and print the flags for the chosen one")
	return cmd
}

func newRenderCommand(opts *options) *cobra.Command {
	var ro render.Options
	var progress bool

	cmd := &cobra.Command{
		Use:   "render <input> <output.wav>",
		Short: "Render an audio file through the effect engine to a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if progress {
				ro.Progress = progressPrinter(cmd)
			}

			res, err := render.File(cmd.Context(), cfg, args[0], args[1], ro)
			if progress {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d frames, %d Hz, %d ch)\n",
				args[1], res.OutputFrames, res.SampleRate, res.Channels)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&ro.BlockFrames, "block", 0, "Frames per engine call (default: audio.frames_per_buffer)")
	f.BoolVar(&ro.RandomBlocks, "random", false, "Vary the block size per call between 1 and twice --block")
	f.Uint64Var(&ro.Seed, "seed", 1, "Seed for --random")
	f.BoolVar(&ro.Compensate, "compensate", false, "Drop the engine latency so output lines up with input")
	f.IntVar(&ro.BitDepth, "bit-depth", 0, "Output bit depth: 16, 24 or 32 (default: recording.bit_depth)")
	f.BoolVar(&progress, "progress", false, "Print progress to stderr")
	return cmd
}

// progressPrinter reports whole-percent steps, or frame counts when the
// input length is unknown.
func progressPrinter(cmd *cobra.Command) func(done, total int64) {
	last := int64(-1)
	return func(done, total int64) {
		if total <= 0 {
			if done/48000 != last {
				last = done / 48000
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%d frames", done)
			}
			return
		}
		pct := done * 100 / total
		if pct != last {
			last = pct
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%3d%%", pct)
		}
	}
}

func newConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildFlags().String())
		},
	}
}
