// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"olafx/internal/config"
	"olafx/pkg/build"

	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func effectiveConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	out, err := execute(t, append([]string{"config"}, args...)...)
	if err != nil {
		t.Fatalf("config %v: %v", args, err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("parsing output: %v\n%s", err, out)
	}
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := effectiveConfig(t)
	if cfg.Engine.FrameSize != config.DefaultFrameSize {
		t.Errorf("FrameSize = %d, want %d", cfg.Engine.FrameSize, config.DefaultFrameSize)
	}
	if cfg.Engine.Shape != config.DefaultShape {
		t.Errorf("Shape = %q, want %q", cfg.Engine.Shape, config.DefaultShape)
	}
	if cfg.Recording.Enabled {
		t.Error("recording enabled by default")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := effectiveConfig(t,
		"--frame-size", "512",
		"--shape", "linear",
		"--transform", "spectral",
		"-c", "1",
		"--sample-rate", "44100",
		"--gate",
		"--gate-threshold", "0.25",
	)

	if cfg.Engine.FrameSize != 512 {
		t.Errorf("FrameSize = %d, want 512", cfg.Engine.FrameSize)
	}
	if cfg.Engine.Shape != "linear" {
		t.Errorf("Shape = %q, want linear", cfg.Engine.Shape)
	}
	if cfg.Engine.Transform != "spectral" {
		t.Errorf("Transform = %q, want spectral", cfg.Engine.Transform)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %f, want 44100", cfg.Audio.SampleRate)
	}
	if !cfg.Audio.GateEnabled || cfg.Audio.GateThreshold != 0.25 {
		t.Errorf("gate = %v/%f, want true/0.25", cfg.Audio.GateEnabled, cfg.Audio.GateThreshold)
	}
}

func TestConfigFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olafx.yaml")
	data := "engine:\n  frame_size: 256\n  shape: arrow\naudio:\n  channels: 1\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := effectiveConfig(t, "--config", path, "--shape", "wedge")
	if cfg.Engine.FrameSize != 256 {
		t.Errorf("FrameSize = %d, want 256 from file", cfg.Engine.FrameSize)
	}
	if cfg.Engine.Shape != "wedge" {
		t.Errorf("Shape = %q, want wedge from flag", cfg.Engine.Shape)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Channels = %d, want 1 from file", cfg.Audio.Channels)
	}
}

func TestLatencyFlag(t *testing.T) {
	tests := []struct {
		latency string
		want    int
	}{
		{"1", 4},
		{"700", 768},
		{"1024", 1024},
		{"1025", 1536},
	}
	for _, tt := range tests {
		t.Run(tt.latency, func(t *testing.T) {
			cfg := effectiveConfig(t, "--latency", tt.latency)
			if cfg.Engine.FrameSize != tt.want {
				t.Errorf("FrameSize = %d, want %d", cfg.Engine.FrameSize, tt.want)
			}
		})
	}
}

func TestLargeFrameSizeRaisesMax(t *testing.T) {
	cfg := effectiveConfig(t, "--frame-size", "8192")
	if cfg.Engine.MaxFrameSize != 8192 {
		t.Errorf("MaxFrameSize = %d, want 8192", cfg.Engine.MaxFrameSize)
	}
	if _, err := execute(t, "config", "--frame-size", "8192", "--max-frame-size", "4096"); err == nil {
		t.Error("explicit max below frame size should fail validation")
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"frame size and latency", []string{"--frame-size", "512", "--latency", "512"}},
		{"unsupported frame size", []string{"--frame-size", "1000"}},
		{"unknown shape", []string{"--shape", "square"}},
		{"unknown transform", []string{"--transform", "chorus"}},
		{"latency too large", []string{"--latency", "100000"}},
		{"too many channels", []string{"-c", "64"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, append([]string{"config"}, tt.args...)...); err == nil {
				t.Errorf("config %v succeeded, want error", tt.args)
			}
		})
	}
}

func TestOutputEnablesRecording(t *testing.T) {
	cfg := effectiveConfig(t, "-o", "take.wav")
	if !cfg.Recording.Enabled {
		t.Error("--output should enable recording")
	}
	if cfg.Recording.OutputFile != "take.wav" {
		t.Errorf("OutputFile = %q, want take.wav", cfg.Recording.OutputFile)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, build.GetBuildFlags().Name) {
		t.Errorf("version output %q does not name the program", out)
	}
}

func TestRenderCommandArgs(t *testing.T) {
	if _, err := execute(t, "render", "only-one.wav"); err == nil {
		t.Error("render with one argument should fail")
	}
	dir := t.TempDir()
	if _, err := execute(t, "render", filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.wav")); err == nil {
		t.Error("render of a missing file should fail")
	}
}

func TestRedirectLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olafx.log")
	restore, err := redirectLogs(&options{logFile: path}, true)
	if err != nil {
		t.Fatal(err)
	}
	restore()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}

	restore, err = redirectLogs(&options{}, false)
	if err != nil {
		t.Fatal(err)
	}
	restore()
}
