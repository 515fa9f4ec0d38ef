// SPDX-License-Identifier: MIT
package config

import (
	"fmt"

	applog "olafx/internal/log"
	"olafx/internal/transform"
	"olafx/internal/window"
)

// WindowConfig converts the engine section into the envelope configuration.
func (c *Config) WindowConfig() (window.Config, error) {
	shape, err := window.ParseShape(c.Engine.Shape)
	if err != nil {
		return window.Config{}, fmt.Errorf("engine.shape: %w", err)
	}
	wc := window.Config{FrameSize: c.Engine.FrameSize, Shape: shape}
	if err := wc.Validate(); err != nil {
		return window.Config{}, fmt.Errorf("engine.frame_size: %w", err)
	}
	return wc, nil
}

// TransformOptions returns the transform parameters of the engine section.
func (c *Config) TransformOptions() transform.Options {
	e := c.Engine
	return transform.Options{
		QuantizeStep:   e.QuantizeStep,
		EchoFeedback:   e.EchoFeedback,
		Threshold:      e.Threshold,
		MinSpacing:     e.MinSpacing,
		ResonanceHz:    e.ResonanceHz,
		ResonanceQ:     e.ResonanceQ,
		ResonatorBlend: e.ResonatorBlend,
	}
}

// NewTransform builds the configured transform for one channel.
func (c *Config) NewTransform() (transform.Transform, error) {
	return transform.New(c.Engine.Transform, c.TransformOptions(), c.Engine.MaxFrameSize, c.Audio.SampleRate)
}

// Level returns the effective log level; debug mode wins over log_level.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}
