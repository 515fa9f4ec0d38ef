// SPDX-License-Identifier: MIT
package audio

import "time"

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	LowOutputLatency  time.Duration
	HighOutputLatency time.Duration
}

// Duplex reports whether the device can both capture and play.
func (d Device) Duplex() bool {
	return d.MaxInputChannels > 0 && d.MaxOutputChannels > 0
}

// Kind describes the device direction for listings.
func (d Device) Kind() string {
	switch {
	case d.Duplex():
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	}
	return "Unknown"
}

// GetDevices initializes PortAudio, lists the host devices and terminates
// it again. Use HostDevices when PortAudio is already initialized.
func GetDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}
