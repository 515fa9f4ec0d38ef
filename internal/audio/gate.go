// SPDX-License-Identifier: MIT
package audio

import "math"

func (p *Processor) EnableGate() {
	p.gateEnabled.Store(true)
}

func (p *Processor) DisableGate() {
	p.gateEnabled.Store(false)
}

// GateEnabled reports whether blocks below the threshold are silenced.
func (p *Processor) GateEnabled() bool {
	return p.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold as a linear peak
// amplitude, clamped to 0.0-1.0.
func (p *Processor) SetGateThreshold(threshold float64) {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	p.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (p *Processor) GetGateThreshold() float64 {
	return math.Float64frombits(p.gateThreshold.Load())
}
