// SPDX-License-Identifier: MIT
package transport

import (
	"olafx/internal/snapshot"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// SnapshotSource is the observer side of a snapshot cache. *snapshot.Cache
// implements it.
type SnapshotSource interface {
	Revision() uint64
	Read(dst *snapshot.Snapshot) uint64
}

// Message is the JSON form of a snapshot sent to WebSocket clients and
// logged by LoggingTransport.
type Message struct {
	Revision  uint64     `json:"revision"`
	FrameSize int        `json:"frame_size"`
	Input     []float32  `json:"input"`
	Output    []float32  `json:"output"`
	Landmarks []Landmark `json:"landmarks,omitempty"`
}

// Landmark is one point of interest in a Message.
type Landmark struct {
	Position int     `json:"position"`
	Value    float32 `json:"value"`
}

// NewMessage copies s into a freshly allocated Message. The copy lets the
// message outlive the snapshot buffer while it waits in a send queue.
func NewMessage(s *snapshot.Snapshot) *Message {
	m := &Message{
		Revision:  s.Revision,
		FrameSize: int(s.FrameSize),
		Input:     append([]float32(nil), s.InputSlice()...),
		Output:    append([]float32(nil), s.OutputSlice()...),
	}
	if s.LandmarkCount > 0 {
		m.Landmarks = make([]Landmark, s.LandmarkCount)
		for i := range m.Landmarks {
			m.Landmarks[i] = Landmark{Position: int(s.LandmarkPos[i]), Value: s.LandmarkVal[i]}
		}
	}
	return m
}

// Ensure the cache satisfies SnapshotSource at compile time.
var _ SnapshotSource = (*snapshot.Cache)(nil)
