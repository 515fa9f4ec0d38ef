// SPDX-License-Identifier: MIT
package tui

import (
	"sync"
	"time"

	"olafx/internal/snapshot"
	"olafx/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
)

// snapshotMsg carries a private copy of the latest published frame.
type snapshotMsg struct {
	snap *snapshot.Snapshot
	at   time.Time
}

// ScopeFeed is a scheduler client that forwards new snapshots to a
// running program. Ticks without a new revision send nothing.
type ScopeFeed struct {
	source transport.SnapshotSource
	send   func(tea.Msg)

	mu   sync.Mutex
	last uint64
}

// NewScopeFeed reads from source and delivers messages through send,
// usually (*tea.Program).Send.
func NewScopeFeed(source transport.SnapshotSource, send func(tea.Msg)) *ScopeFeed {
	return &ScopeFeed{source: source, send: send}
}

// Tick implements scheduler.Client.
func (f *ScopeFeed) Tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rev := f.source.Revision()
	if rev == 0 {
		f.last = 0
		return
	}
	if rev == f.last {
		return
	}

	snap := new(snapshot.Snapshot)
	f.last = f.source.Read(snap)
	if f.last == 0 {
		return
	}
	f.send(snapshotMsg{snap: snap, at: now})
}
