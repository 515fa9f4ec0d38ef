// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"time"

	applog "olafx/internal/log"
	"olafx/internal/snapshot"
)

// SnapshotObserver polls a snapshot source on every scheduler tick and
// forwards each new revision to a Transport. Unchanged revisions cost one
// atomic load.
type SnapshotObserver struct {
	source SnapshotSource
	out    Transport

	mu     sync.Mutex // Serialises Tick.
	buf    snapshot.Snapshot
	last   uint64
	sent   uint64
	failed uint64
}

// NewSnapshotObserver returns an observer forwarding from source to out.
func NewSnapshotObserver(source SnapshotSource, out Transport) *SnapshotObserver {
	return &SnapshotObserver{source: source, out: out}
}

// Tick implements scheduler.Client.
func (o *SnapshotObserver) Tick(time.Time) {
	rev := o.source.Revision()

	o.mu.Lock()
	defer o.mu.Unlock()
	if rev == 0 {
		o.last = 0 // Engine reset, revisions restart from 1.
		return
	}
	if rev == o.last {
		return
	}

	o.last = o.source.Read(&o.buf)
	if err := o.out.Send(NewMessage(&o.buf)); err != nil {
		o.failed++
		applog.Debugf("SnapshotObserver: Send failed for revision %d: %v", o.last, err)
		return
	}
	o.sent++
}

// Sent returns how many snapshots were handed to the transport.
func (o *SnapshotObserver) Sent() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}
