// SPDX-License-Identifier: MIT
package snapshot

import (
	"sync"
	"sync/atomic"
)

// Cache is a double-buffered, single-producer snapshot exchange.
type Cache struct {
	slots  [2]Snapshot
	writer *Snapshot // Producer-owned, never touched by readers.
	reader *Snapshot // Guarded by mu.
	mu     sync.Mutex

	seq      uint64        // Producer-only frame counter.
	revision atomic.Uint64 // Revision of reader, 0 means no data.

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Stats counts publish outcomes since construction.
type Stats struct {
	Published uint64
	Dropped   uint64
}

// NewCache returns an empty cache with both slots pre-allocated.
func NewCache() *Cache {
	c := &Cache{}
	c.writer = &c.slots[0]
	c.reader = &c.slots[1]
	return c
}

// Publish copies f into the writer slot and tries to swap it in. It returns
// false when a reader holds the lock; the update is dropped and the writer
// slot is simply overwritten next time.
//
// Hot Path: called from the audio thread, never blocks or allocates.
func (c *Cache) Publish(f Frame) bool {
	c.seq++
	c.writer.fill(c.seq, f)

	if !c.mu.TryLock() {
		c.dropped.Add(1)
		return false
	}
	c.writer, c.reader = c.reader, c.writer
	c.mu.Unlock()

	c.revision.Store(c.seq)
	c.published.Add(1)
	return true
}

// Read copies the most recent complete snapshot into dst and returns its
// revision. It may block briefly against a swap in progress.
func (c *Cache) Read(dst *Snapshot) uint64 {
	c.mu.Lock()
	*dst = *c.reader
	c.mu.Unlock()
	return dst.Revision
}

// Revision reports the revision of the last successful publish without
// taking the lock. Zero means nothing has been published since Reset.
func (c *Cache) Revision() uint64 {
	return c.revision.Load()
}

// Reset marks the cache as empty. It must be called from the producer
// side, between Publish calls. Like Publish it never waits: if a reader
// holds the lock the stale reader slot survives until the next swap, but
// Revision reports zero either way.
func (c *Cache) Reset() {
	c.seq = 0
	c.revision.Store(0)
	if c.mu.TryLock() {
		*c.reader = Snapshot{}
		c.mu.Unlock()
	}
}

// Stats returns the publish counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Published: c.published.Load(),
		Dropped:   c.dropped.Load(),
	}
}
