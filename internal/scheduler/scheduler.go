// SPDX-License-Identifier: MIT

// Package scheduler drives low-priority observers (scope, UDP, WebSocket)
// from a single ticker goroutine. Observers register and unregister at any
// time; nothing here ever runs on the audio thread.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	applog "olafx/internal/log"
)

// DefaultInterval is used when New is given a non-positive interval (~60Hz).
const DefaultInterval = 16 * time.Millisecond

// Client is called once per tick. Tick must return promptly; a slow client
// delays every other client on the same scheduler. Clients are compared
// with ==, so implementations should be pointers.
type Client interface {
	Tick(now time.Time)
}

type Scheduler struct {
	interval time.Duration

	clientsMu sync.Mutex
	clients   []Client

	mu     sync.Mutex // Protects cancel during Start/Stop.
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticks  uint64
}

// New creates a stopped scheduler.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		applog.Warnf("Scheduler: Invalid interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Register adds c to the tick fan-out. Registering the same client twice
// is a no-op.
func (s *Scheduler) Register(c Client) {
	if c == nil {
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if slices.Contains(s.clients, c) {
		return
	}
	s.clients = append(s.clients, c)
}

// Unregister removes c. It is safe to call from inside Tick.
func (s *Scheduler) Unregister(c Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if i := slices.Index(s.clients, c); i >= 0 {
		s.clients = slices.Delete(slices.Clone(s.clients), i, i+1)
	}
}

// Len returns the number of registered clients.
func (s *Scheduler) Len() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Start launches the ticker goroutine. It runs until ctx is cancelled or
// Stop is called. Starting a running scheduler returns an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler: already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		applog.Debugf("Scheduler: Started (Interval: %s)", s.interval)
		for {
			select {
			case now := <-ticker.C:
				s.tick(now)
			case <-ctx.Done():
				applog.Debugf("Scheduler: Stopped after %d ticks", s.ticks)
				return
			}
		}
	}()
	return nil
}

// tick fans one tick out to a snapshot of the client list, so clients may
// register or unregister while being called.
func (s *Scheduler) tick(now time.Time) {
	s.clientsMu.Lock()
	clients := s.clients
	s.clientsMu.Unlock()

	s.ticks++
	for _, c := range clients {
		c.Tick(now)
	}
}

// Stop cancels the ticker goroutine and waits for it to exit. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Close implements io.Closer.
func (s *Scheduler) Close() error {
	s.Stop()
	return nil
}
