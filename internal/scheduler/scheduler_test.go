// SPDX-License-Identifier: MIT
package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type counter struct {
	n atomic.Int64
}

func (c *counter) Tick(time.Time) { c.n.Add(1) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	if got := New(0).Interval(); got != DefaultInterval {
		t.Errorf("Interval() = %s, want %s", got, DefaultInterval)
	}
	if got := New(5 * time.Millisecond).Interval(); got != 5*time.Millisecond {
		t.Errorf("Interval() = %s, want 5ms", got)
	}
}

func TestRegisterUnregister(t *testing.T) {
	s := New(time.Millisecond)
	a, b := &counter{}, &counter{}

	s.Register(a)
	s.Register(a)
	s.Register(b)
	s.Register(nil)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	s.Unregister(a)
	s.Unregister(a)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestTicksReachClients(t *testing.T) {
	s := New(time.Millisecond)
	a, b := &counter{}, &counter{}
	s.Register(a)
	s.Register(b)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return a.n.Load() >= 3 && b.n.Load() >= 3 })

	s.Unregister(a)
	// One tick may already be in flight when Unregister returns.
	time.Sleep(5 * time.Millisecond)
	before := a.n.Load()
	time.Sleep(10 * time.Millisecond)
	if after := a.n.Load(); after != before {
		t.Errorf("unregistered client ticked %d more times", after-before)
	}
}

func TestStartTwiceFails(t *testing.T) {
	s := New(time.Millisecond)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(time.Millisecond)
	s.Stop()

	c := &counter{}
	s.Register(c)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.n.Load() > 0 })
	s.Stop()
	s.Stop()

	n := c.n.Load()
	time.Sleep(10 * time.Millisecond)
	if c.n.Load() != n {
		t.Error("client ticked after Stop returned")
	}

	// A stopped scheduler can be started again.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s.Stop()
}

func TestContextCancelStopsTicks(t *testing.T) {
	s := New(time.Millisecond)
	c := &counter{}
	s.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.n.Load() > 0 })
	cancel()
	s.Stop()

	n := c.n.Load()
	time.Sleep(10 * time.Millisecond)
	if c.n.Load() != n {
		t.Error("client ticked after context cancel")
	}
}

type selfRemover struct {
	s *Scheduler
	n atomic.Int64
}

func (r *selfRemover) Tick(time.Time) {
	r.n.Add(1)
	r.s.Unregister(r)
}

func TestUnregisterFromTick(t *testing.T) {
	s := New(time.Millisecond)
	r := &selfRemover{s: s}
	s.Register(r)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return s.Len() == 0 })
	time.Sleep(5 * time.Millisecond)
	if got := r.n.Load(); got != 1 {
		t.Errorf("self-removing client ticked %d times, want 1", got)
	}
}
