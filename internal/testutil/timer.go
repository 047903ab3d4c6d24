// Package testutil provides helpers shared by tests, such as an instant
// timer that records requested waits.
package testutil

import (
	"sync"
	"time"
)

// FakeTimer fires immediately and remembers every duration it was started
// with. It satisfies backoff.Timer.
type FakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

// Start records d and makes C ready to receive.
func (f *FakeTimer) Start(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

// Stop is a no-op.
func (f *FakeTimer) Stop() {}

// C returns the channel armed by the last Start.
func (f *FakeTimer) C() <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.c
}

// Waits returns a copy of the recorded durations.
func (f *FakeTimer) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}
