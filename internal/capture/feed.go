package capture

import (
	"context"
	"sync"
)

// Feed is a single-value, latest-wins stream of observations. Publishing
// while an observation is pending replaces it; intermediate values a slow
// consumer never saw are legitimately discarded. It is not a queue.
type Feed struct {
	mu     sync.Mutex
	ch     chan State
	latest *State
	done   chan struct{}
	closed bool
}

func NewFeed() *Feed {
	return &Feed{
		ch:   make(chan State, 1),
		done: make(chan struct{}),
	}
}

// Publish replaces any pending observation with the given one. Publishing to
// a closed feed is a no-op.
func (f *Feed) Publish(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.latest = &s
	select {
	case <-f.ch:
	default:
	}
	f.ch <- s
}

// Latest returns the most recently published observation without consuming a
// pending one. Used to re-sample after a settle window.
func (f *Feed) Latest() (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return State{}, false
	}
	return *f.latest, true
}

// Next blocks until a new observation arrives, the feed closes, or the
// context is done. The second return is false only when no observation will
// ever arrive again.
func (f *Feed) Next(ctx context.Context) (State, bool) {
	select {
	case s := <-f.ch:
		return s, true
	case <-f.done:
	case <-ctx.Done():
		return State{}, false
	}
	// Drain an observation that raced with Close.
	select {
	case s := <-f.ch:
		return s, true
	default:
		return State{}, false
	}
}

// Close ends the stream. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}
