// Package ratelimit implements the per-identity sliding window that bounds how
// many requests an identity may submit per window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits or rejects a request for an identity at time now.
// A rejection leaves no trace in the limiter's state.
type Limiter interface {
	Admit(ctx context.Context, key string, now time.Time) (bool, error)
}

// Window is an in-process sliding window limiter.
type Window struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	queues map[string]*ring
}

// NewWindow allows at most limit admissions per identity within window.
func NewWindow(limit int, window time.Duration) *Window {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Window{
		limit:  limit,
		window: window,
		queues: make(map[string]*ring),
	}
}

// Admit implements Limiter.
func (w *Window) Admit(_ context.Context, key string, now time.Time) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, ok := w.queues[key]
	if !ok {
		q = newRing(w.limit)
		w.queues[key] = q
	}
	q.evictBefore(now.Add(-w.window))
	if q.len() >= w.limit {
		return false, nil
	}
	q.push(now)
	return true, nil
}

// Sweep forgets identities whose queues hold nothing inside the window and
// returns how many were dropped.
func (w *Window) Sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	dropped := 0
	for key, q := range w.queues {
		q.evictBefore(cutoff)
		if q.len() == 0 {
			delete(w.queues, key)
			dropped++
		}
	}
	return dropped
}

// Tracked reports how many identities currently have queues.
func (w *Window) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queues)
}

// ring is a fixed-capacity FIFO of timestamps.
type ring struct {
	buf   []time.Time
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]time.Time, capacity)}
}

func (r *ring) len() int { return r.count }

func (r *ring) push(t time.Time) {
	r.buf[(r.head+r.count)%len(r.buf)] = t
	r.count++
}

// evictBefore drops entries older than cutoff from the front.
func (r *ring) evictBefore(cutoff time.Time) {
	for r.count > 0 && r.buf[r.head].Before(cutoff) {
		r.buf[r.head] = time.Time{}
		r.head = (r.head + 1) % len(r.buf)
		r.count--
	}
}
