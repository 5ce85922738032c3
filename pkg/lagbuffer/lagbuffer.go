// Package lagbuffer delays application of remote-originated events by a
// fixed window to mask delivery jitter. It is a client-side component:
// opponent state updates, attack animations, and projectile visuals go
// through it, while a client's own authoritative corrections, latency pongs,
// and room metadata must bypass it and apply immediately.
package lagbuffer

import (
	"sync"
	"time"
)

// DefaultDelay is the standard buffer window.
const DefaultDelay = 100 * time.Millisecond

type item struct {
	due time.Time
	fn  func()
}

// Buffer schedules functions to run delay after they were handed in. Items
// apply strictly in arrival order: each is due arrival+delay, and a single
// dispatcher drains them front to back. A zero delay applies synchronously.
type Buffer struct {
	delay time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []item
	closed bool
}

func New(delay time.Duration) *Buffer {
	b := &Buffer{delay: delay}
	b.cond = sync.NewCond(&b.mu)
	if delay > 0 {
		go b.run()
	}
	return b
}

// Apply schedules fn for arrival+delay, or runs it immediately when the
// buffer is unbuffered. Apply after Close is a no-op.
func (b *Buffer) Apply(fn func()) {
	if b.delay <= 0 {
		fn()
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, item{due: time.Now().Add(b.delay), fn: fn})
	b.cond.Signal()
	b.mu.Unlock()
}

// CancelAll drops every pending application. Items that already fired are
// unaffected; cancelling an empty buffer is fine. Round resets use this to
// flush stale opponent visuals.
func (b *Buffer) CancelAll() {
	b.mu.Lock()
	b.queue = nil
	b.mu.Unlock()
}

// Pending reports how many applications are still waiting.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close cancels pending items and stops the dispatcher.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.cond.Signal()
	b.mu.Unlock()
}

func (b *Buffer) run() {
	b.mu.Lock()
	for {
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			b.mu.Unlock()
			return
		}

		next := b.queue[0]
		if wait := time.Until(next.due); wait > 0 {
			// Sleep without the lock, then re-evaluate: the queue may have
			// been cancelled or closed in the meantime.
			b.mu.Unlock()
			time.Sleep(wait)
			b.mu.Lock()
			continue
		}

		b.queue = b.queue[1:]
		b.mu.Unlock()
		next.fn()
		b.mu.Lock()
	}
}
