// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logship

import (
	"context"
	"sync"
	"time"
)

// Retention selects which failed entries a [RetryPolicy] keeps.
type Retention string

const (
	// RetainNewest keeps the most recent failed entries.
	RetainNewest Retention = "newest"
	// RetainOldest keeps the oldest failed entries.
	RetainOldest Retention = "oldest"
)

// RetryPolicy controls what happens to a batch whose send failed.
// Up to MaxEntries entries are put back at the head of the queue for a
// single further attempt; everything else in the batch is dropped.
// Entries that already had their retry are never requeued. MaxEntries
// below one disables retries.
type RetryPolicy struct {
	MaxEntries int       `config:"maxEntries"`
	Keep       Retention `config:"keep" validate:"omitempty,oneof=newest oldest"`
}

// SendFunc delivers one batch. It is never called concurrently with itself
// for the same [Batcher], and batches are passed in enqueue order.
type SendFunc[T any] func(ctx context.Context, batch []T) error

// BatchOptions configures a [Batcher].
type BatchOptions struct {
	// Size is the number of queued items that triggers an immediate flush.
	Size int
	// Interval is the timer flush period; zero disables the timer.
	Interval time.Duration
	// HighWater bounds the number of unsent items; zero means unbounded.
	// When exceeded, the oldest items are dropped.
	HighWater int
	// SendTimeout bounds each send; zero means no deadline.
	SendTimeout time.Duration
	Retry       RetryPolicy

	// OnDrop is called with the number of items lost and the cause
	// (ErrQueueOverflow or the send error).
	OnDrop func(n int, err error)
	// OnFlush is called after every send attempt.
	OnFlush func(n int, err error)
	// OnQueue is called with the number of unsent items after it changes.
	OnQueue func(n int)
}

type pending[T any] struct {
	item    T
	retried bool
}

// Batcher accumulates items and sends them in batches, either when Size
// items are queued or when the Interval timer fires, whichever comes first.
//
// Enqueue never blocks on the network: batches are sealed under a short
// lock and delivered by a background goroutine, one at a time and in
// order. Items enqueued while a send is in flight accumulate into a fresh
// buffer. Close stops the timer and performs a final flush.
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type Batcher[T any] struct {
	opts BatchOptions
	send SendFunc[T]

	mu     sync.Mutex
	queue  []pending[T]   // open buffer
	ready  [][]pending[T] // sealed batches awaiting send, oldest first
	closed bool

	sendMu sync.Mutex // serializes delivery

	ticker   *time.Ticker
	kick     chan struct{}
	done     chan struct{}
	loopDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewBatcher starts a Batcher delivering through send.
//
// Parameters:
//   - send: Delivers one sealed batch; called from a single goroutine
//   - opts: Size and Interval triggers, queue bound, retry and callbacks
//
// A Size below 1 is treated as 1, so every item is sent on its own.
//
// Choosing Size and Interval:
//   - Small sizes send promptly but cost one request per few events
//   - A zero Interval leaves partial batches queued until Flush or Close
//   - Typical beacon settings: 10-100 items, 1-10 seconds
//
// Example:
//
//	b := logship.NewBatcher(func(ctx context.Context, batch []logship.Event) error {
//	    return post(ctx, batch)
//	}, logship.BatchOptions{Size: 20, Interval: 5 * time.Second})
//	defer b.Close(context.Background())
//
//	b.Enqueue(logship.Event{Level: logship.LevelInfo, Message: "queued"})
func NewBatcher[T any](send SendFunc[T], opts BatchOptions) *Batcher[T] {
	if opts.Size < 1 {
		opts.Size = 1
	}
	if opts.Retry.Keep == "" {
		opts.Retry.Keep = RetainNewest
	}
	b := &Batcher[T]{
		opts:     opts,
		send:     send,
		queue:    make([]pending[T], 0, opts.Size),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	if opts.Interval > 0 {
		b.ticker = time.NewTicker(opts.Interval)
	}

	go b.flusher()
	return b
}

// flusher runs in a goroutine and delivers sealed batches and timer flushes.
func (b *Batcher[T]) flusher() {
	defer close(b.loopDone)

	var tick <-chan time.Time
	if b.ticker != nil {
		tick = b.ticker.C
	}
	for {
		select {
		case <-tick:
			_ = b.Flush(context.Background())
		case <-b.kick:
			_ = b.drain(context.Background())
		case <-b.done:
			return
		}
	}
}

// Enqueue appends item to the tail of the queue. Reaching Size seals the
// current buffer and schedules its send without waiting for the timer.
// It returns ErrSinkClosed after Close.
func (b *Batcher[T]) Enqueue(item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrSinkClosed
	}
	b.queue = append(b.queue, pending[T]{item: item})
	dropped := b.trimLocked()
	sealed := false
	if len(b.queue) >= b.opts.Size {
		b.sealLocked()
		sealed = true
	}
	n := b.lenLocked()
	b.mu.Unlock()

	if dropped > 0 && b.opts.OnDrop != nil {
		b.opts.OnDrop(dropped, ErrQueueOverflow)
	}
	if b.opts.OnQueue != nil {
		b.opts.OnQueue(n)
	}
	if sealed {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush takes everything currently queued and sends it, then returns the
// first send error, if any. Items enqueued during the send are kept for a
// later flush.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	b.sealLocked()
	b.mu.Unlock()
	return b.drain(ctx)
}

// Close stops the timer, waits for an in-flight send, and flushes what is
// left. Entries requeued by a failed final flush get their single retry
// before Close returns; anything still unsent afterwards is dropped.
// Close is idempotent and returns the same result on every call.
func (b *Batcher[T]) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		if b.ticker != nil {
			b.ticker.Stop()
		}
		close(b.done)
		<-b.loopDone

		b.closeErr = b.Flush(ctx)
		if b.Len() > 0 {
			b.closeErr = b.Flush(ctx)
		}

		b.mu.Lock()
		left := b.lenLocked()
		b.queue, b.ready = nil, nil
		b.mu.Unlock()
		if left > 0 && b.opts.OnDrop != nil {
			b.opts.OnDrop(left, ErrSinkClosed)
		}
		if b.opts.OnQueue != nil {
			b.opts.OnQueue(0)
		}
	})
	return b.closeErr
}

// Len returns the number of items not yet handed to the send function.
func (b *Batcher[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenLocked()
}

// drain sends sealed batches in order until none are left.
func (b *Batcher[T]) drain(ctx context.Context) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	var first error
	for {
		b.mu.Lock()
		if len(b.ready) == 0 {
			b.mu.Unlock()
			return first
		}
		batch := b.ready[0]
		b.ready[0] = nil
		b.ready = b.ready[1:]
		b.mu.Unlock()

		if err := b.deliver(ctx, batch); err != nil && first == nil {
			first = err
		}
	}
}

// deliver performs one send attempt and applies the retry policy on failure.
func (b *Batcher[T]) deliver(ctx context.Context, batch []pending[T]) error {
	items := make([]T, len(batch))
	for i, p := range batch {
		items[i] = p.item
	}

	sendCtx := ctx
	if b.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, b.opts.SendTimeout)
		defer cancel()
	}

	err := b.send(sendCtx, items)
	if b.opts.OnFlush != nil {
		b.opts.OnFlush(len(items), err)
	}
	if err == nil {
		return nil
	}

	retry := b.selectRetry(batch)
	if len(retry) > 0 {
		b.mu.Lock()
		b.queue = append(retry, b.queue...)
		dropped := b.trimLocked()
		n := b.lenLocked()
		b.mu.Unlock()
		if dropped > 0 && b.opts.OnDrop != nil {
			b.opts.OnDrop(dropped, ErrQueueOverflow)
		}
		if b.opts.OnQueue != nil {
			b.opts.OnQueue(n)
		}
	}
	if lost := len(batch) - len(retry); lost > 0 && b.opts.OnDrop != nil {
		b.opts.OnDrop(lost, err)
	}
	return err
}

// selectRetry picks the entries of a failed batch that get one more attempt.
func (b *Batcher[T]) selectRetry(batch []pending[T]) []pending[T] {
	limit := b.opts.Retry.MaxEntries
	if limit <= 0 {
		return nil
	}
	eligible := make([]pending[T], 0, len(batch))
	for _, p := range batch {
		if !p.retried {
			p.retried = true
			eligible = append(eligible, p)
		}
	}
	if len(eligible) <= limit {
		return eligible
	}
	if b.opts.Retry.Keep == RetainOldest {
		return eligible[:limit]
	}
	return eligible[len(eligible)-limit:]
}

// sealLocked moves the open buffer to the ready list (must hold mu).
func (b *Batcher[T]) sealLocked() {
	if len(b.queue) == 0 {
		return
	}
	b.ready = append(b.ready, b.queue)
	b.queue = make([]pending[T], 0, b.opts.Size)
}

// trimLocked enforces HighWater by dropping the oldest unsent items
// (must hold mu). It returns the number dropped.
func (b *Batcher[T]) trimLocked() int {
	if b.opts.HighWater <= 0 {
		return 0
	}
	excess := b.lenLocked() - b.opts.HighWater
	dropped := 0
	for excess > 0 && len(b.ready) > 0 {
		head := b.ready[0]
		if len(head) <= excess {
			excess -= len(head)
			dropped += len(head)
			b.ready = b.ready[1:]
			continue
		}
		b.ready[0] = head[excess:]
		dropped += excess
		excess = 0
	}
	if excess > 0 {
		b.queue = append(b.queue[:0:0], b.queue[excess:]...)
		dropped += excess
	}
	return dropped
}

func (b *Batcher[T]) lenLocked() int {
	n := len(b.queue)
	for _, r := range b.ready {
		n += len(r)
	}
	return n
}
