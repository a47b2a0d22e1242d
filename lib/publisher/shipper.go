// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/clock"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
)

// Shipper delivers one encoded frame to the bus. Tests substitute a
// fake; production uses the NATS shipper.
type Shipper interface {
	Ship(ctx context.Context, entry Entry) error
	Close() error
}

// Backoff bounds for the ship retry loop. Doubles on each consecutive
// failure, resets on success.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// drainTimeout bounds the final best-effort pass after shutdown.
const drainTimeout = 5 * time.Second

// shipLoop moves frames from the buffer to the bus in FIFO order. A
// pinned entry ships before anything in the buffer and is never
// evicted.
type shipLoop struct {
	buffer  *Buffer
	shipper Shipper
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	shipped atomic.Uint64
	pinned  atomic.Pointer[Entry]
}

// pin sets the entry that ships ahead of the buffer.
func (l *shipLoop) pin(entry Entry) {
	l.pinned.Store(&entry)
}

// pending counts frames not yet shipped, the pinned entry included.
func (l *shipLoop) pending() int {
	count := l.buffer.Len()
	if l.pinned.Load() != nil {
		count++
	}
	return count
}

// next returns the pinned entry while it is unshipped, then the oldest
// buffered entry.
func (l *shipLoop) next() (Entry, bool) {
	if entry := l.pinned.Load(); entry != nil {
		return *entry, true
	}
	return l.buffer.Peek()
}

// run drains the buffer until ctx is cancelled. The oldest entry is
// peeked, shipped, and popped only on success, so a failing bus never
// reorders frames. Failures back off exponentially (1s, 2s, 4s, ...
// capped at 30s). On cancellation it makes one drain pass.
func (l *shipLoop) run(ctx context.Context) {
	backoff := initialBackoff

	for {
		for {
			entry, ok := l.next()
			if !ok {
				break
			}

			if err := l.shipper.Ship(ctx, entry); err != nil {
				if ctx.Err() != nil {
					l.drain()
					return
				}
				l.metrics.ShipFailed()
				l.logger.Warn("frame ship failed, will retry",
					"error", err,
					"subject", entry.Subject,
					"backoff", backoff,
					"buffer_entries", l.buffer.Len(),
				)
				select {
				case <-l.clock.After(backoff):
				case <-ctx.Done():
					l.drain()
					return
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}

			l.pop()
			backoff = initialBackoff
		}

		select {
		case <-l.buffer.Notify():
		case <-ctx.Done():
			l.drain()
			return
		}
	}
}

// drain makes one best-effort pass through the buffer after shutdown.
// The first failure abandons everything left.
func (l *shipLoop) drain() {
	drainContext, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		entry, ok := l.next()
		if !ok {
			return
		}
		if err := l.shipper.Ship(drainContext, entry); err != nil {
			remaining := l.pending()
			l.metrics.ShipFailed()
			l.metrics.Abandoned(remaining)
			l.logger.Warn("drain: frame ship failed, abandoning remaining",
				"error", err,
				"remaining", remaining,
			)
			return
		}
		l.pop()
	}
}

// pop removes the entry next returned after it shipped.
func (l *shipLoop) pop() {
	if l.pinned.Swap(nil) == nil {
		l.buffer.Pop()
		l.metrics.Buffered(l.buffer.SizeBytes())
	}
	l.shipped.Add(1)
	l.metrics.Shipped()
}
