// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"fmt"
	"sync"
)

// Buffer is a size-bounded FIFO queue of encoded frames waiting for the
// bus. When a Push would exceed the byte limit, the oldest entries are
// dropped until the new entry fits: a stalled bus costs old signal
// values, never unbounded memory.
//
// The notify channel (capacity 1) wakes the shipper when new data is
// available.
//
// Thread-safe: all methods may be called concurrently.
type Buffer struct {
	mu        sync.Mutex
	entries   []Entry
	totalSize int
	maxSize   int
	dropped   uint64
	notify    chan struct{}
}

// Entry is one encoded frame and the subject it ships on.
type Entry struct {
	Subject string
	Data    []byte
}

// NewBuffer creates a Buffer with the given maximum byte capacity.
// The maxSize must be positive.
func NewBuffer(maxSize int) *Buffer {
	if maxSize <= 0 {
		panic(fmt.Sprintf("publisher: buffer maxSize must be positive, got %d", maxSize))
	}
	return &Buffer{
		maxSize: maxSize,
		notify:  make(chan struct{}, 1),
	}
}

// Push appends an entry and returns how many older entries it evicted.
// An entry larger than the whole buffer is rejected.
func (b *Buffer) Push(entry Entry) (int, error) {
	size := len(entry.Data)
	if size > b.maxSize {
		return 0, fmt.Errorf("publisher: frame size %d exceeds buffer size %d", size, b.maxSize)
	}
	if size == 0 {
		return 0, fmt.Errorf("publisher: refusing to buffer empty frame")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for b.totalSize+size > b.maxSize && len(b.entries) > 0 {
		b.popLocked()
		b.dropped++
		evicted++
	}

	b.entries = append(b.entries, entry)
	b.totalSize += size

	select {
	case b.notify <- struct{}{}:
	default:
	}

	return evicted, nil
}

// Peek returns the oldest entry without removing it.
func (b *Buffer) Peek() (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[0], true
}

// Pop removes the oldest entry. No-op if the buffer is empty.
func (b *Buffer) Pop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) > 0 {
		b.popLocked()
	}
}

func (b *Buffer) popLocked() {
	evicted := b.entries[0]
	b.entries[0] = Entry{} // release data for GC
	b.entries = b.entries[1:]
	b.totalSize -= len(evicted.Data)
}

// Len returns the number of entries in the buffer.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// SizeBytes returns the total byte size of all entries in the buffer.
func (b *Buffer) SizeBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSize
}

// Dropped returns the number of entries evicted by overflow since
// creation.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Notify returns a channel that receives a signal (at most once per
// Push) when new data is available.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}
