package writer

import "sync"

// Buffer is a bounded FIFO queue that starts small and doubles its backing
// ring once it is 70% full, up to a hard limit. Pushes beyond the limit are
// refused so producers never block.
type Buffer[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // read position
	tail  int // write position
	count int
	limit int

	closed  bool
	pushed  int64
	dropped int64
	resizes int
}

// BufferStats is a snapshot of a Buffer's counters.
type BufferStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Dropped  int64
	Resizes  int
}

// NewBuffer creates a buffer with the given initial capacity that never
// holds more than limit items. limit <= 0 means no limit.
func NewBuffer[T any](initial, limit int) *Buffer[T] {
	if initial < 1 {
		initial = 1
	}
	if limit > 0 && initial > limit {
		initial = limit
	}
	return &Buffer[T]{buf: make([]T, initial), limit: limit}
}

// Push adds items in order. It returns how many were accepted; the rest
// were dropped because the buffer is full or closed.
func (b *Buffer[T]) Push(items ...T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.dropped += int64(len(items))
		return 0
	}

	accepted := 0
	for _, item := range items {
		if b.limit > 0 && b.count >= b.limit {
			break
		}
		if b.count+1 >= max(1, len(b.buf)*70/100) {
			b.grow()
		}
		b.buf[b.tail] = item
		b.tail = (b.tail + 1) % len(b.buf)
		b.count++
		accepted++
	}
	b.pushed += int64(accepted)
	b.dropped += int64(len(items) - accepted)
	return accepted
}

// Drain removes up to n items from the head, or all of them when n <= 0.
func (b *Buffer[T]) Drain(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n <= 0 || n > b.count {
		n = b.count
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		out[i] = b.buf[b.head]
		b.buf[b.head] = zero
		b.head = (b.head + 1) % len(b.buf)
	}
	b.count -= n
	return out
}

// Close refuses further pushes. Items already queued can still be drained.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Len:      b.count,
		Capacity: len(b.buf),
		Pushed:   b.pushed,
		Dropped:  b.dropped,
		Resizes:  b.resizes,
	}
}

// grow doubles the ring, capped at the limit. Must be called with lock held.
func (b *Buffer[T]) grow() {
	size := len(b.buf) * 2
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	if size <= len(b.buf) {
		return
	}

	next := make([]T, size)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.buf[b.head:b.tail])
		} else {
			n := copy(next, b.buf[b.head:])
			copy(next[n:], b.buf[:b.tail])
		}
	}

	b.buf = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
