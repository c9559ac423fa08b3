package history

import "sync"

// DefaultCapacity is the number of points kept for display.
const DefaultCapacity = 100

// Buffer is a thread-safe bounded ring buffer.
type Buffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // oldest item
	count    int
	capacity int

	// Stats
	totalAppended int64
	totalEvicted  int64
	resetCount    int
}

// Stats contains buffer statistics.
type Stats struct {
	Count         int
	Capacity      int
	TotalAppended int64
	TotalEvicted  int64
	ResetCount    int
}

// New creates a buffer holding at most capacity items.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an item, evicting the oldest one when full.
func (b *Buffer[T]) Append(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.append(item)
}

// AppendAll appends items in order. Only the last Cap() survive if
// len(items) exceeds the capacity.
func (b *Buffer[T]) AppendAll(items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range items {
		b.append(item)
	}
}

// append must be called with lock held.
func (b *Buffer[T]) append(item T) {
	tail := (b.head + b.count) % b.capacity
	b.buf[tail] = item
	b.totalAppended++

	if b.count < b.capacity {
		b.count++
		return
	}

	// Overwrote the oldest slot.
	b.head = (b.head + 1) % b.capacity
	b.totalEvicted++
}

// Reset clears the buffer.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.buf {
		b.buf[i] = zero // Clear references for GC
	}
	b.head = 0
	b.count = 0
	b.resetCount++
}

// Snapshot returns a copy of the items, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.count)
	if b.count == 0 {
		return out
	}

	end := b.head + b.count
	if end <= b.capacity {
		copy(out, b.buf[b.head:end])
	} else {
		n := copy(out, b.buf[b.head:])
		copy(out[n:], b.buf[:end-b.capacity])
	}
	return out
}

// Tail returns up to n of the most recent items, oldest first.
// n <= 0 returns everything.
func (b *Buffer[T]) Tail(n int) []T {
	all := b.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Last returns the most recent item.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.buf[(b.head+b.count-1)%b.capacity], true
}

// Len returns the current number of items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalAppended: b.totalAppended,
		TotalEvicted:  b.totalEvicted,
		ResetCount:    b.resetCount,
	}
}
