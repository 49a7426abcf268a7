// Package ring provides a fixed-capacity FIFO that evicts its oldest entry
// on overflow. Not safe for concurrent use.
package ring

type Buffer[T any] struct {
	buf   []T
	head  int // next write position
	count int
}

// New returns a buffer holding at most capacity items. A capacity below one
// is raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest item when full. It reports whether an
// item was evicted.
func (b *Buffer[T]) Push(v T) bool {
	b.buf[b.head] = v
	b.head = (b.head + 1) % len(b.buf)
	if b.count == len(b.buf) {
		return true
	}
	b.count++
	return false
}

// Last returns a pointer to the most recently pushed item so it can be
// mutated in place, or nil when empty.
func (b *Buffer[T]) Last() *T {
	if b.count == 0 {
		return nil
	}
	return &b.buf[(b.head-1+len(b.buf))%len(b.buf)]
}

// Items returns a copy of the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.count)
	start := (b.head - b.count + len(b.buf)) % len(b.buf)
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(start+i)%len(b.buf)]
	}
	return out
}

