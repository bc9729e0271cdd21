package telemetry

// Ring is a bounded history that drops its oldest entry once full.
type Ring[T any] struct {
	buf  []T
	idx  int
	full bool
}

// NewRing creates a ring holding at most size entries (minimum 1).
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{buf: make([]T, size)}
}

// Push appends v, evicting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.idx] = v
	r.idx = (r.idx + 1) % len(r.buf)
	if r.idx == 0 {
		r.full = true
	}
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.idx
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Items returns the entries oldest first in a new slice.
func (r *Ring[T]) Items() []T {
	if !r.full {
		out := make([]T, r.idx)
		copy(out, r.buf[:r.idx])
		return out
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.idx:]...)
	return append(out, r.buf[:r.idx]...)
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.Len() == 0 {
		return zero, false
	}
	i := r.idx - 1
	if i < 0 {
		i = len(r.buf) - 1
	}
	return r.buf[i], true
}

// Reset empties the ring, keeping its capacity.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.idx = 0
	r.full = false
}

// Load replaces the contents with items, keeping the newest that fit.
func (r *Ring[T]) Load(items []T) {
	r.Reset()
	if len(items) > len(r.buf) {
		items = items[len(items)-len(r.buf):]
	}
	for _, v := range items {
		r.Push(v)
	}
}
