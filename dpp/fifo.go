package dpp

import "errors"

// ErrFIFOFull and ErrFIFOEmpty are returned by FIFO.Write/Read when the
// ring buffer can't service the request. Per spec.md §4.8 a FIFO overflow
// on the per-sample path is a programming error, not a condition filters
// should see in normal operation.
var (
	ErrFIFOFull  = errors.New("dpp: fifo full")
	ErrFIFOEmpty = errors.New("dpp: fifo empty")
)

// FIFO is a fixed-capacity ring buffer of uint32 samples. Capacity is set
// at construction and never changes.
type FIFO struct {
	buf   []uint32
	head  int // next read position
	len   int // number of live elements
}

// NewFIFO constructs a FIFO with the given fixed capacity.
func NewFIFO(capacity int) *FIFO {
	if capacity <= 0 {
		panic("dpp: FIFO capacity must be positive")
	}
	return &FIFO{buf: make([]uint32, capacity)}
}

// Cap returns the FIFO's fixed capacity.
func (f *FIFO) Cap() int { return len(f.buf) }

// Len returns the number of live elements currently queued.
func (f *FIFO) Len() int { return f.len }

// Full reports whether the FIFO is at capacity.
func (f *FIFO) Full() bool { return f.len == len(f.buf) }

// Empty reports whether the FIFO holds no elements.
func (f *FIFO) Empty() bool { return f.len == 0 }

// Write enqueues v. Returns ErrFIFOFull if the FIFO is already at capacity.
func (f *FIFO) Write(v uint32) error {
	if f.Full() {
		return ErrFIFOFull
	}
	tail := (f.head + f.len) % len(f.buf)
	f.buf[tail] = v
	f.len++
	return nil
}

// Read dequeues and returns the oldest element. Returns ErrFIFOEmpty if
// the FIFO holds nothing.
func (f *FIFO) Read() (uint32, error) {
	if f.Empty() {
		return 0, ErrFIFOEmpty
	}
	v := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.len--
	return v, nil
}

// PeekBack returns the element `index` slots back from the most recently
// written one (0 = most recent). Returns ErrFIFOEmpty if index is out of
// range of the currently live elements.
func (f *FIFO) PeekBack(index int) (uint32, error) {
	if index < 0 || index >= f.len {
		return 0, ErrFIFOEmpty
	}
	pos := (f.head + f.len - 1 - index) % len(f.buf)
	return f.buf[pos], nil
}

// Destroy releases the FIFO's backing storage. Safe to call once; the
// FIFO must not be used afterward.
func (f *FIFO) Destroy() {
	f.buf = nil
	f.head, f.len = 0, 0
}
