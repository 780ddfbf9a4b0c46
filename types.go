// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

// Producer is the enqueue-side interface of an MPSC queue, safe for any
// number of goroutines.
//
// TryEnqueue retries lost CAS arbitration internally (lock-free);
// WeakEnqueue surfaces it as ErrContended and never retries (wait-free).
// Both report a full queue as ErrWouldBlock. The queue takes ownership of
// the pointed-to value on success.
type Producer[T any] interface {
	// TryEnqueue adds an element (non-blocking, internal CAS retry).
	// Returns nil on success, ErrWouldBlock if the queue is full.
	TryEnqueue(elem *T) error

	// WeakEnqueue adds an element with a single CAS attempt (wait-free).
	// Returns nil, ErrWouldBlock (full), or ErrContended (lost CAS —
	// the caller owns the retry policy).
	WeakEnqueue(elem *T) error
}

// Consumer is the dequeue-side interface of an MPSC queue, restricted to
// exactly one goroutine at a time.
//
// Calling any Consumer method from two goroutines concurrently is
// undefined behavior by contract; it is not detected at runtime, because
// detection would cost the hot path.
type Consumer[T any] interface {
	// TryDequeue removes and returns the head element (non-blocking).
	// Returns (nil, ErrWouldBlock) if the queue is empty.
	TryDequeue() (*T, error)

	// TryPeek returns the head element without removing it.
	// Returns (nil, ErrWouldBlock) if the queue is empty.
	TryPeek() (*T, error)

	// Drain dequeues up to limit elements, invoking fn for each on the
	// calling goroutine. Returns the number processed.
	Drain(fn func(*T), limit int) int
}

// Queue is the combined interface consumed by event-executor layers: N
// producer goroutines hand work in through Producer, the owning event-loop
// goroutine takes it out through Consumer.
//
// Count is a racy over-estimate and IsEmpty a point-in-time observation;
// both are safe from any goroutine.
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
	Count() int
	IsEmpty() bool
	Cap() int
}
