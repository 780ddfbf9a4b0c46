// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSC is a CAS-based multi-producer single-consumer bounded queue.
//
// Producers arbitrate on a shared producer index with CAS; the winner then
// publishes its element into the claimed slot. The index may become visible
// to the consumer before the element does — the consumer absorbs that window
// by spinning on the slot (see TryDequeue). Forcing stronger publish
// ordering would put a second synchronizing write on every enqueue.
//
// Slots hold *T; nil marks an empty slot. The queue transfers pointer
// ownership: the producer must not touch the pointed-to value after a
// successful enqueue. For index/handle payloads, use MPSCIndirect.
//
// Memory: n slots, one pointer per slot
type MPSC[T any] struct {
	_              pad
	producer       atomix.Uint64 // Next index to claim (producers CAS)
	_              pad
	cachedConsumer atomix.Uint64 // Producer-side snapshot of consumer
	_              pad
	consumer       atomix.Uint64 // Next index to read (consumer writes)
	_              pad
	buffer         []atomic.Pointer[T]
	mask           uint64
	capacity       uint64
}

// NewMPSC creates a new CAS-based MPSC queue.
// Capacity rounds up to the next power of 2.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 2 {
		panic("evq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	return &MPSC[T]{
		buffer:   make([]atomic.Pointer[T], n),
		mask:     n - 1,
		capacity: n,
	}
}

// admit reports whether producer index p has a free slot. The authoritative
// consumer index is re-read only when the cached snapshot suggests the queue
// may be full, keeping producers off the consumer's cache line on the
// common path.
//
// The occupancy subtraction is compared signed: a stale p — the loading
// producer stalled while others advanced the indices past it — makes p-c
// negative, which must admit. The stale index then loses the CAS and the
// caller retries fresh; an unsigned compare would misreport a non-full
// (even empty) queue as full.
func (q *MPSC[T]) admit(p uint64) bool {
	if int64(p-q.cachedConsumer.LoadAcquire()) < int64(q.capacity) {
		return true
	}
	c := q.consumer.LoadAcquire()
	if int64(p-c) >= int64(q.capacity) {
		return false
	}
	q.cachedConsumer.StoreRelease(c)
	return true
}

// TryEnqueue adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full. Lock-free: the CAS is
// retried internally when another producer wins the slot.
func (q *MPSC[T]) TryEnqueue(elem *T) error {
	if elem == nil {
		panic("evq: nil element")
	}

	sw := spin.Wait{}
	for {
		p := q.producer.LoadAcquire()
		if !q.admit(p) {
			return ErrWouldBlock
		}
		if q.producer.CompareAndSwapAcqRel(p, p+1) {
			q.buffer[p&q.mask].Store(elem)
			return nil
		}
		sw.Once()
	}
}

// WeakEnqueue attempts the producer CAS exactly once (wait-free).
// Returns nil on success, ErrWouldBlock if the queue is full, or
// ErrContended if another producer won the slot. The caller owns the
// retry policy; use TryEnqueue when internal retry is acceptable.
func (q *MPSC[T]) WeakEnqueue(elem *T) error {
	if elem == nil {
		panic("evq: nil element")
	}

	p := q.producer.LoadAcquire()
	if !q.admit(p) {
		return ErrWouldBlock
	}
	if !q.producer.CompareAndSwapAcqRel(p, p+1) {
		return ErrContended
	}
	q.buffer[p&q.mask].Store(elem)
	return nil
}

// TryDequeue removes and returns an element (single consumer only).
// Returns (nil, ErrWouldBlock) if the queue is empty.
//
// An empty slot below the producer index means a producer claimed the
// index but has not yet published its element. The element is in flight,
// so the consumer must spin on the slot rather than report empty or skip;
// the wait is bounded by that producer's own progress.
func (q *MPSC[T]) TryDequeue() (*T, error) {
	c := q.consumer.LoadRelaxed()
	slot := &q.buffer[c&q.mask]

	elem := slot.Load()
	if elem == nil {
		if c == q.producer.LoadAcquire() {
			return nil, ErrWouldBlock
		}
		elem = awaitPublish(slot)
	}

	// Clearing the slot both releases the reference and signals slot
	// availability for the next wrap-around through this index.
	slot.Store(nil)
	q.consumer.StoreRelease(c + 1)

	return elem, nil
}

// TryPeek returns the head element without removing it (single consumer
// only). Returns (nil, ErrWouldBlock) if the queue is empty. Spins on a
// claimed-but-unpublished slot like TryDequeue.
func (q *MPSC[T]) TryPeek() (*T, error) {
	c := q.consumer.LoadRelaxed()
	slot := &q.buffer[c&q.mask]

	elem := slot.Load()
	if elem == nil {
		if c == q.producer.LoadAcquire() {
			return nil, ErrWouldBlock
		}
		elem = awaitPublish(slot)
	}

	return elem, nil
}

// awaitPublish spins until the in-flight producer publishes its element.
func awaitPublish[T any](slot *atomic.Pointer[T]) *T {
	sw := spin.Wait{}
	for {
		if elem := slot.Load(); elem != nil {
			return elem
		}
		sw.Once()
	}
}

// Drain dequeues up to limit elements, handing each to fn on the calling
// goroutine (single consumer only). Returns the number of elements
// processed; stops early when the queue reports empty. Panics from fn
// propagate to the caller.
func (q *MPSC[T]) Drain(fn func(*T), limit int) int {
	if fn == nil {
		panic("evq: nil drain func")
	}
	if limit < 0 {
		panic("evq: negative drain limit")
	}

	for i := range limit {
		elem, err := q.TryDequeue()
		if err != nil {
			return i
		}
		fn(elem)
	}
	return limit
}

// Count returns a racy estimate of the number of queued elements, safe to
// call from any goroutine. The estimate never goes negative and never
// exceeds Cap; producers racing with the read can only make it an
// over-estimate. The consumer index is sampled before and after the
// producer index and the read repeats until both samples agree, so a
// concurrent dequeue cannot skew the result. Sustained consumer activity
// can in principle keep the loop retrying; that liveness trade-off is
// inherent to the estimate.
func (q *MPSC[T]) Count() int {
	after := q.consumer.LoadAcquire()
	for {
		before := after
		p := q.producer.LoadAcquire()
		after = q.consumer.LoadAcquire()
		if before == after {
			return int(p - after)
		}
	}
}

// IsEmpty reports whether the queue is empty, safe to call from any
// goroutine. The consumer index is read first: reading the producer index
// first could miss an enqueue landing between the two reads and report a
// false empty.
func (q *MPSC[T]) IsEmpty() bool {
	c := q.consumer.LoadAcquire()
	return c == q.producer.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *MPSC[T]) Cap() int {
	return int(q.capacity)
}
