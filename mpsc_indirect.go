// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// emptyFlag marks a slot as empty. The remaining 63 bits carry the value.
const emptyFlag = 1 << 63

// MPSCIndirect is a CAS-based MPSC queue for uintptr values.
//
// Same algorithm as MPSC: producers CAS the producer index, then publish
// the value into the claimed slot; the single consumer spins on a
// claimed-but-unpublished slot. The high bit is the empty sentinel, so
// values are limited to 63 bits — suited to pool indices and handles.
//
// Memory: 8 bytes per slot
type MPSCIndirect struct {
	_              pad
	producer       atomix.Uint64 // Next index to claim (producers CAS)
	_              pad
	cachedConsumer atomix.Uint64 // Producer-side snapshot of consumer
	_              pad
	consumer       atomix.Uint64 // Next index to read (consumer writes)
	_              pad
	buffer         []atomix.Uintptr
	mask           uint64
	capacity       uint64
}

// NewMPSCIndirect creates a new CAS-based MPSC queue for uintptr values.
// Capacity rounds up to the next power of 2.
// Values are limited to 63 bits (high bit reserved for empty flag).
func NewMPSCIndirect(capacity int) *MPSCIndirect {
	if capacity < 2 {
		panic("evq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &MPSCIndirect{
		buffer:   make([]atomix.Uintptr, n),
		mask:     n - 1,
		capacity: n,
	}

	for i := range q.buffer {
		q.buffer[i].StoreRelaxed(emptyFlag)
	}

	return q
}

// Signed occupancy compare, for the same stale-index reason as MPSC.admit.
func (q *MPSCIndirect) admit(p uint64) bool {
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

// TryEnqueue adds a value (multiple producers safe).
// Values must fit in 63 bits. Returns ErrWouldBlock if the queue is full.
func (q *MPSCIndirect) TryEnqueue(elem uintptr) error {
	if elem&emptyFlag != 0 {
		panic("evq: value exceeds 63 bits")
	}

	sw := spin.Wait{}
	for {
		p := q.producer.LoadAcquire()
		if !q.admit(p) {
			return ErrWouldBlock
		}
		if q.producer.CompareAndSwapAcqRel(p, p+1) {
			q.buffer[p&q.mask].StoreRelease(elem)
			return nil
		}
		sw.Once()
	}
}

// WeakEnqueue attempts the producer CAS exactly once (wait-free).
// Returns nil, ErrWouldBlock (full), or ErrContended (lost CAS).
func (q *MPSCIndirect) WeakEnqueue(elem uintptr) error {
	if elem&emptyFlag != 0 {
		panic("evq: value exceeds 63 bits")
	}

	p := q.producer.LoadAcquire()
	if !q.admit(p) {
		return ErrWouldBlock
	}
	if !q.producer.CompareAndSwapAcqRel(p, p+1) {
		return ErrContended
	}
	q.buffer[p&q.mask].StoreRelease(elem)
	return nil
}

// TryDequeue removes and returns a value (single consumer only).
// Returns (0, ErrWouldBlock) if the queue is empty. Spins on a
// claimed-but-unpublished slot.
func (q *MPSCIndirect) TryDequeue() (uintptr, error) {
	c := q.consumer.LoadRelaxed()
	slot := &q.buffer[c&q.mask]

	elem := slot.LoadAcquire()
	if elem&emptyFlag != 0 {
		if c == q.producer.LoadAcquire() {
			return 0, ErrWouldBlock
		}
		elem = awaitPublishIndirect(slot)
	}

	slot.StoreRelease(emptyFlag)
	q.consumer.StoreRelease(c + 1)

	return elem, nil
}

// TryPeek returns the head value without removing it (single consumer
// only). Returns (0, ErrWouldBlock) if the queue is empty.
func (q *MPSCIndirect) TryPeek() (uintptr, error) {
	c := q.consumer.LoadRelaxed()
	slot := &q.buffer[c&q.mask]

	elem := slot.LoadAcquire()
	if elem&emptyFlag != 0 {
		if c == q.producer.LoadAcquire() {
			return 0, ErrWouldBlock
		}
		elem = awaitPublishIndirect(slot)
	}

	return elem, nil
}

func awaitPublishIndirect(slot *atomix.Uintptr) uintptr {
	sw := spin.Wait{}
	for {
		if elem := slot.LoadAcquire(); elem&emptyFlag == 0 {
			return elem
		}
		sw.Once()
	}
}

// Drain dequeues up to limit values, handing each to fn on the calling
// goroutine (single consumer only). Returns the number processed.
func (q *MPSCIndirect) Drain(fn func(uintptr), limit int) int {
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

// Count returns a racy estimate of the number of queued values; never
// negative, never above Cap, over-estimates only. See MPSC.Count.
func (q *MPSCIndirect) Count() int {
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

// IsEmpty reports whether the queue is empty; the consumer index is read
// before the producer index. See MPSC.IsEmpty.
func (q *MPSCIndirect) IsEmpty() bool {
	c := q.consumer.LoadAcquire()
	return c == q.producer.LoadAcquire()
}

// Cap returns the queue capacity.
func (q *MPSCIndirect) Cap() int {
	return int(q.capacity)
}
