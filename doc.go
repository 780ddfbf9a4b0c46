// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package evq provides the lock-free primitives under an event-driven
// networking runtime: a bounded multi-producer single-consumer queue for
// handing work and I/O events to an event-loop goroutine, and a
// copy-on-write attribute map for attaching out-of-band metadata to
// long-lived objects such as connections.
//
// # Quick Start
//
// Queues are created directly or through the builder, which selects the
// empty-sentinel policy:
//
//	q := evq.NewMPSC[Task](1024)            // *T elements, nil sentinel
//	q := evq.Build[Task](evq.New(1024))     // same, via builder
//	free := evq.New(4096).BuildIndirect()   // uintptr handles, high-bit sentinel
//
// Attribute maps are zero-value ready; keys come from the process-wide
// registry:
//
//	var deadlineKey = evq.KeyOf[time.Time]("conn.deadline")
//
//	m := evq.NewMap()
//	cell := evq.Attr(m, deadlineKey)
//	cell.Store(&t)
//
// # MPSC Queue
//
// Producers on any goroutine hand elements to exactly one consumer
// goroutine:
//
//	q := evq.NewMPSC[Event](4096)
//
//	// Producers (any goroutine)
//	ev := &Event{...}
//	if err := q.TryEnqueue(ev); evq.IsWouldBlock(err) {
//	    // Queue full - apply backpressure
//	}
//
//	// Consumer (the event-loop goroutine only)
//	for {
//	    n := q.Drain(handle, 256)
//	    if n == 0 {
//	        // Queue empty - poll I/O, park, or back off
//	    }
//	}
//
// TryEnqueue is lock-free: producers arbitrate slots by CAS on a shared
// producer index and a loser retries with a new index. WeakEnqueue is the
// wait-free variant — it attempts the CAS exactly once and reports a lost
// arbitration as [ErrContended], for callers with their own batching or
// backoff policy.
//
// Enqueue publishes in two phases: the CAS reserves the index, then a
// plain atomic store publishes the element into the slot. The reservation
// may become visible to the consumer before the element does (a producer
// can be descheduled between the two). The consumer tolerates this: a
// dequeue that finds an empty slot below the producer index busy-spins on
// the slot until the element appears. The window is bounded by the
// in-flight producer's own progress. This relaxed two-phase protocol is
// deliberate — closing the window would cost every enqueue a second
// synchronizing write.
//
// Dequeue order is FIFO with respect to successfully linearized enqueues.
// Arbitration among producers has no fairness guarantee.
//
// # Attribute Map
//
// A Map holds one atomic reference to an array of cells sorted by key id.
// Lookups binary-search an immutable snapshot; inserts and removals build
// a new array and CAS the reference. Readers never block and never observe
// a partially-built array.
//
//	var stateKey = evq.KeyOf[ConnState]("conn.state")
//
//	cell := evq.Attr(m, stateKey)       // get-or-create, never blocks
//	cell.SetIfAbsent(&initial)          // per-cell atomic CAS
//	s := cell.Load()
//
//	cell.Remove()                       // detaches exactly once
//	cell = evq.Attr(m, stateKey)        // a fresh cell after removal
//
// After Attr returns a cell, reads and writes hit only that cell's atomic
// value word; the map's array is untouched until the cell is removed. A
// stale handle to a removed cell is detectable via [Cell.Removed].
//
// # Capacity
//
// Queue capacity rounds up to the next power of 2:
//
//	q := evq.NewMPSC[int](5)     // Actual capacity: 8
//	q := evq.NewMPSC[int](1000)  // Actual capacity: 1024
//
// Minimum capacity is 2. Panic if capacity < 2.
//
// Count is a racy estimate: never negative, never above Cap, and racing
// producers can only inflate it. IsEmpty reads the consumer index before
// the producer index so a concurrent enqueue cannot produce a false empty.
//
// # Error Handling
//
// Full, empty, and lost-arbitration outcomes are return values, never
// panics, keeping the hot path branch-predictable. [ErrWouldBlock] is
// sourced from [code.hybscloud.com/iox] for ecosystem consistency;
// [ErrContended] is local to this package.
//
//	evq.IsWouldBlock(err)  // true if queue full/empty
//	evq.IsContended(err)   // true if WeakEnqueue lost the CAS
//	evq.IsSemantic(err)    // true if control flow signal
//	evq.IsNonFailure(err)  // true for nil or any of the above
//
// Only programmer errors (capacity < 2, nil element, nil key, a 64-bit
// value in an indirect queue) panic, at the call boundary.
//
// # Thread Safety
//
// The queue accepts any number of producer goroutines and exactly one
// consumer goroutine at a time. TryDequeue, TryPeek, and Drain from two
// goroutines concurrently is undefined behavior; it is not detected,
// because detection would tax the hot path. Count and IsEmpty are safe
// from any goroutine.
//
// The attribute map accepts any number of concurrent readers and writers
// with no designated roles.
//
// Nothing in this package blocks, sleeps, or spawns goroutines. All
// waiting is a CAS retry loop (lock-free: some goroutine always makes
// progress) or the documented dequeue busy-spin (bounded by the in-flight
// producer). Callers needing bounded waiting layer it on top, e.g.
// poll-with-backoff via [code.hybscloud.com/iox]'s Backoff.
//
// # False Sharing
//
// The producer index, the producers' cached consumer index, and the
// consumer index live on separate cache lines via explicit padding
// fields. The producer side writes the first two, the consumer side the
// third; co-locating any two would turn each write into a cross-core
// invalidation of the other's reads.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before edges established
// through atomix acquire-release orderings on separate variables, so the
// concurrent stress tests report false positives under -race. They are
// correct; they are skipped via RaceEnabled or excluded with
// //go:build !race, following the same convention as
// [code.hybscloud.com/lfq].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for index and flag atomics with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in retry loops. GC-traced references (queue slots, the
// map's array pointer, cell values) use sync/atomic's typed pointers.
package evq
