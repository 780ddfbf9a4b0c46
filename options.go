// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

// Options configures queue creation.
type Options struct {
	// Capacity (rounds up to next power of 2)
	capacity int
}

// Builder creates queues with fluent configuration.
//
// The builder selects the empty-sentinel policy through the terminal build
// call: Build[T] produces a pointer-element queue (nil sentinel), while
// BuildIndirect produces a uintptr queue (high-bit sentinel) for pool
// indices and handles.
//
// Example:
//
//	// Generic task queue for an event loop
//	q := evq.Build[Task](evq.New(1024))
//
//	// Free-list of buffer-pool indices
//	free := evq.New(4096).BuildIndirect()
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2.
// For example, capacity=4 results in actual capacity=4, capacity=1000
// results in actual capacity=1024.
//
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("evq: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// Build creates an MPSC queue for *T elements (nil is the empty sentinel).
func Build[T any](b *Builder) *MPSC[T] {
	return NewMPSC[T](b.opts.capacity)
}

// BuildIndirect creates an MPSC queue for uintptr values (the high bit is
// the empty sentinel; values are limited to 63 bits).
func (b *Builder) BuildIndirect() *MPSCIndirect {
	return NewMPSCIndirect(b.opts.capacity)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing. The producer index,
// the producers' cached consumer index, and the consumer index are written
// by different cores; sharing a line between any two of them turns every
// write into a cross-core invalidation of the other's reads.
type pad [64]byte
