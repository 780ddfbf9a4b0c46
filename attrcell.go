// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import "sync/atomic"

// Cell is one attribute slot: an atomic *T value plus a back-reference to
// the Map that holds it. nil means allocated-but-unset.
//
// Reads and writes go straight to the cell; the owning Map is not touched
// again until the cell is removed. Remove and GetAndRemove detach the cell
// from its Map exactly once; a handle to a removed cell stays readable and
// writable but is no longer reachable through the Map (a later Attr call
// for the same key yields a fresh cell).
type Cell[T any] struct {
	value atomic.Pointer[T]
	key   *Key[T]
	owner atomic.Pointer[Map] // nil once detached
}

func newCell[T any](m *Map, key *Key[T]) *Cell[T] {
	c := &Cell[T]{key: key}
	c.owner.Store(m)
	return c
}

// cellID implements anyCell for the Map's sorted array.
func (c *Cell[T]) cellID() uint64 { return c.key.id }

// Key returns the key the cell was created for.
func (c *Cell[T]) Key() *Key[T] { return c.key }

// Load returns the current value, nil if unset.
func (c *Cell[T]) Load() *T { return c.value.Load() }

// Store sets the current value. Storing nil clears the value without
// removing the cell from its Map.
func (c *Cell[T]) Store(v *T) { c.value.Store(v) }

// Swap sets the value and returns the previous one.
func (c *Cell[T]) Swap(v *T) *T { return c.value.Swap(v) }

// CompareAndSwap sets the value to next iff it is currently old.
func (c *Cell[T]) CompareAndSwap(old, next *T) bool {
	return c.value.CompareAndSwap(old, next)
}

// SetIfAbsent sets the value iff it is currently unset. Returns nil when v
// won, otherwise the value that was already present. Panics on nil v.
func (c *Cell[T]) SetIfAbsent(v *T) *T {
	if v == nil {
		panic("evq: nil value")
	}
	for {
		if c.value.CompareAndSwap(nil, v) {
			return nil
		}
		if cur := c.value.Load(); cur != nil {
			return cur
		}
	}
}

// GetAndRemove detaches the cell from its Map (first call only) and
// returns the value it held, clearing it.
func (c *Cell[T]) GetAndRemove() *T {
	c.detach()
	return c.value.Swap(nil)
}

// Remove detaches the cell from its Map (first call only) and clears the
// value. Idempotent: a second call is a no-op for the Map.
func (c *Cell[T]) Remove() {
	c.detach()
	c.value.Store(nil)
}

// Removed reports whether the cell has been detached from its Map.
// A caller holding a stale handle uses this to tell a removed cell from a
// live one.
func (c *Cell[T]) Removed() bool { return c.owner.Load() == nil }

// detach clears the owner back-reference exactly once and unlinks the
// cell from the Map's array. The Swap arbitrates concurrent removers: only
// the goroutine that observes the non-nil owner performs the unlink.
func (c *Cell[T]) detach() {
	if m := c.owner.Swap(nil); m != nil {
		m.removeIfMatch(c.key.id, c)
	}
}
