// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import "code.hybscloud.com/spin"

// Map is a lock-free store of out-of-band attributes for one long-lived
// object (a connection, a session). It holds a single atomic reference to
// an array of cells sorted ascending by key id; lookups binary-search a
// snapshot, mutations copy the array and CAS the reference.
//
// Readers never block: a stale snapshot is a consistent (if slightly
// outdated) view, never a partially-built one. Writers retry on CAS
// failure. Any number of goroutines may read and write concurrently.
//
// The zero value is ready to use.
type Map struct {
	cells atomicCells
}

// anyCell is the type-erased element of the sorted array; implemented by
// *Cell[T] for every T.
type anyCell interface {
	cellID() uint64
}

// NewMap creates an empty attribute map.
func NewMap() *Map {
	return &Map{}
}

// Attr returns the live cell for key on m, allocating and inserting one if
// the key is absent or its previous cell was removed. Never blocks; on CAS
// contention the whole lookup retries, reusing the one freshly allocated
// cell. Panics on nil key.
//
// Attr is a free function because Go methods cannot carry their own type
// parameter.
func Attr[T any](m *Map, key *Key[T]) *Cell[T] {
	if key == nil {
		panic("evq: nil key")
	}

	// Allocated lazily on first miss, reused across CAS retries.
	var fresh *Cell[T]

	sw := spin.Wait{}
	for {
		cur := m.cells.Load()
		arr := cur.snapshot()

		i, found := searchCells(arr, key.id)
		if found {
			// Ids are unique per key, so an id hit is this key's cell.
			c := arr[i].(*Cell[T])
			if !c.Removed() {
				return c
			}
			// The cell was removed but not yet unlinked; replace it.
			if fresh == nil {
				fresh = newCell(m, key)
			}
			next := make([]anyCell, len(arr))
			copy(next, arr)
			next[i] = fresh
			if m.cells.CompareAndSwap(cur, next) {
				return fresh
			}
		} else {
			if fresh == nil {
				fresh = newCell(m, key)
			}
			next := make([]anyCell, len(arr)+1)
			copy(next, arr[:i])
			next[i] = fresh
			copy(next[i+1:], arr[i:])
			if m.cells.CompareAndSwap(cur, next) {
				return fresh
			}
		}
		sw.Once()
	}
}

// Has reports whether a cell for key is present in the map. Pure binary
// search over the current snapshot; no allocation, no side effects.
// Panics on nil key.
func (m *Map) Has(key AnyKey) bool {
	if key == nil {
		panic("evq: nil key")
	}
	_, found := searchCells(m.cells.Load().snapshot(), key.ID())
	return found
}

// removeIfMatch unlinks cell from the array iff the array still holds that
// exact cell for id. A mismatch means a newer cell already replaced it and
// the detach race was resolved elsewhere; nothing to do.
func (m *Map) removeIfMatch(id uint64, cell anyCell) {
	sw := spin.Wait{}
	for {
		cur := m.cells.Load()
		arr := cur.snapshot()

		i, found := searchCells(arr, id)
		if !found || arr[i] != cell {
			return
		}

		next := make([]anyCell, len(arr)-1)
		copy(next, arr[:i])
		copy(next[i:], arr[i+1:])
		if m.cells.CompareAndSwap(cur, next) {
			return
		}
		sw.Once()
	}
}

// searchCells binary-searches arr for id. Returns (index, true) on a hit,
// or (insertion index, false) on a miss. Distinct live keys never share an
// id, so ordering by id alone is total.
func searchCells(arr []anyCell, id uint64) (int, bool) {
	lo, hi := 0, len(arr)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		cid := arr[mid].cellID()
		switch {
		case cid < id:
			lo = mid + 1
		case cid > id:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}
