// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import (
	"fmt"
	"sync"
	"testing"
)

// =============================================================================
// Sorted Array Invariants (white box)
// =============================================================================

// fakeCell is a minimal anyCell for exercising the binary search alone.
type fakeCell uint64

func (f fakeCell) cellID() uint64 { return uint64(f) }

// TestSearchCells covers hits, misses, and insertion points.
func TestSearchCells(t *testing.T) {
	arr := []anyCell{fakeCell(2), fakeCell(5), fakeCell(9), fakeCell(14)}

	tests := []struct {
		id        uint64
		wantIdx   int
		wantFound bool
	}{
		{1, 0, false},
		{2, 0, true},
		{3, 1, false},
		{5, 1, true},
		{9, 2, true},
		{10, 3, false},
		{14, 3, true},
		{15, 4, false},
	}
	for _, tt := range tests {
		i, found := searchCells(arr, tt.id)
		if i != tt.wantIdx || found != tt.wantFound {
			t.Errorf("searchCells(%d): got (%d, %v), want (%d, %v)",
				tt.id, i, found, tt.wantIdx, tt.wantFound)
		}
	}

	if i, found := searchCells(nil, 1); i != 0 || found {
		t.Errorf("searchCells(nil): got (%d, %v)", i, found)
	}
}

// TestMapArrayStaysSorted attaches keys concurrently and in shuffled
// order, then checks the published array is strictly ascending by id with
// no duplicates.
func TestMapArrayStaysSorted(t *testing.T) {
	const k = 48
	keys := make([]*Key[int], k)
	for i := range k {
		keys[i] = KeyOf[int](fmt.Sprintf("attr.sorted.%d", i))
	}

	m := NewMap()
	var wg sync.WaitGroup
	// Attach back to front so insertion order fights sorted order.
	for i := k - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Attr(m, keys[i])
		}(i)
	}
	wg.Wait()

	arr := m.cells.Load().snapshot()
	if len(arr) != k {
		t.Fatalf("array length: got %d, want %d", len(arr), k)
	}
	for i := 1; i < len(arr); i++ {
		if arr[i-1].cellID() >= arr[i].cellID() {
			t.Fatalf("array not strictly ascending at %d: %d then %d",
				i, arr[i-1].cellID(), arr[i].cellID())
		}
	}
}

// TestMapRemoveCompacts checks removal drops exactly the one slot and
// keeps order.
func TestMapRemoveCompacts(t *testing.T) {
	ka := KeyOf[int]("attr.compact.a")
	kb := KeyOf[int]("attr.compact.b")
	kc := KeyOf[int]("attr.compact.c")

	m := NewMap()
	Attr(m, ka)
	cb := Attr(m, kb)
	Attr(m, kc)

	cb.Remove()

	arr := m.cells.Load().snapshot()
	if len(arr) != 2 {
		t.Fatalf("array length after remove: got %d, want 2", len(arr))
	}
	if arr[0].cellID() != ka.ID() || arr[1].cellID() != kc.ID() {
		t.Fatalf("unexpected survivors: ids %d, %d", arr[0].cellID(), arr[1].cellID())
	}
}
