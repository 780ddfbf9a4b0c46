// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq_test

import (
	"fmt"
	"sync"
	"testing"

	"code.hybscloud.com/evq"
)

// =============================================================================
// Key Registry
// =============================================================================

// TestKeyRegistry covers creation, lookup, and identity of keys.
func TestKeyRegistry(t *testing.T) {
	k1 := evq.NewKey[int]("registry.alpha")
	if k1.Name() != "registry.alpha" {
		t.Fatalf("Name: got %q", k1.Name())
	}
	if !evq.KeyExists("registry.alpha") {
		t.Fatal("KeyExists after NewKey: false")
	}
	if evq.KeyExists("registry.never") {
		t.Fatal("KeyExists for unregistered name: true")
	}

	// KeyOf returns the identical key for the same name
	if k2 := evq.KeyOf[int]("registry.alpha"); k2 != k1 {
		t.Fatal("KeyOf returned a different key for the same name")
	}

	// Ids are unique and monotonic in creation order
	ka := evq.KeyOf[string]("registry.beta")
	kb := evq.KeyOf[string]("registry.gamma")
	if ka.ID() == kb.ID() {
		t.Fatal("distinct keys share an id")
	}
	if kb.ID() <= ka.ID() {
		t.Fatalf("ids not monotonic: %d then %d", ka.ID(), kb.ID())
	}

	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}
	mustPanic("duplicate NewKey", func() { evq.NewKey[int]("registry.alpha") })
	mustPanic("KeyOf type mismatch", func() { evq.KeyOf[string]("registry.alpha") })
	mustPanic("empty name", func() { evq.KeyOf[int]("") })
}

// =============================================================================
// Attribute Map
// =============================================================================

// TestAttrBasic covers get-or-create, Has, and cell value operations.
func TestAttrBasic(t *testing.T) {
	key := evq.KeyOf[int]("attr.basic")
	m := evq.NewMap()

	if m.Has(key) {
		t.Fatal("Has on empty map: true")
	}

	cell := evq.Attr(m, key)
	if cell == nil {
		t.Fatal("Attr returned nil")
	}
	if !m.Has(key) {
		t.Fatal("Has after Attr: false")
	}
	if cell.Key() != key {
		t.Fatal("cell bound to wrong key")
	}
	if cell.Load() != nil {
		t.Fatal("fresh cell holds a value")
	}

	// Attr is idempotent while the cell is live
	if again := evq.Attr(m, key); again != cell {
		t.Fatal("Attr returned a different live cell")
	}

	v := 7
	cell.Store(&v)
	if got := cell.Load(); got == nil || *got != 7 {
		t.Fatalf("Load after Store: got %v", got)
	}

	w := 8
	if prev := cell.Swap(&w); prev == nil || *prev != 7 {
		t.Fatalf("Swap: got %v, want 7", prev)
	}

	x := 9
	if cell.CompareAndSwap(&v, &x) {
		t.Fatal("CompareAndSwap with stale old succeeded")
	}
	if !cell.CompareAndSwap(&w, &x) {
		t.Fatal("CompareAndSwap with current old failed")
	}
}

// TestAttrSetIfAbsent verifies first-writer-wins semantics.
func TestAttrSetIfAbsent(t *testing.T) {
	key := evq.KeyOf[string]("attr.setifabsent")
	cell := evq.Attr(evq.NewMap(), key)

	a, b := "first", "second"
	if prev := cell.SetIfAbsent(&a); prev != nil {
		t.Fatalf("SetIfAbsent on empty cell: got %v, want nil", prev)
	}
	if prev := cell.SetIfAbsent(&b); prev == nil || *prev != "first" {
		t.Fatalf("SetIfAbsent on set cell: got %v, want first", prev)
	}
	if got := cell.Load(); *got != "first" {
		t.Fatalf("value overwritten: got %q", *got)
	}
}

// TestAttrRemove covers idempotent removal and fresh-cell-after-removal.
func TestAttrRemove(t *testing.T) {
	key := evq.KeyOf[int]("attr.remove")
	m := evq.NewMap()

	cell := evq.Attr(m, key)
	v := 42
	cell.Store(&v)

	if cell.Removed() {
		t.Fatal("live cell reports Removed")
	}
	cell.Remove()
	if !cell.Removed() {
		t.Fatal("Removed after Remove: false")
	}
	if m.Has(key) {
		t.Fatal("Has after Remove: true")
	}
	if cell.Load() != nil {
		t.Fatal("value survives Remove")
	}

	// Second Remove is a no-op
	cell.Remove()
	if m.Has(key) {
		t.Fatal("Has after double Remove: true")
	}

	// A later Attr yields a fresh, distinct cell
	fresh := evq.Attr(m, key)
	if fresh == cell {
		t.Fatal("Attr returned the removed cell")
	}
	if fresh.Removed() {
		t.Fatal("fresh cell reports Removed")
	}
	if !m.Has(key) {
		t.Fatal("Has after re-create: false")
	}

	// The stale handle stays readable but detached
	if cell.Load() != nil {
		t.Fatal("stale handle grew a value")
	}
	w := 1
	cell.Store(&w) // writes land only in the stale cell
	if got := fresh.Load(); got != nil {
		t.Fatalf("stale write leaked into fresh cell: %v", got)
	}
}

// TestAttrGetAndRemove checks the combined read-and-detach.
func TestAttrGetAndRemove(t *testing.T) {
	key := evq.KeyOf[int]("attr.getandremove")
	m := evq.NewMap()

	cell := evq.Attr(m, key)
	v := 5
	cell.Store(&v)

	got := cell.GetAndRemove()
	if got == nil || *got != 5 {
		t.Fatalf("GetAndRemove: got %v, want 5", got)
	}
	if !cell.Removed() || m.Has(key) {
		t.Fatal("cell not detached after GetAndRemove")
	}
	if second := cell.GetAndRemove(); second != nil {
		t.Fatalf("second GetAndRemove: got %v, want nil", second)
	}
}

// TestAttrRemovedCellReplacement exercises the replace-in-place path: a
// detached-but-still-linked cell must not be handed out again.
func TestAttrRemovedCellReplacement(t *testing.T) {
	keyA := evq.KeyOf[int]("attr.replace.a")
	keyB := evq.KeyOf[int]("attr.replace.b")
	m := evq.NewMap()

	cellA := evq.Attr(m, keyA)
	cellB := evq.Attr(m, keyB)
	cellA.Remove()

	if evq.Attr(m, keyA) == cellA {
		t.Fatal("Attr returned removed cell")
	}
	if evq.Attr(m, keyB) != cellB {
		t.Fatal("unrelated key disturbed by removal")
	}
}

// TestAttrConcurrentDistinctKeys attaches K distinct keys from K
// goroutines; all must be present afterwards. The map uses sync/atomic
// only, so this runs under the race detector.
func TestAttrConcurrentDistinctKeys(t *testing.T) {
	const k = 64
	keys := make([]*evq.Key[int], k)
	for i := range k {
		keys[i] = evq.KeyOf[int](fmt.Sprintf("attr.concurrent.%d", i))
	}

	m := evq.NewMap()
	var wg sync.WaitGroup
	for i := range k {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cell := evq.Attr(m, keys[i])
			v := i
			cell.Store(&v)
		}(i)
	}
	wg.Wait()

	for i := range k {
		if !m.Has(keys[i]) {
			t.Fatalf("key %d missing after concurrent attach", i)
		}
		if got := evq.Attr(m, keys[i]).Load(); got == nil || *got != i {
			t.Fatalf("key %d: got %v, want %d", i, got, i)
		}
	}
}

// TestAttrConcurrentSameKey hammers one key with attach/remove cycles;
// the map must end consistent and every returned cell be usable.
func TestAttrConcurrentSameKey(t *testing.T) {
	key := evq.KeyOf[int]("attr.samekey")
	m := evq.NewMap()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				cell := evq.Attr(m, key)
				v := 1
				cell.Store(&v)
				cell.Remove()
			}
		}()
	}
	wg.Wait()

	// The surviving state is either present or absent; a fresh attach
	// must always produce a live cell.
	cell := evq.Attr(m, key)
	if cell.Removed() {
		t.Fatal("Attr returned a removed cell after churn")
	}
	if !m.Has(key) {
		t.Fatal("Has false immediately after Attr")
	}
}

// TestAttrNilPreconditions checks nil key/value panics.
func TestAttrNilPreconditions(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	m := evq.NewMap()
	mustPanic("Attr nil key", func() { evq.Attr[int](m, nil) })
	mustPanic("Has nil key", func() { m.Has(nil) })

	cell := evq.Attr(m, evq.KeyOf[int]("attr.nilvalue"))
	mustPanic("SetIfAbsent nil", func() { cell.SetIfAbsent(nil) })
}
