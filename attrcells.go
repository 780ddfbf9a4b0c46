// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import "sync/atomic"

// cellArray is one immutable generation of a Map's sorted cell array.
// Built once, published by pointer, never mutated afterwards.
type cellArray []anyCell

// snapshot returns the generation's contents; nil pointer means the map
// has never held a cell.
func (p *cellArray) snapshot() []anyCell {
	if p == nil {
		return nil
	}
	return *p
}

// atomicCells is the Map's single mutable word: an atomic pointer to the
// current cellArray generation. The pointer identity is the CAS token —
// two generations with equal contents are still distinct tokens, so an
// interleaved writer always fails the other's CAS.
type atomicCells struct {
	p atomic.Pointer[cellArray]
}

func (a *atomicCells) Load() *cellArray {
	return a.p.Load()
}

func (a *atomicCells) CompareAndSwap(old *cellArray, next []anyCell) bool {
	na := cellArray(next)
	return a.p.CompareAndSwap(old, &na)
}
