// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
)

// Key is an identity-compared token naming one attribute on a Map.
//
// Every key carries a process-wide unique id, assigned monotonically at
// creation. Ids are never reused for the lifetime of the process; the
// Map's sorted cell array orders by them. The type parameter fixes the
// value type stored in cells created for this key.
//
// Keys are created through the registry functions NewKey and KeyOf; two
// *Key values for the same name are the same pointer.
type Key[T any] struct {
	id   uint64
	name string
}

// ID returns the key's process-wide unique id.
func (k *Key[T]) ID() uint64 { return k.id }

// Name returns the name the key was registered under.
func (k *Key[T]) Name() string { return k.name }

func (k *Key[T]) String() string { return k.name }

// AnyKey is the type-erased view of a *Key[T], used where the value type
// does not matter (Map.Has).
type AnyKey interface {
	ID() uint64
	Name() string
}

// The key registry. Lookup and creation are cold paths (keys are made
// once, at init time or on first use), so a plain mutex-guarded map is
// enough; only the id counter is contended-path state.
var (
	keyRegistry struct {
		sync.Mutex
		byName map[string]AnyKey
	}
	nextKeyID atomix.Uint64
)

// NewKey registers a new key under name.
// Panics if name is empty or already registered.
func NewKey[T any](name string) *Key[T] {
	if name == "" {
		panic("evq: empty key name")
	}

	keyRegistry.Lock()
	defer keyRegistry.Unlock()

	if keyRegistry.byName == nil {
		keyRegistry.byName = make(map[string]AnyKey)
	}
	if _, dup := keyRegistry.byName[name]; dup {
		panic(fmt.Sprintf("evq: key %q already registered", name))
	}

	k := &Key[T]{id: nextKeyID.AddAcqRel(1), name: name}
	keyRegistry.byName[name] = k
	return k
}

// KeyOf returns the key registered under name, creating it if absent.
// Panics if name is empty, or if the name is registered with a different
// value type.
func KeyOf[T any](name string) *Key[T] {
	if name == "" {
		panic("evq: empty key name")
	}

	keyRegistry.Lock()
	defer keyRegistry.Unlock()

	if keyRegistry.byName == nil {
		keyRegistry.byName = make(map[string]AnyKey)
	}
	if existing, ok := keyRegistry.byName[name]; ok {
		k, ok := existing.(*Key[T])
		if !ok {
			panic(fmt.Sprintf("evq: key %q registered with a different type", name))
		}
		return k
	}

	k := &Key[T]{id: nextKeyID.AddAcqRel(1), name: name}
	keyRegistry.byName[name] = k
	return k
}

// KeyExists reports whether a key is registered under name.
func KeyExists(name string) bool {
	keyRegistry.Lock()
	defer keyRegistry.Unlock()
	_, ok := keyRegistry.byName[name]
	return ok
}
