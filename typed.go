// Copyright 2026 The Hashbrown-Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashbrown

import "unsafe"

// LayoutOf returns the EntryLayout of an entry holding a K followed by a V,
// with the padding Go would apply to struct{key K; value V}. Convenience for
// building tables intended to be used through a Typed[K, V] view.
func LayoutOf[K any, V any]() EntryLayout {
	type entry struct {
		key   K
		value V
	}
	var e entry
	return EntryLayout{
		Size:      unsafe.Sizeof(e),
		Align:     unsafe.Alignof(e),
		KeySize:   unsafe.Sizeof(e.key),
		ValOffset: unsafe.Offsetof(e.value),
	}
}

// Typed is a reference-typed view over a Table. It is the unsafe-to-safe
// boundary: it assumes without validation that K and V exactly match the
// table's bound EntryLayout (see LayoutOf), and that neither type contains
// pointers, since entry bytes live in a region the GC does not scan.
//
// A Typed view shares the underlying Table; it is NOT goroutine-safe.
type Typed[K any, V any] struct {
	t *Table
}

// View wraps a Table in a typed facade.
func View[K any, V any](t *Table) Typed[K, V] {
	return Typed[K, V]{t: t}
}

// Get returns a reference to the value mapped to key, or nil if the key is
// not present. The reference is valid only until the next mutating
// operation.
func (m Typed[K, V]) Get(key *K) *V {
	p, ok := m.t.Access(unsafe.Pointer(key))
	if !ok {
		return nil
	}
	return (*V)(p)
}

// Insert maps key to value, always overwriting any existing value.
func (m Typed[K, V]) Insert(key *K, value *V) error {
	return m.t.Put(unsafe.Pointer(key), unsafe.Pointer(value))
}

// Delete removes the entry for key. It is a noop to delete a non-existent
// key.
func (m Typed[K, V]) Delete(key *K) {
	m.t.Delete(unsafe.Pointer(key))
}

// Extend copies every entry of other into m, overwriting values of keys
// already present.
func (m Typed[K, V]) Extend(other Typed[K, V]) error {
	return m.t.Extend(other.t)
}

// Len returns the number of entries.
func (m Typed[K, V]) Len() int {
	return m.t.Len()
}
