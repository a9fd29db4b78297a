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

// FnMap drives the engine with capabilities supplied per call rather than
// stored. It suits callers whose comparison and hash logic is cheaper to
// construct ad hoc than to keep behind an interface. The eq and rehash
// closures receive entry addresses, never indices.
//
// An FnMap is NOT goroutine-safe.
type FnMap struct {
	layout EntryLayout
	tl     tableLayout
	alloc  Allocator
	inner  rawTable
}

// NewFnMap constructs a closure-driven map with the specified initial
// capacity. If capacity is 0 the map allocates nothing and grows on the
// first insert.
func NewFnMap(capacity int, layout EntryLayout, alloc Allocator) (*FnMap, error) {
	if !layout.valid() {
		return nil, ErrInvalidLayout
	}
	if alloc == nil {
		alloc = DefaultAllocator()
	}
	m := &FnMap{
		layout: layout,
		tl:     makeTableLayout(layout),
		alloc:  alloc,
	}
	inner, err := newRawTable(alloc, m.tl, uintptr(capacity))
	if err != nil {
		return nil, err
	}
	m.inner = inner
	return m, nil
}

// Access returns the address of the entry with the given hash for which eq
// reports true, or ok=false if there is none.
func (m *FnMap) Access(hash uint64, eq func(entry unsafe.Pointer) bool) (entry unsafe.Pointer, ok bool) {
	i, ok := m.inner.find(hash, func(i uintptr) bool {
		return eq(m.bucket(i))
	})
	if !ok {
		return nil, false
	}
	return m.bucket(i), true
}

// Assign returns the address of the entry with the given hash for which eq
// reports true, reserving a fresh slot if there is none. When inserted is
// true the entry bytes are uninitialized: the caller must materialize the
// key (and value) before any further operation on the map. rehash is only
// invoked if the call triggers a growth, and must reproduce the hash of any
// live entry from its bytes.
func (m *FnMap) Assign(hash uint64, eq func(entry unsafe.Pointer) bool, rehash func(entry unsafe.Pointer) uint64) (entry unsafe.Pointer, inserted bool, err error) {
	if m.inner.needGrowth(1) {
		if err := m.inner.reserveRehash(m.alloc, m.tl, 1, rehash); err != nil {
			return nil, false, err
		}
	}

	i, found := m.inner.findOrFindInsertSlot(hash, func(i uintptr) bool {
		return eq(m.bucket(i))
	})
	if !found {
		m.inner.recordInsertAt(i, *m.inner.ctrlAt(i), hash)
	}
	m.inner.checkInvariants()
	return m.bucket(i), !found, nil
}

// Delete removes the entry with the given hash for which eq reports true,
// and reports whether an entry was removed.
func (m *FnMap) Delete(hash uint64, eq func(entry unsafe.Pointer) bool) bool {
	i, ok := m.inner.find(hash, func(i uintptr) bool {
		return eq(m.bucket(i))
	})
	if !ok {
		return false
	}
	m.inner.erase(i)
	m.inner.checkInvariants()
	return true
}

// Clear removes all entries, keeping capacity and the allocation.
func (m *FnMap) Clear() {
	m.inner.clearNoDrop()
}

// Len returns the number of entries in the map.
func (m *FnMap) Len() int {
	return m.inner.used
}

// Next returns the index and address of the first live entry at or after
// index i, or ok=false past the end. See Map.Next.
func (m *FnMap) Next(i int) (index int, entry unsafe.Pointer, ok bool) {
	j, ok := m.inner.nextFullAfter(uintptr(i))
	if !ok {
		return 0, nil, false
	}
	return int(j), m.bucket(j), true
}

// Close releases the allocation back to the configured allocator. Idempotent.
func (m *FnMap) Close() {
	m.inner.free(m.alloc)
}

func (m *FnMap) bucket(i uintptr) unsafe.Pointer {
	return m.inner.bucketPtr(i, m.layout.Size)
}
