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

import (
	"errors"
	"unsafe"
)

// ErrInvalidLayout is returned by the constructors when the supplied
// EntryLayout is malformed (zero size, non power-of-two alignment, or key
// and value regions that do not fit the entry).
var ErrInvalidLayout = errors.New("hashbrown: invalid entry layout")

// KeyDesc describes the key capabilities of an entry: hashing a key and
// comparing two keys, given their raw addresses. Implementations must be
// deterministic for the table's lifetime and must only read the key bytes
// the declared layout implies.
type KeyDesc interface {
	Hash(key unsafe.Pointer) uint64
	Equal(a, b unsafe.Pointer) bool
}

// Map is a type-erased hash table driven by a stored KeyDesc. It locates
// entries by raw key address and hands out raw value addresses; writing
// value bytes is the caller's side of the contract (see Assign).
//
// A Map is NOT goroutine-safe.
type Map struct {
	spec   KeyDesc
	layout EntryLayout
	tl     tableLayout
	alloc  Allocator
	inner  rawTable
}

// NewMap constructs a map with the specified initial capacity. If capacity
// is 0 the map allocates nothing and grows on the first insert. The zero
// value for a Map is not usable.
func NewMap(capacity int, layout EntryLayout, spec KeyDesc, alloc Allocator) (*Map, error) {
	if !layout.valid() {
		return nil, ErrInvalidLayout
	}
	if alloc == nil {
		alloc = DefaultAllocator()
	}
	m := &Map{
		spec:   spec,
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

// Access returns the address of the value mapped to the key at the given
// address, or ok=false if the key is not present.
func (m *Map) Access(key unsafe.Pointer) (value unsafe.Pointer, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return nil, false
	}
	return unsafe.Add(m.bucket(i), m.layout.ValOffset), true
}

// Assign returns the writable value address for the key at the given
// address, inserting the key if it is not present. Insertion copies the raw
// key bytes into the table; writing the value bytes is left to the caller.
// This two-phase contract lets callers construct the value in place. The
// returned address is valid only until the next mutating operation.
func (m *Map) Assign(key unsafe.Pointer) (value unsafe.Pointer, err error) {
	h := m.spec.Hash(key)
	if err := m.checkGrowth(1); err != nil {
		return nil, err
	}

	i, found := m.inner.findOrFindInsertSlot(h, func(i uintptr) bool {
		return m.spec.Equal(key, m.bucket(i))
	})
	if !found {
		m.inner.recordInsertAt(i, *m.inner.ctrlAt(i), h)
		memcopy(m.bucket(i), key, m.layout.KeySize)
	}
	m.inner.checkInvariants()
	return unsafe.Add(m.bucket(i), m.layout.ValOffset), nil
}

// Delete removes the entry for the key at the given address. It is a noop to
// delete a non-existent key.
func (m *Map) Delete(key unsafe.Pointer) {
	if i, ok := m.find(key); ok {
		m.inner.erase(i)
		m.inner.checkInvariants()
	}
}

// Extend copies every live entry of other into m, overwriting the value of
// any key already present. The two maps must share the same entry layout and
// compatible key semantics; other must not be m itself.
func (m *Map) Extend(other *Map) error {
	if err := m.checkGrowth(other.Len()); err != nil {
		return err
	}
	for i, ok := other.inner.nextFullAfter(0); ok; i, ok = other.inner.nextFullAfter(i + 1) {
		entry := other.bucket(i)
		h := m.spec.Hash(entry)
		j, found := m.inner.findOrFindInsertSlot(h, func(j uintptr) bool {
			return m.spec.Equal(entry, m.bucket(j))
		})
		if !found {
			m.inner.recordInsertAt(j, *m.inner.ctrlAt(j), h)
		}
		memcopy(m.bucket(j), entry, m.layout.Size)
	}
	m.inner.checkInvariants()
	return nil
}

// Clear removes all entries without releasing the allocation: capacity is
// unchanged and no growth is triggered until the restored headroom is used
// up again. Bucket bytes are not zeroed.
func (m *Map) Clear() {
	m.inner.clearNoDrop()
	m.inner.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return m.inner.used
}

// Next returns the index and address of the first live entry at or after
// index i, or ok=false past the end. Starting at 0 and resuming at index+1
// visits every live entry exactly once. Mutating the map between steps
// invalidates the scan.
func (m *Map) Next(i int) (index int, entry unsafe.Pointer, ok bool) {
	j, ok := m.inner.nextFullAfter(uintptr(i))
	if !ok {
		return 0, nil, false
	}
	return int(j), m.bucket(j), true
}

// Close releases the allocation back to the configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map) Close() {
	m.inner.free(m.alloc)
}

func (m *Map) bucket(i uintptr) unsafe.Pointer {
	return m.inner.bucketPtr(i, m.layout.Size)
}

func (m *Map) find(key unsafe.Pointer) (uintptr, bool) {
	h := m.spec.Hash(key)
	return m.inner.find(h, func(i uintptr) bool {
		return m.spec.Equal(key, m.bucket(i))
	})
}

func (m *Map) checkGrowth(additional int) error {
	if !m.inner.needGrowth(additional) {
		return nil
	}
	return m.inner.reserveRehash(m.alloc, m.tl, additional, m.spec.Hash)
}
