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

// EntrySpec extends KeyDesc with the ability to write key and value bytes.
// A table bound to an EntrySpec can fully own both sides of an insertion,
// which is what allows the Typed facade to never expose raw addresses to its
// caller.
type EntrySpec interface {
	KeyDesc
	// AssignKey writes the key at src into the key region at dst.
	AssignKey(dst, src unsafe.Pointer)
	// AssignValue writes the value at src into the value region at dst.
	AssignValue(dst, src unsafe.Pointer)
}

// Table is a type-erased hash table driven by a stored EntrySpec. It has the
// same surface as Map plus Put, which writes both key and value through the
// spec instead of handing out a raw value address.
//
// A Table is NOT goroutine-safe.
type Table struct {
	raw  Map
	spec EntrySpec
}

// NewTable constructs a table with the specified initial capacity. If
// capacity is 0 the table allocates nothing and grows on the first insert.
func NewTable(capacity int, layout EntryLayout, spec EntrySpec, alloc Allocator) (*Table, error) {
	m, err := NewMap(capacity, layout, spec, alloc)
	if err != nil {
		return nil, err
	}
	return &Table{raw: *m, spec: spec}, nil
}

// Access returns the address of the value mapped to the key at the given
// address, or ok=false if the key is not present.
func (t *Table) Access(key unsafe.Pointer) (value unsafe.Pointer, ok bool) {
	return t.raw.Access(key)
}

// Put inserts an entry, overwriting the value if an entry with the same key
// already exists. Both key and value bytes are written through the bound
// EntrySpec.
func (t *Table) Put(key, value unsafe.Pointer) error {
	h := t.spec.Hash(key)
	if err := t.raw.checkGrowth(1); err != nil {
		return err
	}

	inner := &t.raw.inner
	i, found := inner.findOrFindInsertSlot(h, func(i uintptr) bool {
		return t.spec.Equal(key, t.raw.bucket(i))
	})
	if !found {
		inner.recordInsertAt(i, *inner.ctrlAt(i), h)
		t.spec.AssignKey(t.raw.bucket(i), key)
	}
	t.spec.AssignValue(unsafe.Add(t.raw.bucket(i), t.raw.layout.ValOffset), value)
	inner.checkInvariants()
	return nil
}

// Delete removes the entry for the key at the given address. It is a noop to
// delete a non-existent key.
func (t *Table) Delete(key unsafe.Pointer) {
	t.raw.Delete(key)
}

// Extend copies every live entry of other into t, overwriting the value of
// any key already present. The two tables must share the same entry layout
// and compatible key semantics; other must not be t itself.
func (t *Table) Extend(other *Table) error {
	return t.raw.Extend(&other.raw)
}

// Clear removes all entries, keeping capacity and the allocation.
func (t *Table) Clear() {
	t.raw.Clear()
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return t.raw.Len()
}

// Next returns the index and address of the first live entry at or after
// index i, or ok=false past the end. See Map.Next.
func (t *Table) Next(i int) (index int, entry unsafe.Pointer, ok bool) {
	return t.raw.Next(i)
}

// Close releases the allocation back to the configured allocator. Idempotent.
func (t *Table) Close() {
	t.raw.Close()
}
