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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// float64Spec extends float64Desc with typed assignment, making it usable
// behind the Typed facade.
type float64Spec struct {
	float64Desc
}

func (float64Spec) AssignKey(dst, src unsafe.Pointer) {
	*(*float64)(dst) = *(*float64)(src)
}

func (float64Spec) AssignValue(dst, src unsafe.Pointer) {
	*(*float64)(dst) = *(*float64)(src)
}

func newFloat64Table(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(0, LayoutOf[float64, float64](), float64Spec{}, nil)
	require.NoError(t, err)
	return tbl
}

func TestLayoutOf(t *testing.T) {
	layout := LayoutOf[int32, int64]()
	require.EqualValues(t, 16, layout.Size)
	require.EqualValues(t, 8, layout.Align)
	require.EqualValues(t, 4, layout.KeySize)
	require.EqualValues(t, 8, layout.ValOffset)
	require.True(t, layout.valid())

	layout = LayoutOf[float64, float64]()
	require.EqualValues(t, 16, layout.Size)
	require.EqualValues(t, 8, layout.ValOffset)
}

func TestTypedBasic(t *testing.T) {
	table := newFloat64Table(t)
	table2 := newFloat64Table(t)
	require.EqualValues(t, 0, table.Len())

	m := View[float64, float64](table)
	m2 := View[float64, float64](table2)

	// Absent key.
	key := 0.2233
	require.Nil(t, m.Get(&key))

	// Insert and read back.
	value := 1.23
	require.NoError(t, m.Insert(&key, &value))
	got := m.Get(&key)
	require.NotNil(t, got)
	require.Equal(t, value, *got)

	// Delete and verify.
	m.Delete(&key)
	require.Nil(t, m.Get(&key))

	// Bulk insert, extend into a second map, then clear the first.
	for i := 0; i < 10000; i++ {
		k := float64(i)
		require.NoError(t, m.Insert(&k, &k))
	}
	require.EqualValues(t, 10000, m.Len())
	require.NoError(t, m2.Extend(m))
	table.Clear()
	require.EqualValues(t, 0, m.Len())
	require.EqualValues(t, 10000, m2.Len())

	k := 42.0
	got = m2.Get(&k)
	require.NotNil(t, got)
	require.Equal(t, 42.0, *got)
}

func TestTypedOverwrite(t *testing.T) {
	m := View[float64, float64](newFloat64Table(t))

	k := 3.5
	v1, v2 := 1.0, 2.0
	require.NoError(t, m.Insert(&k, &v1))
	require.NoError(t, m.Insert(&k, &v2))
	require.EqualValues(t, 1, m.Len())
	require.Equal(t, v2, *m.Get(&k))
}

func TestTypedGetReference(t *testing.T) {
	m := View[float64, float64](newFloat64Table(t))

	k, v := 7.0, 9.0
	require.NoError(t, m.Insert(&k, &v))

	// Get returns a reference into the table: writes through it are
	// observed by subsequent lookups.
	p := m.Get(&k)
	require.NotNil(t, p)
	*p = 11.0
	require.Equal(t, 11.0, *m.Get(&k))
}

func TestTypedByteEntrySpec(t *testing.T) {
	type key [4]byte
	layout := LayoutOf[key, uint32]()
	table, err := NewTable(0, layout, ByteEntrySpec{
		KeySize: layout.KeySize,
		ValSize: uintptr(layout.Size - layout.ValOffset),
	}, nil)
	require.NoError(t, err)
	m := View[key, uint32](table)

	for i := 0; i < 1000; i++ {
		k := key{byte(i), byte(i >> 8), 0xab, 0xcd}
		v := uint32(i)
		require.NoError(t, m.Insert(&k, &v))
	}
	require.EqualValues(t, 1000, m.Len())
	for i := 0; i < 1000; i++ {
		k := key{byte(i), byte(i >> 8), 0xab, 0xcd}
		got := m.Get(&k)
		require.NotNil(t, got)
		require.EqualValues(t, uint32(i), *got)
	}
}

func TestTableIterate(t *testing.T) {
	table := newFloat64Table(t)
	m := View[float64, float64](table)

	e := make(map[float64]float64)
	for i := 0; i < 100; i++ {
		k, v := float64(i), float64(2*i)
		require.NoError(t, m.Insert(&k, &v))
		e[k] = v
	}

	seen := make(map[float64]float64)
	for i, p, ok := table.Next(0); ok; i, p, ok = table.Next(i + 1) {
		k := *(*float64)(p)
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = *(*float64)(unsafe.Add(p, 8))
	}
	require.Equal(t, e, seen)
}
