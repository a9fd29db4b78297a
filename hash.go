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
	"bytes"
	"unsafe"

	"github.com/zeebo/xxh3"
)

// HashBytes hashes the n bytes at p with xxh3. This is the hash behind the
// byte descriptors below and a reasonable default for any fixed-size key.
func HashBytes(p unsafe.Pointer, n uintptr) uint64 {
	return xxh3.Hash(unsafe.Slice((*byte)(p), n))
}

// ByteKeyDesc is a KeyDesc for keys that are opaque fixed-size byte strings:
// xxh3 over the key bytes and bytewise equality.
type ByteKeyDesc struct {
	// KeySize is the key width in bytes.
	KeySize uintptr
}

func (d ByteKeyDesc) Hash(key unsafe.Pointer) uint64 {
	return HashBytes(key, d.KeySize)
}

func (d ByteKeyDesc) Equal(a, b unsafe.Pointer) bool {
	return bytes.Equal(
		unsafe.Slice((*byte)(a), d.KeySize),
		unsafe.Slice((*byte)(b), d.KeySize))
}

// ByteEntrySpec is an EntrySpec treating both key and value as opaque
// fixed-size byte strings. Suitable for any pointer-free entry whose
// identity is its raw key bytes.
type ByteEntrySpec struct {
	// KeySize is the key width in bytes.
	KeySize uintptr
	// ValSize is the value width in bytes.
	ValSize uintptr
}

func (d ByteEntrySpec) Hash(key unsafe.Pointer) uint64 {
	return HashBytes(key, d.KeySize)
}

func (d ByteEntrySpec) Equal(a, b unsafe.Pointer) bool {
	return bytes.Equal(
		unsafe.Slice((*byte)(a), d.KeySize),
		unsafe.Slice((*byte)(b), d.KeySize))
}

func (d ByteEntrySpec) AssignKey(dst, src unsafe.Pointer) {
	memcopy(dst, src, d.KeySize)
}

func (d ByteEntrySpec) AssignValue(dst, src unsafe.Pointer) {
	memcopy(dst, src, d.ValSize)
}
