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
	"math/bits"
	"strings"
	"unsafe"
)

const (
	groupSize       = 8
	maxAvgGroupLoad = 7

	ctrlEmpty    ctrl = 0b10000000
	ctrlDeleted  ctrl = 0b11111110
	ctrlSentinel ctrl = 0b11111111

	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080

	bitsetEmpty   = bitsetLSB * uint64(ctrlEmpty)
	bitsetDeleted = bitsetLSB * uint64(ctrlDeleted)
)

// Each slot in the table has a control byte which can have one of four
// states: empty, deleted, full and the sentinel. They have the following bit
// patterns:
//
//	   empty: 1 0 0 0 0 0 0 0
//	 deleted: 1 1 1 1 1 1 1 0
//	    full: 0 h h h h h h h  // h represents the H2 hash bits
//	sentinel: 1 1 1 1 1 1 1 1
type ctrl uint8

// bitset represents the result of matching a group of groupSize control
// bytes. Each byte in the set is either 0x80 if the corresponding control
// byte is a match or 0x00 otherwise.
type bitset uint64

// first returns the relative index of the first matching control byte in the
// group. Returns groupSize if the bitset is empty.
func (b bitset) first() uintptr {
	return uintptr(bits.TrailingZeros64(uint64(b))) >> 3
}

// remove clears the match at relative index i.
func (b bitset) remove(i uintptr) bitset {
	return b &^ (bitset(0x80) << (i << 3))
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(groupSize)
	for i := 0; i < groupSize; i++ {
		if (b & (bitset(0x80) << (i << 3))) != 0 {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}

// The matchers below interpret the groupSize control bytes starting at c as a
// single uint64 and compute their result with SWAR bit tricks. The load is
// performed as one unaligned read; the caller guarantees that groupSize bytes
// are addressable. The matchers only report what they observe, bounding the
// result to the logical slot range is the caller's responsibility.

// matchH2 returns a bitset where each byte is 0x80 if that control byte
// equals the 7-bit hash fragment h (and 0x00 otherwise).
func (c *ctrl) matchH2(h ctrl) bitset {
	// NB: This generic matching routine produces false positive matches when
	// h is 2^N and the control bytes have a seq of 2^N followed by 2^N+1. For
	// example: if ctrls==0x0302 and h=02, we'll compute v as 0x0100. When we
	// subtract off 0x0101 the first 2 bytes we'll become 0xffff and both be
	// considered matches of h. The false positive matches are not a problem,
	// just a rare inefficiency. Note that they only occur if there is a real
	// match and never occur on ctrlEmpty, ctrlDeleted, or ctrlSentinel. The
	// subsequent key comparisons ensure that there is no correctness issue.
	v := *(*uint64)((unsafe.Pointer)(c)) ^ (bitsetLSB * uint64(h))
	return bitset(((v - bitsetLSB) &^ v) & bitsetMSB)
}

// matchFull returns a bitset where each byte is 0x80 if that control byte
// indicates a full slot (and 0x00 otherwise).
func (c *ctrl) matchFull() bitset {
	// A full slot is the only state with bit 7 unset.
	v := *(*uint64)((unsafe.Pointer)(c))
	return bitset(^v & bitsetMSB)
}

// matchEmpty returns a bitset where each byte is 0x80 if that control byte
// indicates an empty slot (and 0x00 otherwise).
func (c *ctrl) matchEmpty() bitset {
	v := *(*uint64)((unsafe.Pointer)(c))
	// An empty slot is              1000 0000
	// A deleted or sentinel slot is 1111 111?
	// A slot is empty iff bit 7 is set and bit 1 is not.
	// We could select any of the other bits here (e.g. v << 1 would also
	// work).
	return bitset((v &^ (v << 6)) & bitsetMSB)
}

// matchEmptyOrDeleted returns a bitset where each byte is 0x80 if that
// control byte indicates an empty or deleted slot (and 0x00 otherwise).
func (c *ctrl) matchEmptyOrDeleted() bitset {
	// An empty slot is  1000 0000.
	// A deleted slot is 1111 1110.
	// The sentinel is   1111 1111.
	// A slot is empty or deleted iff bit 7 is set and bit 0 is not.
	v := *(*uint64)((unsafe.Pointer)(c))
	return bitset((v &^ (v << 7)) & bitsetMSB)
}
