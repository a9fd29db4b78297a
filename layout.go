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
	"unsafe"

	"golang.org/x/sys/cpu"
)

// cacheLineSize is the cache line size of the host CPU. The backing
// allocation is padded by this much so the bucket array base can be rounded
// up to any alignment the entry layout demands without a second allocation.
const cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// EntryLayout describes the memory layout of a single (key, value) entry
// packed as one contiguous region: key bytes occupy [0, KeySize), value
// bytes occupy [ValOffset, Size).
type EntryLayout struct {
	// Size is the total footprint of the entry in bytes, including any
	// trailing padding.
	Size uintptr
	// Align is the natural alignment of the entry. Must be a power of two.
	Align uintptr
	// KeySize is the number of key bytes at the start of the entry.
	KeySize uintptr
	// ValOffset is the byte offset of the value within the entry.
	ValOffset uintptr
}

func (l EntryLayout) valid() bool {
	if l.Size == 0 || l.Align == 0 || l.Align&(l.Align-1) != 0 {
		return false
	}
	return l.KeySize <= l.ValOffset && l.ValOffset <= l.Size
}

// tableLayout is an EntryLayout reduced to what the raw table needs to size
// and address its backing allocation. Derived once per table and immutable
// for the table's lifetime.
type tableLayout struct {
	size      uintptr
	ctrlAlign uintptr
}

func makeTableLayout(l EntryLayout) tableLayout {
	align := l.Align
	if align < groupSize {
		align = groupSize
	}
	return tableLayout{size: l.Size, ctrlAlign: align}
}

// normalizeCapacity rounds hint up to the probing granularity: zero, or a
// power of two minus one no smaller than groupSize-1. A 2^k-1 capacity lets
// the probe sequence mask offsets with a bitwise-and instead of dividing.
func normalizeCapacity(hint uintptr) uintptr {
	if hint == 0 {
		return 0
	}
	if hint < groupSize {
		hint = groupSize - 1
	}
	return (uintptr(1) << bits.Len(uint(hint))) - 1
}

// capacityForGrowth returns the smallest normalized capacity whose growth
// headroom can hold n items under the 7/8 load factor policy.
func capacityForGrowth(n uintptr) (uintptr, error) {
	// required = ceil(n * groupSize / maxAvgGroupLoad)
	hi, lo := bits.Mul(uint(n), groupSize)
	if hi != 0 {
		return 0, ErrCapacityOverflow
	}
	required := uintptr((lo + maxAvgGroupLoad - 1) / maxAvgGroupLoad)
	capacity := normalizeCapacity(required)
	if capacity < required {
		return 0, ErrCapacityOverflow
	}
	return capacity, nil
}

// arenaSize computes the total size of the backing allocation for the given
// capacity: the bucket array, padding up to ctrlAlign, capacity+groupSize
// control bytes, plus alignment slack for rounding up the base pointer. Also
// returns the offset of the control bytes from the (aligned) base.
func arenaSize(capacity uintptr, tl tableLayout) (total, ctrlOff uintptr, err error) {
	hi, bucketBytes := bits.Mul(uint(capacity), uint(tl.size))
	if hi != 0 {
		return 0, 0, ErrCapacityOverflow
	}
	ctrlOff = (uintptr(bucketBytes) + tl.ctrlAlign - 1) &^ (tl.ctrlAlign - 1)
	if ctrlOff < uintptr(bucketBytes) {
		return 0, 0, ErrCapacityOverflow
	}
	slack := tl.ctrlAlign
	if slack < cacheLineSize {
		slack = cacheLineSize
	}
	total = ctrlOff + capacity + groupSize + slack
	if total < ctrlOff {
		return 0, 0, ErrCapacityOverflow
	}
	return total, ctrlOff, nil
}
