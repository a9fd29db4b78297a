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

// Package hashbrown is a type-erased Swiss table engine: a single
// open-addressing hash table core that strongly typed containers are built
// on top of. Clients describe an entry only by its memory layout
// (EntryLayout) and supply capability objects for hashing, equality and
// optionally assignment; the engine operates exclusively on opaque byte
// addresses. See https://abseil.io/about/design/swisstables and
// https://faultlore.com/blah/hashbrown-tldr/ for the table design.
//
// Open addressing resolves collisions by probing alternate slots in the same
// array rather than chaining. A hybrid between linear and quadratic probing
// is used - linear probing within groups of small fixed size and quadratic
// probing at the group level. The key design choice of Swiss tables is a
// separate metadata array storing 1 byte per slot. 7 bits of this "control
// byte" are taken from hash(key) and the remaining bit indicates whether the
// slot is empty, full, deleted, or a sentinel. The control bytes allow quick
// probes: the generic version compares 8 bytes at a time through bit tricks
// (SWAR, SIMD Within A Register).
//
// A table's layout is N-1 slots where N is a power of 2, and N+groupSize
// control bytes. The [N:N+groupSize] control bytes mirror the first
// groupSize control bytes so that probe operations near the end of the
// control bytes array do not have to perform additional checks. The control
// byte for slot N is always a sentinel which is considered empty for the
// purposes of probing but is not available for storing an entry and is also
// not a deletion tombstone. Buckets and control bytes live in one backing
// allocation sized from the declared entry layout.
//
// Deletion is performed using tombstones (ctrlDeleted) with an optimization
// to mark a slot as empty if we can prove that doing so would not violate
// the probing behavior that a group of full slots causes probing to
// continue. It is invalid to take a group of full slots and mark one as
// empty as doing so would cause subsequent lookups to terminate at that
// group rather than continue to probe.
//
// Three bindings drive the same engine: Map (stored KeyDesc capabilities),
// Table (stored EntrySpec capabilities, enabling the Typed facade), and
// FnMap (capabilities passed per call). None of them are goroutine-safe.
package hashbrown

import (
	"fmt"
	"math/bits"
	"strings"
	"unsafe"
)

const debug = false

// emptyCtrls is what the ctrls of a zero-capacity table point at. It never
// matches a probe, and because growthLeft == 0 the first insert immediately
// grows the table. This spares Access, Assign, and Delete a nil check.
var emptyCtrls = func() unsafeSlice[ctrl] {
	v := make([]ctrl, groupSize)
	for i := range v {
		v[i] = ctrlEmpty
	}
	return makeUnsafeSlice(v)
}()

// rawTable is the type-erased table core. It owns one allocation holding the
// bucket array followed by the control bytes, and the probing, insertion,
// erasure and growth state. Entry semantics (hashing, equality, assignment)
// are supplied per call by the bindings; the core never interprets bucket
// bytes.
type rawTable struct {
	// mem is the backing allocation; nil when capacity == 0. Held so the GC
	// keeps the region alive while base and ctrls point into it.
	mem []byte
	// base is the start of the bucket array, rounded up to the layout's
	// ctrlAlign within mem.
	base unsafe.Pointer
	// ctrls is capacity+groupSize in length. ctrls[capacity] is always
	// ctrlSentinel which is used to stop probe iteration. A copy of the
	// first groupSize-1 elements of ctrls is mirrored into the remaining
	// slots which is done so that a probe sequence which picks a value near
	// the end of ctrls will have valid control bytes to look at.
	ctrls unsafeSlice[ctrl]
	// The total number of slots (always 2^N-1 or 0). The capacity is used as
	// a mask to quickly compute i%N using a bitwise & operation.
	capacity uintptr
	// The number of filled slots (i.e. the number of elements in the table).
	used int
	// The number of slots we can still fill without needing to rehash.
	//
	// This is stored separately due to tombstones: we do not include
	// tombstones in the growth capacity because we'd like to rehash when the
	// table is filled with tombstones as otherwise probe sequences might get
	// unacceptably long without triggering a rehash.
	growthLeft int
}

// newRawTable builds a table with the given normalized-up capacity hint. A
// zero hint allocates nothing; the first insert forces a growth.
func newRawTable(alloc Allocator, tl tableLayout, capacityHint uintptr) (rawTable, error) {
	capacity := normalizeCapacity(capacityHint)
	if capacity == 0 {
		return rawTable{ctrls: emptyCtrls}, nil
	}

	total, ctrlOff, err := arenaSize(capacity, tl)
	if err != nil {
		return rawTable{}, err
	}
	mem, err := alloc.Alloc(total)
	if err != nil {
		return rawTable{}, &AllocError{Size: total, Err: err}
	}
	if uintptr(len(mem)) < total {
		alloc.Free(mem)
		return rawTable{}, &AllocError{Size: total}
	}

	p := unsafe.Pointer(unsafe.SliceData(mem))
	off := (tl.ctrlAlign - uintptr(p)&(tl.ctrlAlign-1)) & (tl.ctrlAlign - 1)
	t := rawTable{
		mem:      mem,
		base:     unsafe.Add(p, off),
		capacity: capacity,
	}
	t.ctrls = unsafeSlice[ctrl]{ptr: unsafe.Add(t.base, ctrlOff)}
	t.resetCtrls()
	return t, nil
}

// resetCtrls marks every slot empty, restores the sentinel and the growth
// headroom. Bucket bytes are untouched.
func (t *rawTable) resetCtrls() {
	for i := uintptr(0); i < t.capacity+groupSize; i++ {
		*t.ctrls.At(i) = ctrlEmpty
	}
	*t.ctrls.At(t.capacity) = ctrlSentinel
	if t.capacity < groupSize {
		// A single-group table can fill all slots except 1: an empty slot is
		// needed to terminate find operations.
		t.growthLeft = int(t.capacity - 1)
	} else {
		t.growthLeft = int((t.capacity * maxAvgGroupLoad) / groupSize)
	}
}

func (t *rawTable) ctrlAt(i uintptr) *ctrl {
	return t.ctrls.At(i)
}

// setCtrl sets the control byte at index i, taking care to mirror the byte
// to the end of the control bytes slice if i<groupSize.
func (t *rawTable) setCtrl(i uintptr, v ctrl) {
	*t.ctrls.At(i) = v
	// Mirror the first groupSize control state to the end of the ctrls
	// slice. We do this unconditionally which is faster than performing a
	// comparison to do it only for the first groupSize slots. Note that the
	// index will be the identity for slots in the range
	// [groupSize,capacity).
	*t.ctrls.At(((i-(groupSize-1))&t.capacity)+(groupSize-1)) = v
}

// bucketPtr returns the address of the size-byte bucket at index i.
func (t *rawTable) bucketPtr(i, size uintptr) unsafe.Pointer {
	return unsafe.Add(t.base, i*size)
}

// find probes for the slot holding an entry with the given hash for which eq
// reports true. Probing terminates at the first group containing an empty
// slot: insertion never skips past an empty slot for the same key, so an
// empty slot proves the key cannot exist further along this probe sequence.
func (t *rawTable) find(hash uint64, eq func(index uintptr) bool) (uintptr, bool) {
	seq := makeProbeSeq(h1(hash), t.capacity)
	if debug {
		fmt.Printf("find(%016x): %s\n", hash, seq)
	}
	for ; ; seq = seq.next() {
		g := t.ctrlAt(seq.offset)
		match := g.matchH2(h2(hash))
		for match != 0 {
			bit := match.first()
			i := seq.offsetAt(bit)
			if eq(i) {
				return i, true
			}
			match = match.remove(bit)
		}
		if g.matchEmpty() != 0 {
			return 0, false
		}
	}
}

// findOrFindInsertSlot is find with a fallback: if no equality match is
// found, it returns the first empty or deleted slot encountered along the
// probe sequence (found=false). Preferring a tombstone over a later empty
// slot keeps probe sequences short; the slot is always within this key's own
// probe sequence so the "empty proves absence" property is preserved. The
// returned insert slot is valid only until the next mutating operation.
//
// The caller must have ensured growth headroom: the probe relies on at least
// one empty slot existing to terminate.
func (t *rawTable) findOrFindInsertSlot(hash uint64, eq func(index uintptr) bool) (index uintptr, found bool) {
	var insert uintptr
	haveInsert := false
	seq := makeProbeSeq(h1(hash), t.capacity)
	for ; ; seq = seq.next() {
		g := t.ctrlAt(seq.offset)
		match := g.matchH2(h2(hash))
		for match != 0 {
			bit := match.first()
			i := seq.offsetAt(bit)
			if eq(i) {
				return i, true
			}
			match = match.remove(bit)
		}
		if !haveInsert {
			if m := g.matchEmptyOrDeleted(); m != 0 {
				insert = seq.offsetAt(m.first())
				haveInsert = true
			}
		}
		if g.matchEmpty() != 0 {
			return insert, false
		}
	}
}

// findInsertSlot returns the first empty or deleted slot along the hash's
// probe sequence without any equality checks. Used during growth where keys
// are known to be distinct.
func (t *rawTable) findInsertSlot(hash uint64) uintptr {
	seq := makeProbeSeq(h1(hash), t.capacity)
	for ; ; seq = seq.next() {
		g := t.ctrlAt(seq.offset)
		if match := g.matchEmptyOrDeleted(); match != 0 {
			return seq.offsetAt(match.first())
		}
	}
}

// recordInsertAt marks index i full with the hash's 7-bit fragment and
// updates the accounting. oldCtrl is the control byte the insert slot held:
// consuming a tombstone does not use up growth headroom since the slot was
// already counted when it was first filled.
func (t *rawTable) recordInsertAt(i uintptr, oldCtrl ctrl, hash uint64) {
	if oldCtrl == ctrlEmpty {
		t.growthLeft--
	}
	t.setCtrl(i, h2(hash))
	t.used++
	if debug {
		fmt.Printf("insert: index=%d used=%d growth-left=%d\n", i, t.used, t.growthLeft)
	}
}

// erase vacates slot i. Given an index to delete we simply create a
// tombstone and mark the ctrl as deleted. If we can prove that the slot
// would not appear in a probe sequence we can mark the slot as empty
// instead. We can prove this by checking to see if the slot is part of any
// group that could have been full (assuming we never create an empty slot in
// a group with no empties, which this heuristic guarantees we never do). If
// the slot is always part of groups that could never have been full then
// find would stop at this slot since we do not probe beyond groups with
// empties.
//
// The caller has already released any resources inside the bucket; the
// engine never runs per-entry destructors.
func (t *rawTable) erase(i uintptr) {
	t.used--
	if t.wasNeverFull(i) {
		t.setCtrl(i, ctrlEmpty)
		t.growthLeft++
	} else {
		t.setCtrl(i, ctrlDeleted)
	}
	if debug {
		fmt.Printf("erase: index=%d used=%d growth-left=%d\n", i, t.used, t.growthLeft)
	}
}

// wasNeverFull returns true if index i was never part of a full group. This
// check allows an optimization during deletion whereby a deleted slot can be
// converted to empty rather than a tombstone. See the comment on erase.
func (t *rawTable) wasNeverFull(i uintptr) bool {
	if t.capacity < groupSize {
		// The table fits entirely in a single group so we will never probe
		// beyond this group.
		return true
	}

	indexBefore := (i - groupSize) & t.capacity
	emptyAfter := t.ctrlAt(i).matchEmpty()
	emptyBefore := t.ctrlAt(indexBefore).matchEmpty()

	// We count how many consecutive non empties we have to the right and to
	// the left of i. If the sum is >= groupSize then there is at least one
	// probe window that might have seen a full group.
	if emptyBefore != 0 && emptyAfter != 0 &&
		((bits.TrailingZeros64(uint64(emptyAfter))>>3)+
			(bits.LeadingZeros64(uint64(emptyBefore))>>3)) < groupSize {
		return true
	}
	return false
}

// clearNoDrop resets every control byte to empty (plus the sentinel),
// leaving capacity and the allocation in place. Bucket bytes are left as-is;
// the caller is responsible for having released any owned resources inside
// them.
func (t *rawTable) clearNoDrop() {
	if t.capacity > 0 {
		t.resetCtrls()
	}
	t.used = 0
}

// nextFullAfter scans forward group by group and returns the first full slot
// at or after index i. Mutating the table invalidates the scan.
func (t *rawTable) nextFullAfter(i uintptr) (uintptr, bool) {
	for i < t.capacity {
		g := t.ctrlAt(i)
		if match := g.matchFull(); match != 0 {
			j := i + match.first()
			if j >= t.capacity {
				// The match is in the mirrored control bytes past the
				// sentinel; every real slot at or after i is vacant.
				return 0, false
			}
			return j, true
		}
		i += groupSize
	}
	return 0, false
}

// needGrowth reports whether inserting additional new keys requires growing
// first.
func (t *rawTable) needGrowth(additional int) bool {
	return additional > t.growthLeft
}

// reserveRehash grows the table so that additional new keys fit under the
// load factor policy. A fresh region is allocated and every full bucket is
// reinserted into it in probe order, recomputing its hash through the hasher
// callback (the core does not own hashing state, that lives in the binding)
// and skipping equality checks since keys are known distinct. The old region
// is freed afterwards.
//
// Growth fails atomically: on error the table is completely unchanged, old
// allocation intact, no partial rehash visible.
func (t *rawTable) reserveRehash(alloc Allocator, tl tableLayout, additional int, hasher func(bucket unsafe.Pointer) uint64) error {
	need := uint(t.used) + uint(additional)
	if need < uint(t.used) {
		return ErrCapacityOverflow
	}
	required, err := capacityForGrowth(uintptr(need))
	if err != nil {
		return err
	}
	newCapacity := required
	if doubled := 2*t.capacity + 1; doubled > newCapacity {
		newCapacity = doubled
	}

	if debug {
		fmt.Printf("grow: capacity=%d->%d used=%d additional=%d\n",
			t.capacity, newCapacity, t.used, additional)
	}

	newT, err := newRawTable(alloc, tl, newCapacity)
	if err != nil {
		return err
	}

	for i := uintptr(0); i < t.capacity; i++ {
		if *t.ctrlAt(i)&ctrlEmpty != 0 {
			continue
		}
		src := t.bucketPtr(i, tl.size)
		h := hasher(src)
		j := newT.findInsertSlot(h)
		newT.recordInsertAt(j, *newT.ctrlAt(j), h)
		memcopy(newT.bucketPtr(j, tl.size), src, tl.size)
	}

	t.free(alloc)
	*t = newT
	t.checkInvariants()
	return nil
}

// free releases the backing allocation and leaves the table in the
// zero-capacity state. Idempotent.
func (t *rawTable) free(alloc Allocator) {
	if t.mem != nil {
		alloc.Free(t.mem)
	}
	*t = rawTable{ctrls: emptyCtrls}
}

func (t *rawTable) checkInvariants() {
	if invariants {
		if t.capacity > 0 {
			// Verify the cloned control bytes are good.
			for i, n := uintptr(0), uintptr(groupSize-1); i < n; i++ {
				j := ((i - (groupSize - 1)) & t.capacity) + (groupSize - 1)
				ci := *t.ctrlAt(i)
				cj := *t.ctrlAt(j)
				if ci != cj {
					panic(fmt.Sprintf("invariant failed: ctrl(%d)=%02x != ctrl(%d)=%02x\n%s",
						i, ci, j, cj, t.debugString()))
				}
			}
			// Verify the sentinel is good.
			if c := *t.ctrlAt(t.capacity); c != ctrlSentinel {
				panic(fmt.Sprintf("invariant failed: ctrl(%d): expected sentinel, but found %02x\n%s",
					t.capacity, c, t.debugString()))
			}
		}

		var used, deleted int
		for i := uintptr(0); i < t.capacity; i++ {
			switch c := *t.ctrlAt(i); {
			case c == ctrlDeleted:
				deleted++
			case c == ctrlEmpty:
			case c == ctrlSentinel:
				panic(fmt.Sprintf("invariant failed: ctrl(%d): unexpected sentinel", i))
			default:
				used++
			}
		}
		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if t.capacity >= groupSize {
			growthLeft := int((t.capacity*maxAvgGroupLoad)/groupSize-uintptr(t.used)) - deleted
			if growthLeft != t.growthLeft {
				panic(fmt.Sprintf("invariant failed: found %d growthLeft, but expected %d\n%s",
					t.growthLeft, growthLeft, t.debugString()))
			}
		}
	}
}

func (t *rawTable) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  growth-left=%d\n", t.capacity, t.used, t.growthLeft)
	for i := uintptr(0); i < t.capacity+groupSize; i++ {
		switch c := *t.ctrlAt(i); c {
		case ctrlEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		case ctrlSentinel:
			fmt.Fprintf(&buf, "  %4d: sentinel\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: [ctrl=%02x]\n", i, c)
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := groupSize * (i^2 + i)/2 + hash (mod mask+1)
//
// The use of groupSize ensures that each probe step does not overlap groups;
// the sequence effectively outputs the addresses of *groups* (although not
// necessarily aligned to any boundary). The group machinery allows us to
// check an entire group with minimal branching.
//
// Wrapping around at mask+1 is important, but not for the obvious reason. As
// described above, the first few entries of the control byte array are
// mirrored at the end of the array, which group will find and use for
// selecting candidates. However, when those candidates' slots are actually
// inspected, there are no corresponding slots for the cloned bytes, so we
// need to make sure we've treated those offsets as "wrapping around".
//
// It turns out that this probe sequence visits every group exactly once if
// the number of groups is a power of two, since (i^2+i)/2 is a bijection in
// Z/(2^m). See https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index += groupSize
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) offsetAt(i uintptr) uintptr {
	return (s.offset + i) & s.mask
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}

// h1 extracts the H1 portion of a hash: the 57 upper bits.
func h1(h uint64) uintptr {
	return uintptr(h >> 7)
}

// h2 extracts the H2 portion of a hash: the 7 bits not used for h1. These
// are used as an occupied control byte.
func h2(h uint64) ctrl {
	return ctrl(h & 0x7f)
}

// memcopy copies n bytes from src to dst. The regions must not overlap.
func memcopy(dst, src unsafe.Pointer, n uintptr) {
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}
