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
	"fmt"
)

// ErrCapacityOverflow is returned when a requested capacity or growth would
// overflow address-space arithmetic. It is checked before any allocation
// attempt is made.
var ErrCapacityOverflow = errors.New("hashbrown: capacity overflow")

// AllocError reports that the allocator failed to provision the backing
// region for a table. The table is left in its last valid state.
type AllocError struct {
	// Size is the number of bytes that was requested.
	Size uintptr
	// Err is the allocator's failure, if it reported one.
	Err error
}

func (e *AllocError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hashbrown: allocating %d bytes: %v", e.Size, e.Err)
	}
	return fmt.Sprintf("hashbrown: allocating %d bytes failed", e.Size)
}

func (e *AllocError) Unwrap() error { return e.Err }

// Allocator provisions the single backing region used by a table. Each table
// holds exactly one live region at a time; growth allocates the replacement
// region before freeing the old one. The default allocator utilizes Go's
// builtin make() and allows the GC to reclaim memory.
//
// Alloc may fail, in which case the failure is surfaced to the caller as an
// AllocError and the table is left unchanged. An allocator shared by
// multiple tables is not called concurrently unless the tables themselves
// are used concurrently.
type Allocator interface {
	// Alloc returns a slice of at least n bytes. The table takes care of
	// aligning its arrays within the region, no alignment beyond Go's
	// natural slice alignment is required.
	Alloc(n uintptr) ([]byte, error)

	// Free releases a region previously returned by Alloc. Every region a
	// table allocates is freed exactly once, on growth or Close.
	Free(mem []byte)
}

type defaultAllocator struct{}

func (defaultAllocator) Alloc(n uintptr) ([]byte, error) {
	return make([]byte, n), nil
}

func (defaultAllocator) Free(mem []byte) {
}

// DefaultAllocator returns the allocator used when callers have no memory
// management of their own: make() for Alloc and a no-op Free.
func DefaultAllocator() Allocator {
	return defaultAllocator{}
}
