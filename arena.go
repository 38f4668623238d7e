// arena.go - monotonic bump allocator over the shared sample arena
//
// Grounded on Memory.h's static bump-and-release accounting (s_usageMEM0),
// adapted from the two-SPI-chip address space to one contiguous Go slice.

package looper

import "fmt"

// Arena is a single monotonic allocator for the sample memory shared by all
// tracks. Allocation only ever grows the cursor; release only ever rolls it
// back, and only for the most recently allocated region (strict LIFO).
type Arena struct {
	samples []int16
	cursor  int
	// allocs records the base of every still-live allocation in order, so
	// Free can verify LIFO discipline.
	allocs []int
}

// NewArena constructs an arena backed by a freshly zeroed slice of the given
// capacity in samples.
func NewArena(capacitySamples int) *Arena {
	return &Arena{samples: make([]int16, capacitySamples)}
}

// Capacity returns the total number of samples the arena can hold.
func (a *Arena) Capacity() int { return len(a.samples) }

// Cursor returns the current bump offset, i.e. the base the next Alloc
// would return.
func (a *Arena) Cursor() int { return a.cursor }

// Alloc reserves samples contiguous samples starting at the current cursor
// and advances the cursor past them. It fails if the arena has insufficient
// remaining capacity.
func (a *Arena) Alloc(samples int) (base int, ok bool) {
	if samples < 0 || a.cursor+samples > len(a.samples) {
		return 0, false
	}
	base = a.cursor
	a.cursor += samples
	a.allocs = append(a.allocs, base)
	return base, true
}

// Remaining returns how many samples may still be allocated before the
// arena is exhausted.
func (a *Arena) Remaining() int { return len(a.samples) - a.cursor }

// Free releases the allocation at base, rolling the cursor back to it. It
// only succeeds when base is the most recently allocated, still-live
// region (LIFO); any other request is rejected.
func (a *Arena) Free(base int) bool {
	n := len(a.allocs)
	if n == 0 || a.allocs[n-1] != base {
		return false
	}
	a.allocs = a.allocs[:n-1]
	a.cursor = base
	return true
}

// Reset rolls the arena back to empty, discarding all live allocations.
// Callers are responsible for clearing any tracks that held them first.
func (a *Arena) Reset() {
	a.cursor = 0
	a.allocs = a.allocs[:0]
}

// Slice returns the backing window [base, base+length) for direct use by a
// BlockBuffer. It panics on an out-of-range request, matching spec's
// treatment of out-of-bounds access as a programming error.
func (a *Arena) Slice(base, length int) []int16 {
	if base < 0 || length < 0 || base+length > len(a.samples) {
		panic(fmt.Sprintf("looper: arena slice [%d:%d] out of range (cap %d)", base, base+length, len(a.samples)))
	}
	return a.samples[base : base+length]
}
