package alloc

import (
	"fmt"

	"github.com/google/btree"
)

// Range is a run of free slots [Start, Start+Len).
type Range struct {
	Start, Len uint32
}

func (r Range) End() uint32 { return r.Start + r.Len }

func rangeLess(a, b Range) bool { return a.Start < b.Start }

// FreeList hands out contiguous runs of slots from a fixed capacity. Address 0
// is never handed out and doubles as the failure result of Realloc.
//
// Free ranges are kept sorted by start and fully coalesced: no two ranges
// touch.
type FreeList struct {
	ranges       *btree.BTreeG[Range]
	numAllocated uint32
	capacity     uint32
}

func NewFreeList(capacity uint32) *FreeList {
	fl := &FreeList{
		ranges:   btree.NewG(16, rangeLess),
		capacity: capacity,
	}
	if capacity > 0 {
		fl.ranges.ReplaceOrInsert(Range{Start: 1, Len: capacity})
	}
	return fl
}

func (fl *FreeList) Capacity() uint32     { return fl.capacity }
func (fl *FreeList) NumAllocated() uint32 { return fl.numAllocated }
func (fl *FreeList) NumFreeRanges() int   { return fl.ranges.Len() }

// FreeRanges returns the free ranges in address order.
func (fl *FreeList) FreeRanges() []Range {
	out := make([]Range, 0, fl.ranges.Len())
	fl.ranges.Ascend(func(r Range) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Realloc grows the allocation at baseAddr from currSize to newSize slots, or
// creates one when baseAddr is 0. It first tries to extend the allocation in
// place into the free range that starts right after it. Otherwise the old run
// is released and the smallest free range that fits is used. It returns 0 when
// no range is large enough; the old run is released in that case.
func (fl *FreeList) Realloc(baseAddr, currSize, newSize uint32) uint32 {
	if baseAddr == 0 && currSize != 0 {
		panic("alloc: realloc of unallocated run with non-zero size")
	}
	if newSize < currSize {
		panic(fmt.Sprintf("alloc: realloc cannot shrink (%d -> %d)", currSize, newSize))
	}
	if baseAddr != 0 && newSize == currSize {
		return baseAddr
	}

	if baseAddr != 0 {
		currEnd := baseAddr + currSize
		if next, ok := fl.ranges.Get(Range{Start: currEnd}); ok && newSize-currSize <= next.Len {
			fl.split(next, newSize-currSize)
			return baseAddr
		}
		fl.Free(baseAddr, currSize)
	}
	if newSize == 0 {
		return 0
	}

	var best Range
	found := false
	fl.ranges.Ascend(func(r Range) bool {
		if r.Len >= newSize && (!found || r.Len < best.Len) {
			best, found = r, true
		}
		return best.Len != newSize
	})
	if !found {
		return 0
	}
	fl.split(best, newSize)
	return best.Start
}

// split takes count slots from the front of the free range r.
func (fl *FreeList) split(r Range, count uint32) {
	fl.ranges.Delete(r)
	if r.Len > count {
		fl.ranges.ReplaceOrInsert(Range{Start: r.Start + count, Len: r.Len - count})
	}
	fl.numAllocated += count
}

// Free returns [baseAddr, baseAddr+size) to the pool, merging it with the
// free ranges right before and after it. The run must be allocated.
func (fl *FreeList) Free(baseAddr, size uint32) {
	if size == 0 {
		return
	}
	if baseAddr == 0 || size > fl.numAllocated {
		panic(fmt.Sprintf("alloc: invalid free of [%d, +%d)", baseAddr, size))
	}
	fl.numAllocated -= size
	r := Range{Start: baseAddr, Len: size}

	var prev Range
	hasPrev := false
	fl.ranges.DescendLessOrEqual(r, func(p Range) bool {
		prev, hasPrev = p, true
		return false
	})
	if hasPrev && prev.End() > r.Start {
		panic(fmt.Sprintf("alloc: free of [%d, +%d) overlaps free range [%d, +%d)", r.Start, r.Len, prev.Start, prev.Len))
	}
	if hasPrev && prev.End() == r.Start {
		fl.ranges.Delete(prev)
		r = Range{Start: prev.Start, Len: prev.Len + r.Len}
	}
	if next, ok := fl.ranges.Get(Range{Start: r.End()}); ok {
		fl.ranges.Delete(next)
		r.Len += next.Len
	}
	fl.ranges.ReplaceOrInsert(r)
}

// HighWater returns one past the highest allocated slot.
func (fl *FreeList) HighWater() uint32 {
	end := fl.capacity + 1
	last, ok := fl.ranges.Max()
	if ok && last.End() == end {
		return last.Start
	}
	return end
}
