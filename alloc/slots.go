package alloc

import (
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxelsplace/voxrt/voxel"
)

const ErrTypeArenaExhausted = "alloc_arena_exhausted"

// SectorInfo records where the bricks of one view sector live. Brick i of the
// sector occupies slot BaseSlot + popcount(AllocMask & (1<<i - 1)).
type SectorInfo struct {
	BaseSlot  uint32
	AllocMask uint64

	viewIdx uint32
}

// Slot returns the slot of brick i, which must be allocated.
func (s *SectorInfo) Slot(i uint32) uint32 {
	bit := uint64(1) << i
	if s.AllocMask&bit == 0 {
		panic("alloc: slot of unallocated brick")
	}
	return s.BaseSlot + uint32(bits.OnesCount64(s.AllocMask&(bit-1)))
}

func (s *SectorInfo) NumBricks() uint32 { return uint32(bits.OnesCount64(s.AllocMask)) }

// ViewIndex is the linear index of the sector inside the view.
func (s *SectorInfo) ViewIndex() uint32 { return s.viewIdx }

// BrickSlotAllocator assigns slot runs of a flat brick buffer to the sectors
// of a fixed size view over the world. The view is ViewXZ x ViewY x ViewXZ
// sectors, starting at the view origin.
type BrickSlotAllocator struct {
	Arena *FreeList

	viewXZ, viewY uint32
	origin        voxel.IVec3
	sectors       []SectorInfo
}

// NewBrickSlotAllocator sizes the arena so that every brick of the view fits.
func NewBrickSlotAllocator(viewXZ, viewY uint32) *BrickSlotAllocator {
	return NewBrickSlotAllocatorWithCapacity(viewXZ, viewY, viewXZ*viewXZ*viewY*voxel.BricksPerSector)
}

func NewBrickSlotAllocatorWithCapacity(viewXZ, viewY, capacity uint32) *BrickSlotAllocator {
	a := &BrickSlotAllocator{
		Arena:   NewFreeList(capacity),
		viewXZ:  viewXZ,
		viewY:   viewY,
		sectors: make([]SectorInfo, viewXZ*viewXZ*viewY),
	}
	for i := range a.sectors {
		a.sectors[i].viewIdx = uint32(i)
	}
	return a
}

// Reset forgets every allocation.
func (a *BrickSlotAllocator) Reset() {
	for i := range a.sectors {
		a.sectors[i] = SectorInfo{viewIdx: uint32(i)}
	}
	a.Arena = NewFreeList(a.Arena.Capacity())
}

func (a *BrickSlotAllocator) ViewSize() (xz, y uint32) { return a.viewXZ, a.viewY }
func (a *BrickSlotAllocator) ViewOrigin() voxel.IVec3  { return a.origin }
func (a *BrickSlotAllocator) NumSectors() int          { return len(a.sectors) }

// SetViewOrigin moves the view so that it starts at the world sector origin.
// All allocations are dropped when the origin changes.
func (a *BrickSlotAllocator) SetViewOrigin(origin voxel.IVec3) {
	if origin == a.origin {
		return
	}
	a.origin = origin
	a.Reset()
}

// ViewIndex returns the linear view index of a world sector position.
func (a *BrickSlotAllocator) ViewIndex(worldSectorPos voxel.IVec3) (uint32, bool) {
	p := worldSectorPos.Sub(a.origin)
	if uint32(p.X) >= a.viewXZ || uint32(p.Z) >= a.viewXZ || uint32(p.Y) >= a.viewY {
		return 0, false
	}
	return uint32(p.X) + uint32(p.Z)*a.viewXZ + uint32(p.Y)*a.viewXZ*a.viewXZ, true
}

// Sector returns the record of the sector at worldSectorPos, or nil when it
// lies outside the view.
func (a *BrickSlotAllocator) Sector(worldSectorPos voxel.IVec3) *SectorInfo {
	idx, ok := a.ViewIndex(worldSectorPos)
	if !ok {
		return nil
	}
	return &a.sectors[idx]
}

// SectorAt returns the record at a linear view index.
func (a *BrickSlotAllocator) SectorAt(viewIdx uint32) *SectorInfo { return &a.sectors[viewIdx] }

// Pos returns the world sector position of info.
func (a *BrickSlotAllocator) Pos(info *SectorInfo) voxel.IVec3 {
	i := info.viewIdx
	p := voxel.IVec3{
		X: int32(i % a.viewXZ),
		Z: int32(i / a.viewXZ % a.viewXZ),
		Y: int32(i / (a.viewXZ * a.viewXZ)),
	}
	return p.Add(a.origin)
}

// Alloc makes room for the bricks in mask on top of the ones the sector
// already holds. It returns the bricks whose slot is new or changed, which
// must be copied again.
func (a *BrickSlotAllocator) Alloc(s *SectorInfo, mask uint64) (uint64, error) {
	oldMask := s.AllocMask
	newMask := oldMask | mask
	if newMask == oldMask {
		return 0, nil
	}
	currSize := uint32(bits.OnesCount64(oldMask))
	newSize := uint32(bits.OnesCount64(newMask))

	oldBase := s.BaseSlot
	newBase := a.Arena.Realloc(oldBase, currSize, newSize)
	if newBase == 0 {
		// Realloc already released the old run.
		s.BaseSlot, s.AllocMask = 0, 0
		return 0, errors.Newf("brick slot arena exhausted").
			WithType(ErrTypeArenaExhausted).
			WithTag("requested", newSize).
			WithTag("allocated", a.Arena.NumAllocated()).
			WithTag("capacity", a.Arena.Capacity())
	}
	s.BaseSlot = newBase
	s.AllocMask = newMask

	if newBase != oldBase {
		return newMask, nil
	}
	added := newMask &^ oldMask
	return added | oldMask&above(added), nil
}

// Free releases the bricks in mask. The remaining bricks stay packed at the
// front of the run; the returned mask holds the ones that moved.
func (a *BrickSlotAllocator) Free(s *SectorInfo, mask uint64) uint64 {
	oldMask := s.AllocMask
	newMask := oldMask &^ mask
	if newMask == oldMask {
		return 0
	}
	currSize := uint32(bits.OnesCount64(oldMask))
	newSize := uint32(bits.OnesCount64(newMask))
	a.Arena.Free(s.BaseSlot+newSize, currSize-newSize)

	if newMask == 0 {
		s.BaseSlot = 0
	}
	s.AllocMask = newMask
	return newMask & above(oldMask&mask)
}

// above returns the bits strictly above the lowest set bit of m.
func above(m uint64) uint64 {
	low := m & -m
	return ^(low<<1 - 1)
}
