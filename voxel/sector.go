package voxel

import (
	"fmt"
	"math/bits"
)

// Sector is a 4x4x4 group of bricks. Only non-empty bricks are stored; slots
// maps a brick index to a 1-based position in storage, 0 meaning absent.
type Sector struct {
	storage []Brick
	slots   [BricksPerSector]uint8
}

func NewSector() *Sector { return &Sector{} }

// Brick returns the brick at index, creating it when create is set. The
// pointer is invalidated by the next brick creation in this sector.
func (s *Sector) Brick(index uint32, create bool) *Brick {
	slot := s.slots[index]
	if slot != 0 {
		return &s.storage[slot-1]
	}
	if !create {
		return nil
	}
	s.storage = append(s.storage, Brick{})
	s.slots[index] = uint8(len(s.storage))
	return &s.storage[len(s.storage)-1]
}

// AllocationMask has bit i set when brick i is present.
func (s *Sector) AllocationMask() uint64 {
	var mask uint64
	for i, slot := range s.slots {
		if slot != 0 {
			mask |= 1 << i
		}
	}
	return mask
}

func (s *Sector) NumBricks() int { return len(s.storage) }

// DeleteBricks removes the bricks in mask, compacting storage into bit order.
func (s *Sector) DeleteBricks(mask uint64) {
	if mask == 0 {
		return
	}
	keep := s.AllocationMask() &^ mask
	storage := make([]Brick, 0, bits.OnesCount64(keep))
	var slots [BricksPerSector]uint8

	for m := keep; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		storage = append(storage, s.storage[s.slots[i]-1])
		slots[i] = uint8(len(storage))
	}
	s.storage = storage
	s.slots = slots
	s.checkInvariant()
}

// DeleteEmptyBricks deletes the empty bricks among those in mask and returns
// the mask of deleted bricks.
func (s *Sector) DeleteEmptyBricks(mask uint64) uint64 {
	var empty uint64
	for m := mask & s.AllocationMask(); m != 0; m &= m - 1 {
		i := uint32(bits.TrailingZeros64(m))
		if s.Brick(i, false).IsEmpty() {
			empty |= 1 << i
		}
	}
	s.DeleteBricks(empty)
	return empty
}

// Clone returns a deep copy of the sector.
func (s *Sector) Clone() *Sector {
	c := &Sector{slots: s.slots}
	c.storage = append([]Brick(nil), s.storage...)
	return c
}

func (s *Sector) checkInvariant() {
	if n := bits.OnesCount64(s.AllocationMask()); n != len(s.storage) {
		panic(fmt.Sprintf("voxel: sector holds %d bricks but mask has %d bits", len(s.storage), n))
	}
}

// BrickIndexFromSlot returns the brick index whose rank within allocMask is
// slot, i.e. the inverse of popcount(allocMask & (1<<i - 1)).
func BrickIndexFromSlot(allocMask uint64, slot uint32) uint32 {
	start, end := uint32(0), uint32(64)
	for start < end {
		mid := (start + end) / 2
		if uint32(bits.OnesCount64(allocMask&(1<<mid-1))) > slot {
			end = mid
		} else {
			start = mid + 1
		}
	}
	return end - 1
}
