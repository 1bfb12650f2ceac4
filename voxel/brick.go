package voxel

import (
	"encoding/binary"
	"unsafe"
)

// Lanes is the width of a dispatch lane group.
const Lanes = 16

// Brick is a dense 8x8x8 block of voxels, indexed by BrickVoxels.
type Brick struct {
	Data [BrickVolume]Voxel
}

// Bytes aliases the brick storage.
func (b *Brick) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.Data[0])), BrickVolume)
}

func (b *Brick) IsEmpty() bool {
	raw := b.Bytes()
	for i := 0; i < BrickVolume; i += 32 {
		w := binary.LittleEndian.Uint64(raw[i:]) |
			binary.LittleEndian.Uint64(raw[i+8:]) |
			binary.LittleEndian.Uint64(raw[i+16:]) |
			binary.LittleEndian.Uint64(raw[i+24:])
		if w != 0 {
			return false
		}
	}
	return true
}

// DispatchLanes is one lane group of a brick dispatch: absolute voxel
// coordinates plus the current voxel ids, which the callback may rewrite.
type DispatchLanes struct {
	X, Y, Z  [Lanes]int32
	VoxelIDs [Lanes]int32
	// GroupBase is the brick-local index of lane 0.
	GroupBase uint32
}

// DispatchFunc transforms a lane group in place. It returns true if any lane
// changed; otherwise the group is not written back.
type DispatchFunc func(p *DispatchLanes) bool

// DispatchSIMD runs fn over the brick in groups of Lanes voxels. brickPos is
// the brick coordinate used to compute absolute voxel positions. Ids written
// back are saturated to 0..255.
func (b *Brick) DispatchSIMD(fn DispatchFunc, brickPos IVec3) bool {
	var p DispatchLanes
	dirty := false
	base := brickPos.Shl(BrickShift)

	for i := 0; i < BrickVolume; i += Lanes {
		for l := 0; l < Lanes; l++ {
			vi := int32(i + l)
			p.X[l] = base.X + vi&7
			p.Z[l] = base.Z + vi>>3&7
			p.Y[l] = base.Y + vi>>6
			p.VoxelIDs[l] = int32(b.Data[i+l])
		}
		p.GroupBase = uint32(i)

		if fn(&p) {
			for l := 0; l < Lanes; l++ {
				b.Data[i+l] = Voxel(max(0, min(255, p.VoxelIDs[l])))
			}
			dirty = true
		}
	}
	return dirty
}
