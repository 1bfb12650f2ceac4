package storage

import "github.com/voxelsplace/voxrt/voxel"

// CellsPerBrick is the number of 4x4x4 occupancy cells in a brick.
const CellsPerBrick = 8

// CellIndex returns the cell of a brick local voxel position, laid out as
// x | z<<1 | y<<2.
func CellIndex(x, y, z uint32) uint32 {
	return x>>2&1 | (z>>2&1)<<1 | (y>>2&1)<<2
}

// CellBit returns the bit of a voxel inside its cell mask, x + z*4 + y*16.
func CellBit(x, y, z uint32) uint32 {
	return voxel.SectorBricks.IndexXYZ(x, y, z)
}

// BuildCellMasks computes the 8 occupancy cells of b.
func BuildCellMasks(b *voxel.Brick, dst []uint64) {
	_ = dst[CellsPerBrick-1]
	clear(dst[:CellsPerBrick])
	for i, v := range b.Data {
		if v == 0 {
			continue
		}
		p := voxel.BrickVoxels.Pos(uint32(i))
		x, y, z := uint32(p.X), uint32(p.Y), uint32(p.Z)
		dst[CellIndex(x, y, z)] |= 1 << CellBit(x, y, z)
	}
}

func (f *FlatStorage) updateSectorOccupancy(viewPos voxel.IVec3, occupied bool) {
	xz := f.cfg.ViewSizeXZ / 4
	g := viewPos.Shr(2)
	word := &f.SectorOccupancy[uint32(g.X)+uint32(g.Z)*xz+uint32(g.Y)*xz*xz]
	bit := uint64(1) << voxel.SectorBricks.Index(viewPos)
	if occupied {
		*word |= bit
	} else {
		*word &^= bit
	}
}
