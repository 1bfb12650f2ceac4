package voxel

import (
	"math/bits"
	"slices"
)

func part1By2(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | (x << 32)) & 0x1f00000000ffff
	x = (x | (x << 16)) & 0x1f0000ff0000ff
	x = (x | (x << 8)) & 0x100f00f00f00f00f
	x = (x | (x << 4)) & 0x10c30c30c30c30c3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}

func Morton3D64(x, y, z uint32) uint64 {
	return part1By2(uint64(x)) | part1By2(uint64(y))<<1 | part1By2(uint64(z))<<2
}

func MortonDecode3D64(index uint64) (x, y, z uint32) {
	return uint32(compact1By2(index)), uint32(compact1By2(index >> 1)), uint32(compact1By2(index >> 2))
}

// sectorMortonKey orders sectors along a Z curve over the biased, unsigned
// sector coordinates.
func sectorMortonKey(index uint32) uint64 {
	p := WorldSectors.Pos(index).Sub(WorldSectors.MinPos())
	return Morton3D64(uint32(p.X), uint32(p.Y), uint32(p.Z))
}

// sortSectorsMorton sorts sector indices in place along the Z curve.
func sortSectorsMorton(indices []uint32) {
	slices.SortFunc(indices, func(a, b uint32) int {
		ka, kb := sectorMortonKey(a), sectorMortonKey(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})
}

// brickMortonOrder lists brick voxel indices along a Z curve, so that bit
// packed voxel streams keep neighbours together.
var brickMortonOrder [BrickVolume]uint16

func init() {
	for rank := range brickMortonOrder {
		x, y, z := MortonDecode3D64(uint64(rank))
		brickMortonOrder[rank] = uint16(BrickVoxels.IndexXYZ(x, y, z))
	}
}

// bitsPerVoxel is the field width needed to store ids up to maxID.
func bitsPerVoxel(maxID Voxel) uint8 { return uint8(bits.Len8(uint8(maxID))) }
