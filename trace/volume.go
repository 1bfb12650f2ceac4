package trace

import "github.com/voxelsplace/voxrt/voxel"

// Volume is the read side of a flat brick buffer. All positions are in view
// space: voxel (0,0,0) is the first voxel of the view.
//
// *storage.FlatStorage implements it.
type Volume interface {
	// ViewSize is the view extent in voxels. Every component is a multiple
	// of 128.
	ViewSize() voxel.IVec3
	// Origin is the world voxel position of the view's first voxel.
	Origin() voxel.IVec3
	// BrickMask returns the brick allocation mask of a view sector.
	BrickMask(sector voxel.IVec3) uint64
	// GroupMask returns the occupancy word of a 4x4x4 group of view sectors.
	GroupMask(group voxel.IVec3) uint64
	// BrickSlot resolves a brick of a view sector to its buffer slot.
	BrickSlot(sector voxel.IVec3, brickIdx uint32) (uint32, bool)
	// CellMask returns one of the 8 4x4x4 occupancy cells of a brick.
	CellMask(slot, cell uint32) uint64
	VoxelAt(slot, voxelIdx uint32) voxel.Voxel
	// Material returns the encoded material of v.
	Material(v voxel.Voxel) uint64
}
