package voxel

const (
	BrickShift  = 3
	BrickSize   = 1 << BrickShift // voxels per brick axis
	BrickVolume = BrickSize * BrickSize * BrickSize

	SectorBrickShift = 2
	SectorShift      = BrickShift + SectorBrickShift // voxels per sector axis, log2
	SectorSize       = 1 << SectorShift
	BricksPerSector  = 64
)

// IVec3 is an integer coordinate. Depending on context it addresses a voxel,
// a brick or a sector.
type IVec3 struct{ X, Y, Z int32 }

func (p IVec3) Add(q IVec3) IVec3 { return IVec3{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }
func (p IVec3) Sub(q IVec3) IVec3 { return IVec3{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }

// Shr arithmetic-shifts every component, flooring negative coordinates.
func (p IVec3) Shr(s uint) IVec3 { return IVec3{p.X >> s, p.Y >> s, p.Z >> s} }
func (p IVec3) Shl(s uint) IVec3 { return IVec3{p.X << s, p.Y << s, p.Z << s} }

func (p IVec3) Min(q IVec3) IVec3 {
	return IVec3{min(p.X, q.X), min(p.Y, q.Y), min(p.Z, q.Z)}
}

func (p IVec3) Max(q IVec3) IVec3 {
	return IVec3{max(p.X, q.X), max(p.Y, q.Y), max(p.Z, q.Z)}
}

// Indexer maps a power-of-two 3D box to a linear index laid out as X, then Z,
// then Y. Signed indexers are centered on the origin and wrap with two's
// complement, unsigned ones start at zero.
type Indexer struct {
	ShiftXZ, ShiftY uint
	Signed          bool
}

var (
	// WorldSectors addresses sectors of the whole world: 4096 x 256 x 4096.
	WorldSectors = Indexer{ShiftXZ: 12, ShiftY: 8, Signed: true}
	// SectorBricks addresses the 4x4x4 bricks of a sector, and the 4x4x4
	// voxels of an occupancy cell.
	SectorBricks = Indexer{ShiftXZ: 2, ShiftY: 2}
	// BrickVoxels addresses the 8x8x8 voxels of a brick.
	BrickVoxels = Indexer{ShiftXZ: 3, ShiftY: 3}
)

func (ix Indexer) SizeXZ() int32  { return 1 << ix.ShiftXZ }
func (ix Indexer) SizeY() int32   { return 1 << ix.ShiftY }
func (ix Indexer) MaxArea() int   { return 1 << (2*ix.ShiftXZ + ix.ShiftY) }
func (ix Indexer) maskXZ() uint32 { return 1<<ix.ShiftXZ - 1 }
func (ix Indexer) maskY() uint32  { return 1<<ix.ShiftY - 1 }

// MinPos and MaxPos return the inclusive bounds of the indexer.
func (ix Indexer) MinPos() IVec3 {
	if !ix.Signed {
		return IVec3{}
	}
	return IVec3{-ix.SizeXZ() / 2, -ix.SizeY() / 2, -ix.SizeXZ() / 2}
}

func (ix Indexer) MaxPos() IVec3 {
	return ix.MinPos().Add(IVec3{ix.SizeXZ() - 1, ix.SizeY() - 1, ix.SizeXZ() - 1})
}

func (ix Indexer) InBounds(p IVec3) bool {
	if ix.Signed {
		p.X += ix.SizeXZ() / 2
		p.Y += ix.SizeY() / 2
		p.Z += ix.SizeXZ() / 2
	}
	return uint32(p.X|p.Z) < uint32(ix.SizeXZ()) && uint32(p.Y) < uint32(ix.SizeY())
}

// Index wraps out of range coordinates; check InBounds first when that matters.
func (ix Indexer) Index(p IVec3) uint32 {
	return ix.IndexXYZ(uint32(p.X), uint32(p.Y), uint32(p.Z))
}

func (ix Indexer) IndexXYZ(x, y, z uint32) uint32 {
	return x&ix.maskXZ() | (z&ix.maskXZ())<<ix.ShiftXZ | (y&ix.maskY())<<(2*ix.ShiftXZ)
}

func (ix Indexer) Pos(index uint32) IVec3 {
	if ix.Signed {
		sxz, sy := ix.ShiftXZ, ix.ShiftY
		return IVec3{
			X: int32(index<<(32-sxz)) >> (32 - sxz),
			Z: int32(index<<(32-2*sxz)) >> (32 - sxz),
			Y: int32(index<<(32-2*sxz-sy)) >> (32 - sy),
		}
	}
	return IVec3{
		X: int32(index & ix.maskXZ()),
		Z: int32(index >> ix.ShiftXZ & ix.maskXZ()),
		Y: int32(index >> (2 * ix.ShiftXZ) & ix.maskY()),
	}
}

// SectorIndex returns the linear world index of the sector at sectorPos.
func SectorIndex(sectorPos IVec3) uint32 { return WorldSectors.Index(sectorPos) }

// SectorPos is the inverse of SectorIndex.
func SectorPos(index uint32) IVec3 { return WorldSectors.Pos(index) }

// InBounds reports whether the voxel at pos lies inside the world.
func InBounds(pos IVec3) bool { return WorldSectors.InBounds(pos.Shr(SectorShift)) }

// brickBounds are the inclusive world limits in brick coordinates.
func brickBounds() (lo, hi IVec3) {
	return WorldSectors.MinPos().Shl(SectorBrickShift),
		WorldSectors.MaxPos().Shl(SectorBrickShift).Add(IVec3{3, 3, 3})
}
