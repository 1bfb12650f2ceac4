package voxel

import "math/bits"

// Map is the sparse world: sectors keyed by their linear world index, the
// ledger of bricks changed since the last sync and the shared palette.
//
// Map is not safe for concurrent use. Out of world coordinates read as empty
// and writes to them are dropped.
type Map struct {
	Sectors map[uint32]*Sector
	Dirty   *DirtyLedger
	Palette [256]Material
}

func NewMap() *Map {
	m := &Map{
		Sectors: make(map[uint32]*Sector),
		Dirty:   NewDirtyLedger(),
	}
	for i := range m.Palette {
		m.Palette[i] = DefaultMaterial()
	}
	return m
}

// Brick returns the brick at brickPos. With create set, missing sectors and
// bricks are created. With markDirty set, the brick is recorded in the dirty
// ledger.
func (m *Map) Brick(brickPos IVec3, create, markDirty bool) *Brick {
	sectorPos := brickPos.Shr(SectorBrickShift)
	if !WorldSectors.InBounds(sectorPos) {
		return nil
	}
	sectorIdx := WorldSectors.Index(sectorPos)
	brickIdx := SectorBricks.Index(brickPos)

	sector, ok := m.Sectors[sectorIdx]
	if !ok {
		if !create {
			return nil
		}
		sector = NewSector()
		m.Sectors[sectorIdx] = sector
	}
	brick := sector.Brick(brickIdx, create)
	if brick != nil && markDirty {
		m.Dirty.Mark(sectorIdx, 1<<brickIdx)
	}
	return brick
}

func (m *Map) Get(pos IVec3) Voxel {
	brick := m.Brick(pos.Shr(BrickShift), false, false)
	if brick == nil {
		return Empty
	}
	return brick.Data[BrickVoxels.Index(pos)]
}

func (m *Map) Set(pos IVec3, v Voxel) {
	brick := m.Brick(pos.Shr(BrickShift), true, true)
	if brick == nil {
		return
	}
	brick.Data[BrickVoxels.Index(pos)] = v
}

// Sector returns the sector at sectorPos, or nil.
func (m *Map) Sector(sectorPos IVec3) *Sector {
	if !WorldSectors.InBounds(sectorPos) {
		return nil
	}
	return m.Sectors[WorldSectors.Index(sectorPos)]
}

// MarkAllDirty records every allocated brick of every sector in the ledger.
func (m *Map) MarkAllDirty() {
	for idx, sector := range m.Sectors {
		m.Dirty.Mark(idx, sector.AllocationMask())
	}
}

// SpliceSector replaces the sector at sectorPos with s, which the map takes
// ownership of. Both the old and the new bricks are marked dirty so that
// slots of bricks that disappeared get reclaimed. An empty or nil s deletes
// the sector.
func (m *Map) SpliceSector(sectorPos IVec3, s *Sector) {
	if !WorldSectors.InBounds(sectorPos) {
		return
	}
	idx := WorldSectors.Index(sectorPos)

	var mask uint64
	if old, ok := m.Sectors[idx]; ok {
		mask = old.AllocationMask()
	}
	if s != nil {
		s.DeleteEmptyBricks(s.AllocationMask())
		mask |= s.AllocationMask()
	}
	if s == nil || s.NumBricks() == 0 {
		delete(m.Sectors, idx)
	} else {
		m.Sectors[idx] = s
	}
	m.Dirty.Mark(idx, mask)
}

// RegionDispatchSIMD runs fn over every brick overlapping the inclusive voxel
// region [min, max]. Missing bricks are skipped unless createEmpty is set.
// Bricks that end up empty are deleted afterwards, and so are sectors left
// without bricks.
func (m *Map) RegionDispatchSIMD(min, max IVec3, createEmpty bool, fn DispatchFunc) {
	lo, hi := brickBounds()
	brickMin := min.Shr(BrickShift).Max(lo)
	brickMax := max.Shr(BrickShift).Min(hi)

	emptyBricks := make(map[uint32]uint64)

	for by := brickMin.Y; by <= brickMax.Y; by++ {
		for bz := brickMin.Z; bz <= brickMax.Z; bz++ {
			for bx := brickMin.X; bx <= brickMax.X; bx++ {
				brickPos := IVec3{bx, by, bz}
				brick := m.Brick(brickPos, createEmpty, false)
				if brick == nil {
					continue
				}
				changed := brick.DispatchSIMD(fn, brickPos)
				empty := brick.IsEmpty()

				if changed || empty {
					sectorIdx := WorldSectors.Index(brickPos.Shr(SectorBrickShift))
					brickMask := uint64(1) << SectorBricks.Index(brickPos)

					m.Dirty.Mark(sectorIdx, brickMask)
					if empty {
						emptyBricks[sectorIdx] |= brickMask
					}
				}
			}
		}
	}

	for sectorIdx, emptyMask := range emptyBricks {
		sector, ok := m.Sectors[sectorIdx]
		if !ok {
			continue
		}
		if sector.AllocationMask()&^emptyMask != 0 {
			sector.DeleteBricks(emptyMask)
		} else {
			delete(m.Sectors, sectorIdx)
		}
	}
}

// NumBricks counts the allocated bricks of all sectors.
func (m *Map) NumBricks() int {
	n := 0
	for _, s := range m.Sectors {
		n += bits.OnesCount64(s.AllocationMask())
	}
	return n
}

// Bounds returns the inclusive voxel bounds of the populated sectors. ok is
// false for an empty map.
func (m *Map) Bounds() (lo, hi IVec3, ok bool) {
	for idx := range m.Sectors {
		p := WorldSectors.Pos(idx).Shl(SectorShift)
		q := p.Add(IVec3{SectorSize - 1, SectorSize - 1, SectorSize - 1})
		if !ok {
			lo, hi, ok = p, q, true
			continue
		}
		lo, hi = lo.Min(p), hi.Max(q)
	}
	return lo, hi, ok
}
