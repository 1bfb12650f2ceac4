package voxel

import (
	"encoding/binary"
	"testing"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/soypat/geometry/md3"
	"github.com/stretchr/testify/require"
)

func hashPos(seed uint64, p IVec3) uint64 {
	var b [20]byte
	binary.LittleEndian.PutUint64(b[0:], seed)
	binary.LittleEndian.PutUint32(b[8:], uint32(p.X))
	binary.LittleEndian.PutUint32(b[12:], uint32(p.Y))
	binary.LittleEndian.PutUint32(b[16:], uint32(p.Z))
	return xxhash.Sum64(b[:])
}

// fillRandom sets roughly one voxel in every `sparsity` to a pseudo random
// non-zero id inside [lo, hi].
func fillRandom(m *Map, seed uint64, lo, hi IVec3, sparsity uint64) {
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				p := IVec3{x, y, z}
				h := hashPos(seed, p)
				if h%sparsity == 0 {
					m.Set(p, Voxel(1+(h>>32)%200))
				}
			}
		}
	}
}

func TestMapGetSet(t *testing.T) {
	m := NewMap()
	require.Equal(t, Empty, m.Get(IVec3{1, 2, 3}))
	require.Empty(t, m.Sectors)

	m.Set(IVec3{1, 2, 3}, 7)
	m.Set(IVec3{-1, -40, 100}, 9)
	require.Equal(t, Voxel(7), m.Get(IVec3{1, 2, 3}))
	require.Equal(t, Voxel(9), m.Get(IVec3{-1, -40, 100}))
	require.Equal(t, Empty, m.Get(IVec3{1, 2, 4}))
	require.Len(t, m.Sectors, 2)

	mask, ok := m.Dirty.Get(SectorIndex(IVec3{0, 0, 0}))
	require.True(t, ok)
	require.Equal(t, uint64(1)<<SectorBricks.Index(IVec3{0, 0, 0}), mask)

	mask, ok = m.Dirty.Get(SectorIndex(IVec3{-1, -2, 3}))
	require.True(t, ok)
	require.Equal(t, uint64(1)<<SectorBricks.Index(IVec3{-1, -5, 12}), mask)
}

func TestMapOutOfBounds(t *testing.T) {
	m := NewMap()
	far := IVec3{1 << 20, 0, 0}
	m.Set(far, 5)
	require.Equal(t, Empty, m.Get(far))
	require.Empty(t, m.Sectors)
	require.Zero(t, m.Dirty.Len())

	m.RegionDispatchSIMD(IVec3{70000, 0, 0}, IVec3{70010, 5, 5}, true, func(p *DispatchLanes) bool {
		t.Fatal("dispatched out of world bounds")
		return false
	})
}

func TestRegionDispatchFillAndClear(t *testing.T) {
	m := NewMap()
	lo, hi := IVec3{-4, 0, -4}, IVec3{11, 7, 3}

	m.RegionDispatchSIMD(lo, hi, true, func(p *DispatchLanes) bool {
		for i := range p.VoxelIDs {
			if p.X[i] >= lo.X && p.X[i] <= hi.X && p.Y[i] >= lo.Y && p.Y[i] <= hi.Y && p.Z[i] >= lo.Z && p.Z[i] <= hi.Z {
				p.VoxelIDs[i] = 3
			}
		}
		return true
	})
	require.Equal(t, Voxel(3), m.Get(IVec3{-4, 0, -4}))
	require.Equal(t, Voxel(3), m.Get(IVec3{11, 7, 3}))
	require.Equal(t, Empty, m.Get(IVec3{12, 7, 3}))
	require.Equal(t, 6, m.NumBricks())
	require.Len(t, m.Sectors, 4)

	// clearing one brick removes it from the sector mask
	m.RegionDispatchSIMD(IVec3{8, 0, 0}, IVec3{15, 7, 7}, false, func(p *DispatchLanes) bool {
		p.VoxelIDs = [Lanes]int32{}
		return true
	})
	require.Equal(t, 5, m.NumBricks())
	require.Equal(t, Empty, m.Get(IVec3{11, 7, 3}))

	// clearing everything drops the sectors but keeps them in the ledger
	m.RegionDispatchSIMD(lo, hi, false, func(p *DispatchLanes) bool {
		p.VoxelIDs = [Lanes]int32{}
		return true
	})
	require.Empty(t, m.Sectors)
	require.Equal(t, 4, m.Dirty.Len())
}

func TestRegionDispatchSkipsMissingBricks(t *testing.T) {
	m := NewMap()
	calls := 0
	m.RegionDispatchSIMD(IVec3{0, 0, 0}, IVec3{63, 63, 63}, false, func(p *DispatchLanes) bool {
		calls++
		return false
	})
	require.Zero(t, calls)

	m.Set(IVec3{20, 20, 20}, 1)
	m.RegionDispatchSIMD(IVec3{0, 0, 0}, IVec3{63, 63, 63}, false, func(p *DispatchLanes) bool {
		calls++
		return false
	})
	require.Equal(t, BrickVolume/Lanes, calls)
}

func TestMarkAllDirty(t *testing.T) {
	m := NewMap()
	fillRandom(m, 1, IVec3{-40, -8, -40}, IVec3{40, 8, 40}, 50)
	m.Dirty.Clear()

	m.MarkAllDirty()
	require.Equal(t, len(m.Sectors), m.Dirty.Len())
	for idx, s := range m.Sectors {
		mask, ok := m.Dirty.Get(idx)
		require.True(t, ok)
		require.Equal(t, s.AllocationMask(), mask)
	}
}

func TestSpliceSector(t *testing.T) {
	m := NewMap()
	m.Set(IVec3{0, 0, 0}, 1)
	m.Dirty.Clear()

	s := NewSector()
	s.Brick(63, true).Data[5] = 2
	s.Brick(10, true) // empty, dropped on splice
	m.SpliceSector(IVec3{}, s)

	require.Equal(t, Voxel(0), m.Get(IVec3{0, 0, 0}))
	require.Equal(t, uint64(1<<63), m.Sectors[0].AllocationMask())
	mask, _ := m.Dirty.Get(0)
	require.Equal(t, uint64(1<<63|1), mask)

	m.SpliceSector(IVec3{}, nil)
	require.Empty(t, m.Sectors)
}

func TestMapRayCast(t *testing.T) {
	m := NewMap()
	m.Set(IVec3{5, 5, 5}, 4)

	hit := m.RayCast(md3.Vec{X: 0, Y: 5.5, Z: 5.5}, md3.Vec{X: 1}, 100)
	require.False(t, hit.IsMiss())
	require.InDelta(t, 5.0, hit.Distance, 1e-9)
	require.Equal(t, IVec3{5, 5, 5}, hit.VoxelPos)
	require.Equal(t, float32(-1), hit.Normal.X)
	require.InDelta(t, 0.5, hit.UV.X, 1e-6)
	require.InDelta(t, 0.5, hit.UV.Y, 1e-6)

	hit = m.RayCast(md3.Vec{X: 5.5, Y: 20.25, Z: 5.5}, md3.Vec{Y: -1}, 100)
	require.InDelta(t, 14.25, hit.Distance, 1e-9)
	require.Equal(t, float32(1), hit.Normal.Y)

	// budget too small to reach the voxel
	require.True(t, m.RayCast(md3.Vec{X: 0, Y: 5.5, Z: 5.5}, md3.Vec{X: 1}, 3).IsMiss())

	// starting inside a solid voxel
	hit = m.RayCast(md3.Vec{X: 5.5, Y: 5.5, Z: 5.5}, md3.Vec{X: 1}, 100)
	require.True(t, hit.IsMiss())
	require.Equal(t, IVec3{5, 5, 5}, hit.VoxelPos)
}

func TestMapBounds(t *testing.T) {
	m := NewMap()
	_, _, ok := m.Bounds()
	require.False(t, ok)

	m.Set(IVec3{-1, 0, 40}, 1)
	lo, hi, ok := m.Bounds()
	require.True(t, ok)
	require.Equal(t, IVec3{-32, 0, 32}, lo)
	require.Equal(t, IVec3{-1, 31, 63}, hi)
}
