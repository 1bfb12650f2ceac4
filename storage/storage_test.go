package storage

import (
	"encoding/binary"
	"math/bits"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	xxhash "github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
	"github.com/voxelsplace/voxrt/voxel"
)

func testConfig() Config {
	return Config{
		ViewSizeXZ:       4,
		ViewSizeY:        4,
		InitialBricks:    16,
		MaxBricksPerSync: 1 << 20,
	}
}

func fillNoise(m *voxel.Map, seed uint64, lo, hi voxel.IVec3, sparsity uint64) {
	var b [20]byte
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				binary.LittleEndian.PutUint64(b[0:], seed)
				binary.LittleEndian.PutUint32(b[8:], uint32(x))
				binary.LittleEndian.PutUint32(b[12:], uint32(y))
				binary.LittleEndian.PutUint32(b[16:], uint32(z))
				if h := xxhash.Sum64(b[:]); h%sparsity == 0 {
					m.Set(voxel.IVec3{X: x, Y: y, Z: z}, voxel.Voxel(1+(h>>40)%254))
				}
			}
		}
	}
}

// requireMirrors checks that every brick of the map inside the view is in
// the buffer with matching occupancy, and that nothing else is.
func requireMirrors(t *testing.T, f *FlatStorage, m *voxel.Map) {
	t.Helper()
	a := f.Allocator()
	total := 0
	for vi := 0; vi < a.NumSectors(); vi++ {
		info := a.SectorAt(uint32(vi))
		pos := a.Pos(info)
		var want uint64
		sector := m.Sector(pos)
		if sector != nil {
			want = sector.AllocationMask()
		}
		require.Equal(t, want, info.AllocMask, "sector %v", pos)
		require.Equal(t, want, f.AllocMasks[vi])

		viewPos := pos.Sub(f.ViewOrigin())
		require.Equal(t, want != 0, f.GroupMask(viewPos.Shr(2))>>voxel.SectorBricks.Index(viewPos)&1 == 1)

		for b := want; b != 0; b &= b - 1 {
			i := uint32(bits.TrailingZeros64(b))
			slot, ok := f.BrickSlot(viewPos, i)
			require.True(t, ok)
			require.Equal(t, info.Slot(i)-1, slot)
			require.Equal(t, sector.Brick(i, false).Data, f.Bricks[slot].Data)

			var cells [CellsPerBrick]uint64
			BuildCellMasks(sector.Brick(i, false), cells[:])
			require.Equal(t, cells[:], f.Occupancy[slot*CellsPerBrick:(slot+1)*CellsPerBrick])
			total++
		}
	}
	require.Equal(t, uint32(total), a.Arena.NumAllocated())
}

func syncUntilStable(t *testing.T, f *FlatStorage, m *voxel.Map) {
	t.Helper()
	for i := 0; m.Dirty.Len() > 0; i++ {
		require.Less(t, i, 100, "sync does not converge")
		_, err := f.Sync(m)
		require.NoError(t, err)
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{ViewSizeXZ: 6, ViewSizeY: 4, MaxBricksPerSync: 1})
	require.Error(t, err)
	require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))

	_, err = New(Config{ViewSizeXZ: 4, ViewSizeY: 4})
	require.Error(t, err)

	f, err := New(DefaultConfig())
	require.NoError(t, err)
	require.Len(t, f.Bricks, 4096)
	require.Len(t, f.SectorOccupancy, 16*16*8/64)
}

func TestSyncMirrorsMap(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)

	m := voxel.NewMap()
	fillNoise(m, 1, voxel.IVec3{}, voxel.IVec3{X: 127, Y: 40, Z: 127}, 300)
	m.Palette[7].SetColor(1, 0.5, 0)

	res, err := f.Sync(m)
	require.NoError(t, err)
	require.True(t, res.Reset)
	require.GreaterOrEqual(t, len(f.Bricks), m.NumBricks())

	syncUntilStable(t, f, m)
	requireMirrors(t, f, m)
	require.Equal(t, m.Palette[7].Encoded(), f.Palette[7])

	// edits, including clearing a whole brick, are republished
	m.Set(voxel.IVec3{X: 3, Y: 3, Z: 3}, 9)
	m.RegionDispatchSIMD(voxel.IVec3{X: 64, Y: 0, Z: 64}, voxel.IVec3{X: 71, Y: 7, Z: 71}, false, func(p *voxel.DispatchLanes) bool {
		p.VoxelIDs = [voxel.Lanes]int32{}
		return true
	})
	syncUntilStable(t, f, m)
	requireMirrors(t, f, m)
	require.Equal(t, voxel.Voxel(9), f.Get(voxel.IVec3{X: 3, Y: 3, Z: 3}))
}

func TestSyncOutsideViewIsDropped(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)

	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: -1, Y: 0, Z: 0}, 1)
	m.Set(voxel.IVec3{X: 1000, Y: 0, Z: 0}, 1)
	syncUntilStable(t, f, m)

	require.Zero(t, f.Allocator().Arena.NumAllocated())
	require.Len(t, m.Sectors, 2)
}

func TestSyncGarbageCollectsSetToEmpty(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)

	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: 1, Y: 1, Z: 1}, 4)
	m.Set(voxel.IVec3{X: 20, Y: 1, Z: 1}, 4)
	syncUntilStable(t, f, m)
	require.Equal(t, uint32(2), f.Allocator().Arena.NumAllocated())

	m.Set(voxel.IVec3{X: 1, Y: 1, Z: 1}, 0)
	syncUntilStable(t, f, m)
	require.Equal(t, uint32(1), f.Allocator().Arena.NumAllocated())
	requireMirrors(t, f, m)

	m.Set(voxel.IVec3{X: 20, Y: 1, Z: 1}, 0)
	syncUntilStable(t, f, m)
	require.Empty(t, m.Sectors)
	require.Zero(t, f.Allocator().Arena.NumAllocated())
	require.Zero(t, f.SectorOccupancy[0])
	require.Equal(t, NoSlot, f.BaseSlots[0])
}

func TestSyncBudget(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBricks = 1024
	cfg.MaxBricksPerSync = 8
	f, err := New(cfg)
	require.NoError(t, err)

	m := voxel.NewMap()
	for s := int32(0); s < 4; s++ {
		// 16 bricks per sector
		m.RegionDispatchSIMD(voxel.IVec3{X: s * 32, Y: 0, Z: 0}, voxel.IVec3{X: s*32 + 31, Y: 7, Z: 31}, true, func(p *voxel.DispatchLanes) bool {
			for i := range p.VoxelIDs {
				p.VoxelIDs[i] = 1
			}
			return true
		})
	}

	res, err := f.Sync(m)
	require.NoError(t, err)
	require.False(t, res.Reset)
	require.Equal(t, 1, res.Sectors)
	require.Equal(t, 16, res.Bricks)
	require.Equal(t, 3, res.Remaining)

	syncUntilStable(t, f, m)
	requireMirrors(t, f, m)
}

func TestMarkAllDirtyConverges(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)

	m := voxel.NewMap()
	fillNoise(m, 3, voxel.IVec3{}, voxel.IVec3{X: 127, Y: 127, Z: 127}, 2000)
	syncUntilStable(t, f, m)

	// scribble over the buffer, a full republish restores it
	for i := range f.Bricks {
		f.Bricks[i].Data[0] = 0xEE
	}
	m.MarkAllDirty()
	syncUntilStable(t, f, m)
	require.Zero(t, m.Dirty.Len())
	requireMirrors(t, f, m)
}

func TestSyncArenaExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.ArenaCapacity = 4
	f, err := New(cfg)
	require.NoError(t, err)

	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: 0, Y: 0, Z: 0}, 1)
	m.Set(voxel.IVec3{X: 8, Y: 0, Z: 0}, 1)
	m.Set(voxel.IVec3{X: 40, Y: 0, Z: 0}, 1)
	m.Set(voxel.IVec3{X: 48, Y: 0, Z: 0}, 1)
	m.Set(voxel.IVec3{X: 56, Y: 0, Z: 0}, 1)

	_, err = f.Sync(m)
	require.Error(t, err)
	require.Equal(t, ErrTypeSyncAborted, errors.Type(err))

	mask, ok := m.Dirty.Get(voxel.SectorIndex(voxel.IVec3{X: 1}))
	require.True(t, ok)
	require.Equal(t, m.Sector(voxel.IVec3{X: 1}).AllocationMask(), mask)
	require.Zero(t, f.AllocMasks[1])

	// the sector before it was published
	require.Equal(t, voxel.Voxel(1), f.Get(voxel.IVec3{X: 8}))
}

func TestCenterView(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)
	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: 100, Y: 10, Z: 10}, 2)
	syncUntilStable(t, f, m)

	require.False(t, f.CenterView(m, voxel.IVec3{X: 64, Y: 64, Z: 64}))
	require.True(t, f.CenterView(m, voxel.IVec3{X: 200, Y: 64, Z: 64}))
	require.Equal(t, voxel.IVec3{X: 4, Y: 0, Z: 0}, f.ViewOrigin())
	require.Equal(t, voxel.IVec3{X: 128}, f.Origin())
	require.Equal(t, 1, m.Dirty.Len())

	syncUntilStable(t, f, m)
	requireMirrors(t, f, m)
	require.Zero(t, f.Allocator().Arena.NumAllocated())
}

func TestAppendMeta(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)
	meta := f.AppendMeta(nil)
	require.Len(t, meta, 256*8+64*4+64*8+1*8)
	require.Len(t, f.BrickBytes(), len(f.Bricks)*voxel.BrickVolume)
	require.Len(t, f.OccupancyWords(), len(f.Bricks)*CellsPerBrick)
}

func TestBuildCellMasks(t *testing.T) {
	var b voxel.Brick
	b.Data[voxel.BrickVoxels.Index(voxel.IVec3{X: 0, Y: 0, Z: 0})] = 1
	b.Data[voxel.BrickVoxels.Index(voxel.IVec3{X: 5, Y: 6, Z: 7})] = 1

	var cells [CellsPerBrick]uint64
	BuildCellMasks(&b, cells[:])
	require.Equal(t, uint64(1), cells[0])
	require.Equal(t, uint64(1)<<(1+3*4+2*16), cells[CellIndex(5, 6, 7)])
	require.Equal(t, uint32(7), CellIndex(5, 6, 7))
}
