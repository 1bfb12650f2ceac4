package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxelsplace/voxrt/voxel"
)

func testConfig() Config {
	return Config{
		Workers:   3,
		Seed:      42,
		SeaLevel:  0,
		Amplitude: 20,
		Scale:     48,
	}
}

func sectorVoxel(s *voxel.Sector, local voxel.IVec3) voxel.Voxel {
	b := s.Brick(voxel.SectorBricks.Index(local.Shr(voxel.BrickShift)), false)
	if b == nil {
		return voxel.Empty
	}
	return b.Data[voxel.BrickVoxels.Index(local)]
}

func TestHeight(t *testing.T) {
	cfg := testConfig()
	for x := int32(-100); x < 100; x += 7 {
		for z := int32(-100); z < 100; z += 5 {
			h := cfg.Height(x, z)
			require.Equal(t, h, cfg.Height(x, z))
			require.GreaterOrEqual(t, h, cfg.SeaLevel-int32(cfg.Amplitude))
			require.Less(t, h, cfg.SeaLevel+int32(cfg.Amplitude))
		}
	}

	other := cfg
	other.Seed++
	differs := false
	for x := int32(0); x < 64 && !differs; x++ {
		differs = cfg.Height(x, 0) != other.Height(x, 0)
	}
	require.True(t, differs)
}

func TestMaterial(t *testing.T) {
	cfg := testConfig()
	require.Equal(t, Grass, cfg.Material(10, 10))
	require.Equal(t, Dirt, cfg.Material(9, 10))
	require.Equal(t, Dirt, cfg.Material(7, 10))
	require.Equal(t, Stone, cfg.Material(6, 10))
	require.Equal(t, voxel.Empty, cfg.Material(11, 10))

	require.Equal(t, Sand, cfg.Material(-5, -5))
	require.Equal(t, Water, cfg.Material(-4, -5))
	require.Equal(t, Water, cfg.Material(0, -5))
	require.Equal(t, voxel.Empty, cfg.Material(1, -5))
}

func TestGenerate(t *testing.T) {
	cfg := testConfig()
	pos := voxel.IVec3{X: 1, Y: -1, Z: -2}
	s := cfg.Generate(pos)
	require.NotZero(t, s.NumBricks())
	require.Zero(t, s.DeleteEmptyBricks(s.AllocationMask()))

	base := pos.Shl(voxel.SectorShift)
	for y := int32(0); y < voxel.SectorSize; y++ {
		for z := int32(0); z < voxel.SectorSize; z++ {
			for x := int32(0); x < voxel.SectorSize; x++ {
				w := base.Add(voxel.IVec3{X: x, Y: y, Z: z})
				want := cfg.Material(w.Y, cfg.Height(w.X, w.Z))
				require.Equal(t, want, sectorVoxel(s, voxel.IVec3{X: x, Y: y, Z: z}), "voxel %v", w)
			}
		}
	}

	require.Zero(t, cfg.Generate(voxel.IVec3{Y: 2}).NumBricks())
	require.Equal(t, voxel.BricksPerSector, cfg.Generate(voxel.IVec3{Y: -3}).NumBricks())
}

func TestGenerator(t *testing.T) {
	cfg := testConfig()
	g := NewGenerator(cfg)
	defer g.Close()

	var requested []voxel.IVec3
	for x := int32(-2); x < 2; x++ {
		for y := int32(-1); y < 1; y++ {
			pos := voxel.IVec3{X: x, Y: y, Z: 3}
			require.True(t, g.RequestSector(pos))
			requested = append(requested, pos)
		}
	}
	require.False(t, g.RequestSector(requested[0]))

	m := voxel.NewMap()
	got := make(map[voxel.IVec3]bool)
	for {
		pos, s, ok := g.Next()
		if !ok {
			break
		}
		require.False(t, got[pos])
		got[pos] = true
		m.SpliceSector(pos, s)
	}
	require.Len(t, got, len(requested))
	require.Zero(t, g.Pending())

	for _, pos := range requested {
		want := cfg.Generate(pos)
		if want.NumBricks() == 0 {
			require.Nil(t, m.Sector(pos))
			continue
		}
		require.Equal(t, want.AllocationMask(), m.Sector(pos).AllocationMask())
		mask, ok := m.Dirty.Get(voxel.SectorIndex(pos))
		require.True(t, ok)
		require.Equal(t, want.AllocationMask(), mask)
	}

	// sectors can be requested again once handed out
	require.True(t, g.RequestSector(requested[0]))
	for g.Pending() > 0 {
		g.SpliceReady(m)
	}
}

func TestGeneratorClose(t *testing.T) {
	g := NewGenerator(testConfig())
	g.Close()
	g.Close()

	require.False(t, g.RequestSector(voxel.IVec3{}))
	_, _, ok := g.Next()
	require.False(t, ok)
}
