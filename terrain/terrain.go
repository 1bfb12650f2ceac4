package terrain

import (
	"runtime"

	math "github.com/chewxy/math32"
	"github.com/voxelsplace/voxrt/voxel"
)

// Voxel ids written by the generator.
const (
	Stone voxel.Voxel = iota + 1
	Dirt
	Grass
	Sand
	Water
)

type Config struct {
	// Workers is the number of generator goroutines. Zero uses one per CPU.
	Workers int
	Seed    uint64
	// SeaLevel is the world Y of the water surface.
	SeaLevel int32
	// Amplitude is the largest height offset from SeaLevel, in voxels.
	Amplitude float32
	// Scale is the horizontal size of the coarsest noise features, in voxels.
	Scale float32
}

func DefaultConfig() Config {
	return Config{
		Workers:   runtime.NumCPU(),
		Seed:      1,
		SeaLevel:  0,
		Amplitude: 24,
		Scale:     96,
	}
}

// ApplyPalette sets the colors of the terrain voxel ids.
func ApplyPalette(m *voxel.Map) {
	m.Palette[Stone].SetColor(0.45, 0.45, 0.48)
	m.Palette[Dirt].SetColor(0.45, 0.3, 0.18)
	m.Palette[Grass].SetColor(0.3, 0.6, 0.2)
	m.Palette[Sand].SetColor(0.85, 0.8, 0.55)
	m.Palette[Water].SetColor(0.15, 0.35, 0.75)
}

// Height returns the world Y of the topmost solid voxel of column (x, z).
func (c Config) Height(x, z int32) int32 {
	scale := c.Scale
	if scale <= 0 {
		scale = 1
	}
	n := fbm(c.Seed, float32(x)/scale, float32(z)/scale)
	return c.SeaLevel + int32(math.Floor(c.Amplitude*(2*n-1)))
}

// Material returns the voxel at world height y of a column whose surface is
// at height h.
func (c Config) Material(y, h int32) voxel.Voxel {
	switch {
	case y > h:
		if y <= c.SeaLevel {
			return Water
		}
		return voxel.Empty
	case y == h && h <= c.SeaLevel:
		return Sand
	case y == h:
		return Grass
	case y > h-4:
		return Dirt
	}
	return Stone
}

// Generate builds the sector at world sector position pos. The result holds
// no empty bricks; it may hold no bricks at all.
func (c Config) Generate(pos voxel.IVec3) *voxel.Sector {
	s := voxel.NewSector()
	if !voxel.WorldSectors.InBounds(pos) {
		return s
	}
	base := pos.Shl(voxel.SectorShift)

	var heights [voxel.SectorSize * voxel.SectorSize]int32
	top := c.SeaLevel
	for z := int32(0); z < voxel.SectorSize; z++ {
		for x := int32(0); x < voxel.SectorSize; x++ {
			h := c.Height(base.X+x, base.Z+z)
			heights[x+z*voxel.SectorSize] = h
			top = max(top, h)
		}
	}
	if base.Y > top {
		return s
	}

	fill := func(p *voxel.DispatchLanes) bool {
		changed := false
		for l := range p.VoxelIDs {
			h := heights[(p.X[l]-base.X)+(p.Z[l]-base.Z)*voxel.SectorSize]
			if v := c.Material(p.Y[l], h); v != voxel.Empty {
				p.VoxelIDs[l] = int32(v)
				changed = true
			}
		}
		return changed
	}
	for i := uint32(0); i < voxel.BricksPerSector; i++ {
		brickPos := pos.Shl(voxel.SectorBrickShift).Add(voxel.SectorBricks.Pos(i))
		if brickPos.Y<<voxel.BrickShift > top {
			continue
		}
		s.Brick(i, true).DispatchSIMD(fill, brickPos)
	}
	s.DeleteEmptyBricks(s.AllocationMask())
	return s
}
