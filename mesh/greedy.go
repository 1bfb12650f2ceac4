package mesh

import "github.com/voxelsplace/voxrt/voxel"

type Vertex struct {
	Position [3]float32
	Color    voxel.Voxel
}

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m *Mesh) NumQuads() int { return len(m.Indices) / 6 }

type dirSpec struct {
	normal [3]float32
	u, v   int
	du, dv [3]int
}

var directions = []dirSpec{
	{[3]float32{1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{-1, 0, 0}, 1, 2, [3]int{0, 1, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, -1, 0}, 0, 2, [3]int{1, 0, 0}, [3]int{0, 0, 1}},
	{[3]float32{0, 0, 1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
	{[3]float32{0, 0, -1}, 0, 1, [3]int{1, 0, 0}, [3]int{0, 1, 0}},
}

const size = voxel.SectorSize

// sectorGrid is a dense copy of one sector. Voxels outside of it are read
// from the map so faces between sectors are culled.
type sectorGrid struct {
	m    *voxel.Map
	base voxel.IVec3
	data [size * size * size]voxel.Voxel
}

func newSectorGrid(m *voxel.Map, sectorPos voxel.IVec3) *sectorGrid {
	g := &sectorGrid{m: m, base: sectorPos.Shl(voxel.SectorShift)}
	s := m.Sector(sectorPos)
	if s == nil {
		return g
	}
	for i := uint32(0); i < voxel.BricksPerSector; i++ {
		b := s.Brick(i, false)
		if b == nil {
			continue
		}
		bp := voxel.SectorBricks.Pos(i).Shl(voxel.BrickShift)
		for vi, v := range b.Data {
			p := bp.Add(voxel.BrickVoxels.Pos(uint32(vi)))
			g.data[p.X+p.Z*size+p.Y*size*size] = v
		}
	}
	return g
}

func (g *sectorGrid) get(x, y, z int) voxel.Voxel {
	if x < 0 || x >= size || y < 0 || y >= size || z < 0 || z >= size {
		return g.m.Get(g.base.Add(voxel.IVec3{X: int32(x), Y: int32(y), Z: int32(z)}))
	}
	return g.data[x+z*size+y*size*size]
}

func addQuad(mesh *Mesh, dir dirSpec, origin [3]float32, start [3]int, w, h int, color voxel.Voxel, perp int) {
	base := origin
	base[perp] += float32(start[0])
	if dir.normal[perp] > 0 {
		base[perp] += 1
	}
	base[dir.u] += float32(start[1])
	base[dir.v] += float32(start[2])

	offset := func(du, dv int) [3]float32 {
		return [3]float32{
			base[0] + float32(dir.du[0]*du+dir.dv[0]*dv),
			base[1] + float32(dir.du[1]*du+dir.dv[1]*dv),
			base[2] + float32(dir.du[2]*du+dir.dv[2]*dv),
		}
	}
	verts := [4]Vertex{
		{Position: base, Color: color},
		{Position: offset(h, 0), Color: color},
		{Position: offset(h, w), Color: color},
		{Position: offset(0, w), Color: color},
	}

	swap := (dir.normal[perp] < 0) != (perp == 1)
	if swap {
		verts[1], verts[3] = verts[3], verts[1]
	}

	baseIdx := uint32(len(mesh.Vertices))
	mesh.Vertices = append(mesh.Vertices, verts[:]...)
	mesh.Indices = append(mesh.Indices, baseIdx, baseIdx+1, baseIdx+2, baseIdx, baseIdx+2, baseIdx+3)
}

// GenerateSector greedily meshes the sector at sectorPos. Vertex positions
// are world voxel coordinates; faces touching a solid voxel of a neighbor
// sector are left out.
func GenerateSector(m *voxel.Map, sectorPos voxel.IVec3) *Mesh {
	grid := newSectorGrid(m, sectorPos)
	origin := [3]float32{float32(grid.base.X), float32(grid.base.Y), float32(grid.base.Z)}
	mesh := &Mesh{}

	var mask [size][size]voxel.Voxel
	var visited [size][size]bool
	for _, dir := range directions {
		perp := 3 - dir.u - dir.v

		for p := 0; p < size; p++ {
			mask = [size][size]voxel.Voxel{}
			visited = [size][size]bool{}

			for u := 0; u < size; u++ {
				for v := 0; v < size; v++ {
					pos := [3]int{}
					pos[dir.u] = u
					pos[dir.v] = v
					pos[perp] = p

					vx := grid.get(pos[0], pos[1], pos[2])
					if vx == voxel.Empty {
						continue
					}
					adj := pos
					if dir.normal[perp] < 0 {
						adj[perp] = p - 1
					} else {
						adj[perp] = p + 1
					}
					if grid.get(adj[0], adj[1], adj[2]) == voxel.Empty {
						mask[u][v] = vx
					}
				}
			}

			for u := 0; u < size; u++ {
				for v := 0; v < size; {
					if mask[u][v] == voxel.Empty || visited[u][v] {
						v++
						continue
					}
					color := mask[u][v]
					width := 1
					for w := v + 1; w < size && mask[u][w] == color && !visited[u][w]; w++ {
						width++
					}
					height := 1
					stop := false
					for h := u + 1; h < size && !stop; h++ {
						for w := v; w < v+width; w++ {
							if mask[h][w] != color || visited[h][w] {
								stop = true
								break
							}
						}
						if !stop {
							height++
						}
					}
					for hu := u; hu < u+height; hu++ {
						for hv := v; hv < v+width; hv++ {
							visited[hu][hv] = true
						}
					}
					addQuad(mesh, dir, origin, [3]int{p, u, v}, width, height, color, perp)
					v += width
				}
			}
		}
	}
	return mesh
}
