package trace

import (
	"math/bits"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/voxelsplace/voxrt/storage"
	"github.com/voxelsplace/voxrt/voxel"
)

const (
	// Lanes is the number of rays traced together.
	Lanes = 16

	PrimaryMaxIters   = 512
	SecondaryMaxIters = 128
)

// Mask selects lanes of a batch, bit i for lane i.
type Mask uint16

const AllLanes Mask = 1<<Lanes - 1

func (m Mask) Has(i int) bool { return m>>uint(i)&1 != 0 }
func (m Mask) Count() int     { return bits.OnesCount16(uint16(m)) }

// RayBatch holds Lanes rays in world voxel space. Directions need not be
// normalized; distances are reported in units of the direction length.
type RayBatch struct {
	Origin [Lanes]ms3.Vec
	Dir    [Lanes]ms3.Vec
	Mask   Mask
}

// Set enables lane i with the given ray.
func (b *RayBatch) Set(i int, origin, dir ms3.Vec) {
	b.Origin[i] = origin
	b.Dir[i] = dir
	b.Mask |= 1 << uint(i)
}

// HitInfo is the per lane result of RayCast. Only lanes set in Mask hit
// something; the other fields of missed lanes are zero, except Iters.
type HitInfo struct {
	Mask     Mask
	Distance [Lanes]float32
	Pos      [Lanes]ms3.Vec
	Normal   [Lanes]ms3.Vec
	UV       [Lanes]ms2.Vec
	VoxelPos [Lanes]voxel.IVec3
	Voxel    [Lanes]voxel.Voxel
	Material [Lanes]uint64
	Iters    [Lanes]int
}

// Color returns the albedo of the material hit by lane i.
func (h *HitInfo) Color(i int) ms3.Vec {
	c := voxel.DecodeColor(h.Material[i])
	return ms3.Vec{X: c[0], Y: c[1], Z: c[2]}
}

func (h *HitInfo) Emission(i int) float32 { return voxel.DecodeEmission(h.Material[i]) }

// lane is the marching state of one ray, in view space.
type lane struct {
	o, d, inv [3]float32
	v         [3]int32
	t         float32
	axis      int
	iters     int
}

func (l *lane) setRay(o, d ms3.Vec) {
	l.o = [3]float32{o.X, o.Y, o.Z}
	l.d = [3]float32{d.X, d.Y, d.Z}
	for a := range l.d {
		l.inv[a] = 0
		if l.d[a] != 0 {
			l.inv[a] = 1 / l.d[a]
		}
		l.v[a] = int32(math.Floor(l.o[a]))
	}
	l.t = 0
	l.axis = -1
	l.iters = 0
}

func (l *lane) hasDir() bool { return l.d[0] != 0 || l.d[1] != 0 || l.d[2] != 0 }

func inView(v [3]int32, size voxel.IVec3) bool {
	return uint32(v[0]) < uint32(size.X) && uint32(v[1]) < uint32(size.Y) && uint32(v[2]) < uint32(size.Z)
}

// planeDist is the ray distance to the plane at coordinate p on one axis.
// d must be non-zero on that axis.
func planeDist(p int32, o, inv float32) float32 {
	return (float32(p) - o) * inv
}

// step moves the lane out of the aligned cell of size 1<<lod around its
// voxel. It returns the voxel entered, the distance of the exit plane and the
// axis crossed. The voxel is the one a unit stepping walk would be in right
// after crossing the same plane, with ties resolved X before Y before Z.
func (l *lane) step(lod uint) (next [3]int32, t float32, axis int) {
	size := int32(1) << lod
	var c0, c1 [3]int32
	var tExit [3]float32
	for a := 0; a < 3; a++ {
		c0[a] = l.v[a] &^ (size - 1)
		c1[a] = c0[a] + size - 1
		switch {
		case l.d[a] > 0:
			tExit[a] = planeDist(c1[a]+1, l.o[a], l.inv[a])
		case l.d[a] < 0:
			tExit[a] = planeDist(c0[a], l.o[a], l.inv[a])
		default:
			tExit[a] = math.Inf(1)
		}
	}
	axis = 0
	if tExit[1] < tExit[axis] {
		axis = 1
	}
	if tExit[2] < tExit[axis] {
		axis = 2
	}
	t = tExit[axis]

	next = l.v
	if l.d[axis] > 0 {
		next[axis] = c1[axis] + 1
	} else {
		next[axis] = c0[axis] - 1
	}
	for a := 0; a < 3; a++ {
		if a == axis || l.d[a] == 0 {
			continue
		}
		next[a] = l.crossPlanes(a, axis, t, c0[a], c1[a])
	}
	return next, t, axis
}

// crossPlanes returns the voxel coordinate on axis a once every plane of the
// cell [c0, c1] reached before the exit plane at distance t on axis m has
// been crossed.
func (l *lane) crossPlanes(a, m int, t float32, c0, c1 int32) int32 {
	crossed := func(p int32) bool {
		pt := planeDist(p, l.o[a], l.inv[a])
		return pt < t || (pt == t && a < m)
	}
	v := l.v[a]
	k := int32(math.Floor(l.o[a] + l.d[a]*t))
	if l.d[a] > 0 {
		k = min(max(k, v), c1)
		for k > v && !crossed(k) {
			k--
		}
		for k < c1 && crossed(k+1) {
			k++
		}
		return k
	}
	k = min(max(k, c0), v)
	for k < v && !crossed(k+1) {
		k++
	}
	for k > c0 && crossed(k) {
		k--
	}
	return k
}

// GetStepPos steps a ray with view space origin o and direction d, currently
// in voxel v, out of the aligned cell of size 1<<lod that contains v.
func GetStepPos(o, d ms3.Vec, v voxel.IVec3, lod uint) (next voxel.IVec3, t float32, axis int) {
	var l lane
	l.setRay(o, d)
	l.v = [3]int32{v.X, v.Y, v.Z}
	n, t, axis := l.step(lod)
	return voxel.IVec3{X: n[0], Y: n[1], Z: n[2]}, t, axis
}

// subBlockEmpty reports whether the aligned 2x2x2 block of a 4x4x4 mask laid
// out as x | z<<2 | y<<4 that holds bit idx is empty.
func subBlockEmpty(mask uint64, idx uint32) bool {
	return (mask>>(idx&0x2A))&0x00330033 == 0
}

// probe looks the view space voxel v up, coarsest level first. It returns the
// voxel when it is solid, otherwise the log2 size of the largest empty aligned
// cell found around v.
func probe(vol Volume, v [3]int32) (lod uint, vx voxel.Voxel) {
	x, y, z := uint32(v[0]), uint32(v[1]), uint32(v[2])
	sector := voxel.IVec3{X: v[0] >> voxel.SectorShift, Y: v[1] >> voxel.SectorShift, Z: v[2] >> voxel.SectorShift}
	brickIdx := voxel.SectorBricks.IndexXYZ(x>>voxel.BrickShift, y>>voxel.BrickShift, z>>voxel.BrickShift)

	mask := vol.BrickMask(sector)
	if mask>>brickIdx&1 == 0 {
		switch {
		case mask == 0 && vol.GroupMask(sector.Shr(2)) == 0:
			return 7, voxel.Empty
		case mask == 0:
			return voxel.SectorShift, voxel.Empty
		case subBlockEmpty(mask, brickIdx):
			return voxel.BrickShift + 1, voxel.Empty
		}
		return voxel.BrickShift, voxel.Empty
	}

	slot, _ := vol.BrickSlot(sector, brickIdx)
	lx, ly, lz := x&(voxel.BrickSize-1), y&(voxel.BrickSize-1), z&(voxel.BrickSize-1)
	cells := vol.CellMask(slot, storage.CellIndex(lx, ly, lz))
	bit := storage.CellBit(lx, ly, lz)
	switch {
	case cells>>bit&1 != 0:
		return 0, vol.VoxelAt(slot, voxel.BrickVoxels.IndexXYZ(lx, ly, lz))
	case cells == 0:
		return 2, voxel.Empty
	case subBlockEmpty(cells, bit):
		return 1, voxel.Empty
	}
	return 0, voxel.Empty
}

// RayCast traces the enabled lanes of rays through vol in lockstep. Each
// iteration probes every active lane once and moves it by the largest empty
// cell found. Lanes stop on a solid voxel, when they leave the view or after
// maxIters probes. Rays starting outside the view miss.
//
// A ray starting inside a solid voxel hits it at distance 0 with a zero
// normal.
func RayCast(vol Volume, rays *RayBatch, maxIters int) HitInfo {
	var hit HitInfo
	var lanes [Lanes]lane
	size := vol.ViewSize()
	origin := vol.Origin()
	viewOrigin := ms3.Vec{X: float32(origin.X), Y: float32(origin.Y), Z: float32(origin.Z)}

	active := rays.Mask
	for i := 0; i < Lanes; i++ {
		if !active.Has(i) {
			continue
		}
		l := &lanes[i]
		l.setRay(ms3.Sub(rays.Origin[i], viewOrigin), rays.Dir[i])
		if !l.hasDir() || !inView(l.v, size) {
			active &^= 1 << uint(i)
		}
	}

	for active != 0 {
		for i := 0; i < Lanes; i++ {
			if !active.Has(i) {
				continue
			}
			l := &lanes[i]
			if l.iters >= maxIters {
				active &^= 1 << uint(i)
				continue
			}
			l.iters++

			lod, vx := probe(vol, l.v)
			if vx != voxel.Empty {
				hit.resolve(i, l, vx, vol, rays)
				active &^= 1 << uint(i)
				continue
			}
			l.v, l.t, l.axis = l.step(lod)
			if !inView(l.v, size) {
				active &^= 1 << uint(i)
			}
		}
	}

	for i := range lanes {
		hit.Iters[i] = lanes[i].iters
	}
	return hit
}

func (h *HitInfo) resolve(i int, l *lane, vx voxel.Voxel, vol Volume, rays *RayBatch) {
	h.Mask |= 1 << uint(i)
	h.Distance[i] = l.t
	h.Pos[i] = ms3.Add(rays.Origin[i], ms3.Scale(l.t, rays.Dir[i]))
	h.VoxelPos[i] = voxel.IVec3{X: l.v[0], Y: l.v[1], Z: l.v[2]}.Add(vol.Origin())
	h.Voxel[i] = vx
	h.Material[i] = vol.Material(vx)
	if l.axis < 0 {
		return
	}

	var n [3]float32
	n[l.axis] = -math.Copysign(1, l.d[l.axis])
	h.Normal[i] = ms3.Vec{X: n[0], Y: n[1], Z: n[2]}

	var p [3]float32
	for a := range p {
		p[a] = l.o[a] + l.d[a]*l.t
		p[a] -= math.Floor(p[a])
	}
	u, v := uvAxes(l.axis)
	h.UV[i] = ms2.Vec{X: p[u], Y: p[v]}
}

// uvAxes returns the two axes spanning a face across axis.
func uvAxes(axis int) (u, v int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}
