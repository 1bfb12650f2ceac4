package brush

import (
	"encoding/binary"
	"math"

	xxhash "github.com/cespare/xxhash/v2"
	math32 "github.com/chewxy/math32"
	"github.com/soypat/geometry/md3"
	"github.com/soypat/geometry/ms3"
	"github.com/voxelsplace/voxrt/voxel"
)

type Action uint8

const (
	// Replace only overwrites solid voxels.
	Replace Action = iota
	// Fill writes every voxel inside the brush.
	Fill
	// Erase clears every voxel inside the brush.
	Erase
)

func (a Action) String() string {
	switch a {
	case Replace:
		return "replace"
	case Fill:
		return "fill"
	case Erase:
		return "erase"
	}
	return "unknown"
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, bool) {
	for _, a := range []Action{Replace, Fill, Erase} {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Params describe one capsule stroke from PointA to PointB.
type Params struct {
	Action Action
	Radius float32
	// Probability is the chance that a voxel inside the brush is written.
	Probability float32
	Seed        uint64

	PointA, PointB voxel.IVec3
	Material       voxel.Voxel
}

func DefaultParams() Params {
	return Params{
		Action:      Replace,
		Radius:      30,
		Probability: 1,
		Seed:        1234,
		Material:    255,
	}
}

func (p Params) erasing() bool { return p.Action == Erase || p.Material == voxel.Empty }

// capsuleDist is the signed distance from p to the capsule of radius r
// around segment ab.
func capsuleDist(p, a, b ms3.Vec, r float32) float32 {
	pa, ba := ms3.Sub(p, a), ms3.Sub(b, a)
	var h float32
	if bb := ms3.Dot(ba, ba); bb > 0 {
		h = math32.Max(0, math32.Min(1, ms3.Dot(pa, ba)/bb))
	}
	return ms3.Norm(ms3.Sub(pa, ms3.Scale(h, ba))) - r
}

// dither returns a value in [0, 1) that only depends on seed and the voxel.
func dither(seed uint64, x, y, z int32) float32 {
	var b [20]byte
	binary.LittleEndian.PutUint64(b[0:], seed)
	binary.LittleEndian.PutUint32(b[8:], uint32(x))
	binary.LittleEndian.PutUint32(b[12:], uint32(y))
	binary.LittleEndian.PutUint32(b[16:], uint32(z))
	return float32(xxhash.Sum64(b[:])>>40) / (1 << 24)
}

func toVec(p voxel.IVec3) ms3.Vec {
	return ms3.Vec{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
}

// Apply runs one stroke over m. Voxels are tested at their centers.
func Apply(m *voxel.Map, p Params) {
	r := int32(p.Radius + 0.5)
	pad := voxel.IVec3{X: r, Y: r, Z: r}
	lo := p.PointA.Min(p.PointB).Sub(pad)
	hi := p.PointA.Max(p.PointB).Add(pad)

	a, b := toVec(p.PointA), toVec(p.PointB)
	erasing := p.erasing()
	id := int32(p.Material)
	if erasing {
		id = 0
	}

	m.RegionDispatchSIMD(lo, hi, !erasing, func(l *voxel.DispatchLanes) bool {
		changed := false
		for i := range l.VoxelIDs {
			pos := ms3.Vec{X: float32(l.X[i]) + 0.5, Y: float32(l.Y[i]) + 0.5, Z: float32(l.Z[i]) + 0.5}
			if capsuleDist(pos, a, b, p.Radius) >= 0 {
				continue
			}
			if p.Probability < 1 && dither(p.Seed, l.X[i], l.Y[i], l.Z[i]) >= p.Probability {
				continue
			}
			if p.Action == Replace && l.VoxelIDs[i] == 0 {
				continue
			}
			if l.VoxelIDs[i] != id {
				l.VoxelIDs[i] = id
				changed = true
			}
		}
		return changed
	})
}

// rayIters bounds the picking ray of UpdatePosFromRay.
const rayIters = 1024

// Session tracks a stroke across frames, keeping the brush at a stable
// distance from the camera.
type Session struct {
	Params Params

	frame       uint32
	prevHitDist float64
}

func NewSession(p Params) *Session { return &Session{Params: p} }

// UpdatePos moves the brush to pos. The first update of a stroke starts the
// segment at pos as well.
func (s *Session) UpdatePos(pos voxel.IVec3) {
	if s.frame == 0 {
		s.Params.PointB = pos
	}
	s.Params.PointA = s.Params.PointB
	s.Params.PointB = pos
	s.frame++
}

// Reset starts a new stroke.
func (s *Session) Reset() {
	s.frame = 0
	s.prevHitDist = 0
}

// UpdatePosFromRay places the brush where the ray hits m, at least
// Radius+5 voxels away. Erasing never pushes further than the previous
// frame, so holes do not get deeper than the stroke started. Filling never
// pulls closer than the previous frame while next to voxels it wrote.
func (s *Session) UpdatePosFromRay(m *voxel.Map, origin, dir md3.Vec) {
	hit := m.RayCast(origin, dir, rayIters)
	dist := math.Max(hit.Distance, float64(s.Params.Radius)+5)

	switch {
	case s.Params.erasing():
		if s.frame != 0 {
			if hit.IsMiss() {
				dist = s.prevHitDist
			} else {
				dist = math.Min(dist, s.prevHitDist)
			}
		}
	case s.Params.Action == Fill:
		if s.frame != 0 && nearMaterial(m, s.Params.Material, hit.VoxelPos, 2) {
			dist = math.Max(dist, s.prevHitDist)
		}
	}
	s.prevHitDist = dist

	s.UpdatePos(voxel.IVec3{
		X: int32(math.Floor(origin.X + dir.X*dist)),
		Y: int32(math.Floor(origin.Y + dir.Y*dist)),
		Z: int32(math.Floor(origin.Z + dir.Z*dist)),
	})
}

// Dispatch applies the session's current stroke to m.
func (s *Session) Dispatch(m *voxel.Map) { Apply(m, s.Params) }

func nearMaterial(m *voxel.Map, v voxel.Voxel, pos voxel.IVec3, radius int32) bool {
	for dy := -radius; dy <= radius; dy++ {
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				if m.Get(pos.Add(voxel.IVec3{X: dx, Y: dy, Z: dz})) == v {
					return true
				}
			}
		}
	}
	return false
}
