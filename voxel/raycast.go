package voxel

import (
	"math"

	"github.com/soypat/geometry/md3"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// HitResult is the outcome of Map.RayCast. A Distance <= 0 is a miss.
type HitResult struct {
	Distance float64
	Normal   ms3.Vec
	UV       ms2.Vec
	VoxelPos IVec3
}

func (h HitResult) IsMiss() bool { return h.Distance <= 0 }

// RayCast walks the ray one voxel at a time for at most maxIters steps. It is
// meant for picking, not for rendering. Ties between axes step X before Y
// before Z. A ray starting inside a solid voxel reports a miss with VoxelPos
// set to that voxel.
func (m *Map) RayCast(origin, dir md3.Vec, maxIters int) HitResult {
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}

	var pos [3]int32
	var step [3]int32
	var delta, side [3]float64
	for a := 0; a < 3; a++ {
		fl := math.Floor(o[a])
		pos[a] = int32(fl)
		switch {
		case d[a] > 0:
			step[a] = 1
			delta[a] = 1 / d[a]
			side[a] = (fl + 1 - o[a]) * delta[a]
		case d[a] < 0:
			step[a] = -1
			delta[a] = -1 / d[a]
			side[a] = (o[a] - fl) * delta[a]
		default:
			delta[a] = math.Inf(1)
			side[a] = math.Inf(1)
		}
	}

	axis := -1
	for ; maxIters > 0; maxIters-- {
		p := IVec3{pos[0], pos[1], pos[2]}
		if !InBounds(p) {
			break
		}
		if !m.Get(p).IsEmpty() {
			if axis < 0 {
				return HitResult{VoxelPos: p}
			}
			t := side[axis] - delta[axis]
			hit := HitResult{Distance: t, VoxelPos: p}

			n := [3]float32{}
			n[axis] = float32(-step[axis])
			hit.Normal = ms3.Vec{X: n[0], Y: n[1], Z: n[2]}

			var f [3]float64
			for a := 0; a < 3; a++ {
				h := o[a] + d[a]*t
				f[a] = h - math.Floor(h)
			}
			u, v := uvAxes(axis)
			hit.UV = ms2.Vec{X: float32(f[u]), Y: float32(f[v])}
			return hit
		}

		axis = 2
		if side[0] <= side[1] && side[0] <= side[2] {
			axis = 0
		} else if side[1] <= side[2] {
			axis = 1
		}
		side[axis] += delta[axis]
		pos[axis] += step[axis]
	}
	return HitResult{Distance: -1}
}

// uvAxes returns the two axes spanning the face whose normal is axis.
func uvAxes(axis int) (u, v int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}
