package trace

import (
	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Camera is a pinhole camera in world voxel space. Yaw turns around +Y
// starting from +Z, pitch tilts towards +Y. FOV is the vertical field of
// view in radians.
type Camera struct {
	Pos        ms3.Vec
	Yaw, Pitch float32
	FOV        float32
}

// basis returns the forward, right and up vectors of the camera.
func (c Camera) basis() (fwd, right, up ms3.Vec) {
	sy, cy := math.Sincos(c.Yaw)
	sp, cp := math.Sincos(c.Pitch)
	fwd = ms3.Vec{X: cp * sy, Y: sp, Z: cp * cy}
	right = ms3.Vec{X: cy, Z: -sy}
	up = ms3.Vec{X: -sp * sy, Y: cp, Z: -sp * cy}
	return fwd, right, up
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target ms3.Vec) {
	d := ms3.Sub(target, c.Pos)
	if ms3.Norm(d) == 0 {
		return
	}
	d = ms3.Unit(d)
	c.Yaw = math.Atan2(d.X, d.Z)
	c.Pitch = math.Asin(math.Max(-1, math.Min(1, d.Y)))
}

// rayGen builds primary ray directions for a w x h image.
type rayGen struct {
	fwd, right, up ms3.Vec
	w, h           float32
}

func (c Camera) rayGen(w, h int) rayGen {
	fwd, right, up := c.basis()
	fov := c.FOV
	if fov <= 0 {
		fov = math.Pi / 3
	}
	half := math.Tan(fov / 2)
	aspect := float32(w) / float32(h)
	return rayGen{
		fwd:   fwd,
		right: ms3.Scale(half*aspect, right),
		up:    ms3.Scale(half, up),
		w:     float32(w),
		h:     float32(h),
	}
}

// dir returns the unit direction through the center of pixel (x, y), with y
// growing downwards.
func (g rayGen) dir(x, y int) ms3.Vec {
	sx := (float32(x)+0.5)/g.w*2 - 1
	sy := 1 - (float32(y)+0.5)/g.h*2
	d := ms3.Add(g.fwd, ms3.Add(ms3.Scale(sx, g.right), ms3.Scale(sy, g.up)))
	return ms3.Unit(d)
}

// Ray returns the primary ray through pixel (x, y) of a w x h image.
func (c Camera) Ray(x, y, w, h int) (origin, dir ms3.Vec) {
	return c.Pos, c.rayGen(w, h).dir(x, y)
}
