package utils

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/soypat/geometry/ms3"
	"github.com/voxelsplace/voxrt/trace"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunRender renders the map at path from eye looking at target and writes a
// PNG to outPath.
func RunRender(path, outPath string, width, height int, eye, target [3]float64) error {
	m := voxel.NewMap()
	if err := m.LoadFile(path); err != nil {
		return err
	}
	fs, err := newViewStorage(m, floorPos(eye), 16, 8)
	if err != nil {
		return err
	}

	cam := trace.Camera{Pos: toVec32(eye)}
	cam.LookAt(toVec32(target))

	start := time.Now()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	trace.Render(fs, cam, img, 0)
	fmt.Printf("rendered %dx%d in %d ms\n", width, height, time.Since(start).Milliseconds())

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func toVec32(v [3]float64) ms3.Vec {
	return ms3.Vec{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}
