package trace

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	math "github.com/chewxy/math32"
	"github.com/voxelsplace/voxrt/voxel"
)

// tileSize is the side of the pixel tile traced as one batch.
const tileSize = 4

// Sky is written for pixels whose ray misses.
var Sky = color.RGBA{R: 135, G: 180, B: 235, A: 255}

// Render writes the albedo of the voxel seen through every pixel of img.
// Rows are split into bands of tileSize rows handed to workers goroutines;
// workers <= 0 uses one per CPU.
func Render(vol Volume, cam Camera, img *image.RGBA, workers int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	gen := cam.rayGen(w, h)

	bands := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y0 := range bands {
				renderBand(vol, cam, gen, img, y0)
			}
		}()
	}
	for y0 := 0; y0 < h; y0 += tileSize {
		bands <- y0
	}
	close(bands)
	wg.Wait()
}

func renderBand(vol Volume, cam Camera, gen rayGen, img *image.RGBA, y0 int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for x0 := 0; x0 < w; x0 += tileSize {
		var rays RayBatch
		for i := 0; i < Lanes; i++ {
			x, y := x0+i%tileSize, y0+i/tileSize
			if x >= w || y >= h {
				continue
			}
			rays.Set(i, cam.Pos, gen.dir(x, y))
		}

		hit := RayCast(vol, &rays, PrimaryMaxIters)
		for i := 0; i < Lanes; i++ {
			if !rays.Mask.Has(i) {
				continue
			}
			x, y := b.Min.X+x0+i%tileSize, b.Min.Y+y0+i/tileSize
			if !hit.Mask.Has(i) {
				img.SetRGBA(x, y, Sky)
				continue
			}
			img.SetRGBA(x, y, albedo(hit.Material[i]))
		}
	}
}

func albedo(enc uint64) color.RGBA {
	c := voxel.DecodeColor(enc)
	return color.RGBA{R: unorm8(c[0]), G: unorm8(c[1]), B: unorm8(c[2]), A: 255}
}

func unorm8(v float32) uint8 {
	return uint8(math.Max(0, math.Min(1, v))*255 + 0.5)
}
