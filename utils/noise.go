package utils

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/voxelsplace/voxrt/voxel"
)

// fillNoiseBrick fills the given percentage of b with random ids in [1..63].
// Remaining voxels are 0 (empty).
func fillNoiseBrick(b *voxel.Brick, percentage float64, r *rand.Rand) {
	percentage = min(max(percentage, 0), 100)
	total := voxel.BrickVolume
	want := int(float64(total)*(percentage/100.0) + 0.5)
	want = min(max(want, 0), total)

	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	// Fisher-Yates shuffle only first 'want' items
	for i := 0; i < want; i++ {
		j := i + r.Intn(total-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	*b = voxel.Brick{}
	for k := 0; k < want; k++ {
		b.Data[idx[k]] = voxel.Voxel(1 + r.Intn(63))
	}
}

// RunGenerateNoise writes a map of size^3 bricks starting at the origin, each
// filled with a random percentage in [percentageMin, percentageMax].
func RunGenerateNoise(percentageMin, percentageMax float64, size int32, seed int64, outPath string) error {
	if percentageMax < percentageMin {
		percentageMin, percentageMax = percentageMax, percentageMin
	}
	r := rand.New(rand.NewSource(seed))

	m := voxel.NewMap()
	for i := range m.Palette {
		m.Palette[i].SetColor(r.Float32(), r.Float32(), r.Float32())
	}
	for y := int32(0); y < size; y++ {
		for z := int32(0); z < size; z++ {
			for x := int32(0); x < size; x++ {
				perc := percentageMin
				if percentageMax > percentageMin {
					perc = percentageMin + r.Float64()*(percentageMax-percentageMin)
				}
				b := m.Brick(voxel.IVec3{X: x, Y: y, Z: z}, true, true)
				if b == nil {
					continue
				}
				fillNoiseBrick(b, perc, r)
			}
		}
	}
	// drop bricks the noise left empty
	for idx, s := range m.Sectors {
		s.DeleteEmptyBricks(s.AllocationMask())
		if s.NumBricks() == 0 {
			delete(m.Sectors, idx)
		}
	}

	if err := m.SaveFile(outPath, voxel.DefaultSaveOptions()); err != nil {
		return err
	}
	if fi, err := os.Stat(outPath); err == nil {
		fmt.Printf("noise map saved: %d bricks (%d bytes)\n", m.NumBricks(), fi.Size())
	}
	return nil
}
