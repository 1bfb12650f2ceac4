package utils

import (
	"fmt"
	"math/bits"
	"os"

	"github.com/voxelsplace/voxrt/voxel"
)

// MapInfo summarizes a map file.
type MapInfo struct {
	Sectors  int
	Bricks   int
	Voxels   int
	Min, Max voxel.IVec3
	Bytes    int64
}

func LoadInfo(path string) (MapInfo, error) {
	m := voxel.NewMap()
	if err := m.LoadFile(path); err != nil {
		return MapInfo{}, err
	}
	info := MapInfo{Sectors: len(m.Sectors), Bricks: m.NumBricks()}
	info.Min, info.Max, _ = m.Bounds()
	for _, s := range m.Sectors {
		for b := s.AllocationMask(); b != 0; b &= b - 1 {
			for _, v := range s.Brick(uint32(bits.TrailingZeros64(b)), false).Data {
				if v != voxel.Empty {
					info.Voxels++
				}
			}
		}
	}
	if fi, err := os.Stat(path); err == nil {
		info.Bytes = fi.Size()
	}
	return info, nil
}

func RunInfo(path string) error {
	info, err := LoadInfo(path)
	if err != nil {
		return err
	}
	fmt.Printf("file:    %s (%d bytes)\n", path, info.Bytes)
	fmt.Printf("sectors: %d\n", info.Sectors)
	fmt.Printf("bricks:  %d\n", info.Bricks)
	fmt.Printf("voxels:  %d\n", info.Voxels)
	if info.Sectors > 0 {
		fmt.Printf("bounds:  %v .. %v\n", info.Min, info.Max)
	}
	return nil
}
