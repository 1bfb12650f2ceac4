package utils

import (
	"fmt"

	"github.com/voxelsplace/voxrt/brush"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunBrush applies one capsule stroke to the map at inPath and saves the
// result to outPath. A missing input starts from an empty map.
func RunBrush(inPath, outPath string, p brush.Params) error {
	m := voxel.NewMap()
	if inPath != "" {
		if err := m.LoadFile(inPath); err != nil {
			return err
		}
	}
	before := m.NumBricks()
	brush.Apply(m, p)
	fmt.Printf("%s stroke: %d -> %d bricks, %d sectors dirty\n", p.Action, before, m.NumBricks(), m.Dirty.Len())
	return m.SaveFile(outPath, voxel.DefaultSaveOptions())
}
