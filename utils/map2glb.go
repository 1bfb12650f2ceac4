package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/voxelsplace/voxrt/mesh"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunMap2GLB meshes every sector of the map at inPath into a .glb.
func RunMap2GLB(inPath, outPath string) error {
	m := voxel.NewMap()
	if err := m.LoadFile(inPath); err != nil {
		return err
	}
	start := time.Now()
	if err := mesh.SaveGLB(m, outPath); err != nil {
		return err
	}
	if fi, err := os.Stat(outPath); err == nil {
		fmt.Printf(".glb saved in %d ms (%d bytes)\n", time.Since(start).Milliseconds(), fi.Size())
	}
	return nil
}
