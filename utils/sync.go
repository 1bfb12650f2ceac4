package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/voxelsplace/voxrt/storage"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunSync uploads the map at path into a flat storage view centered on
// center, budget bricks at a time, printing every pass. With metaOut set the
// view's sector metadata is written there.
func RunSync(path string, center [3]float64, viewXZ, viewY uint32, budget int, metaOut string) error {
	m := voxel.NewMap()
	if err := m.LoadFile(path); err != nil {
		return err
	}

	cfg := storage.DefaultConfig()
	cfg.ViewSizeXZ, cfg.ViewSizeY = viewXZ, viewY
	cfg.MaxBricksPerSync = budget
	fs, err := storage.New(cfg)
	if err != nil {
		return err
	}
	half := voxel.IVec3{X: int32(viewXZ / 2), Y: int32(viewY / 2), Z: int32(viewXZ / 2)}
	fs.SetViewOrigin(m, floorPos(center).Shr(voxel.SectorShift).Sub(half))

	start := time.Now()
	for pass := 1; m.Dirty.Len() > 0; pass++ {
		res, err := fs.Sync(m)
		if err != nil {
			return err
		}
		fmt.Printf("pass %d: %d sectors, %d bricks, %d remaining", pass, res.Sectors, res.Bricks, res.Remaining)
		if res.Reset {
			fmt.Print(" (buffer reset)")
		}
		fmt.Println()
	}
	fmt.Printf("synced %d bricks into %d bytes in %d ms\n",
		m.NumBricks(), len(fs.BrickBytes()), time.Since(start).Milliseconds())

	if metaOut == "" {
		return nil
	}
	if err := os.WriteFile(metaOut, fs.AppendMeta(nil), 0644); err != nil {
		return err
	}
	fmt.Printf("sector metadata written to %s\n", metaOut)
	return nil
}
