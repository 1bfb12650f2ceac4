package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/voxelsplace/voxrt/api"
	"github.com/voxelsplace/voxrt/terrain"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunGenTerrain generates terrain sectors in a square of the given radius
// around the origin and saves the map to outPath.
func RunGenTerrain(outPath string, radius int32, seed uint64, compression string) error {
	comp, err := voxel.ParsePackCompression(compression)
	if err != nil {
		return err
	}
	cfg := terrain.DefaultConfig()
	cfg.Seed = seed

	start := time.Now()
	m := api.GenerateTerrainMap(cfg, radius)
	fmt.Printf("generated %d sectors (%d bricks) in %d ms\n", len(m.Sectors), m.NumBricks(), time.Since(start).Milliseconds())

	start = time.Now()
	opts := voxel.DefaultSaveOptions()
	opts.Compression = comp
	if err := m.SaveFile(outPath, opts); err != nil {
		return err
	}
	if fi, err := os.Stat(outPath); err == nil {
		fmt.Printf("map saved with %s in %d ms (%d bytes)\n", comp, time.Since(start).Milliseconds(), fi.Size())
	}
	return nil
}
