package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxelsplace/voxrt/api"
	"github.com/voxelsplace/voxrt/storage"
	"github.com/voxelsplace/voxrt/trace"
	"github.com/voxelsplace/voxrt/voxel"
)

// ParseVec3 parses "x,y,z".
func ParseVec3(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, errors.Newf("expected x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, errors.Newf("invalid component %q", p).Wrap(err)
		}
		v[i] = f
	}
	return v, nil
}

// newViewStorage builds flat storage around pos and uploads the whole map.
func newViewStorage(m *voxel.Map, pos voxel.IVec3, viewXZ, viewY uint32) (*storage.FlatStorage, error) {
	cfg := storage.DefaultConfig()
	cfg.ViewSizeXZ, cfg.ViewSizeY = viewXZ, viewY
	fs, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	half := voxel.IVec3{X: int32(viewXZ / 2), Y: int32(viewY / 2), Z: int32(viewXZ / 2)}
	fs.SetViewOrigin(m, pos.Shr(voxel.SectorShift).Sub(half))
	if err := fs.SyncAll(m); err != nil {
		return nil, err
	}
	return fs, nil
}

func floorPos(v [3]float64) voxel.IVec3 {
	return voxel.IVec3{X: int32(math.Floor(v[0])), Y: int32(math.Floor(v[1])), Z: int32(math.Floor(v[2]))}
}

// RunRaycast casts one ray against the map at path, once through the sparse
// map and once through a flat storage view centered on the origin.
func RunRaycast(path string, origin, dir [3]float64) error {
	m := voxel.NewMap()
	if err := m.LoadFile(path); err != nil {
		return err
	}

	hit := api.Raycast(m, origin, dir)
	if hit.Hit {
		fmt.Printf("map:     hit voxel %v id %d at %.3f normal %v\n", hit.Voxel, hit.ID, hit.Distance, hit.Normal)
	} else {
		fmt.Println("map:     miss")
	}

	fs, err := newViewStorage(m, floorPos(origin), 16, 8)
	if err != nil {
		return err
	}
	var rays trace.RayBatch
	rays.Set(0, toVec32(origin), toVec32(dir))
	res := trace.RayCast(fs, &rays, trace.PrimaryMaxIters)
	if res.Mask.Has(0) {
		fmt.Printf("storage: hit voxel %v id %d at %.3f normal %v (%d steps)\n",
			res.VoxelPos[0], res.Voxel[0], res.Distance[0], res.Normal[0], res.Iters[0])
	} else {
		fmt.Printf("storage: miss (%d steps)\n", res.Iters[0])
	}
	return nil
}
