package utils

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxelsplace/voxrt/voxel"
)

// LoadMaps reads map files in parallel.
func LoadMaps(paths []string) ([]*voxel.Map, error) {
	maps := make([]*voxel.Map, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := voxel.NewMap()
			if err := m.LoadFile(paths[i]); err != nil {
				errs[i] = errors.New("failed to load map").
					WithTag("path", paths[i]).
					Wrap(err)
				return
			}
			maps[i] = m
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return maps, nil
}

// MergeMaps splices the sectors of every map into one. Later maps win for
// sectors present in several inputs; the palette comes from the first map.
func MergeMaps(maps []*voxel.Map) *voxel.Map {
	out := voxel.NewMap()
	if len(maps) == 0 {
		return out
	}
	out.Palette = maps[0].Palette
	for _, m := range maps {
		for idx, s := range m.Sectors {
			out.SpliceSector(voxel.SectorPos(idx), s)
		}
	}
	return out
}

// RunRepack merges the input maps and writes them with the given pack
// compression and pack size.
func RunRepack(inputFiles []string, outputFile, compression string, maxPackSize int) error {
	if len(inputFiles) == 0 {
		return errors.New("no map files provided")
	}
	comp, err := voxel.ParsePackCompression(compression)
	if err != nil {
		return err
	}
	maps, err := LoadMaps(inputFiles)
	if err != nil {
		return err
	}
	m := MergeMaps(maps)

	start := time.Now()
	data, err := m.SaveBytes(voxel.SaveOptions{Compression: comp, MaxPackSize: maxPackSize})
	if err != nil {
		return err
	}
	fmt.Printf("%s compression of %d sectors took %d ms (%d bytes)\n",
		comp, len(m.Sectors), time.Since(start).Milliseconds(), len(data))
	return os.WriteFile(outputFile, data, 0o644)
}
