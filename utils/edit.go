package utils

import (
	"fmt"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxelsplace/voxrt/api"
	"github.com/voxelsplace/voxrt/voxel"
)

// RunEdit applies a JSON edit blob to the map at inputPath and writes the
// result to outputPath. The JSON format is { "x,y,z": <id>, ... }. An empty
// inputPath starts from an empty map.
func RunEdit(jsonEdits []byte, inputPath, outputPath string) error {
	m := voxel.NewMap()
	if inputPath != "" {
		if err := m.LoadFile(inputPath); err != nil {
			return errors.New("failed to load input map").Wrap(err)
		}
	}
	edits, err := api.ParseEdits(jsonEdits)
	if err != nil {
		return err
	}
	api.ApplyEdits(m, edits)
	if err := m.SaveFile(outputPath, voxel.DefaultSaveOptions()); err != nil {
		return errors.New("failed to save map").Wrap(err)
	}
	if fi, err := os.Stat(outputPath); err == nil {
		fmt.Printf("%d edits applied (%d bytes)\n", len(edits), fi.Size())
	} else {
		fmt.Println("edits applied.")
	}
	return nil
}

// RunEditFile reads the JSON edits from a file.
func RunEditFile(jsonPath, inputPath, outputPath string) error {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return err
	}
	return RunEdit(data, inputPath, outputPath)
}
