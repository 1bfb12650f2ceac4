package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/soypat/geometry/md3"
	"github.com/voxelsplace/voxrt/mesh"
	"github.com/voxelsplace/voxrt/terrain"
	"github.com/voxelsplace/voxrt/voxel"
)

const ErrTypeBadEdits = "api_bad_edits"

// pickIters bounds the map ray cast of RayQuery.
const pickIters = 4096

// MapToGLB takes serialized map bytes and returns a .glb with one greedy
// meshed node per sector.
func MapToGLB(mapBytes []byte) ([]byte, error) {
	m, err := voxel.LoadMapFromBytes(mapBytes)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := mesh.ExportGLB(m, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// RayHit is the JSON friendly result of RayQuery.
type RayHit struct {
	Hit      bool       `json:"hit"`
	Distance float64    `json:"distance"`
	Voxel    [3]int32   `json:"voxel"`
	Normal   [3]float32 `json:"normal"`
	ID       uint8      `json:"id"`
}

// RayQuery casts one ray against serialized map bytes.
func RayQuery(mapBytes []byte, origin, dir [3]float64) (RayHit, error) {
	m, err := voxel.LoadMapFromBytes(mapBytes)
	if err != nil {
		return RayHit{}, err
	}
	return Raycast(m, origin, dir), nil
}

// Raycast casts one ray against m.
func Raycast(m *voxel.Map, origin, dir [3]float64) RayHit {
	hit := m.RayCast(
		md3.Vec{X: origin[0], Y: origin[1], Z: origin[2]},
		md3.Vec{X: dir[0], Y: dir[1], Z: dir[2]},
		pickIters,
	)
	if hit.IsMiss() {
		return RayHit{}
	}
	return RayHit{
		Hit:      true,
		Distance: hit.Distance,
		Voxel:    [3]int32{hit.VoxelPos.X, hit.VoxelPos.Y, hit.VoxelPos.Z},
		Normal:   [3]float32{hit.Normal.X, hit.Normal.Y, hit.Normal.Z},
		ID:       uint8(m.Get(hit.VoxelPos)),
	}
}

// ParseEdits decodes a JSON edit blob of the form { "x,y,z": id, ... }.
func ParseEdits(jsonEdits []byte) (map[voxel.IVec3]voxel.Voxel, error) {
	var raw map[string]int
	if err := json.Unmarshal(jsonEdits, &raw); err != nil {
		return nil, errors.New("invalid edits json").
			WithType(ErrTypeBadEdits).
			Wrap(err)
	}

	edits := make(map[voxel.IVec3]voxel.Voxel, len(raw))
	for key, id := range raw {
		pos, err := parsePos(key)
		if err != nil {
			return nil, err
		}
		if id < 0 || id > 255 {
			return nil, errors.New("voxel id out of range").
				WithType(ErrTypeBadEdits).
				WithTag("pos", key).
				WithTag("id", id)
		}
		edits[pos] = voxel.Voxel(id)
	}
	return edits, nil
}

func parsePos(s string) (voxel.IVec3, error) {
	parts := strings.Split(strings.Trim(s, "[] "), ",")
	if len(parts) != 3 {
		return voxel.IVec3{}, errors.New("position must have 3 components").
			WithType(ErrTypeBadEdits).
			WithTag("pos", s)
	}
	var c [3]int32
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return voxel.IVec3{}, errors.New("invalid position component").
				WithType(ErrTypeBadEdits).
				WithTag("pos", s).
				Wrap(err)
		}
		c[i] = int32(v)
	}
	return voxel.IVec3{X: c[0], Y: c[1], Z: c[2]}, nil
}

// ApplyEdits writes edits into m.
func ApplyEdits(m *voxel.Map, edits map[voxel.IVec3]voxel.Voxel) {
	for pos, id := range edits {
		m.Set(pos, id)
	}
}

// EditMap applies a JSON edit blob to serialized map bytes and returns the
// re-serialized map.
func EditMap(mapBytes, jsonEdits []byte) ([]byte, error) {
	m := voxel.NewMap()
	if len(mapBytes) > 0 {
		var err error
		if m, err = voxel.LoadMapFromBytes(mapBytes); err != nil {
			return nil, err
		}
	}
	edits, err := ParseEdits(jsonEdits)
	if err != nil {
		return nil, err
	}
	ApplyEdits(m, edits)
	return m.SaveBytes(voxel.DefaultSaveOptions())
}

// GenerateTerrain builds a square of terrain sectors of the given radius
// around the origin, from sector Y -2 to 1, and returns the serialized map.
func GenerateTerrain(cfg terrain.Config, radius int32) ([]byte, error) {
	m := GenerateTerrainMap(cfg, radius)
	return m.SaveBytes(voxel.DefaultSaveOptions())
}

// GenerateTerrainMap is GenerateTerrain without the serialization.
func GenerateTerrainMap(cfg terrain.Config, radius int32) *voxel.Map {
	g := terrain.NewGenerator(cfg)
	defer g.Close()

	for y := int32(-2); y < 2; y++ {
		for z := -radius; z < radius; z++ {
			for x := -radius; x < radius; x++ {
				g.RequestSector(voxel.IVec3{X: x, Y: y, Z: z})
			}
		}
	}

	m := voxel.NewMap()
	terrain.ApplyPalette(m)
	for {
		pos, s, ok := g.Next()
		if !ok {
			return m
		}
		m.SpliceSector(pos, s)
	}
}
