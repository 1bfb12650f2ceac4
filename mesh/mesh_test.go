package mesh

import (
	"bytes"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/require"
	"github.com/voxelsplace/voxrt/voxel"
)

func TestGenerateSectorSingleVoxel(t *testing.T) {
	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: 33, Y: 2, Z: 3}, 5)

	mesh := GenerateSector(m, voxel.IVec3{X: 1})
	require.Equal(t, 6, mesh.NumQuads())
	require.Len(t, mesh.Vertices, 24)

	lo, hi := [3]float32{1e9, 1e9, 1e9}, [3]float32{-1e9, -1e9, -1e9}
	for _, v := range mesh.Vertices {
		require.Equal(t, voxel.Voxel(5), v.Color)
		for a := 0; a < 3; a++ {
			lo[a] = min(lo[a], v.Position[a])
			hi[a] = max(hi[a], v.Position[a])
		}
	}
	require.Equal(t, [3]float32{33, 2, 3}, lo)
	require.Equal(t, [3]float32{34, 3, 4}, hi)
}

func TestGenerateSectorMergesFaces(t *testing.T) {
	m := voxel.NewMap()
	for x := int32(0); x < 4; x++ {
		m.Set(voxel.IVec3{X: x}, 1)
	}
	require.Equal(t, 6, GenerateSector(m, voxel.IVec3{}).NumQuads())

	// a different color breaks the merge and the shared face stays hidden
	m.Set(voxel.IVec3{X: 4}, 2)
	require.Equal(t, 10, GenerateSector(m, voxel.IVec3{}).NumQuads())
}

func TestGenerateSectorCullsAcrossSectors(t *testing.T) {
	m := voxel.NewMap()
	m.Set(voxel.IVec3{X: 31}, 1)
	m.Set(voxel.IVec3{X: 32}, 1)

	require.Equal(t, 5, GenerateSector(m, voxel.IVec3{}).NumQuads())
	require.Equal(t, 5, GenerateSector(m, voxel.IVec3{X: 1}).NumQuads())
}

func TestExportGLB(t *testing.T) {
	m := voxel.NewMap()
	m.Palette[1].SetColor(1, 0, 0)
	m.Set(voxel.IVec3{X: 1, Y: 1, Z: 1}, 1)
	m.Set(voxel.IVec3{X: 40, Y: 1, Z: 1}, 1)
	m.Set(voxel.IVec3{X: -5, Y: -5, Z: -5}, 1)

	var buf bytes.Buffer
	require.NoError(t, ExportGLB(m, &buf))

	var doc gltf.Document
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&doc))
	require.Len(t, doc.Nodes, 3)
	require.Len(t, doc.Meshes, 3)
	require.Len(t, doc.Scenes[0].Nodes, 3)

	names := map[string]bool{}
	for _, n := range doc.Nodes {
		names[n.Name] = true
	}
	require.True(t, names["sector_0_0_0"])
	require.True(t, names["sector_1_0_0"])
	require.True(t, names["sector_-1_-1_-1"])
}

func TestExportGLBEmptyMap(t *testing.T) {
	var buf bytes.Buffer
	err := ExportGLB(voxel.NewMap(), &buf)
	require.Error(t, err)
	require.Equal(t, ErrTypeEmptyMesh, errors.Type(err))
}

func TestFaceNormal(t *testing.T) {
	require.Equal(t, [3]float32{0, 0, 1}, faceNormal([3]float32{}, [3]float32{2, 0, 0}, [3]float32{2, 3, 0}))
	require.Equal(t, [3]float32{0, 0, -1}, faceNormal([3]float32{}, [3]float32{0, 3, 0}, [3]float32{2, 3, 0}))
}
