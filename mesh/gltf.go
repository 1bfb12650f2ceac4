package mesh

import (
	"fmt"
	"io"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/voxelsplace/voxrt/voxel"
)

const ErrTypeEmptyMesh = "mesh_empty"

// BuildDocument meshes every sector of m into a glTF document with one node
// per sector. Colors come from the map palette through COLOR_0.
func BuildDocument(m *voxel.Map) (*gltf.Document, error) {
	indices := make([]uint32, 0, len(m.Sectors))
	for idx := range m.Sectors {
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxrt map -> GLB"

	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	material := &gltf.Material{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}
	doc.Materials = []*gltf.Material{material}

	for _, idx := range indices {
		pos := voxel.SectorPos(idx)
		mesh := GenerateSector(m, pos)
		if len(mesh.Indices) == 0 {
			continue
		}

		positions := make([][3]float32, len(mesh.Vertices))
		normals := make([][3]float32, len(mesh.Vertices))
		colors := make([][4]float32, len(mesh.Vertices))
		for i, v := range mesh.Vertices {
			positions[i] = v.Position
			c := m.Palette[v.Color].Color
			colors[i] = [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, 1}
		}
		// every quad is 4 vertices sharing the normal of its direction
		for i := 0; i+3 < len(mesh.Vertices); i += 4 {
			n := faceNormal(positions[i], positions[i+1], positions[i+2])
			normals[i], normals[i+1], normals[i+2], normals[i+3] = n, n, n, n
		}

		posAccessor := modeler.WritePosition(doc, positions)
		normalAccessor := modeler.WriteNormal(doc, normals)
		colorAccessor := modeler.WriteColor(doc, colors)
		indicesAccessor := modeler.WriteIndices(doc, mesh.Indices)

		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(posAccessor),
				gltf.NORMAL:   uint32(normalAccessor),
				gltf.COLOR_0:  uint32(colorAccessor),
			},
			Indices:  gltf.Index(uint32(indicesAccessor)),
			Material: gltf.Index(0),
		}
		name := fmt.Sprintf("sector_%d_%d_%d", pos.X, pos.Y, pos.Z)
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	if len(doc.Nodes) == 0 {
		return nil, errors.New("map has no visible voxels").
			WithType(ErrTypeEmptyMesh).
			WithTag("sectors", len(m.Sectors))
	}
	return doc, nil
}

func faceNormal(p0, p1, p2 [3]float32) [3]float32 {
	a := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
	b := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
	n := [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	// axis aligned: the only non-zero component gives the sign
	for i := range n {
		switch {
		case n[i] > 0:
			n[i] = 1
		case n[i] < 0:
			n[i] = -1
		}
	}
	return n
}

// ExportGLB writes the binary glTF of m to w.
func ExportGLB(m *voxel.Map, w io.Writer) error {
	doc, err := BuildDocument(m)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return errors.New("encoding glb failed").Wrap(err)
	}
	return nil
}

// SaveGLB writes the binary glTF of m to filename.
func SaveGLB(m *voxel.Map, filename string) error {
	doc, err := BuildDocument(m)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(doc, filename)
}
