package testbed

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// cubeFace lists one side: its normal and its four corners as signs of
// the half extents, in the winding the index pattern below expects.
type cubeFace struct {
	normal  math.Vec3
	corners [4]math.Vec3
}

var cubeFaces = [6]cubeFace{
	// front
	{math.NewVec3(0, 0, 1), [4]math.Vec3{{X: -1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: 1}}},
	// back
	{math.NewVec3(0, 0, -1), [4]math.Vec3{{X: 1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: -1, Z: -1}}},
	// left
	{math.NewVec3(-1, 0, 0), [4]math.Vec3{{X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: -1}, {X: -1, Y: -1, Z: 1}}},
	// right
	{math.NewVec3(1, 0, 0), [4]math.Vec3{{X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: -1}}},
	// bottom
	{math.NewVec3(0, -1, 0), [4]math.Vec3{{X: 1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}}},
	// top
	{math.NewVec3(0, 1, 0), [4]math.Vec3{{X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}}},
}

// GenerateCube builds 24 vertices and 36 indices of a box centred on the
// origin. Zero dimensions default to one.
func GenerateCube(width, height, depth, tileX, tileY float32) ([]math.Vertex3D, []uint32) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}
	half := math.NewVec3(width*0.5, height*0.5, depth*0.5)
	uvs := [4]math.Vec2{
		math.NewVec2(0, 0),
		math.NewVec2(tileX, tileY),
		math.NewVec2(0, tileY),
		math.NewVec2(tileX, 0),
	}

	verts := make([]math.Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for i, f := range cubeFaces {
		for c, corner := range f.corners {
			verts = append(verts, math.Vertex3D{
				Position: math.NewVec3(corner.X*half.X, corner.Y*half.Y, corner.Z*half.Z),
				Normal:   f.normal,
				Texcoord: uvs[c],
				Colour:   math.NewVec4One(),
			})
		}
		v := uint32(i * 4)
		indices = append(indices, v+0, v+1, v+2, v+0, v+3, v+1)
	}
	return verts, indices
}

// UploadMesh copies vertices and indices into new buffers on device.
func UploadMesh(device driver.Device, name string, verts []math.Vertex3D, indices []uint32) (*components.Mesh, error) {
	var vdata []byte
	for _, v := range verts {
		vdata = append(vdata, v.Bytes()...)
	}
	vb, err := device.NewBuffer(driver.BufferDesc{Name: name + "_vertices", Size: uint64(len(vdata)), Usage: driver.BUFFER_USAGE_VERTEX})
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", name, err)
	}
	if err := vb.Write(0, vdata); err != nil {
		vb.Destroy()
		return nil, err
	}
	mesh := &components.Mesh{Name: name, VertexBuffer: vb, VertexCount: uint32(len(verts))}
	if len(indices) == 0 {
		return mesh, nil
	}

	idata := math.Uint32Bytes(indices...)
	ib, err := device.NewBuffer(driver.BufferDesc{Name: name + "_indices", Size: uint64(len(idata)), Usage: driver.BUFFER_USAGE_INDEX})
	if err != nil {
		vb.Destroy()
		return nil, fmt.Errorf("mesh %s: %w", name, err)
	}
	if err := ib.Write(0, idata); err != nil {
		vb.Destroy()
		ib.Destroy()
		return nil, err
	}
	mesh.IndexBuffer = ib
	mesh.IndexCount = uint32(len(indices))
	return mesh, nil
}

func destroyMesh(m *components.Mesh) {
	if m == nil {
		return
	}
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy()
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy()
	}
}
