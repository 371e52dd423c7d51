package components

import (
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// DescriptorSource is the shared descriptor pool as seen by a component.
type DescriptorSource interface {
	Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error)
	Free(set driver.DescriptorSet) error
}

// Mesh references geometry already uploaded by the asset layer.
type Mesh struct {
	Name         string
	VertexBuffer driver.Buffer
	IndexBuffer  driver.Buffer
	VertexCount  uint32
	IndexCount   uint32
}

type Material struct {
	Albedo    math.Vec4
	Roughness float32
	Metallic  float32
}

func DefaultMaterial() Material {
	return Material{Albedo: math.NewVec4One(), Roughness: 0.5}
}

// MeshRenderer makes an entity drawable by the geometry stage. Pool is
// handed in by the pipeline when the component is constructed; a renderer
// without a pool has not been bound yet.
type MeshRenderer struct {
	Mesh     *Mesh
	Material Material
	Hidden   bool
	Pool     DescriptorSource
}

func (m *MeshRenderer) IsBound() bool {
	return m.Pool != nil
}
