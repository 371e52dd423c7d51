package pipeline

import (
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Frame identifies what a Draw call records: which swap image is the
// target and which frame-in-flight slot owns the per-frame resources.
type Frame struct {
	ImageIndex    int
	FrameInFlight int
	DeltaTime     float64
}

// ShaderSource resolves shader modules by name. Loading and compiling
// shaders belongs to the asset layer.
type ShaderSource interface {
	Shader(name string, stage driver.ShaderStage) (driver.ShaderModule, error)
}

// StageContext is the shared, non-owning view of the device every stage
// is constructed with.
type StageContext struct {
	Device         driver.Device
	Swapchain      driver.Swapchain
	FramesInFlight int
	Shaders        ShaderSource
}

// Stage is one subpass of the pipeline. The construction methods are
// called in order, each for every FrameTarget, before the next one starts.
// Record must only touch resources of frame.FrameInFlight and must not
// begin, advance or end the render pass.
type Stage interface {
	Name() string
	PrepareAttachments(target *FrameTarget) error
	BuildPipelineState(target *FrameTarget) error
	AllocateDescriptors(pool *DescriptorAllocator, target *FrameTarget) error
	Record(rec driver.CommandRecorder, target *FrameTarget, frame Frame, snapshot *scene.Registry) error
	// ClearValues is only consulted for the first stage.
	ClearValues() []driver.ClearValue
	// Destroy releases every GPU object the stage created. A destroyed
	// stage can be built again.
	Destroy() error
}

// PresentDependencies are command buffers the presenter must submit, and
// semaphores it must wait on, before presenting.
type PresentDependencies struct {
	CommandBuffers []driver.CommandBuffer
	Semaphores     []driver.Semaphore
}

type PresentDependencyGatherer interface {
	GatherPresentDependencies(deps *PresentDependencies, imageIndex, frameInFlight int)
}

// PresentBufferGatherer exposes command buffers submitted alongside the
// frame with no ordering requirement.
type PresentBufferGatherer interface {
	GatherPresentBuffers(buffers *[]driver.CommandBuffer, imageIndex int)
}

// RenderableBinder is implemented by stages keeping per-entity GPU state
// for MeshRenderer components.
type RenderableBinder interface {
	BindRenderable(e scene.Entity, renderer *components.MeshRenderer) error
	// UnbindRenderable detaches the entity and returns the function that
	// frees its resources. The pipeline defers it until no frame in
	// flight can still read them.
	UnbindRenderable(e scene.Entity) func()
}

func DefaultClearValues() []driver.ClearValue {
	return []driver.ClearValue{
		driver.ClearColor(0, 0, 0, 1),
		driver.ClearDepth(1, 0),
	}
}

// BaseStage carries the optional parts of the contract.
type BaseStage struct {
	StageName string
	Clear     []driver.ClearValue
}

func (b *BaseStage) Name() string {
	return b.StageName
}

func (b *BaseStage) PrepareAttachments(target *FrameTarget) error {
	return nil
}

func (b *BaseStage) ClearValues() []driver.ClearValue {
	if len(b.Clear) > 0 {
		return b.Clear
	}
	return DefaultClearValues()
}

func (b *BaseStage) Destroy() error {
	return nil
}
