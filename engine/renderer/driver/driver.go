// Package driver defines the backend-neutral surface the render pipeline
// is written against. The vulkan package implements it over goki/vulkan;
// the headless package implements it by recording.
package driver

import "errors"

// ErrOutOfPoolMemory is matched by DescriptorPool.Allocate errors that
// mean the pool has no room left, as opposed to a failing device.
var ErrOutOfPoolMemory = errors.New("descriptor pool out of memory")

// Destroyer is implemented by every device object.
type Destroyer interface {
	Destroy()
}

// Device creates GPU objects. The device itself, with its queues and
// surface, is created and destroyed by the caller.
type Device interface {
	NewImage(desc ImageDesc) (Image, error)
	NewBuffer(desc BufferDesc) (Buffer, error)
	NewSampler() (Sampler, error)
	NewRenderPass(desc *RenderPassDesc) (RenderPass, error)
	// NewFramebuffer binds one view per render pass attachment, in order.
	NewFramebuffer(pass RenderPass, attachments []Image, extent Extent) (Framebuffer, error)
	NewDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	NewDescriptorPool(sizes map[DescriptorType]uint32, maxSets uint32) (DescriptorPool, error)
	NewShaderModule(stage ShaderStage, code []byte) (ShaderModule, error)
	NewPipeline(desc *PipelineDesc) (Pipeline, error)
	NewSemaphore() (Semaphore, error)
	NewCommandBuffer() (CommandBuffer, error)
	// WaitIdle blocks until the device finished all submitted work.
	WaitIdle() error
}

// Swapchain exposes the externally owned presentation images.
type Swapchain interface {
	ImageCount() int
	Image(index int) Image
	Format() Format
	DepthFormat() Format
	Extent() Extent
}

type Image interface {
	Destroyer
	Format() Format
	Extent() Extent
	// Write replaces the texels of a sampled image with tightly packed
	// rows and leaves it ready to be sampled by fragment shaders. Images
	// without IMAGE_USAGE_SAMPLED reject it.
	Write(texels []byte) error
}

type Buffer interface {
	Destroyer
	Size() uint64
	// Write copies data into host visible memory at offset.
	Write(offset uint64, data []byte) error
}

type Sampler interface {
	Destroyer
}

type RenderPass interface {
	Destroyer
	Desc() *RenderPassDesc
}

type Framebuffer interface {
	Destroyer
	Extent() Extent
}

type ShaderModule interface {
	Destroyer
	Stage() ShaderStage
}

type Pipeline interface {
	Destroyer
	Name() string
}

type Semaphore interface {
	Destroyer
}

type DescriptorSetLayout interface {
	Destroyer
	Bindings() []DescriptorBinding
}

// DescriptorPool is the raw device pool. Capacity accounting lives above
// it, in the pipeline's DescriptorAllocator.
type DescriptorPool interface {
	Destroyer
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
	Free(set DescriptorSet) error
	// Reset returns every set allocated from the pool.
	Reset() error
}

type DescriptorSet interface {
	Layout() DescriptorSetLayout
	WriteBuffer(binding uint32, buffer Buffer, offset, size uint64)
	// WriteImage updates an input attachment, storage image or combined
	// image sampler binding. sampler may be nil.
	WriteImage(binding uint32, image Image, sampler Sampler)
}

// CommandRecorder is the sink stages record into. Stages never call the
// render pass methods; the pipeline owns pass and subpass boundaries.
type CommandRecorder interface {
	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Rect, clear []ClearValue)
	NextSubpass()
	EndRenderPass()
	BindPipeline(pipeline Pipeline)
	BindDescriptorSets(pipeline Pipeline, firstSet uint32, sets []DescriptorSet)
	PushConstants(pipeline Pipeline, offset uint32, data []byte)
	SetViewport(viewport Viewport)
	SetScissor(scissor Rect)
	BindVertexBuffer(buffer Buffer, offset uint64)
	BindIndexBuffer(buffer Buffer, offset uint64, indexType IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// CommandBuffer is a recorder the caller submits.
type CommandBuffer interface {
	Destroyer
	CommandRecorder
	Begin() error
	End() error
	Reset() error
}
