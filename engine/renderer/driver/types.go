package driver

import "fmt"

type Format int

const (
	FORMAT_UNDEFINED Format = iota
	FORMAT_BGRA8_UNORM
	FORMAT_BGRA8_SRGB
	FORMAT_RGBA8_UNORM
	FORMAT_RGBA16_SFLOAT
	FORMAT_RGBA32_SFLOAT
	FORMAT_RG32_SFLOAT
	FORMAT_RGB32_SFLOAT
	FORMAT_D32_SFLOAT
	FORMAT_D24_UNORM_S8_UINT
)

var formatNames = map[Format]string{
	FORMAT_UNDEFINED:         "undefined",
	FORMAT_BGRA8_UNORM:       "bgra8_unorm",
	FORMAT_BGRA8_SRGB:        "bgra8_srgb",
	FORMAT_RGBA8_UNORM:       "rgba8_unorm",
	FORMAT_RGBA16_SFLOAT:     "rgba16_sfloat",
	FORMAT_RGBA32_SFLOAT:     "rgba32_sfloat",
	FORMAT_RG32_SFLOAT:       "rg32_sfloat",
	FORMAT_RGB32_SFLOAT:      "rgb32_sfloat",
	FORMAT_D32_SFLOAT:        "d32_sfloat",
	FORMAT_D24_UNORM_S8_UINT: "d24_unorm_s8_uint",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// IsDepth reports whether the format carries a depth aspect.
func (f Format) IsDepth() bool {
	return f == FORMAT_D32_SFLOAT || f == FORMAT_D24_UNORM_S8_UINT
}

// TexelSize returns the bytes per texel, 0 for undefined formats.
func (f Format) TexelSize() int {
	switch f {
	case FORMAT_BGRA8_UNORM, FORMAT_BGRA8_SRGB, FORMAT_RGBA8_UNORM, FORMAT_D32_SFLOAT, FORMAT_D24_UNORM_S8_UINT:
		return 4
	case FORMAT_RGBA16_SFLOAT, FORMAT_RG32_SFLOAT:
		return 8
	case FORMAT_RGB32_SFLOAT:
		return 12
	case FORMAT_RGBA32_SFLOAT:
		return 16
	}
	return 0
}

// ParseFormat maps the lowercase names used in configuration files.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if n == name && f != FORMAT_UNDEFINED {
			return f, nil
		}
	}
	return FORMAT_UNDEFINED, fmt.Errorf("unknown format %q", name)
}

type LoadOp int

const (
	LOAD_OP_CLEAR LoadOp = iota
	LOAD_OP_LOAD
	LOAD_OP_DONT_CARE
)

type StoreOp int

const (
	STORE_OP_STORE StoreOp = iota
	STORE_OP_DONT_CARE
)

// ClearValue holds either a color or a depth/stencil clear, chosen by the
// attachment it is applied to.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil}
}

type Extent struct {
	Width, Height uint32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// AttachmentDesc describes one render pass attachment. Present marks the
// swap image, which ends the pass in the presentable layout.
type AttachmentDesc struct {
	Format  Format
	Load    LoadOp
	Store   StoreOp
	Present bool
	// Input marks attachments read by a later subpass.
	Input bool
}

// SubpassDesc references attachments by index. Depth is -1 when the
// subpass has no depth attachment.
type SubpassDesc struct {
	Color []int
	Input []int
	Depth int
}

// RenderPassDesc chains subpasses in order: subpass i depends on i-1.
type RenderPassDesc struct {
	Attachments []AttachmentDesc
	Subpasses   []SubpassDesc
}

type ImageUsage int

const (
	IMAGE_USAGE_COLOR_ATTACHMENT ImageUsage = 1 << iota
	IMAGE_USAGE_DEPTH_ATTACHMENT
	IMAGE_USAGE_INPUT_ATTACHMENT
	IMAGE_USAGE_SAMPLED
	IMAGE_USAGE_TRANSIENT
)

type ImageDesc struct {
	Name   string
	Format Format
	Extent Extent
	Usage  ImageUsage
}

type BufferUsage int

const (
	BUFFER_USAGE_VERTEX BufferUsage = 1 << iota
	BUFFER_USAGE_INDEX
	BUFFER_USAGE_UNIFORM
	BUFFER_USAGE_STORAGE
	BUFFER_USAGE_TRANSFER_SRC
)

type BufferDesc struct {
	Name  string
	Size  uint64
	Usage BufferUsage
}

type DescriptorType int

const (
	DESCRIPTOR_TYPE_UNIFORM_BUFFER DescriptorType = iota
	DESCRIPTOR_TYPE_STORAGE_IMAGE
	DESCRIPTOR_TYPE_SAMPLER
	DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER
	DESCRIPTOR_TYPE_STORAGE_BUFFER
	DESCRIPTOR_TYPE_INPUT_ATTACHMENT
)

var descriptorTypeNames = [...]string{
	"uniform_buffer",
	"storage_image",
	"sampler",
	"combined_image_sampler",
	"storage_buffer",
	"input_attachment",
}

func (d DescriptorType) String() string {
	if int(d) >= 0 && int(d) < len(descriptorTypeNames) {
		return descriptorTypeNames[d]
	}
	return fmt.Sprintf("descriptor_type(%d)", int(d))
}

type ShaderStage int

const (
	SHADER_STAGE_VERTEX ShaderStage = 1 << iota
	SHADER_STAGE_FRAGMENT
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type CullMode int

const (
	CULL_MODE_BACK CullMode = iota
	CULL_MODE_NONE
	CULL_MODE_FRONT
)

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// PipelineDesc describes a graphics pipeline bound to one subpass of a
// render pass.
type PipelineDesc struct {
	Name       string
	RenderPass RenderPass
	Subpass    int
	// ColorAttachments is the color attachment count of the subpass.
	ColorAttachments int
	Vertex           ShaderModule
	Fragment         ShaderModule
	SetLayouts       []DescriptorSetLayout
	// PushConstantSize is in bytes, visible to both stages. 0 disables.
	PushConstantSize uint32
	VertexStride     uint32
	Attributes       []VertexAttribute
	CullMode         CullMode
	DepthTest        bool
	DepthWrite       bool
	AlphaBlend       bool
	Viewport         Viewport
	Scissor          Rect
}

type IndexType int

const (
	INDEX_TYPE_UINT16 IndexType = iota
	INDEX_TYPE_UINT32
)
