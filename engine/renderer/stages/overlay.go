package stages

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/scene"
)

const (
	DEFAULT_OVERLAY_GLYPHS        = 4096
	VERTEX2D_STRIDE        uint32 = (2 + 2 + 4) * 4
	OVERLAY_UNIFORM_SIZE   uint64 = 16 * 4
)

var vertex2DAttributes = []driver.VertexAttribute{
	{Location: 0, Format: driver.FORMAT_RG32_SFLOAT, Offset: 0},
	{Location: 1, Format: driver.FORMAT_RG32_SFLOAT, Offset: 8},
	{Location: 2, Format: driver.FORMAT_RGBA32_SFLOAT, Offset: 16},
}

type OverlayConfig struct {
	Name string
	// Font lays out the labels. Nil uses a 16 pixel fixed cell font.
	Font *FontAtlas
	// MaxGlyphs bounds the per-frame vertex buffer.
	MaxGlyphs int
}

/**
 * @brief Overlay draws Label components as screen space text on top of
 * the swap image, alpha blended and without depth.
 */
type Overlay struct {
	pipeline.BaseStage
	ctx       pipeline.StageContext
	font      *FontAtlas
	maxGlyphs int

	state   subpassState
	layout  driver.DescriptorSetLayout
	atlas   driver.Image
	sampler driver.Sampler

	uniforms []driver.Buffer
	vertices []driver.Buffer
	sets     []driver.DescriptorSet
	scratch  []math.Vertex2D

	// present hooks: command buffers per swap image, semaphores per frame
	// in flight, recorded and signalled by an external UI layer.
	presentBuffers []driver.CommandBuffer
	waitSemaphores []driver.Semaphore

	// Glyphs is the number of glyphs recorded by the last Record call.
	Glyphs    int
	truncated bool
}

func NewOverlay(ctx pipeline.StageContext, cfg OverlayConfig) *Overlay {
	name := cfg.Name
	if name == "" {
		name = "overlay"
	}
	font := cfg.Font
	if font == nil {
		font = FixedFontAtlas(16)
	}
	maxGlyphs := cfg.MaxGlyphs
	if maxGlyphs <= 0 {
		maxGlyphs = DEFAULT_OVERLAY_GLYPHS
	}
	return &Overlay{
		BaseStage: pipeline.BaseStage{StageName: name},
		ctx:       ctx,
		font:      font,
		maxGlyphs: maxGlyphs,
	}
}

func (o *Overlay) Font() *FontAtlas {
	return o.font
}

// SetPresentHooks registers externally recorded work. buffers are indexed
// by swap image and submitted alongside the frame; semaphores are indexed
// by frame in flight and must be waited on before presenting.
func (o *Overlay) SetPresentHooks(buffers []driver.CommandBuffer, semaphores []driver.Semaphore) {
	o.presentBuffers = buffers
	o.waitSemaphores = semaphores
}

func (o *Overlay) GatherPresentBuffers(buffers *[]driver.CommandBuffer, imageIndex int) {
	if imageIndex >= 0 && imageIndex < len(o.presentBuffers) && o.presentBuffers[imageIndex] != nil {
		*buffers = append(*buffers, o.presentBuffers[imageIndex])
	}
}

func (o *Overlay) GatherPresentDependencies(deps *pipeline.PresentDependencies, imageIndex, frameInFlight int) {
	if frameInFlight >= 0 && frameInFlight < len(o.waitSemaphores) && o.waitSemaphores[frameInFlight] != nil {
		deps.Semaphores = append(deps.Semaphores, o.waitSemaphores[frameInFlight])
	}
}

func (o *Overlay) PrepareAttachments(target *pipeline.FrameTarget) error {
	return target.UseColor(pipeline.ATTACHMENT_PRESENT)
}

func (o *Overlay) BuildPipelineState(target *pipeline.FrameTarget) error {
	done, info, err := o.state.built(o.Name(), target)
	if err != nil || done {
		return err
	}
	if o.layout == nil {
		if o.layout, err = o.ctx.Device.NewDescriptorSetLayout([]driver.DescriptorBinding{
			{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_VERTEX},
			{Binding: 1, Type: driver.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER, Count: 1, Stages: driver.SHADER_STAGE_FRAGMENT},
		}); err != nil {
			return err
		}
	}
	vert, err := o.ctx.Shaders.Shader("overlay", driver.SHADER_STAGE_VERTEX)
	if err != nil {
		return err
	}
	frag, err := o.ctx.Shaders.Shader("overlay", driver.SHADER_STAGE_FRAGMENT)
	if err != nil {
		return err
	}
	viewport, scissor := fullViewport(target.Extent())
	p, err := o.ctx.Device.NewPipeline(&driver.PipelineDesc{
		Name:             o.Name(),
		RenderPass:       target.RenderPass(),
		Subpass:          info.Index,
		ColorAttachments: info.ColorCount,
		Vertex:           vert,
		Fragment:         frag,
		SetLayouts:       []driver.DescriptorSetLayout{o.layout},
		VertexStride:     VERTEX2D_STRIDE,
		Attributes:       vertex2DAttributes,
		CullMode:         driver.CULL_MODE_NONE,
		AlphaBlend:       true,
		Viewport:         viewport,
		Scissor:          scissor,
	})
	if err != nil {
		return err
	}
	o.state = subpassState{pipeline: p, subpass: info}
	return nil
}

// AllocateDescriptors creates and fills the glyph atlas image, then per
// frame in flight a uniform buffer, a vertex buffer and a set.
func (o *Overlay) AllocateDescriptors(pool *pipeline.DescriptorAllocator, target *pipeline.FrameTarget) error {
	if o.sets != nil {
		return nil
	}
	var err error
	if o.atlas, err = o.ctx.Device.NewImage(driver.ImageDesc{
		Name:   fmt.Sprintf("%s.atlas.%s", o.Name(), o.font.Face),
		Format: driver.FORMAT_RGBA8_UNORM,
		Extent: driver.Extent{Width: uint32(o.font.Width), Height: uint32(o.font.Height)},
		Usage:  driver.IMAGE_USAGE_SAMPLED,
	}); err != nil {
		return err
	}
	if err = o.atlas.Write(o.font.Texels()); err != nil {
		return fmt.Errorf("%s: atlas upload: %w", o.Name(), err)
	}
	if o.sampler, err = o.ctx.Device.NewSampler(); err != nil {
		return err
	}
	vertexBytes := uint64(o.maxGlyphs) * 6 * uint64(VERTEX2D_STRIDE)
	for i := 0; i < o.ctx.FramesInFlight; i++ {
		ubo, err := o.ctx.Device.NewBuffer(driver.BufferDesc{
			Name: fmt.Sprintf("%s.projection.%d", o.Name(), i), Size: OVERLAY_UNIFORM_SIZE, Usage: driver.BUFFER_USAGE_UNIFORM,
		})
		if err != nil {
			return err
		}
		o.uniforms = append(o.uniforms, ubo)
		vb, err := o.ctx.Device.NewBuffer(driver.BufferDesc{
			Name: fmt.Sprintf("%s.vertices.%d", o.Name(), i), Size: vertexBytes, Usage: driver.BUFFER_USAGE_VERTEX,
		})
		if err != nil {
			return err
		}
		o.vertices = append(o.vertices, vb)
		set, err := pool.Allocate(o.layout)
		if err != nil {
			return err
		}
		set.WriteBuffer(0, ubo, 0, OVERLAY_UNIFORM_SIZE)
		set.WriteImage(1, o.atlas, o.sampler)
		o.sets = append(o.sets, set)
	}
	return nil
}

func vertex2DBytes(verts []math.Vertex2D) []byte {
	values := make([]float32, 0, len(verts)*8)
	for _, v := range verts {
		values = append(values,
			v.Position.X, v.Position.Y,
			v.Texcoord.X, v.Texcoord.Y,
			v.Colour.X, v.Colour.Y, v.Colour.Z, v.Colour.W)
	}
	return math.Float32Bytes(values...)
}

func (o *Overlay) Record(rec driver.CommandRecorder, target *pipeline.FrameTarget, frame pipeline.Frame, snapshot *scene.Registry) error {
	f := frame.FrameInFlight
	o.scratch = o.scratch[:0]
	o.Glyphs = 0
	if snapshot != nil {
		scene.Each(snapshot, func(e scene.Entity, label *components.Label) {
			var n int
			o.scratch, n = o.font.Layout(label.Text, label.Position, label.Scale, label.Colour, o.scratch)
			o.Glyphs += n
		})
	}
	if o.Glyphs > o.maxGlyphs {
		if !o.truncated {
			core.LogWarn("stage %s: %d glyphs, only the first %d are drawn", o.Name(), o.Glyphs, o.maxGlyphs)
			o.truncated = true
		}
		o.Glyphs = o.maxGlyphs
		o.scratch = o.scratch[:o.maxGlyphs*6]
	}

	extent := target.Extent()
	ortho := math.NewMat4Orthographic(0, float32(extent.Width), float32(extent.Height), 0, -1, 1)
	if err := o.uniforms[f].Write(0, ortho.Bytes()); err != nil {
		return err
	}
	if o.Glyphs == 0 {
		return nil
	}
	if err := o.vertices[f].Write(0, vertex2DBytes(o.scratch)); err != nil {
		return err
	}

	viewport, scissor := fullViewport(extent)
	rec.BindPipeline(o.state.pipeline)
	rec.SetViewport(viewport)
	rec.SetScissor(scissor)
	rec.BindDescriptorSets(o.state.pipeline, 0, []driver.DescriptorSet{o.sets[f]})
	rec.BindVertexBuffer(o.vertices[f], 0)
	rec.Draw(uint32(len(o.scratch)), 1, 0, 0)
	return nil
}

func (o *Overlay) Destroy() error {
	destroyBuffers(o.uniforms)
	destroyBuffers(o.vertices)
	o.uniforms = nil
	o.vertices = nil
	o.sets = nil
	if o.atlas != nil {
		o.atlas.Destroy()
		o.atlas = nil
	}
	if o.sampler != nil {
		o.sampler.Destroy()
		o.sampler = nil
	}
	o.state.destroy()
	if o.layout != nil {
		o.layout.Destroy()
		o.layout = nil
	}
	o.truncated = false
	return nil
}
