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
	// view, projection, position, (gamma, exposure, near, far)
	CAMERA_UNIFORM_SIZE uint64 = (16 + 16 + 4 + 4) * 4
	// model, albedo, (roughness, metallic, 0, 0)
	ENTITY_UNIFORM_SIZE uint64 = (16 + 4 + 4) * 4
	VERTEX3D_STRIDE     uint32 = (3 + 3 + 2 + 4) * 4
)

var vertex3DAttributes = []driver.VertexAttribute{
	{Location: 0, Format: driver.FORMAT_RGB32_SFLOAT, Offset: 0},
	{Location: 1, Format: driver.FORMAT_RGB32_SFLOAT, Offset: 12},
	{Location: 2, Format: driver.FORMAT_RG32_SFLOAT, Offset: 24},
	{Location: 3, Format: driver.FORMAT_RGBA32_SFLOAT, Offset: 32},
}

type GeometryConfig struct {
	Name string
	// Deferred writes the g-buffer for a lighting stage instead of the
	// swap image.
	Deferred bool
	Clear    []driver.ClearValue
}

// entityBinding is the per-entity GPU state: one uniform buffer and one
// descriptor set per frame in flight.
type entityBinding struct {
	buffers []driver.Buffer
	sets    []driver.DescriptorSet
}

/**
 * @brief Geometry draws every entity carrying a Transform and a
 * MeshRenderer, in entity order.
 */
type Geometry struct {
	pipeline.BaseStage
	ctx      pipeline.StageContext
	deferred bool

	state        subpassState
	frameLayout  driver.DescriptorSetLayout
	entityLayout driver.DescriptorSetLayout

	pool         *pipeline.DescriptorAllocator
	cameraBuffer []driver.Buffer
	cameraSets   []driver.DescriptorSet
	bindings     map[scene.Entity]*entityBinding

	// Drawn is the number of entities recorded by the last Record call.
	Drawn int
}

func NewGeometry(ctx pipeline.StageContext, cfg GeometryConfig) *Geometry {
	name := cfg.Name
	if name == "" {
		name = "geometry"
	}
	return &Geometry{
		BaseStage: pipeline.BaseStage{StageName: name, Clear: cfg.Clear},
		ctx:       ctx,
		deferred:  cfg.Deferred,
		bindings:  make(map[scene.Entity]*entityBinding),
	}
}

func (g *Geometry) Deferred() bool {
	return g.deferred
}

func (g *Geometry) PrepareAttachments(target *pipeline.FrameTarget) error {
	if !g.deferred {
		if err := target.UseColor(pipeline.ATTACHMENT_PRESENT); err != nil {
			return err
		}
		return target.UseDepth(pipeline.ATTACHMENT_DEPTH)
	}
	for _, spec := range gbuffer {
		if err := target.DeclareAttachment(spec); err != nil {
			return err
		}
		if err := target.UseColor(spec.Name); err != nil {
			return err
		}
	}
	return target.UseDepth(pipeline.ATTACHMENT_DEPTH)
}

// ClearValues covers present, depth and, when deferred, the g-buffer.
func (g *Geometry) ClearValues() []driver.ClearValue {
	clear := append([]driver.ClearValue(nil), g.BaseStage.ClearValues()...)
	if g.deferred && len(clear) == 2 {
		for range gbuffer {
			clear = append(clear, driver.ClearColor(0, 0, 0, 0))
		}
	}
	return clear
}

func (g *Geometry) BuildPipelineState(target *pipeline.FrameTarget) error {
	done, info, err := g.state.built(g.Name(), target)
	if err != nil || done {
		return err
	}

	if g.frameLayout == nil {
		if g.frameLayout, err = g.ctx.Device.NewDescriptorSetLayout([]driver.DescriptorBinding{
			{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_VERTEX | driver.SHADER_STAGE_FRAGMENT},
		}); err != nil {
			return err
		}
	}
	if g.entityLayout == nil {
		if g.entityLayout, err = g.ctx.Device.NewDescriptorSetLayout([]driver.DescriptorBinding{
			{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_VERTEX | driver.SHADER_STAGE_FRAGMENT},
		}); err != nil {
			return err
		}
	}

	shader := "geometry"
	if g.deferred {
		shader = "gbuffer"
	}
	vert, err := g.ctx.Shaders.Shader(shader, driver.SHADER_STAGE_VERTEX)
	if err != nil {
		return err
	}
	frag, err := g.ctx.Shaders.Shader(shader, driver.SHADER_STAGE_FRAGMENT)
	if err != nil {
		return err
	}

	viewport, scissor := fullViewport(target.Extent())
	p, err := g.ctx.Device.NewPipeline(&driver.PipelineDesc{
		Name:             g.Name(),
		RenderPass:       target.RenderPass(),
		Subpass:          info.Index,
		ColorAttachments: info.ColorCount,
		Vertex:           vert,
		Fragment:         frag,
		SetLayouts:       []driver.DescriptorSetLayout{g.frameLayout, g.entityLayout},
		VertexStride:     VERTEX3D_STRIDE,
		Attributes:       vertex3DAttributes,
		CullMode:         driver.CULL_MODE_BACK,
		DepthTest:        true,
		DepthWrite:       true,
		Viewport:         viewport,
		Scissor:          scissor,
	})
	if err != nil {
		return err
	}
	g.state = subpassState{pipeline: p, subpass: info}
	core.LogDebug("stage %s: pipeline built on subpass %d (%d color attachments)", g.Name(), info.Index, info.ColorCount)
	return nil
}

func (g *Geometry) AllocateDescriptors(pool *pipeline.DescriptorAllocator, target *pipeline.FrameTarget) error {
	if g.cameraSets != nil {
		return nil
	}
	g.pool = pool
	for i := 0; i < g.ctx.FramesInFlight; i++ {
		buf, err := g.ctx.Device.NewBuffer(driver.BufferDesc{
			Name:  fmt.Sprintf("%s.camera.%d", g.Name(), i),
			Size:  CAMERA_UNIFORM_SIZE,
			Usage: driver.BUFFER_USAGE_UNIFORM,
		})
		if err != nil {
			return err
		}
		g.cameraBuffer = append(g.cameraBuffer, buf)
		set, err := pool.Allocate(g.frameLayout)
		if err != nil {
			return err
		}
		set.WriteBuffer(0, buf, 0, CAMERA_UNIFORM_SIZE)
		g.cameraSets = append(g.cameraSets, set)
	}
	return nil
}

func cameraUniform(c *components.Camera) []byte {
	view := c.GetView()
	proj := c.Projection()
	data := append(view.Bytes(), proj.Bytes()...)
	data = append(data, math.Float32Bytes(c.Position.X, c.Position.Y, c.Position.Z, 1)...)
	return append(data, math.Float32Bytes(c.Gamma, c.Exposure, c.Near, c.Far)...)
}

func entityUniform(world math.Mat4, m components.Material) []byte {
	data := world.Bytes()
	data = append(data, math.Float32Bytes(m.Albedo.X, m.Albedo.Y, m.Albedo.Z, m.Albedo.W)...)
	return append(data, math.Float32Bytes(m.Roughness, m.Metallic, 0, 0)...)
}

func (g *Geometry) Record(rec driver.CommandRecorder, target *pipeline.FrameTarget, frame pipeline.Frame, snapshot *scene.Registry) error {
	f := frame.FrameInFlight
	if err := g.cameraBuffer[f].Write(0, cameraUniform(activeCamera(snapshot))); err != nil {
		return err
	}

	viewport, scissor := fullViewport(target.Extent())
	rec.BindPipeline(g.state.pipeline)
	rec.SetViewport(viewport)
	rec.SetScissor(scissor)
	rec.BindDescriptorSets(g.state.pipeline, 0, []driver.DescriptorSet{g.cameraSets[f]})

	g.Drawn = 0
	if snapshot == nil {
		return nil
	}
	var err error
	scene.Each(snapshot, func(e scene.Entity, mr *components.MeshRenderer) {
		if err != nil || mr.Hidden {
			return
		}
		tr, ok := scene.Get[math.Transform](snapshot, e)
		if !ok {
			err = invariant("%s has a MeshRenderer but no Transform", e)
			return
		}
		b, ok := g.bindings[e]
		if !ok {
			err = invariant("%s is drawn before it was bound", e)
			return
		}
		if mr.Mesh == nil {
			return
		}
		if err = b.buffers[f].Write(0, entityUniform(tr.GetWorld(), mr.Material)); err != nil {
			return
		}
		rec.BindDescriptorSets(g.state.pipeline, 1, []driver.DescriptorSet{b.sets[f]})
		rec.BindVertexBuffer(mr.Mesh.VertexBuffer, 0)
		if mr.Mesh.IndexBuffer != nil {
			rec.BindIndexBuffer(mr.Mesh.IndexBuffer, 0, driver.INDEX_TYPE_UINT32)
			rec.DrawIndexed(mr.Mesh.IndexCount, 1, 0, 0, 0)
		} else {
			rec.Draw(mr.Mesh.VertexCount, 1, 0, 0)
		}
		g.Drawn++
	})
	return err
}

// BindRenderable creates the entity's uniform buffers and sets, one per
// frame in flight. Binding an entity twice keeps the first binding.
func (g *Geometry) BindRenderable(e scene.Entity, mr *components.MeshRenderer) error {
	if _, ok := g.bindings[e]; ok {
		return nil
	}
	if mr.Pool == nil {
		return invariant("%s bound without a descriptor pool", e)
	}
	pool := mr.Pool
	b := &entityBinding{}
	release := func() {
		for _, s := range b.sets {
			_ = pool.Free(s)
		}
		destroyBuffers(b.buffers)
	}
	for i := 0; i < g.ctx.FramesInFlight; i++ {
		buf, err := g.ctx.Device.NewBuffer(driver.BufferDesc{
			Name:  fmt.Sprintf("%s.%s.%d", g.Name(), e, i),
			Size:  ENTITY_UNIFORM_SIZE,
			Usage: driver.BUFFER_USAGE_UNIFORM,
		})
		if err != nil {
			release()
			return err
		}
		b.buffers = append(b.buffers, buf)
		set, err := pool.Allocate(g.entityLayout)
		if err != nil {
			release()
			return err
		}
		set.WriteBuffer(0, buf, 0, ENTITY_UNIFORM_SIZE)
		b.sets = append(b.sets, set)
	}
	g.bindings[e] = b
	return nil
}

func (g *Geometry) UnbindRenderable(e scene.Entity) func() {
	b, ok := g.bindings[e]
	if !ok {
		return nil
	}
	delete(g.bindings, e)
	pool := g.pool
	return func() {
		for _, s := range b.sets {
			if err := pool.Free(s); err != nil {
				core.LogWarn("stage %s: free %s: %s", g.Name(), e, err)
			}
		}
		destroyBuffers(b.buffers)
	}
}

// Bound reports whether e has a live binding.
func (g *Geometry) Bound(e scene.Entity) bool {
	_, ok := g.bindings[e]
	return ok
}

// Destroy drops the descriptor sets with the pool, which the pipeline
// resets in bulk, and destroys everything else.
func (g *Geometry) Destroy() error {
	for e, b := range g.bindings {
		destroyBuffers(b.buffers)
		delete(g.bindings, e)
	}
	destroyBuffers(g.cameraBuffer)
	g.cameraBuffer = nil
	g.cameraSets = nil
	g.state.destroy()
	if g.frameLayout != nil {
		g.frameLayout.Destroy()
		g.frameLayout = nil
	}
	if g.entityLayout != nil {
		g.entityLayout.Destroy()
		g.entityLayout = nil
	}
	g.pool = nil
	return nil
}
