package stages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/scene"
)

type world struct {
	device    *headless.Device
	swapchain *headless.Swapchain
	shaders   *ShaderLibrary
	ctx       pipeline.StageContext
	registry  *scene.Registry
}

func newWorld(t *testing.T, images, frames int) *world {
	t.Helper()
	d := headless.NewDevice()
	sc, err := headless.NewSwapchain(d, images, driver.Extent{Width: 800, Height: 600}, driver.FORMAT_BGRA8_UNORM, driver.FORMAT_D32_SFLOAT)
	require.NoError(t, err)
	shaders := NewShaderLibrary(d, t.TempDir(), true)
	return &world{
		device:    d,
		swapchain: sc,
		shaders:   shaders,
		ctx:       pipeline.StageContext{Device: d, Swapchain: sc, FramesInFlight: frames, Shaders: shaders},
		registry:  scene.NewRegistry(),
	}
}

func (w *world) context() pipeline.Context {
	return pipeline.Context{Device: w.device, Swapchain: w.swapchain, FramesInFlight: w.ctx.FramesInFlight}
}

func (w *world) mesh(t *testing.T, indexed bool) *components.Mesh {
	t.Helper()
	vb, err := w.device.NewBuffer(driver.BufferDesc{Name: "vertices", Size: 3 * uint64(VERTEX3D_STRIDE), Usage: driver.BUFFER_USAGE_VERTEX})
	require.NoError(t, err)
	m := &components.Mesh{Name: "tri", VertexBuffer: vb, VertexCount: 3}
	if indexed {
		ib, err := w.device.NewBuffer(driver.BufferDesc{Name: "indices", Size: 12, Usage: driver.BUFFER_USAGE_INDEX})
		require.NoError(t, err)
		m.IndexBuffer = ib
		m.IndexCount = 3
	}
	return m
}

func (w *world) entity(t *testing.T, position math.Vec3) scene.Entity {
	t.Helper()
	e := w.registry.Create()
	_, err := scene.Emplace(w.registry, e, *math.TransformFromPosition(position))
	require.NoError(t, err)
	return e
}

func (w *world) renderable(t *testing.T, indexed bool) scene.Entity {
	t.Helper()
	e := w.entity(t, math.NewVec3(0, 0, -5))
	_, err := scene.Emplace(w.registry, e, components.MeshRenderer{Mesh: w.mesh(t, indexed), Material: components.DefaultMaterial()})
	require.NoError(t, err)
	return e
}

func deferredStages(w *world) (*Geometry, *Lighting, *Overlay) {
	return NewGeometry(w.ctx, GeometryConfig{Deferred: true}),
		NewLighting(w.ctx, LightingConfig{}),
		NewOverlay(w.ctx, OverlayConfig{})
}

func TestDeferredPipelineLayout(t *testing.T) {
	w := newWorld(t, 3, 2)
	g, l, o := deferredStages(w)
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g, l, o})
	require.NoError(t, err)
	defer p.Destroy()

	for _, target := range p.Targets() {
		desc := target.RenderPass().Desc()
		require.Len(t, desc.Attachments, 5)
		require.Len(t, desc.Subpasses, 3)
		assert.Equal(t, []int{2, 3, 4}, desc.Subpasses[0].Color)
		assert.Equal(t, 1, desc.Subpasses[0].Depth)
		assert.Equal(t, []int{2, 3, 4}, desc.Subpasses[1].Input)
		assert.Equal(t, []int{0}, desc.Subpasses[1].Color)
		assert.Equal(t, []int{0}, desc.Subpasses[2].Color)
		assert.Equal(t, -1, desc.Subpasses[2].Depth)
	}
	// one pipeline object per stage
	assert.Equal(t, 3, w.device.LiveOf("pipeline"))

	// lighting reads each target's own g-buffer
	for i, target := range p.Targets() {
		albedo, ok := target.Attachment(GBUFFER_ALBEDO)
		require.True(t, ok)
		for f := 0; f < 2; f++ {
			set := l.sets[i][f].(*headless.DescriptorSet)
			assert.Same(t, albedo.Image, set.Writes[0].Image)
		}
	}
	assert.NotSame(t, l.sets[0][0], l.sets[1][0])
}

func TestForwardGeometryWritesSwapImage(t *testing.T) {
	w := newWorld(t, 2, 1)
	g := NewGeometry(w.ctx, GeometryConfig{})
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g})
	require.NoError(t, err)
	defer p.Destroy()

	desc := p.Targets()[0].RenderPass().Desc()
	assert.Len(t, desc.Attachments, 2)
	assert.Equal(t, []int{0}, desc.Subpasses[0].Color)
}

func TestLightingWithoutGBufferFails(t *testing.T) {
	w := newWorld(t, 2, 1)
	p, err := pipeline.Create(w.context(), []pipeline.Stage{
		NewGeometry(w.ctx, GeometryConfig{}),
		NewLighting(w.ctx, LightingConfig{}),
	})
	assert.ErrorIs(t, err, pipeline.ErrConstructionFailure)
	require.NoError(t, p.Destroy())
}

func TestDrawScene(t *testing.T) {
	w := newWorld(t, 3, 2)
	cam := w.registry.Create()
	camera := components.NewCamera()
	camera.Primary = true
	camera.SetPosition(math.NewVec3(0, 1, 5))
	_, err := scene.Emplace(w.registry, cam, *camera)
	require.NoError(t, err)

	indexed := w.renderable(t, true)
	w.renderable(t, false)
	hidden := w.renderable(t, false)
	mr, _ := scene.Get[components.MeshRenderer](w.registry, hidden)
	mr.Hidden = true

	light := w.entity(t, math.NewVec3(1, 2, 3))
	_, err = scene.Emplace(w.registry, light, components.PointLight{Colour: math.NewVec3One(), Intensity: 2, Radius: 10})
	require.NoError(t, err)
	label := w.registry.Create()
	_, err = scene.Emplace(w.registry, label, components.Label{Text: "hi", Colour: math.NewVec4One()})
	require.NoError(t, err)

	g, l, o := deferredStages(w)
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g, l, o}, pipeline.WithRegistry(w.registry))
	require.NoError(t, err)
	defer p.Destroy()
	assert.True(t, g.Bound(indexed))

	rec := headless.NewRecorder()
	require.NoError(t, p.Draw(rec, pipeline.Frame{ImageIndex: 2, FrameInFlight: 1}, w.registry))
	assert.Empty(t, rec.Violations)
	assert.Equal(t, 2, rec.Count(headless.OP_NEXT_SUBPASS))
	assert.Equal(t, 1, rec.Count(headless.OP_DRAW_INDEXED))
	// unindexed mesh, fullscreen triangle, text
	assert.Equal(t, 3, rec.Count(headless.OP_DRAW))
	assert.Equal(t, 2, g.Drawn)
	assert.Equal(t, 1, l.Lights)
	assert.Equal(t, 2, o.Glyphs)
	assert.Len(t, rec.Filter(headless.OP_BEGIN_RENDER_PASS)[0].Clear, 5)

	lights := l.lightBuffer[1].(*headless.Buffer).Bytes()
	assert.Equal(t, math.Float32Bytes(1, 0, 0, 0, 1, 2, 3, 10), lights[:32])
	assert.Equal(t, 12, len(o.scratch))
}

func TestGeometryRequiresTransform(t *testing.T) {
	w := newWorld(t, 2, 1)
	e := w.registry.Create()
	_, err := scene.Emplace(w.registry, e, components.MeshRenderer{Mesh: w.mesh(t, false)})
	require.NoError(t, err)

	g := NewGeometry(w.ctx, GeometryConfig{})
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g}, pipeline.WithRegistry(w.registry))
	require.NoError(t, err)
	defer p.Destroy()

	err = p.Draw(headless.NewRecorder(), pipeline.Frame{}, w.registry)
	assert.ErrorIs(t, err, pipeline.ErrInvariantViolation)
}

func TestGeometryReleasesRemovedEntities(t *testing.T) {
	w := newWorld(t, 2, 2)
	g := NewGeometry(w.ctx, GeometryConfig{})
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g}, pipeline.WithRegistry(w.registry))
	require.NoError(t, err)
	defer p.Destroy()

	e := w.renderable(t, true)
	assert.True(t, g.Bound(e))
	buffers := w.device.LiveOf("buffer")

	require.True(t, scene.Remove[components.MeshRenderer](w.registry, e))
	assert.False(t, g.Bound(e))
	assert.Equal(t, buffers, w.device.LiveOf("buffer"))

	for i := 0; i < 2; i++ {
		require.NoError(t, p.Draw(headless.NewRecorder(), pipeline.Frame{ImageIndex: i, FrameInFlight: i}, w.registry))
	}
	assert.Equal(t, buffers-2, w.device.LiveOf("buffer"))
}

func TestOverlayPresentHooks(t *testing.T) {
	w := newWorld(t, 2, 2)
	o := NewOverlay(w.ctx, OverlayConfig{})
	cb0, _ := w.device.NewCommandBuffer()
	cb1, _ := w.device.NewCommandBuffer()
	sem, _ := w.device.NewSemaphore()
	o.SetPresentHooks([]driver.CommandBuffer{cb0, cb1}, []driver.Semaphore{nil, sem})

	p, err := pipeline.Create(w.context(), []pipeline.Stage{NewGeometry(w.ctx, GeometryConfig{}), o})
	require.NoError(t, err)
	defer p.Destroy()

	assert.Equal(t, []driver.CommandBuffer{cb1}, p.GatherPresentBuffers(1))
	assert.Empty(t, p.GatherPresentDependencies(0, 0).Semaphores)
	assert.Equal(t, []driver.Semaphore{sem}, p.GatherPresentDependencies(0, 1).Semaphores)
}

func TestOverlayAtlasFilledBeforeBinding(t *testing.T) {
	font, err := LoadFontAtlas("testdata/mono.fnt")
	require.NoError(t, err)
	w := newWorld(t, 2, 2)
	o := NewOverlay(w.ctx, OverlayConfig{Font: font})
	p, err := pipeline.Create(w.context(), []pipeline.Stage{NewGeometry(w.ctx, GeometryConfig{}), o})
	require.NoError(t, err)
	defer p.Destroy()

	atlas := o.atlas.(*headless.Image)
	assert.Equal(t, 1, atlas.Writes)
	assert.Equal(t, font.Texels(), atlas.Texels())
	require.Len(t, o.sets, 2)
	for _, set := range o.sets {
		binding := set.(*headless.DescriptorSet).Writes[1]
		assert.Same(t, atlas, binding.Image)
		assert.Equal(t, 1, binding.ImageWrites)
	}
}

func writeCounts(buffers ...driver.Buffer) []int {
	counts := make([]int, len(buffers))
	for i, b := range buffers {
		counts[i] = b.(*headless.Buffer).Writes
	}
	return counts
}

func TestFramesInFlightWriteSeparateBuffers(t *testing.T) {
	w := newWorld(t, 2, 2)
	cam := w.registry.Create()
	_, err := scene.Emplace(w.registry, cam, *components.NewCamera())
	require.NoError(t, err)
	e := w.renderable(t, true)
	light := w.entity(t, math.NewVec3(1, 2, 3))
	_, err = scene.Emplace(w.registry, light, components.PointLight{Colour: math.NewVec3One(), Intensity: 1, Radius: 5})
	require.NoError(t, err)
	label := w.registry.Create()
	_, err = scene.Emplace(w.registry, label, components.Label{Text: "fps", Colour: math.NewVec4One()})
	require.NoError(t, err)

	g, l, o := deferredStages(w)
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g, l, o}, pipeline.WithRegistry(w.registry))
	require.NoError(t, err)
	defer p.Destroy()

	slot := func(f int) []driver.Buffer {
		return []driver.Buffer{
			g.cameraBuffer[f], g.bindings[e].buffers[f],
			l.cameraBuffer[f], l.lightBuffer[f],
			o.uniforms[f], o.vertices[f],
		}
	}

	require.NoError(t, p.Draw(headless.NewRecorder(), pipeline.Frame{ImageIndex: 0, FrameInFlight: 0}, w.registry))
	first := writeCounts(slot(0)...)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, first)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, writeCounts(slot(1)...))

	require.NoError(t, p.Draw(headless.NewRecorder(), pipeline.Frame{ImageIndex: 1, FrameInFlight: 1}, w.registry))
	assert.Equal(t, first, writeCounts(slot(0)...))
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, writeCounts(slot(1)...))
}

func TestDestroyLeavesOnlyExternalObjects(t *testing.T) {
	w := newWorld(t, 3, 2)
	w.renderable(t, true)
	meshBuffers := w.device.LiveOf("buffer")
	g, l, o := deferredStages(w)
	p, err := pipeline.Create(w.context(), []pipeline.Stage{g, l, o}, pipeline.WithRegistry(w.registry))
	require.NoError(t, err)
	require.NoError(t, p.Draw(headless.NewRecorder(), pipeline.Frame{}, w.registry))

	require.NoError(t, p.Destroy())
	w.shaders.Destroy()
	assert.Equal(t, 3, w.device.LiveOf("swap_image"))
	assert.Equal(t, meshBuffers, w.device.LiveOf("buffer"))
	assert.Equal(t, 3+meshBuffers, w.device.Live())
}

func TestFromConfig(t *testing.T) {
	w := newWorld(t, 2, 2)
	cfg, err := config.Load(filepath.Join("..", "..", "..", "configs", "pipeline.toml"))
	require.NoError(t, err)
	list, err := FromConfig(w.ctx, cfg)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "opaque", list[0].Name())
	assert.True(t, list[0].(*Geometry).Deferred())
	assert.IsType(t, &Lighting{}, list[1])
	assert.Equal(t, "hud", list[2].Name())
	assert.Equal(t, float32(0.02), list[0].ClearValues()[0].Color[0])

	cfg.Stages = []config.StageConfig{{Kind: "overlay", Name: "ui", Font: "testdata/mono.fnt"}}
	list, err = FromConfig(w.ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Mono", list[0].(*Overlay).Font().Face)

	cfg.Stages = []config.StageConfig{{Kind: "overlay", Font: "testdata/missing.fnt"}}
	_, err = FromConfig(w.ctx, cfg)
	assert.Error(t, err)
}

func TestShaderLibrary(t *testing.T) {
	d := headless.NewDevice()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geometry.vert.spv"), []byte{3, 2, 35, 7, 0, 0, 1, 0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.vert.spv"), []byte{1, 2, 3}, 0o644))

	lib := NewShaderLibrary(d, dir, false)
	m, err := lib.Shader("geometry", driver.SHADER_STAGE_VERTEX)
	require.NoError(t, err)
	assert.Len(t, m.(*headless.ShaderModule).Code, 8)
	again, err := lib.Shader("geometry", driver.SHADER_STAGE_VERTEX)
	require.NoError(t, err)
	assert.Same(t, m, again)

	_, err = lib.Shader("geometry", driver.SHADER_STAGE_FRAGMENT)
	assert.Error(t, err)
	_, err = lib.Shader("broken", driver.SHADER_STAGE_VERTEX)
	assert.Error(t, err)

	stub := NewShaderLibrary(d, dir, true)
	_, err = stub.Shader("missing", driver.SHADER_STAGE_FRAGMENT)
	assert.NoError(t, err)

	lib.Destroy()
	stub.Destroy()
	assert.Zero(t, d.Live())
}
