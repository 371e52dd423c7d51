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
	MAX_POINT_LIGHTS = 64
	// (count, 0, 0, 0) then per light (position, radius) and (colour, intensity)
	LIGHT_BUFFER_SIZE uint64 = 16 + MAX_POINT_LIGHTS*32
)

type LightingConfig struct {
	Name string
}

/**
 * @brief Lighting resolves the g-buffer written by a deferred geometry
 * stage into the swap image with a fullscreen triangle.
 */
type Lighting struct {
	pipeline.BaseStage
	ctx pipeline.StageContext

	state  subpassState
	layout driver.DescriptorSetLayout

	cameraBuffer []driver.Buffer
	lightBuffer  []driver.Buffer
	// sets is indexed by target, then frame in flight. The input
	// attachments differ per target.
	sets [][]driver.DescriptorSet

	// Lights is the number of lights uploaded by the last Record call.
	Lights    int
	truncated bool
}

func NewLighting(ctx pipeline.StageContext, cfg LightingConfig) *Lighting {
	name := cfg.Name
	if name == "" {
		name = "lighting"
	}
	return &Lighting{
		BaseStage: pipeline.BaseStage{StageName: name},
		ctx:       ctx,
	}
}

func (l *Lighting) PrepareAttachments(target *pipeline.FrameTarget) error {
	for _, spec := range gbuffer {
		if err := target.UseInput(spec.Name); err != nil {
			return fmt.Errorf("lighting needs a deferred geometry stage before it: %w", err)
		}
	}
	return target.UseColor(pipeline.ATTACHMENT_PRESENT)
}

func (l *Lighting) BuildPipelineState(target *pipeline.FrameTarget) error {
	done, info, err := l.state.built(l.Name(), target)
	if err != nil || done {
		return err
	}
	if l.layout == nil {
		bindings := make([]driver.DescriptorBinding, 0, len(gbuffer)+2)
		for i := range gbuffer {
			bindings = append(bindings, driver.DescriptorBinding{
				Binding: uint32(i), Type: driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT, Count: 1, Stages: driver.SHADER_STAGE_FRAGMENT,
			})
		}
		bindings = append(bindings,
			driver.DescriptorBinding{Binding: uint32(len(gbuffer)), Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_FRAGMENT},
			driver.DescriptorBinding{Binding: uint32(len(gbuffer) + 1), Type: driver.DESCRIPTOR_TYPE_STORAGE_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_FRAGMENT},
		)
		if l.layout, err = l.ctx.Device.NewDescriptorSetLayout(bindings); err != nil {
			return err
		}
	}
	vert, err := l.ctx.Shaders.Shader("fullscreen", driver.SHADER_STAGE_VERTEX)
	if err != nil {
		return err
	}
	frag, err := l.ctx.Shaders.Shader("lighting", driver.SHADER_STAGE_FRAGMENT)
	if err != nil {
		return err
	}
	viewport, scissor := fullViewport(target.Extent())
	p, err := l.ctx.Device.NewPipeline(&driver.PipelineDesc{
		Name:             l.Name(),
		RenderPass:       target.RenderPass(),
		Subpass:          info.Index,
		ColorAttachments: info.ColorCount,
		Vertex:           vert,
		Fragment:         frag,
		SetLayouts:       []driver.DescriptorSetLayout{l.layout},
		CullMode:         driver.CULL_MODE_NONE,
		Viewport:         viewport,
		Scissor:          scissor,
	})
	if err != nil {
		return err
	}
	l.state = subpassState{pipeline: p, subpass: info}
	return nil
}

func (l *Lighting) AllocateDescriptors(pool *pipeline.DescriptorAllocator, target *pipeline.FrameTarget) error {
	if l.cameraBuffer == nil {
		for i := 0; i < l.ctx.FramesInFlight; i++ {
			cam, err := l.ctx.Device.NewBuffer(driver.BufferDesc{
				Name: fmt.Sprintf("%s.camera.%d", l.Name(), i), Size: CAMERA_UNIFORM_SIZE, Usage: driver.BUFFER_USAGE_UNIFORM,
			})
			if err != nil {
				return err
			}
			l.cameraBuffer = append(l.cameraBuffer, cam)
			lights, err := l.ctx.Device.NewBuffer(driver.BufferDesc{
				Name: fmt.Sprintf("%s.lights.%d", l.Name(), i), Size: LIGHT_BUFFER_SIZE, Usage: driver.BUFFER_USAGE_STORAGE,
			})
			if err != nil {
				return err
			}
			l.lightBuffer = append(l.lightBuffer, lights)
		}
	}
	for len(l.sets) <= target.Index() {
		l.sets = append(l.sets, nil)
	}
	sets := make([]driver.DescriptorSet, l.ctx.FramesInFlight)
	for i := range sets {
		set, err := pool.Allocate(l.layout)
		if err != nil {
			return err
		}
		for b, spec := range gbuffer {
			a, ok := target.Attachment(spec.Name)
			if !ok {
				return invariant("target %d lost attachment %q", target.Index(), spec.Name)
			}
			set.WriteImage(uint32(b), a.Image, nil)
		}
		set.WriteBuffer(uint32(len(gbuffer)), l.cameraBuffer[i], 0, CAMERA_UNIFORM_SIZE)
		set.WriteBuffer(uint32(len(gbuffer)+1), l.lightBuffer[i], 0, LIGHT_BUFFER_SIZE)
		sets[i] = set
	}
	l.sets[target.Index()] = sets
	return nil
}

// packLights writes the light count followed by every light with a
// Transform, in entity order, up to MAX_POINT_LIGHTS.
func (l *Lighting) packLights(snapshot *scene.Registry) []byte {
	var body []byte
	count := 0
	total := 0
	if snapshot != nil {
		scene.Each2(snapshot, func(e scene.Entity, tr *math.Transform, pl *components.PointLight) {
			total++
			if count == MAX_POINT_LIGHTS {
				return
			}
			world := tr.GetWorld()
			body = append(body, math.Float32Bytes(world.Data[12], world.Data[13], world.Data[14], pl.Radius)...)
			body = append(body, math.Float32Bytes(pl.Colour.X, pl.Colour.Y, pl.Colour.Z, pl.Intensity)...)
			count++
		})
	}
	if total > count && !l.truncated {
		core.LogWarn("stage %s: %d point lights, only the first %d are lit", l.Name(), total, MAX_POINT_LIGHTS)
		l.truncated = true
	}
	l.Lights = count
	return append(math.Float32Bytes(float32(count), 0, 0, 0), body...)
}

func (l *Lighting) Record(rec driver.CommandRecorder, target *pipeline.FrameTarget, frame pipeline.Frame, snapshot *scene.Registry) error {
	f := frame.FrameInFlight
	if target.Index() >= len(l.sets) || l.sets[target.Index()] == nil {
		return invariant("target %d has no lighting descriptors", target.Index())
	}
	if err := l.cameraBuffer[f].Write(0, cameraUniform(activeCamera(snapshot))); err != nil {
		return err
	}
	if err := l.lightBuffer[f].Write(0, l.packLights(snapshot)); err != nil {
		return err
	}
	viewport, scissor := fullViewport(target.Extent())
	rec.BindPipeline(l.state.pipeline)
	rec.SetViewport(viewport)
	rec.SetScissor(scissor)
	rec.BindDescriptorSets(l.state.pipeline, 0, []driver.DescriptorSet{l.sets[target.Index()][f]})
	rec.Draw(3, 1, 0, 0)
	return nil
}

func (l *Lighting) Destroy() error {
	destroyBuffers(l.cameraBuffer)
	destroyBuffers(l.lightBuffer)
	l.cameraBuffer = nil
	l.lightBuffer = nil
	l.sets = nil
	l.state.destroy()
	if l.layout != nil {
		l.layout.Destroy()
		l.layout = nil
	}
	l.truncated = false
	return nil
}
