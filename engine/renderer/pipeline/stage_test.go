package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

// probeStage is a minimal stage: one pipeline, one uniform buffer and one
// set per frame in flight, one set per bound renderable.
type probeStage struct {
	BaseStage
	ctx    StageContext
	writes []AttachmentSpec
	reads  []string

	pipeline driver.Pipeline
	layout   driver.DescriptorSetLayout
	pool     *DescriptorAllocator
	sets     []driver.DescriptorSet
	buffers  []driver.Buffer
	bound    map[scene.Entity]driver.DescriptorSet
	released int

	deps []driver.Semaphore
}

func newProbeStage(name string, ctx StageContext) *probeStage {
	return &probeStage{
		BaseStage: BaseStage{StageName: name},
		ctx:       ctx,
		bound:     make(map[scene.Entity]driver.DescriptorSet),
	}
}

func (s *probeStage) PrepareAttachments(target *FrameTarget) error {
	for _, w := range s.writes {
		if err := target.DeclareAttachment(w); err != nil {
			return err
		}
		if err := target.UseColor(w.Name); err != nil {
			return err
		}
	}
	for _, r := range s.reads {
		if err := target.UseInput(r); err != nil {
			return err
		}
	}
	if len(s.reads) > 0 {
		return target.UseColor(ATTACHMENT_PRESENT)
	}
	return nil
}

func (s *probeStage) BuildPipelineState(target *FrameTarget) error {
	if s.pipeline != nil {
		return nil
	}
	info, ok := target.Subpass(s.Name())
	if !ok {
		return fmt.Errorf("no subpass for %q", s.Name())
	}
	layout, err := s.ctx.Device.NewDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1, Stages: driver.SHADER_STAGE_VERTEX},
	})
	if err != nil {
		return err
	}
	s.layout = layout
	s.pipeline, err = s.ctx.Device.NewPipeline(&driver.PipelineDesc{
		Name:             s.Name(),
		RenderPass:       target.RenderPass(),
		Subpass:          info.Index,
		ColorAttachments: info.ColorCount,
		SetLayouts:       []driver.DescriptorSetLayout{layout},
	})
	return err
}

func (s *probeStage) AllocateDescriptors(pool *DescriptorAllocator, target *FrameTarget) error {
	if s.sets != nil {
		return nil
	}
	s.pool = pool
	for i := 0; i < s.ctx.FramesInFlight; i++ {
		buf, err := s.ctx.Device.NewBuffer(driver.BufferDesc{Name: s.Name(), Size: 64, Usage: driver.BUFFER_USAGE_UNIFORM})
		if err != nil {
			return err
		}
		s.buffers = append(s.buffers, buf)
		set, err := pool.Allocate(s.layout)
		if err != nil {
			return err
		}
		set.WriteBuffer(0, buf, 0, 64)
		s.sets = append(s.sets, set)
	}
	return nil
}

func (s *probeStage) Record(rec driver.CommandRecorder, target *FrameTarget, frame Frame, snapshot *scene.Registry) error {
	rec.BindPipeline(s.pipeline)
	rec.BindDescriptorSets(s.pipeline, 0, []driver.DescriptorSet{s.sets[frame.FrameInFlight]})
	if err := s.buffers[frame.FrameInFlight].Write(0, []byte{byte(frame.ImageIndex)}); err != nil {
		return err
	}
	if snapshot != nil {
		var err error
		scene.Each(snapshot, func(e scene.Entity, mr *components.MeshRenderer) {
			if _, ok := s.bound[e]; !ok && err == nil {
				err = fmt.Errorf("%s drawn without a binding", e)
			}
		})
		if err != nil {
			return err
		}
	}
	rec.Draw(3, 1, 0, 0)
	return nil
}

func (s *probeStage) BindRenderable(e scene.Entity, mr *components.MeshRenderer) error {
	set, err := mr.Pool.Allocate(s.layout)
	if err != nil {
		return err
	}
	s.bound[e] = set
	return nil
}

func (s *probeStage) UnbindRenderable(e scene.Entity) func() {
	set, ok := s.bound[e]
	if !ok {
		return nil
	}
	delete(s.bound, e)
	return func() {
		s.released++
		_ = s.pool.Free(set)
	}
}

func (s *probeStage) GatherPresentDependencies(deps *PresentDependencies, imageIndex, frameInFlight int) {
	deps.Semaphores = append(deps.Semaphores, s.deps...)
}

func (s *probeStage) Destroy() error {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
	if s.layout != nil {
		s.layout.Destroy()
		s.layout = nil
	}
	for _, b := range s.buffers {
		b.Destroy()
	}
	s.buffers = nil
	s.sets = nil
	s.bound = make(map[scene.Entity]driver.DescriptorSet)
	return nil
}
