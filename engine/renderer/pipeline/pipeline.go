package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

const MAX_FRAMES_IN_FLIGHT = 3

// Context is the device state a pipeline is built against. The caller
// owns all of it.
type Context struct {
	Device         driver.Device
	Swapchain      driver.Swapchain
	FramesInFlight int
}

/**
 * @brief Pipeline composes an ordered list of stages into a single render
 * pass per swap image, one subpass per stage.
 */
type Pipeline struct {
	ID   uuid.UUID
	name string

	ctx       Context
	stages    []Stage
	targets   []*FrameTarget
	allocator *DescriptorAllocator
	poolSizes PoolSizes
	maxSets   uint32
	state     State
	extent    driver.Extent

	registry    *scene.Registry
	connections []scene.Connection
	reclaim     *containers.RingQueue[pendingRelease]
	// bindErr is a binding failure raised from a registry notification,
	// surfaced by the next Draw.
	bindErr error
	frames  uint64
}

// New validates the stage list. Nothing is created on the device until
// Build.
func New(ctx Context, stages []Stage, opts ...Option) (*Pipeline, error) {
	if ctx.Device == nil || ctx.Swapchain == nil {
		return nil, fmt.Errorf("%w: pipeline needs a device and a swapchain", ErrConstructionFailure)
	}
	if ctx.FramesInFlight < 1 || ctx.FramesInFlight > MAX_FRAMES_IN_FLIGHT {
		return nil, fmt.Errorf("%w: frames in flight %d outside [1, %d]", ErrConstructionFailure, ctx.FramesInFlight, MAX_FRAMES_IN_FLIGHT)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: pipeline without stages", ErrConstructionFailure)
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("%w: nil stage", ErrConstructionFailure)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("%w: duplicate stage name %q", ErrConstructionFailure, s.Name())
		}
		seen[s.Name()] = true
	}
	p := &Pipeline{
		ID:        uuid.New(),
		name:      "pipeline",
		ctx:       ctx,
		stages:    append([]Stage(nil), stages...),
		poolSizes: DefaultPoolSizes(),
		maxSets:   DEFAULT_MAX_SETS,
		reclaim:   containers.NewRingQueue[pendingRelease](16),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Create is New followed by Build.
func Create(ctx Context, stages []Stage, opts ...Option) (*Pipeline, error) {
	p, err := New(ctx, stages, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Build(); err != nil {
		return p, err
	}
	return p, nil
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) IsReady() bool {
	return p.state == STATE_READY
}

func (p *Pipeline) Stages() []Stage {
	return p.stages
}

func (p *Pipeline) Targets() []*FrameTarget {
	return p.targets
}

func (p *Pipeline) FramesInFlight() int {
	return p.ctx.FramesInFlight
}

func (p *Pipeline) Allocator() *DescriptorAllocator {
	return p.allocator
}

func (p *Pipeline) fail(phase string, err error) error {
	core.LogError("%s: %s failed in state %s: %s", p.name, phase, p.state, err)
	if errors.Is(err, ErrConstructionFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrConstructionFailure, phase, err)
}

// Build runs the construction protocol: attachments for every stage on
// every target, then the render passes, then pipeline states, then
// descriptors. Each phase finishes on all targets before the next starts.
// On error the pipeline stays short of Ready and must be destroyed.
func (p *Pipeline) Build() error {
	if p.state != STATE_UNINITIALIZED {
		return fmt.Errorf("%w: build called in state %s", ErrInvariantViolation, p.state)
	}
	sc := p.ctx.Swapchain
	if sc.ImageCount() < 1 {
		return p.fail("targets", errors.New("swapchain has no images"))
	}
	p.extent = sc.Extent()
	p.targets = make([]*FrameTarget, sc.ImageCount())
	for i := range p.targets {
		p.targets[i] = newFrameTarget(i, p.ctx.Device, sc)
	}

	for _, s := range p.stages {
		for _, t := range p.targets {
			if err := t.beginSubpass(s.Name()); err != nil {
				return p.fail("prepare attachments", err)
			}
			if err := s.PrepareAttachments(t); err != nil {
				return p.fail("prepare attachments", fmt.Errorf("stage %q: %w", s.Name(), err))
			}
			t.endSubpass()
		}
	}
	p.state = STATE_ATTACHMENTS_DECLARED

	for _, t := range p.targets {
		if err := t.Compile(); err != nil {
			return p.fail("compile", err)
		}
	}
	p.state = STATE_RENDER_PASSES_COMPILED

	for _, s := range p.stages {
		for _, t := range p.targets {
			if err := s.BuildPipelineState(t); err != nil {
				return p.fail("build pipeline state", fmt.Errorf("stage %q: %w", s.Name(), err))
			}
		}
	}
	p.state = STATE_PIPELINE_STATES_BUILT

	p.allocator = NewDescriptorAllocator(p.ctx.Device)
	if err := p.allocator.CreatePool(p.poolSizes, p.maxSets); err != nil {
		return p.fail("descriptor pool", err)
	}
	for _, s := range p.stages {
		for _, t := range p.targets {
			if err := s.AllocateDescriptors(p.allocator, t); err != nil {
				return p.fail("allocate descriptors", fmt.Errorf("stage %q: %w", s.Name(), err))
			}
		}
	}
	p.state = STATE_DESCRIPTORS_ALLOCATED

	if err := p.subscribe(); err != nil {
		return p.fail("bind renderables", err)
	}
	p.state = STATE_READY
	core.LogInfo("%s ready: %d stages, %d targets, %d frames in flight", p.name, len(p.stages), len(p.targets), p.ctx.FramesInFlight)
	return nil
}

// Draw records one frame into rec: the render pass over
// targets[frame.ImageIndex], one subpass per stage. It also retires
// releases that no frame in flight can reference anymore.
func (p *Pipeline) Draw(rec driver.CommandRecorder, frame Frame, snapshot *scene.Registry) error {
	if p.state != STATE_READY {
		return fmt.Errorf("%w: %w: draw in state %s", ErrInvariantViolation, ErrNotReady, p.state)
	}
	if p.bindErr != nil {
		return p.bindErr
	}
	if frame.FrameInFlight < 0 || frame.FrameInFlight >= p.ctx.FramesInFlight {
		return fmt.Errorf("%w: frame in flight %d outside [0, %d)", ErrInvariantViolation, frame.FrameInFlight, p.ctx.FramesInFlight)
	}
	if frame.ImageIndex < 0 || frame.ImageIndex >= len(p.targets) {
		return fmt.Errorf("%w: image index %d outside [0, %d)", ErrInvariantViolation, frame.ImageIndex, len(p.targets))
	}
	if p.ctx.Swapchain.Extent() != p.extent {
		return fmt.Errorf("%s: built for %dx%d: %w", p.name, p.extent.Width, p.extent.Height, core.ErrSwapchainOutOfDate)
	}
	if snapshot == nil {
		snapshot = p.registry
	}

	target := p.targets[frame.ImageIndex]
	area := driver.Rect{Width: p.extent.Width, Height: p.extent.Height}
	for i, s := range p.stages {
		if i == 0 {
			rec.BeginRenderPass(target.RenderPass(), target.Framebuffer(), area, target.ClearValues(s.ClearValues()))
		} else {
			rec.NextSubpass()
		}
		if err := s.Record(rec, target, frame, snapshot); err != nil {
			rec.EndRenderPass()
			if errors.Is(err, ErrInvariantViolation) {
				return fmt.Errorf("stage %q: %w", s.Name(), err)
			}
			return fmt.Errorf("%w: stage %q: %w", ErrInvariantViolation, s.Name(), err)
		}
	}
	rec.EndRenderPass()

	p.frames++
	p.retire(false)
	return nil
}

// GatherPresentDependencies collects what stages need submitted and waited
// on before the presenter presents imageIndex.
func (p *Pipeline) GatherPresentDependencies(imageIndex, frameInFlight int) PresentDependencies {
	var deps PresentDependencies
	for _, s := range p.stages {
		if g, ok := s.(PresentDependencyGatherer); ok {
			g.GatherPresentDependencies(&deps, imageIndex, frameInFlight)
		}
	}
	return deps
}

func (p *Pipeline) GatherPresentBuffers(imageIndex int) []driver.CommandBuffer {
	var buffers []driver.CommandBuffer
	for _, s := range p.stages {
		if g, ok := s.(PresentBufferGatherer); ok {
			g.GatherPresentBuffers(&buffers, imageIndex)
		}
	}
	return buffers
}

// Resize tears down everything built against the old swapchain and builds
// again against sc. Stages and registry subscriptions carry over.
func (p *Pipeline) Resize(sc driver.Swapchain) error {
	if sc == nil {
		return fmt.Errorf("%w: resize without a swapchain", ErrConstructionFailure)
	}
	if err := p.teardown(); err != nil {
		return err
	}
	p.ctx.Swapchain = sc
	core.LogInfo("%s: rebuilding for %dx%d", p.name, sc.Extent().Width, sc.Extent().Height)
	return p.Build()
}

// Destroy waits for the device, then releases targets, stage resources and
// the descriptor pool, in that order. It is safe at any state.
func (p *Pipeline) Destroy() error {
	err := p.teardown()
	core.LogDebug("%s destroyed", p.name)
	return err
}

func (p *Pipeline) teardown() error {
	var errs []error
	p.unsubscribe()
	if p.state != STATE_UNINITIALIZED {
		if err := p.ctx.Device.WaitIdle(); err != nil {
			errs = append(errs, fmt.Errorf("wait idle: %w", err))
		}
	}
	p.retire(true)
	for _, t := range p.targets {
		t.Destroy()
	}
	p.targets = nil
	for _, s := range p.stages {
		if err := s.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("stage %q: %w", s.Name(), err))
		}
	}
	if p.allocator != nil {
		p.allocator.Destroy()
		p.allocator = nil
	}
	p.bindErr = nil
	p.state = STATE_UNINITIALIZED
	return errors.Join(errs...)
}
