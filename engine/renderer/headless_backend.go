package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
)

// HeadlessBackend paces frames over the recording driver. Each frame in
// flight owns a command buffer; images are handed out round robin.
type HeadlessBackend struct {
	device    *headless.Device
	swapchain *headless.Swapchain
	buffers   []*headless.CommandBuffer

	// Dump logs the whole command stream of every frame.
	Dump bool

	frameNumber  uint64
	currentFrame int
	imageIndex   int
	last         *headless.CommandBuffer
}

var _ RendererBackend = (*HeadlessBackend)(nil)

func NewHeadlessBackend(imageCount, framesInFlight int, extent driver.Extent, format, depthFormat driver.Format) (*HeadlessBackend, error) {
	if framesInFlight < 1 {
		return nil, fmt.Errorf("headless backend needs at least one frame in flight, got %d", framesInFlight)
	}
	d := headless.NewDevice()
	sc, err := headless.NewSwapchain(d, imageCount, extent, format, depthFormat)
	if err != nil {
		return nil, err
	}
	b := &HeadlessBackend{device: d, swapchain: sc}
	for i := 0; i < framesInFlight; i++ {
		cb, err := d.NewCommandBuffer()
		if err != nil {
			return nil, err
		}
		b.buffers = append(b.buffers, cb.(*headless.CommandBuffer))
	}
	core.LogInfo("Headless backend: %d images of %dx%d %s, %d frames in flight", imageCount, extent.Width, extent.Height, format, framesInFlight)
	return b, nil
}

func (b *HeadlessBackend) Type() RendererType { return Headless }

func (b *HeadlessBackend) Device() driver.Device { return b.device }

func (b *HeadlessBackend) Swapchain() driver.Swapchain { return b.swapchain }

// HeadlessDevice exposes the recording device for inspection.
func (b *HeadlessBackend) HeadlessDevice() *headless.Device { return b.device }

// LastFrame returns what the previous EndFrame submitted, nil before the
// first frame.
func (b *HeadlessBackend) LastFrame() *headless.Recorder {
	if b.last == nil {
		return nil
	}
	return &b.last.Recorder
}

func (b *HeadlessBackend) BeginFrame(deltaTime float64) (driver.CommandRecorder, pipeline.Frame, error) {
	cb := b.buffers[b.currentFrame]
	if err := cb.Reset(); err != nil {
		return nil, pipeline.Frame{}, err
	}
	if err := cb.Begin(); err != nil {
		return nil, pipeline.Frame{}, err
	}
	frame := pipeline.Frame{
		ImageIndex:    b.imageIndex,
		FrameInFlight: b.currentFrame,
		DeltaTime:     deltaTime,
	}
	return cb, frame, nil
}

func (b *HeadlessBackend) EndFrame(p *pipeline.Pipeline, frame pipeline.Frame) error {
	cb := b.buffers[frame.FrameInFlight]
	if err := cb.End(); err != nil {
		return err
	}
	if len(cb.Violations) > 0 {
		return fmt.Errorf("frame %d: %s", b.frameNumber, strings.Join(cb.Violations, "; "))
	}

	deps := p.GatherPresentDependencies(frame.ImageIndex, frame.FrameInFlight)
	extra := p.GatherPresentBuffers(frame.ImageIndex)
	core.LogDebug(
		"frame %d image %d slot %d: %d commands, %d subpass advances, %d draws, %d+%d extra buffers, %d waits",
		b.frameNumber, frame.ImageIndex, frame.FrameInFlight,
		len(cb.Commands),
		cb.Count(headless.OP_NEXT_SUBPASS),
		cb.Count(headless.OP_DRAW)+cb.Count(headless.OP_DRAW_INDEXED),
		len(deps.CommandBuffers), len(extra), len(deps.Semaphores),
	)
	if b.Dump {
		core.LogInfo("frame %d command stream:\n%s", b.frameNumber, cb.String())
	}

	b.last = cb
	b.frameNumber++
	b.currentFrame = (b.currentFrame + 1) % len(b.buffers)
	b.imageIndex = (b.imageIndex + 1) % b.swapchain.ImageCount()
	return nil
}

func (b *HeadlessBackend) Resized(width, height uint32) error {
	b.swapchain.Resize(b.swapchain.ImageCount(), driver.Extent{Width: width, Height: height})
	b.imageIndex = 0
	return nil
}

func (b *HeadlessBackend) Shutdown() error {
	for _, cb := range b.buffers {
		cb.Destroy()
	}
	b.buffers = nil
	b.swapchain.Destroy()
	if live := b.device.Live(); live > 0 {
		core.LogWarn("headless device shut down with %d live objects", live)
	}
	return nil
}
