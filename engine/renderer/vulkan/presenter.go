package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type frameSync struct {
	commandBuffer *VulkanCommandBuffer
	inFlight      *VulkanFence
}

// Presenter drives the frame loop over an offscreen swapchain with one
// command buffer and fence per frame in flight.
type Presenter struct {
	device    *Device
	swapchain *VulkanSwapchain
	frames    []frameSync
	// imagesInFlight holds the fence of the frame last rendering each
	// image. The fences are owned by frames.
	imagesInFlight []*VulkanFence

	CurrentFrame int
	ImageIndex   int
	FrameNumber  uint64
}

func NewPresenter(device *Device, swapchain *VulkanSwapchain, framesInFlight int) (*Presenter, error) {
	if framesInFlight < 1 {
		return nil, fmt.Errorf("presenter needs at least one frame in flight, got %d", framesInFlight)
	}
	p := &Presenter{
		device:         device,
		swapchain:      swapchain,
		imagesInFlight: make([]*VulkanFence, swapchain.ImageCount()),
	}
	for i := 0; i < framesInFlight; i++ {
		cb, err := NewVulkanCommandBuffer(device.context, device.context.GraphicsCommandPool)
		if err != nil {
			p.Destroy()
			return nil, err
		}
		// Signaled, so the first wait on each slot returns at once.
		fence, err := NewFence(device.context, true)
		if err != nil {
			cb.Destroy()
			p.Destroy()
			return nil, err
		}
		p.frames = append(p.frames, frameSync{commandBuffer: cb, inFlight: fence})
	}
	return p, nil
}

// BeginFrame waits for the slot's previous submission, acquires the next
// image and returns the command buffer to record into.
func (p *Presenter) BeginFrame() (*VulkanCommandBuffer, error) {
	slot := &p.frames[p.CurrentFrame]
	if err := slot.inFlight.Wait(math.MaxUint64); err != nil {
		core.LogWarn("in-flight fence wait failure: %s", err)
		return nil, err
	}
	if len(p.imagesInFlight) != p.swapchain.ImageCount() {
		p.imagesInFlight = make([]*VulkanFence, p.swapchain.ImageCount())
	}
	p.ImageIndex = int(p.swapchain.AcquireNextImageIndex())

	cb := slot.commandBuffer
	if err := cb.Reset(); err != nil {
		return nil, err
	}
	if err := cb.Begin(); err != nil {
		return nil, err
	}
	return cb, nil
}

// EndFrame submits extra and then the frame's command buffer as one
// batch, waiting on the given semaphores, and advances to the next slot.
func (p *Presenter) EndFrame(extra []driver.CommandBuffer, wait []driver.Semaphore) error {
	slot := &p.frames[p.CurrentFrame]
	if err := slot.commandBuffer.End(); err != nil {
		return err
	}

	// Make sure the previous frame is not using this image.
	if fence := p.imagesInFlight[p.ImageIndex]; fence != nil && fence != slot.inFlight {
		if err := fence.Wait(math.MaxUint64); err != nil {
			return err
		}
	}
	p.imagesInFlight[p.ImageIndex] = slot.inFlight

	batch, err := presentBatch(extra, slot.commandBuffer)
	if err != nil {
		return err
	}

	waitHandles := make([]vk.Semaphore, 0, len(wait))
	for _, s := range wait {
		vs, ok := s.(*VulkanSemaphore)
		if !ok {
			return fmt.Errorf("present dependency %T was not created by this device", s)
		}
		waitHandles = append(waitHandles, vs.Handle)
	}

	if err := slot.inFlight.Reset(); err != nil {
		return err
	}
	// Nothing presents offscreen, so no completion semaphore is signaled.
	if err := submitBatch(p.device.context, batch, waitHandles, nil, slot.inFlight); err != nil {
		return err
	}

	p.FrameNumber++
	p.CurrentFrame = (p.CurrentFrame + 1) % len(p.frames)
	return nil
}

// presentBatch orders the present dependencies ahead of the frame's own
// command buffer.
func presentBatch(extra []driver.CommandBuffer, frame *VulkanCommandBuffer) ([]*VulkanCommandBuffer, error) {
	batch := make([]*VulkanCommandBuffer, 0, len(extra)+1)
	for _, b := range extra {
		vb, ok := b.(*VulkanCommandBuffer)
		if !ok {
			return nil, fmt.Errorf("present dependency %T was not created by this device", b)
		}
		batch = append(batch, vb)
	}
	return append(batch, frame), nil
}

func (p *Presenter) Destroy() {
	if p.device != nil && p.device.context != nil {
		_ = p.device.WaitIdle()
	}
	for _, f := range p.frames {
		f.commandBuffer.Destroy()
		f.inFlight.Destroy()
	}
	p.frames = nil
	p.imagesInFlight = nil
}
