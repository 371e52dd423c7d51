package renderer

import (
	"errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/renderer/vulkan"
)

// VulkanBackend renders into an offscreen swap chain on the first GPU
// with a graphics queue.
type VulkanBackend struct {
	device    *vulkan.Device
	swapchain *vulkan.VulkanSwapchain
	presenter *vulkan.Presenter
}

var _ RendererBackend = (*VulkanBackend)(nil)

func NewVulkanBackend(appName string, validation bool, imageCount, framesInFlight int, extent driver.Extent, format driver.Format) (*VulkanBackend, error) {
	device, err := vulkan.Open(vulkan.OpenConfig{AppName: appName, Validation: validation})
	if err != nil {
		return nil, err
	}
	sc, err := vulkan.NewSwapchain(device, imageCount, format, extent)
	if err != nil {
		device.Close()
		return nil, err
	}
	presenter, err := vulkan.NewPresenter(device, sc, framesInFlight)
	if err != nil {
		sc.Destroy()
		device.Close()
		return nil, err
	}
	core.LogInfo("Vulkan backend: depth format %s", device.DepthFormat())
	return &VulkanBackend{device: device, swapchain: sc, presenter: presenter}, nil
}

func (b *VulkanBackend) Type() RendererType { return Vulkan }

func (b *VulkanBackend) Device() driver.Device { return b.device }

func (b *VulkanBackend) Swapchain() driver.Swapchain { return b.swapchain }

func (b *VulkanBackend) BeginFrame(deltaTime float64) (driver.CommandRecorder, pipeline.Frame, error) {
	cb, err := b.presenter.BeginFrame()
	if err != nil {
		return nil, pipeline.Frame{}, err
	}
	frame := pipeline.Frame{
		ImageIndex:    b.presenter.ImageIndex,
		FrameInFlight: b.presenter.CurrentFrame,
		DeltaTime:     deltaTime,
	}
	return cb, frame, nil
}

func (b *VulkanBackend) EndFrame(p *pipeline.Pipeline, frame pipeline.Frame) error {
	deps := p.GatherPresentDependencies(frame.ImageIndex, frame.FrameInFlight)
	extra := append(deps.CommandBuffers, p.GatherPresentBuffers(frame.ImageIndex)...)
	return b.presenter.EndFrame(extra, deps.Semaphores)
}

func (b *VulkanBackend) Resized(width, height uint32) error {
	if err := b.device.WaitIdle(); err != nil {
		return err
	}
	return b.swapchain.Recreate(b.swapchain.ImageCount(), driver.Extent{Width: width, Height: height})
}

func (b *VulkanBackend) Shutdown() error {
	var errs []error
	if err := b.device.WaitIdle(); err != nil {
		errs = append(errs, err)
	}
	b.presenter.Destroy()
	b.swapchain.Destroy()
	b.device.Close()
	return errors.Join(errs...)
}
