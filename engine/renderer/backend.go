package renderer

import (
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
)

type RendererType uint8

const (
	Headless RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Headless:
		return "headless"
	case Vulkan:
		return "vulkan"
	}
	return "unknown"
}

// RendererBackend owns the device, the swap chain and whatever paces
// frames on it. The frontend builds pipelines against Device and
// Swapchain and records into the recorder BeginFrame hands out.
type RendererBackend interface {
	Type() RendererType
	Device() driver.Device
	Swapchain() driver.Swapchain
	// BeginFrame picks the swap image and frame-in-flight slot of the next
	// frame and returns the recorder for it.
	BeginFrame(deltaTime float64) (driver.CommandRecorder, pipeline.Frame, error)
	// EndFrame submits what was recorded together with the present
	// dependencies p gathered for frame.
	EndFrame(p *pipeline.Pipeline, frame pipeline.Frame) error
	// Resized recreates the swap chain images. Pipelines must be resized
	// afterwards.
	Resized(width, height uint32) error
	Shutdown() error
}
