package headless

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Swapchain stands in for the presenter's swap chain: a fixed set of
// presentable images of one format and extent.
type Swapchain struct {
	device      *Device
	images      []*Image
	format      driver.Format
	depthFormat driver.Format
	extent      driver.Extent
}

func NewSwapchain(device *Device, imageCount int, extent driver.Extent, format, depthFormat driver.Format) (*Swapchain, error) {
	if imageCount < 1 {
		return nil, fmt.Errorf("swapchain needs at least one image, got %d", imageCount)
	}
	sc := &Swapchain{
		device:      device,
		format:      format,
		depthFormat: depthFormat,
	}
	sc.Resize(imageCount, extent)
	return sc, nil
}

// Resize replaces every image, as a recreated swap chain would.
func (s *Swapchain) Resize(imageCount int, extent driver.Extent) {
	s.Destroy()
	s.extent = extent
	s.images = make([]*Image, imageCount)
	for i := range s.images {
		s.images[i] = &Image{
			object: s.device.track("swap_image"),
			desc: driver.ImageDesc{
				Name:   fmt.Sprintf("swap_%d", i),
				Format: s.format,
				Extent: extent,
				Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT,
			},
		}
	}
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

func (s *Swapchain) Image(index int) driver.Image {
	return s.images[index]
}

func (s *Swapchain) Format() driver.Format {
	return s.format
}

func (s *Swapchain) DepthFormat() driver.Format {
	return s.depthFormat
}

func (s *Swapchain) Extent() driver.Extent {
	return s.extent
}

func (s *Swapchain) Destroy() {
	for _, img := range s.images {
		img.Destroy()
	}
	s.images = nil
}
