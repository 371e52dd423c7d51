package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// VulkanSwapchain is an offscreen stand-in for a surface swap chain: a
// ring of device images the pipeline renders into and the caller reads
// back or copies out. Images end each pass in TransferSrc layout.
type VulkanSwapchain struct {
	device *Device

	ImageFormat driver.Format
	Images      []*VulkanImage
	extent      driver.Extent
	next        uint32
}

var _ driver.Swapchain = (*VulkanSwapchain)(nil)

func NewSwapchain(device *Device, imageCount int, format driver.Format, extent driver.Extent) (*VulkanSwapchain, error) {
	if imageCount < 1 {
		return nil, fmt.Errorf("swapchain needs at least one image, got %d", imageCount)
	}
	if format.IsDepth() || format == driver.FORMAT_UNDEFINED {
		return nil, fmt.Errorf("swapchain format %s is not a color format", format)
	}
	sc := &VulkanSwapchain{device: device, ImageFormat: format}
	if err := sc.Recreate(imageCount, extent); err != nil {
		return nil, err
	}
	return sc, nil
}

// Recreate destroys every image and builds a new ring. Pipelines built on
// the old images must be resized afterwards.
func (vs *VulkanSwapchain) Recreate(imageCount int, extent driver.Extent) error {
	vs.Destroy()
	vs.extent = extent
	vs.next = 0
	for i := 0; i < imageCount; i++ {
		img, err := vs.device.createImage(driver.ImageDesc{
			Name:   fmt.Sprintf("swap_%d", i),
			Format: vs.ImageFormat,
			Extent: extent,
			Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT,
		}, vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit))
		if err != nil {
			vs.Destroy()
			return err
		}
		vs.Images = append(vs.Images, img)
	}
	core.LogDebug("Offscreen swapchain created: %d images of %dx%d %s", imageCount, extent.Width, extent.Height, vs.ImageFormat)
	return nil
}

// AcquireNextImageIndex hands out images round robin.
func (vs *VulkanSwapchain) AcquireNextImageIndex() uint32 {
	index := vs.next
	vs.next = (vs.next + 1) % uint32(len(vs.Images))
	return index
}

func (vs *VulkanSwapchain) ImageCount() int { return len(vs.Images) }

func (vs *VulkanSwapchain) Image(index int) driver.Image { return vs.Images[index] }

func (vs *VulkanSwapchain) Format() driver.Format { return vs.ImageFormat }

func (vs *VulkanSwapchain) DepthFormat() driver.Format { return vs.device.DepthFormat() }

func (vs *VulkanSwapchain) Extent() driver.Extent { return vs.extent }

func (vs *VulkanSwapchain) Destroy() {
	for _, img := range vs.Images {
		img.Destroy()
	}
	vs.Images = nil
}
