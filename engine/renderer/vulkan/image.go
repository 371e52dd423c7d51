package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanImage struct {
	context *VulkanContext
	device  *Device

	Name   string
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	format driver.Format
	extent driver.Extent
	usage  driver.ImageUsage
	// external images are owned by someone else; only the view is ours.
	external bool
}

func (d *Device) NewImage(desc driver.ImageDesc) (driver.Image, error) {
	return d.createImage(desc, 0)
}

func (d *Device) createImage(desc driver.ImageDesc, extraUsage vk.ImageUsageFlags) (*VulkanImage, error) {
	context := d.context
	img := &VulkanImage{
		context: context,
		device:  d,
		Name:    desc.Name,
		format:  desc.Format,
		extent:  desc.Extent,
		usage:   desc.Usage,
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(desc.Usage) | extraUsage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := check("vkCreateImage", vk.CreateImage(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, fmt.Errorf("image %s: %w", desc.Name, err)
	}
	img.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryType < 0 {
		img.Destroy()
		return nil, fmt.Errorf("image %s: no device local memory type", desc.Name)
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := check("vkAllocateMemory", vk.AllocateMemory(context.LogicalDevice, &allocInfo, context.Allocator, &memory)); err != nil {
		img.Destroy()
		return nil, fmt.Errorf("image %s: %w", desc.Name, err)
	}
	img.Memory = memory
	if err := check("vkBindImageMemory", vk.BindImageMemory(context.LogicalDevice, handle, memory, 0)); err != nil {
		img.Destroy()
		return nil, err
	}

	if err := img.createView(); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// WrapImage adopts an image owned elsewhere, such as a presentation
// image, and creates a view for it.
func (d *Device) WrapImage(handle vk.Image, format driver.Format, extent driver.Extent) (*VulkanImage, error) {
	img := &VulkanImage{
		context:  d.context,
		device:   d,
		Handle:   handle,
		format:   format,
		extent:   extent,
		external: true,
	}
	if err := img.createView(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *VulkanImage) createView() error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(img.format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectOf(img.format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := check("vkCreateImageView", vk.CreateImageView(img.context.LogicalDevice, &viewInfo, img.context.Allocator, &view)); err != nil {
		return err
	}
	img.View = view
	return nil
}

func (img *VulkanImage) Format() driver.Format { return img.format }
func (img *VulkanImage) Extent() driver.Extent { return img.extent }

// Write copies texels through a staging buffer and transitions the image
// to the shader read layout the descriptor sets declare. It waits for the
// graphics queue, so it belongs to construction, not the frame loop.
func (img *VulkanImage) Write(texels []byte) error {
	if img.external || img.usage&driver.IMAGE_USAGE_SAMPLED == 0 {
		return fmt.Errorf("image %s: only sampled images accept texel writes", img.Name)
	}
	want := int(img.extent.Width) * int(img.extent.Height) * img.format.TexelSize()
	if len(texels) != want {
		return fmt.Errorf("image %s: got %d bytes of texels, want %d", img.Name, len(texels), want)
	}

	staging, err := img.device.NewBuffer(driver.BufferDesc{
		Name:  img.Name + ".staging",
		Size:  uint64(want),
		Usage: driver.BUFFER_USAGE_TRANSFER_SRC,
	})
	if err != nil {
		return err
	}
	defer staging.Destroy()
	if err := staging.Write(0, texels); err != nil {
		return err
	}

	cb, err := NewVulkanCommandBuffer(img.context, img.context.GraphicsCommandPool)
	if err != nil {
		return err
	}
	defer cb.Destroy()
	if err := cb.Begin(); err != nil {
		return err
	}

	// Previous contents are replaced entirely, so the old layout can be
	// discarded.
	img.barrier(cb.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessTransferWriteBit,
		vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit)
	vk.CmdCopyBufferToImage(cb.Handle, staging.(*VulkanBuffer).Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: aspectOf(img.format),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: img.extent.Width, Height: img.extent.Height, Depth: 1},
	}})
	img.barrier(cb.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessTransferWriteBit, vk.AccessShaderReadBit,
		vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit)

	if err := cb.End(); err != nil {
		return err
	}
	if err := cb.Submit(nil, nil, nil); err != nil {
		return err
	}
	if err := lockPool.SafeQueueCall(img.context.GraphicsQueueIndex, func() error {
		return check("vkQueueWaitIdle", vk.QueueWaitIdle(img.context.GraphicsQueue))
	}); err != nil {
		return err
	}
	return nil
}

// queueFamilyIgnored is VK_QUEUE_FAMILY_IGNORED.
const queueFamilyIgnored = ^uint32(0)

func (img *VulkanImage) barrier(cmd vk.CommandBuffer, from, to vk.ImageLayout, srcAccess, dstAccess vk.AccessFlagBits, srcStage, dstStage vk.PipelineStageFlagBits) {
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(srcStage),
		vk.PipelineStageFlags(dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(srcAccess),
			DstAccessMask:       vk.AccessFlags(dstAccess),
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: queueFamilyIgnored,
			DstQueueFamilyIndex: queueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspectOf(img.format),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

func (img *VulkanImage) Destroy() {
	device := img.context.LogicalDevice
	if img.View != nil {
		vk.DestroyImageView(device, img.View, img.context.Allocator)
		img.View = nil
	}
	if img.external {
		img.Handle = nil
		return
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, img.context.Allocator)
		img.Memory = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, img.context.Allocator)
		img.Handle = nil
	}
}
