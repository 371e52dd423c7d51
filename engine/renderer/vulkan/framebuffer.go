package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanFramebuffer struct {
	context     *VulkanContext
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
	extent      driver.Extent
}

func (d *Device) NewFramebuffer(pass driver.RenderPass, attachments []driver.Image, extent driver.Extent) (driver.Framebuffer, error) {
	renderpass, ok := pass.(*VulkanRenderpass)
	if !ok {
		return nil, fmt.Errorf("framebuffer: render pass %T was not created by this device", pass)
	}
	if want := len(renderpass.desc.Attachments); want != len(attachments) {
		return nil, fmt.Errorf("framebuffer: render pass has %d attachments, got %d images", want, len(attachments))
	}

	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		img, ok := a.(*VulkanImage)
		if !ok {
			return nil, fmt.Errorf("framebuffer: attachment %d is a %T", i, a)
		}
		views[i] = img.View
	}

	context := d.context
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if err := check("vkCreateFramebuffer", vk.CreateFramebuffer(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanFramebuffer{
		context:     context,
		Handle:      handle,
		Attachments: views,
		Renderpass:  renderpass,
		extent:      extent,
	}, nil
}

func (vfb *VulkanFramebuffer) Extent() driver.Extent { return vfb.extent }

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(vfb.context.LogicalDevice, vfb.Handle, vfb.context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
