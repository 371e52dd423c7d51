package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanSampler struct {
	context *VulkanContext
	Handle  vk.Sampler
}

// NewSampler creates a linear, clamp to edge sampler for atlas lookups.
func (d *Device) NewSampler() (driver.Sampler, error) {
	context := d.context
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var handle vk.Sampler
	if err := check("vkCreateSampler", vk.CreateSampler(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanSampler{context: context, Handle: handle}, nil
}

func (s *VulkanSampler) Destroy() {
	if s.Handle != nil {
		vk.DestroySampler(s.context.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = nil
	}
}
