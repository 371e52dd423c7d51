package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

var vkFormats = map[driver.Format]vk.Format{
	driver.FORMAT_UNDEFINED:         vk.FormatUndefined,
	driver.FORMAT_BGRA8_UNORM:       vk.FormatB8g8r8a8Unorm,
	driver.FORMAT_BGRA8_SRGB:        vk.FormatB8g8r8a8Srgb,
	driver.FORMAT_RGBA8_UNORM:       vk.FormatR8g8b8a8Unorm,
	driver.FORMAT_RGBA16_SFLOAT:     vk.FormatR16g16b16a16Sfloat,
	driver.FORMAT_RGBA32_SFLOAT:     vk.FormatR32g32b32a32Sfloat,
	driver.FORMAT_RG32_SFLOAT:       vk.FormatR32g32Sfloat,
	driver.FORMAT_RGB32_SFLOAT:      vk.FormatR32g32b32Sfloat,
	driver.FORMAT_D32_SFLOAT:        vk.FormatD32Sfloat,
	driver.FORMAT_D24_UNORM_S8_UINT: vk.FormatD24UnormS8Uint,
}

func toVkFormat(f driver.Format) vk.Format {
	if v, ok := vkFormats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func fromVkFormat(v vk.Format) driver.Format {
	for f, candidate := range vkFormats {
		if candidate == v {
			return f
		}
	}
	return driver.FORMAT_UNDEFINED
}

func toVkLoadOp(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LOAD_OP_LOAD:
		return vk.AttachmentLoadOpLoad
	case driver.LOAD_OP_DONT_CARE:
		return vk.AttachmentLoadOpDontCare
	default:
		return vk.AttachmentLoadOpClear
	}
}

func toVkStoreOp(op driver.StoreOp) vk.AttachmentStoreOp {
	if op == driver.STORE_OP_DONT_CARE {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func toVkDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	switch t {
	case driver.DESCRIPTOR_TYPE_STORAGE_IMAGE:
		return vk.DescriptorTypeStorageImage
	case driver.DESCRIPTOR_TYPE_SAMPLER:
		return vk.DescriptorTypeSampler
	case driver.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER:
		return vk.DescriptorTypeCombinedImageSampler
	case driver.DESCRIPTOR_TYPE_STORAGE_BUFFER:
		return vk.DescriptorTypeStorageBuffer
	case driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT:
		return vk.DescriptorTypeInputAttachment
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func toVkShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&driver.SHADER_STAGE_VERTEX != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&driver.SHADER_STAGE_FRAGMENT != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return flags
}

func toVkCullMode(m driver.CullMode) vk.CullModeFlags {
	switch m {
	case driver.CULL_MODE_NONE:
		return vk.CullModeFlags(vk.CullModeNone)
	case driver.CULL_MODE_FRONT:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func toVkIndexType(t driver.IndexType) vk.IndexType {
	if t == driver.INDEX_TYPE_UINT16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func toVkImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&driver.IMAGE_USAGE_COLOR_ATTACHMENT != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&driver.IMAGE_USAGE_DEPTH_ATTACHMENT != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&driver.IMAGE_USAGE_INPUT_ATTACHMENT != 0 {
		flags |= vk.ImageUsageInputAttachmentBit
	}
	if u&driver.IMAGE_USAGE_SAMPLED != 0 {
		flags |= vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
	}
	if u&driver.IMAGE_USAGE_TRANSIENT != 0 {
		flags |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func toVkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&driver.BUFFER_USAGE_VERTEX != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.BUFFER_USAGE_INDEX != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&driver.BUFFER_USAGE_UNIFORM != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.BUFFER_USAGE_STORAGE != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&driver.BUFFER_USAGE_TRANSFER_SRC != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

func aspectOf(f driver.Format) vk.ImageAspectFlags {
	switch f {
	case driver.FORMAT_D32_SFLOAT:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case driver.FORMAT_D24_UNORM_S8_UINT:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

func toVkClearValues(values []driver.ClearValue, attachments []driver.AttachmentDesc) []vk.ClearValue {
	out := make([]vk.ClearValue, len(values))
	for i, v := range values {
		if i < len(attachments) && attachments[i].Format.IsDepth() {
			out[i] = vk.NewClearDepthStencil(v.Depth, v.Stencil)
			continue
		}
		out[i] = vk.NewClearValue(v.Color[:])
	}
	return out
}
