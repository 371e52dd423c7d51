package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRoundTrip(t *testing.T) {
	for f := range vkFormats {
		assert.Equal(t, f, fromVkFormat(toVkFormat(f)), f.String())
	}
	assert.Equal(t, vk.FormatUndefined, toVkFormat(driver.Format(99)))
}

func TestAspectOf(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), aspectOf(driver.FORMAT_RGBA8_UNORM))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), aspectOf(driver.FORMAT_D32_SFLOAT))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), aspectOf(driver.FORMAT_D24_UNORM_S8_UINT))
}

func TestImageUsage(t *testing.T) {
	flags := toVkImageUsage(driver.IMAGE_USAGE_COLOR_ATTACHMENT | driver.IMAGE_USAGE_INPUT_ATTACHMENT)
	assert.NotZero(t, flags&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit))
	assert.NotZero(t, flags&vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit))
	assert.Zero(t, flags&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit))

	sampled := toVkImageUsage(driver.IMAGE_USAGE_SAMPLED)
	assert.NotZero(t, sampled&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit), "sampled images are uploaded")
}

func TestBufferUsage(t *testing.T) {
	staging := toVkBufferUsage(driver.BUFFER_USAGE_TRANSFER_SRC)
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), staging)
	assert.Zero(t, toVkBufferUsage(driver.BUFFER_USAGE_UNIFORM)&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
}

func TestDescriptorTranslation(t *testing.T) {
	cases := map[driver.DescriptorType]vk.DescriptorType{
		driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER:         vk.DescriptorTypeUniformBuffer,
		driver.DESCRIPTOR_TYPE_STORAGE_IMAGE:          vk.DescriptorTypeStorageImage,
		driver.DESCRIPTOR_TYPE_SAMPLER:                vk.DescriptorTypeSampler,
		driver.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER: vk.DescriptorTypeCombinedImageSampler,
		driver.DESCRIPTOR_TYPE_STORAGE_BUFFER:         vk.DescriptorTypeStorageBuffer,
		driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT:       vk.DescriptorTypeInputAttachment,
	}
	for in, want := range cases {
		assert.Equal(t, want, toVkDescriptorType(in), in.String())
	}

	bindings := layoutBindings([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT, Stages: driver.SHADER_STAGE_FRAGMENT},
		{Binding: 3, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 2, Stages: driver.SHADER_STAGE_VERTEX | driver.SHADER_STAGE_FRAGMENT},
	})
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(1), bindings[0].DescriptorCount)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), bindings[0].StageFlags)
	assert.Equal(t, uint32(3), bindings[1].Binding)
	assert.Equal(t, uint32(2), bindings[1].DescriptorCount)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), bindings[1].StageFlags)
}

func TestPoolSizes(t *testing.T) {
	sizes := poolSizes(map[driver.DescriptorType]uint32{
		driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT: 12,
		driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER:   64,
		driver.DESCRIPTOR_TYPE_SAMPLER:          0,
	})
	require.Len(t, sizes, 2)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, sizes[0].Type)
	assert.Equal(t, uint32(64), sizes[0].DescriptorCount)
	assert.Equal(t, vk.DescriptorTypeInputAttachment, sizes[1].Type)
}

func TestBlendAttachments(t *testing.T) {
	gbuffer := blendAttachments(3, false)
	require.Len(t, gbuffer, 3)
	for _, s := range gbuffer {
		assert.Equal(t, vk.Bool32(vk.False), s.BlendEnable)
		assert.Equal(t, colorWriteAll, s.ColorWriteMask)
	}

	overlay := blendAttachments(1, true)
	require.Len(t, overlay, 1)
	assert.Equal(t, vk.Bool32(vk.True), overlay[0].BlendEnable)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, overlay[0].DstColorBlendFactor)
}

func TestVertexInput(t *testing.T) {
	bindings, attrs := vertexInput(0, nil)
	assert.Nil(t, bindings)
	assert.Nil(t, attrs)

	bindings, attrs = vertexInput(32, []driver.VertexAttribute{
		{Location: 0, Format: driver.FORMAT_RG32_SFLOAT, Offset: 0},
		{Location: 2, Format: driver.FORMAT_RGBA32_SFLOAT, Offset: 16},
	})
	require.Len(t, bindings, 1)
	assert.Equal(t, uint32(32), bindings[0].Stride)
	require.Len(t, attrs, 2)
	assert.Equal(t, vk.FormatR32g32b32a32Sfloat, attrs[1].Format)
	assert.Equal(t, uint32(16), attrs[1].Offset)
}

func TestDepthState(t *testing.T) {
	off := depthState(false, false)
	assert.Equal(t, vk.Bool32(vk.False), off.DepthTestEnable)

	on := depthState(true, true)
	assert.Equal(t, vk.Bool32(vk.True), on.DepthTestEnable)
	assert.Equal(t, vk.Bool32(vk.True), on.DepthWriteEnable)
	assert.Equal(t, vk.CompareOpLess, on.DepthCompareOp)
}

func TestResultHelpers(t *testing.T) {
	assert.NoError(t, check("vkCreateImage", vk.Success))
	assert.NoError(t, check("vkAcquireNextImage", vk.Suboptimal))

	err := check("vkAllocateDescriptorSets", vk.ErrorOutOfPoolMemory)
	var re *ResultError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, vk.ErrorOutOfPoolMemory, re.Result)
	assert.Equal(t, "vkAllocateDescriptorSets failed with VK_ERROR_OUT_OF_POOL_MEMORY", err.Error())
}

func TestResultErrorMatchesPoolExhaustion(t *testing.T) {
	assert.ErrorIs(t, check("vkAllocateDescriptorSets", vk.ErrorOutOfPoolMemory), driver.ErrOutOfPoolMemory)
	assert.ErrorIs(t, check("vkAllocateDescriptorSets", vk.ErrorFragmentedPool), driver.ErrOutOfPoolMemory)
	assert.NotErrorIs(t, check("vkAllocateDescriptorSets", vk.ErrorOutOfDeviceMemory), driver.ErrOutOfPoolMemory)
	assert.NotErrorIs(t, check("vkAllocateDescriptorSets", vk.ErrorDeviceLost), driver.ErrOutOfPoolMemory)
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'g', 'p', 'u', 0, 0}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'o', 'k'}))
}

func TestSliceUint32(t *testing.T) {
	words := sliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0], "SPIR-V magic")
	assert.Nil(t, sliceUint32(nil))
}

func TestRateDevice(t *testing.T) {
	discrete := vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeDiscreteGpu}
	integrated := vk.PhysicalDeviceProperties{DeviceType: vk.PhysicalDeviceTypeIntegratedGpu}
	assert.Greater(t, rateDevice(discrete, true), rateDevice(integrated, true))
	assert.Equal(t, -1, rateDevice(discrete, false))
}
