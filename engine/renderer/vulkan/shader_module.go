package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

/**
 * @brief A compiled SPIR-V module for a single stage.
 */
type VulkanShaderModule struct {
	context *VulkanContext
	/** @brief The internal shader module handle. */
	Handle vk.ShaderModule
	stage  driver.ShaderStage
}

func (d *Device) NewShaderModule(stage driver.ShaderStage, code []byte) (driver.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader module: SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	context := d.context
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}
	var handle vk.ShaderModule
	if err := check("vkCreateShaderModule", vk.CreateShaderModule(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanShaderModule{context: context, Handle: handle, stage: stage}, nil
}

func (m *VulkanShaderModule) Stage() driver.ShaderStage { return m.stage }

// stageInfo is the pipeline shader stage entry, always entering at main.
func (m *VulkanShaderModule) stageInfo() vk.PipelineShaderStageCreateInfo {
	var flag vk.ShaderStageFlagBits = vk.ShaderStageVertexBit
	if m.stage == driver.SHADER_STAGE_FRAGMENT {
		flag = vk.ShaderStageFragmentBit
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  flag,
		Module: m.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (m *VulkanShaderModule) Destroy() {
	if m.Handle != nil {
		vk.DestroyShaderModule(m.context.LogicalDevice, m.Handle, m.context.Allocator)
		m.Handle = nil
	}
}
