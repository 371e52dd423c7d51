package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	context *VulkanContext
	name    string
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

const MAX_PUSH_CONSTANT_SIZE = 128

var colorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)

// blendAttachments returns one state per color attachment of the subpass.
func blendAttachments(count int, alphaBlend bool) []vk.PipelineColorBlendAttachmentState {
	out := make([]vk.PipelineColorBlendAttachmentState, count)
	for i := range out {
		state := vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: colorWriteAll,
		}
		if alphaBlend {
			state.BlendEnable = vk.True
			state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			state.ColorBlendOp = vk.BlendOpAdd
			state.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
			state.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			state.AlphaBlendOp = vk.BlendOpAdd
		}
		out[i] = state
	}
	return out
}

// vertexInput is empty for pipelines that generate their vertices, such
// as fullscreen triangles.
func vertexInput(stride uint32, attributes []driver.VertexAttribute) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	if stride == 0 {
		return nil, nil
	}
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attrs := make([]vk.VertexInputAttributeDescription, len(attributes))
	for i, a := range attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	return bindings, attrs
}

func depthState(test, write bool) vk.PipelineDepthStencilStateCreateInfo {
	state := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if test {
		state.DepthTestEnable = vk.True
		state.DepthCompareOp = vk.CompareOpLess
		state.DepthBoundsTestEnable = vk.False
	}
	if write {
		state.DepthWriteEnable = vk.True
	}
	return state
}

func (d *Device) NewPipeline(desc *driver.PipelineDesc) (driver.Pipeline, error) {
	renderpass, ok := desc.RenderPass.(*VulkanRenderpass)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: render pass %T was not created by this device", desc.Name, desc.RenderPass)
	}
	if desc.PushConstantSize > MAX_PUSH_CONSTANT_SIZE {
		return nil, fmt.Errorf("pipeline %s: push constant size %d exceeds %d", desc.Name, desc.PushConstantSize, MAX_PUSH_CONSTANT_SIZE)
	}
	var stages []vk.PipelineShaderStageCreateInfo
	for _, m := range []driver.ShaderModule{desc.Vertex, desc.Fragment} {
		vm, ok := m.(*VulkanShaderModule)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: shader module %T was not created by this device", desc.Name, m)
		}
		stages = append(stages, vm.stageInfo())
	}

	context := d.context
	outPipeline := &VulkanPipeline{context: context, name: desc.Name}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        desc.Viewport.X,
			Y:        desc.Viewport.Y,
			Width:    desc.Viewport.Width,
			Height:   desc.Viewport.Height,
			MinDepth: desc.Viewport.MinDepth,
			MaxDepth: desc.Viewport.MaxDepth,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: desc.Scissor.X, Y: desc.Scissor.Y},
			Extent: vk.Extent2D{Width: desc.Scissor.Width, Height: desc.Scissor.Height},
		}},
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toVkCullMode(desc.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := depthState(desc.DepthTest, desc.DepthWrite)

	blend := blendAttachments(desc.ColorAttachments, desc.AlphaBlend)
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blend)),
		PAttachments:    blend,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindings, attributes := vertexInput(desc.VertexStride, desc.Attributes)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		vl, ok := l.(*VulkanDescriptorSetLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: set layout %T was not created by this device", desc.Name, l)
		}
		setLayouts[i] = vl.Handle
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if desc.PushConstantSize > 0 {
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: pushConstantStages,
			Offset:     0,
			Size:       desc.PushConstantSize,
		}}
	}

	if err := lockPool.SafeCall(PipelineManagement, func() error {
		var pPipelineLayout vk.PipelineLayout
		if err := check("vkCreatePipelineLayout", vk.CreatePipelineLayout(context.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout)); err != nil {
			return err
		}
		outPipeline.PipelineLayout = pPipelineLayout
		return nil
	}); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             uint32(desc.Subpass),
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return check("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines))
	}); err != nil {
		outPipeline.Destroy()
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline %s created for subpass %d.", desc.Name, desc.Subpass)
	return outPipeline, nil
}

var pushConstantStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

func (pipeline *VulkanPipeline) Name() string { return pipeline.name }

func (pipeline *VulkanPipeline) Destroy() {
	_ = lockPool.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(pipeline.context.LogicalDevice, pipeline.Handle, pipeline.context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(pipeline.context.LogicalDevice, pipeline.PipelineLayout, pipeline.context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}
