package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanRenderpass struct {
	context *VulkanContext
	Handle  vk.RenderPass
	desc    *driver.RenderPassDesc
}

// renderPassLayout is the translated form of a RenderPassDesc, kept free
// of device calls.
type renderPassLayout struct {
	attachments  []vk.AttachmentDescription
	subpasses    []vk.SubpassDescription
	dependencies []vk.SubpassDependency
}

func finalLayout(a driver.AttachmentDesc, presentLayout vk.ImageLayout) vk.ImageLayout {
	switch {
	case a.Present:
		return presentLayout
	case a.Format.IsDepth():
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case a.Input:
		return vk.ImageLayoutShaderReadOnlyOptimal
	default:
		return vk.ImageLayoutColorAttachmentOptimal
	}
}

func initialLayout(a driver.AttachmentDesc, presentLayout vk.ImageLayout) vk.ImageLayout {
	if a.Load != driver.LOAD_OP_LOAD {
		return vk.ImageLayoutUndefined
	}
	return finalLayout(a, presentLayout)
}

func inputLayout(a driver.AttachmentDesc) vk.ImageLayout {
	if a.Format.IsDepth() {
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}

func references(sp driver.SubpassDesc) map[int]bool {
	used := make(map[int]bool, len(sp.Color)+len(sp.Input)+1)
	for _, i := range sp.Color {
		used[i] = true
	}
	for _, i := range sp.Input {
		used[i] = true
	}
	if sp.Depth >= 0 {
		used[sp.Depth] = true
	}
	return used
}

// preserved lists the attachments subpass index leaves untouched while an
// earlier subpass wrote them and a later one still reads them.
func preserved(desc *driver.RenderPassDesc, index int) []uint32 {
	current := references(desc.Subpasses[index])
	var out []uint32
	for a := range desc.Attachments {
		if current[a] {
			continue
		}
		before, after := false, false
		for i, sp := range desc.Subpasses {
			if !references(sp)[a] {
				continue
			}
			if i < index {
				before = true
			} else if i > index {
				after = true
			}
		}
		if before && after {
			out = append(out, uint32(a))
		}
	}
	return out
}

// describeRenderPass translates desc. presentLayout is the layout the
// swap image is left in: PresentSrc for a surface, TransferSrc offscreen.
func describeRenderPass(desc *driver.RenderPassDesc, presentLayout vk.ImageLayout) (*renderPassLayout, error) {
	if len(desc.Subpasses) == 0 {
		return nil, fmt.Errorf("render pass has no subpasses")
	}
	out := &renderPassLayout{}
	for _, a := range desc.Attachments {
		out.attachments = append(out.attachments, vk.AttachmentDescription{
			Format:         toVkFormat(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(a.Load),
			StoreOp:        toVkStoreOp(a.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initialLayout(a, presentLayout),
			FinalLayout:    finalLayout(a, presentLayout),
		})
	}

	checkIndex := func(i int) error {
		if i < 0 || i >= len(desc.Attachments) {
			return fmt.Errorf("attachment index %d out of range [0,%d)", i, len(desc.Attachments))
		}
		return nil
	}

	for index, sp := range desc.Subpasses {
		subpass := vk.SubpassDescription{
			PipelineBindPoint: vk.PipelineBindPointGraphics,
		}
		colorRefs := make([]vk.AttachmentReference, 0, len(sp.Color))
		for _, i := range sp.Color {
			if err := checkIndex(i); err != nil {
				return nil, err
			}
			colorRefs = append(colorRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutColorAttachmentOptimal})
		}
		subpass.ColorAttachmentCount = uint32(len(colorRefs))
		subpass.PColorAttachments = colorRefs

		inputRefs := make([]vk.AttachmentReference, 0, len(sp.Input))
		for _, i := range sp.Input {
			if err := checkIndex(i); err != nil {
				return nil, err
			}
			inputRefs = append(inputRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: inputLayout(desc.Attachments[i])})
		}
		subpass.InputAttachmentCount = uint32(len(inputRefs))
		subpass.PInputAttachments = inputRefs

		if sp.Depth >= 0 {
			if err := checkIndex(sp.Depth); err != nil {
				return nil, err
			}
			subpass.PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(sp.Depth),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}

		keep := preserved(desc, index)
		subpass.PreserveAttachmentCount = uint32(len(keep))
		subpass.PPreserveAttachments = keep
		out.subpasses = append(out.subpasses, subpass)
	}

	// External to the first subpass, then each subpass on its predecessor.
	out.dependencies = append(out.dependencies, vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	})
	for i := 1; i < len(desc.Subpasses); i++ {
		out.dependencies = append(out.dependencies, vk.SubpassDependency{
			SrcSubpass:      uint32(i - 1),
			DstSubpass:      uint32(i),
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit | vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}
	return out, nil
}

func (d *Device) NewRenderPass(desc *driver.RenderPassDesc) (driver.RenderPass, error) {
	layout, err := describeRenderPass(desc, d.presentLayout)
	if err != nil {
		return nil, err
	}
	context := d.context
	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(layout.attachments)),
		PAttachments:    layout.attachments,
		SubpassCount:    uint32(len(layout.subpasses)),
		PSubpasses:      layout.subpasses,
		DependencyCount: uint32(len(layout.dependencies)),
		PDependencies:   layout.dependencies,
	}
	var handle vk.RenderPass
	if err := check("vkCreateRenderPass", vk.CreateRenderPass(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanRenderpass{context: context, Handle: handle, desc: desc}, nil
}

func (vr *VulkanRenderpass) Desc() *driver.RenderPassDesc { return vr.desc }

func (vr *VulkanRenderpass) Destroy() {
	if vr.Handle != nil {
		vk.DestroyRenderPass(vr.context.LogicalDevice, vr.Handle, vr.context.Allocator)
		vr.Handle = nil
	}
}
