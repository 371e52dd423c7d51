package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	context *VulkanContext
	Handle  vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
	// pass is the render pass being recorded, for clear value typing.
	pass *VulkanRenderpass
}

var _ driver.CommandBuffer = (*VulkanCommandBuffer)(nil)

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	return NewVulkanCommandBuffer(d.context, d.context.GraphicsCommandPool)
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb := &VulkanCommandBuffer{
		context: context,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := lockPool.SafeCall(CommandBufferManagement, func() error {
		return check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.LogicalDevice, &allocateInfo, handles))
	}); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	cb.Handle = handles[0]
	cb.State = COMMAND_BUFFER_STATE_READY
	return cb, nil
}

func (v *VulkanCommandBuffer) Destroy() {
	if v.Handle == nil {
		return
	}
	_ = lockPool.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(v.context.LogicalDevice, v.context.GraphicsCommandPool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, &beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("command buffer ended inside a render pass")
	}
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := check("vkResetCommandBuffer", vk.ResetCommandBuffer(v.Handle, 0)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass driver.RenderPass, framebuffer driver.Framebuffer, area driver.Rect, clear []driver.ClearValue) {
	vr, ok := pass.(*VulkanRenderpass)
	if !ok {
		return
	}
	vf, ok := framebuffer.(*VulkanFramebuffer)
	if !ok {
		return
	}
	clearValues := toVkClearValues(clear, vr.desc.Attachments)
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: vf.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: area.X, Y: area.Y},
			Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.pass = vr
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) NextSubpass() {
	vk.CmdNextSubpass(v.Handle, vk.SubpassContentsInline)
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.pass = nil
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline driver.Pipeline) {
	if vp, ok := pipeline.(*VulkanPipeline); ok {
		vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, vp.Handle)
	}
}

func (v *VulkanCommandBuffer) BindDescriptorSets(pipeline driver.Pipeline, firstSet uint32, sets []driver.DescriptorSet) {
	vp, ok := pipeline.(*VulkanPipeline)
	if !ok || len(sets) == 0 {
		return
	}
	handles := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		if vs, ok := s.(*VulkanDescriptorSet); ok {
			handles = append(handles, vs.Handle)
		}
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, vp.PipelineLayout, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(pipeline driver.Pipeline, offset uint32, data []byte) {
	vp, ok := pipeline.(*VulkanPipeline)
	if !ok || len(data) == 0 {
		return
	}
	vk.CmdPushConstants(v.Handle, vp.PipelineLayout, pushConstantStages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) SetViewport(viewport driver.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(scissor driver.Rect) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Width, Height: scissor.Height},
	}})
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer driver.Buffer, offset uint64) {
	if vb, ok := buffer.(*VulkanBuffer); ok {
		vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
	}
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer driver.Buffer, offset uint64, indexType driver.IndexType) {
	if vb, ok := buffer.(*VulkanBuffer); ok {
		vk.CmdBindIndexBuffer(v.Handle, vb.Handle, vk.DeviceSize(offset), toVkIndexType(indexType))
	}
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// Submit hands the recorded buffer to the graphics queue. The fence, if
// any, signals on completion.
func (v *VulkanCommandBuffer) Submit(wait []vk.Semaphore, signal []vk.Semaphore, fence *VulkanFence) error {
	return submitBatch(v.context, []*VulkanCommandBuffer{v}, wait, signal, fence)
}

// newSubmitInfo describes one batch. The wait semaphores gate color
// attachment output of every buffer in it.
func newSubmitInfo(buffers []*VulkanCommandBuffer, wait, signal []vk.Semaphore) vk.SubmitInfo {
	handles := make([]vk.CommandBuffer, len(buffers))
	for i, b := range buffers {
		handles[i] = b.Handle
	}
	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   uint32(len(handles)),
		PCommandBuffers:      handles,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}
	if len(wait) > 0 {
		masks := make([]vk.PipelineStageFlags, len(wait))
		for i := range masks {
			masks[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
		}
		info.PWaitDstStageMask = masks
	}
	return info
}

// submitBatch hands buffers to the graphics queue in a single
// vkQueueSubmit, so they start in slice order.
func submitBatch(context *VulkanContext, buffers []*VulkanCommandBuffer, wait, signal []vk.Semaphore, fence *VulkanFence) error {
	info := newSubmitInfo(buffers, wait, signal)
	var handle vk.Fence = vk.NullFence
	if fence != nil {
		handle = fence.Handle
	}
	if err := lockPool.SafeQueueCall(context.GraphicsQueueIndex, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(context.GraphicsQueue, 1, []vk.SubmitInfo{info}, handle))
	}); err != nil {
		core.LogError("%s", err)
		return err
	}
	for _, b := range buffers {
		b.UpdateSubmitted()
	}
	return nil
}
