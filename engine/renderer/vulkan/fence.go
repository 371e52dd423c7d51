package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type VulkanFence struct {
	context    *VulkanContext
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{context: context, IsSignaled: createSignaled}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := check("vkCreateFence", vk.CreateFence(context.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence)); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != nil {
		vk.DestroyFence(vf.context.LogicalDevice, vf.Handle, vf.context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals or timeoutNs elapses.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(vf.context.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("fence wait timed out after %dns", timeoutNs)
	default:
		return check("vkWaitForFences", result)
	}
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if err := check("vkResetFences", vk.ResetFences(vf.context.LogicalDevice, 1, []vk.Fence{vf.Handle})); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

type VulkanSemaphore struct {
	context *VulkanContext
	Handle  vk.Semaphore
}

func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	context := d.context
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := check("vkCreateSemaphore", vk.CreateSemaphore(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanSemaphore{context: context, Handle: handle}, nil
}

func (s *VulkanSemaphore) Destroy() {
	if s.Handle != nil {
		vk.DestroySemaphore(s.context.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = nil
	}
}
