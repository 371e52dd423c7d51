package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// VulkanBuffer is host visible and coherent; writes go straight through
// a mapping.
type VulkanBuffer struct {
	context *VulkanContext

	Name   string
	Handle vk.Buffer
	Memory vk.DeviceMemory
	size   uint64
}

func (d *Device) NewBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %s: size must be positive", desc.Name)
	}
	context := d.context
	buf := &VulkanBuffer{context: context, Name: desc.Name, size: desc.Size}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       toVkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := check("vkCreateBuffer", vk.CreateBuffer(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, fmt.Errorf("buffer %s: %w", desc.Name, err)
	}
	buf.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, props)
	if memoryType < 0 {
		buf.Destroy()
		return nil, fmt.Errorf("buffer %s: no host visible memory type", desc.Name)
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := check("vkAllocateMemory", vk.AllocateMemory(context.LogicalDevice, &allocInfo, context.Allocator, &memory)); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("buffer %s: %w", desc.Name, err)
	}
	buf.Memory = memory
	if err := check("vkBindBufferMemory", vk.BindBufferMemory(context.LogicalDevice, handle, memory, 0)); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

func (b *VulkanBuffer) Size() uint64 { return b.size }

func (b *VulkanBuffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("buffer %s: write of %d bytes at %d overflows %d", b.Name, len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	return lockPool.SafeCall(MemoryManagement, func() error {
		var ptr unsafe.Pointer
		if err := check("vkMapMemory", vk.MapMemory(b.context.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)); err != nil {
			return err
		}
		vk.Memcopy(ptr, data)
		vk.UnmapMemory(b.context.LogicalDevice, b.Memory)
		return nil
	})
}

func (b *VulkanBuffer) Destroy() {
	device := b.context.LogicalDevice
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}
