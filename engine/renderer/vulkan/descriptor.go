package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"golang.org/x/exp/slices"
)

/**
 * @brief A descriptor set layout and the bindings it was created from.
 */
type VulkanDescriptorSetLayout struct {
	context  *VulkanContext
	Handle   vk.DescriptorSetLayout
	bindings []driver.DescriptorBinding
}

func layoutBindings(bindings []driver.DescriptorBinding) []vk.DescriptorSetLayoutBinding {
	out := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		out[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	return out
}

func (d *Device) NewDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	context := d.context
	vkBindings := layoutBindings(bindings)
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var handle vk.DescriptorSetLayout
	if err := check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanDescriptorSetLayout{context: context, Handle: handle, bindings: slices.Clone(bindings)}, nil
}

func (l *VulkanDescriptorSetLayout) Bindings() []driver.DescriptorBinding { return l.bindings }

func (l *VulkanDescriptorSetLayout) Destroy() {
	if l.Handle != nil {
		vk.DestroyDescriptorSetLayout(l.context.LogicalDevice, l.Handle, l.context.Allocator)
		l.Handle = nil
	}
}

/**
 * @brief The raw device pool. Created with the free bit so single sets
 * can be returned when an entity is released.
 */
type VulkanDescriptorPool struct {
	context *VulkanContext
	Handle  vk.DescriptorPool
}

// poolSizes orders the sizes by descriptor type and drops empty ones.
func poolSizes(sizes map[driver.DescriptorType]uint32) []vk.DescriptorPoolSize {
	types := make([]driver.DescriptorType, 0, len(sizes))
	for t, n := range sizes {
		if n > 0 {
			types = append(types, t)
		}
	}
	slices.Sort(types)
	out := make([]vk.DescriptorPoolSize, len(types))
	for i, t := range types {
		out[i] = vk.DescriptorPoolSize{Type: toVkDescriptorType(t), DescriptorCount: sizes[t]}
	}
	return out
}

func (d *Device) NewDescriptorPool(sizes map[driver.DescriptorType]uint32, maxSets uint32) (driver.DescriptorPool, error) {
	context := d.context
	vkSizes := poolSizes(sizes)
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(vkSizes)),
		PPoolSizes:    vkSizes,
	}
	var handle vk.DescriptorPool
	if err := check("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.LogicalDevice, &createInfo, context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanDescriptorPool{context: context, Handle: handle}, nil
}

func (p *VulkanDescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	vl, ok := layout.(*VulkanDescriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("descriptor pool: layout %T was not created by this device", layout)
	}
	var set vk.DescriptorSet
	err := lockPool.SafeCall(DescriptorManagement, func() error {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     p.Handle,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{vl.Handle},
		}
		return check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(p.context.LogicalDevice, &allocInfo, &set))
	})
	if err != nil {
		return nil, err
	}
	return &VulkanDescriptorSet{context: p.context, Handle: set, layout: vl}, nil
}

func (p *VulkanDescriptorPool) Free(set driver.DescriptorSet) error {
	vs, ok := set.(*VulkanDescriptorSet)
	if !ok {
		return fmt.Errorf("descriptor pool: set %T was not allocated by this device", set)
	}
	return lockPool.SafeCall(DescriptorManagement, func() error {
		err := check("vkFreeDescriptorSets", vk.FreeDescriptorSets(p.context.LogicalDevice, p.Handle, 1, &vs.Handle))
		vs.Handle = nil
		return err
	})
}

func (p *VulkanDescriptorPool) Reset() error {
	return lockPool.SafeCall(DescriptorManagement, func() error {
		return check("vkResetDescriptorPool", vk.ResetDescriptorPool(p.context.LogicalDevice, p.Handle, 0))
	})
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(p.context.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = nil
	}
}

type VulkanDescriptorSet struct {
	context *VulkanContext
	Handle  vk.DescriptorSet
	layout  *VulkanDescriptorSetLayout
}

func (s *VulkanDescriptorSet) Layout() driver.DescriptorSetLayout { return s.layout }

func (s *VulkanDescriptorSet) bindingType(binding uint32) vk.DescriptorType {
	for _, b := range s.layout.bindings {
		if b.Binding == binding {
			return toVkDescriptorType(b.Type)
		}
	}
	return vk.DescriptorTypeUniformBuffer
}

func (s *VulkanDescriptorSet) WriteBuffer(binding uint32, buffer driver.Buffer, offset, size uint64) {
	vb, ok := buffer.(*VulkanBuffer)
	if !ok {
		return
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.Handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  s.bindingType(binding),
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: vb.Handle,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(s.context.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (s *VulkanDescriptorSet) WriteImage(binding uint32, image driver.Image, sampler driver.Sampler) {
	vi, ok := image.(*VulkanImage)
	if !ok {
		return
	}
	info := vk.DescriptorImageInfo{
		ImageView:   vi.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	kind := s.bindingType(binding)
	switch {
	case kind == vk.DescriptorTypeStorageImage:
		info.ImageLayout = vk.ImageLayoutGeneral
	case vi.format.IsDepth():
		info.ImageLayout = vk.ImageLayoutDepthStencilReadOnlyOptimal
	}
	if vs, ok := sampler.(*VulkanSampler); ok {
		info.Sampler = vs.Handle
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.Handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	}
	vk.UpdateDescriptorSets(s.context.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
