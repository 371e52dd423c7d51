package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentBatchPutsDependenciesFirst(t *testing.T) {
	upload, overlay, frame := &VulkanCommandBuffer{}, &VulkanCommandBuffer{}, &VulkanCommandBuffer{}
	batch, err := presentBatch([]driver.CommandBuffer{upload, overlay}, frame)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Same(t, upload, batch[0])
	assert.Same(t, overlay, batch[1])
	assert.Same(t, frame, batch[2])

	batch, err = presentBatch(nil, frame)
	require.NoError(t, err)
	assert.Equal(t, []*VulkanCommandBuffer{frame}, batch)
}

func TestPresentBatchRejectsForeignBuffers(t *testing.T) {
	foreign, err := headless.NewDevice().NewCommandBuffer()
	require.NoError(t, err)
	_, err = presentBatch([]driver.CommandBuffer{foreign}, &VulkanCommandBuffer{})
	assert.ErrorContains(t, err, "not created by this device")
}

func TestSubmitInfoCarriesWholeBatch(t *testing.T) {
	batch := []*VulkanCommandBuffer{{}, {}, {}}
	wait := []vk.Semaphore{vk.NullSemaphore, vk.NullSemaphore}
	info := newSubmitInfo(batch, wait, nil)
	assert.Equal(t, uint32(3), info.CommandBufferCount)
	assert.Len(t, info.PCommandBuffers, 3)
	assert.Equal(t, uint32(2), info.WaitSemaphoreCount)
	assert.Equal(t, []vk.PipelineStageFlags{
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
	}, info.PWaitDstStageMask)
	assert.Zero(t, info.SignalSemaphoreCount)

	info = newSubmitInfo(batch[:1], nil, nil)
	assert.Equal(t, uint32(1), info.CommandBufferCount)
	assert.Nil(t, info.PWaitDstStageMask)
}
