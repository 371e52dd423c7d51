package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func onePass(t *testing.T, d *Device) driver.RenderPass {
	pass, err := d.NewRenderPass(&driver.RenderPassDesc{
		Attachments: []driver.AttachmentDesc{
			{Format: driver.FORMAT_BGRA8_UNORM, Present: true},
			{Format: driver.FORMAT_D32_SFLOAT},
		},
		Subpasses: []driver.SubpassDesc{
			{Color: []int{0}, Depth: 1},
			{Color: []int{0}, Depth: -1},
		},
	})
	require.NoError(t, err)
	return pass
}

func TestDeviceTracksLiveObjects(t *testing.T) {
	d := NewDevice()
	img, err := d.NewImage(driver.ImageDesc{Name: "a", Format: driver.FORMAT_RGBA8_UNORM, Extent: driver.Extent{Width: 4, Height: 4}})
	require.NoError(t, err)
	pass := onePass(t, d)
	assert.Equal(t, 2, d.Live())
	assert.Equal(t, 1, d.LiveOf("render_pass"))

	img.Destroy()
	img.Destroy()
	pass.Destroy()
	assert.Zero(t, d.Live())
}

func TestRenderPassValidation(t *testing.T) {
	d := NewDevice()
	_, err := d.NewRenderPass(&driver.RenderPassDesc{
		Attachments: []driver.AttachmentDesc{{Format: driver.FORMAT_D32_SFLOAT}},
		Subpasses:   []driver.SubpassDesc{{Color: []int{0}, Depth: -1}},
	})
	assert.Error(t, err)

	_, err = d.NewRenderPass(&driver.RenderPassDesc{})
	assert.Error(t, err)

	d.FailRenderPass = ErrInjected
	_, err = d.NewRenderPass(&driver.RenderPassDesc{})
	assert.ErrorIs(t, err, ErrInjected)
}

func TestFramebufferFormatMismatch(t *testing.T) {
	d := NewDevice()
	pass := onePass(t, d)
	color, _ := d.NewImage(driver.ImageDesc{Format: driver.FORMAT_BGRA8_UNORM, Extent: driver.Extent{Width: 1, Height: 1}})
	wrong, _ := d.NewImage(driver.ImageDesc{Format: driver.FORMAT_RGBA8_UNORM, Extent: driver.Extent{Width: 1, Height: 1}})

	_, err := d.NewFramebuffer(pass, []driver.Image{color, wrong}, driver.Extent{Width: 1, Height: 1})
	assert.Error(t, err)
	_, err = d.NewFramebuffer(pass, []driver.Image{color}, driver.Extent{Width: 1, Height: 1})
	assert.Error(t, err)
}

func TestDescriptorPoolMaxSets(t *testing.T) {
	d := NewDevice()
	layout, err := d.NewDescriptorSetLayout([]driver.DescriptorBinding{{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: 1}})
	require.NoError(t, err)
	pool, err := d.NewDescriptorPool(map[driver.DescriptorType]uint32{driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER: 2}, 2)
	require.NoError(t, err)

	a, err := pool.Allocate(layout)
	require.NoError(t, err)
	_, err = pool.Allocate(layout)
	require.NoError(t, err)
	_, err = pool.Allocate(layout)
	assert.ErrorIs(t, err, ErrOutOfPoolMemory)

	require.NoError(t, pool.Free(a))
	assert.Error(t, pool.Free(a))
	_, err = pool.Allocate(layout)
	assert.NoError(t, err)
}

func TestBufferWriteBounds(t *testing.T) {
	d := NewDevice()
	b, err := d.NewBuffer(driver.BufferDesc{Name: "ubo", Size: 8})
	require.NoError(t, err)
	require.NoError(t, b.Write(4, []byte{1, 2, 3, 4}))
	assert.Error(t, b.Write(6, []byte{1, 2, 3}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, b.(*Buffer).Bytes())
	assert.Equal(t, 1, b.(*Buffer).Writes)
}

func TestImageWrite(t *testing.T) {
	d := NewDevice()
	img, err := d.NewImage(driver.ImageDesc{Name: "atlas", Format: driver.FORMAT_RGBA8_UNORM, Extent: driver.Extent{Width: 2, Height: 1}, Usage: driver.IMAGE_USAGE_SAMPLED})
	require.NoError(t, err)
	assert.Error(t, img.Write([]byte{1, 2, 3}))
	require.NoError(t, img.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t, 1, img.(*Image).Writes)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, img.(*Image).Texels())

	target, err := d.NewImage(driver.ImageDesc{Name: "color", Format: driver.FORMAT_RGBA8_UNORM, Extent: driver.Extent{Width: 2, Height: 1}, Usage: driver.IMAGE_USAGE_COLOR_ATTACHMENT})
	require.NoError(t, err)
	assert.Error(t, target.Write(make([]byte, 8)))

	img.Destroy()
	assert.Error(t, img.Write(make([]byte, 8)))
}

func TestRecorderViolations(t *testing.T) {
	d := NewDevice()
	pass := onePass(t, d)
	rec := NewRecorder()

	rec.NextSubpass()
	rec.BeginRenderPass(pass, nil, driver.Rect{}, nil)
	rec.NextSubpass()
	rec.Draw(3, 1, 0, 0)
	rec.EndRenderPass()
	assert.Len(t, rec.Violations, 1)

	rec.Reset()
	rec.BeginRenderPass(pass, nil, driver.Rect{}, nil)
	rec.NextSubpass()
	rec.NextSubpass()
	rec.EndRenderPass()
	assert.Equal(t, []string{"next_subpass past the last subpass"}, rec.Violations)
	assert.Equal(t, 2, rec.Count(OP_NEXT_SUBPASS))
}

func TestSwapchainResize(t *testing.T) {
	d := NewDevice()
	sc, err := NewSwapchain(d, 3, driver.Extent{Width: 640, Height: 480}, driver.FORMAT_BGRA8_UNORM, driver.FORMAT_D32_SFLOAT)
	require.NoError(t, err)
	assert.Equal(t, 3, d.LiveOf("swap_image"))

	sc.Resize(2, driver.Extent{Width: 800, Height: 600})
	assert.Equal(t, 2, sc.ImageCount())
	assert.Equal(t, 2, d.LiveOf("swap_image"))
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, sc.Image(1).Extent())

	sc.Destroy()
	assert.Zero(t, d.Live())
}
