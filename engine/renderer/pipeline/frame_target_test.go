package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
)

var albedo = AttachmentSpec{
	Name:   "gbuffer.albedo",
	Format: driver.FORMAT_RGBA8_UNORM,
	Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT,
	Load:   driver.LOAD_OP_CLEAR,
	Store:  driver.STORE_OP_DONT_CARE,
}

func newTarget(t *testing.T) (*headless.Device, *FrameTarget) {
	t.Helper()
	d := headless.NewDevice()
	sc, err := headless.NewSwapchain(d, 1, driver.Extent{Width: 8, Height: 8}, driver.FORMAT_BGRA8_SRGB, driver.FORMAT_D32_SFLOAT)
	require.NoError(t, err)
	return d, newFrameTarget(0, d, sc)
}

func TestFrameTargetDefaults(t *testing.T) {
	_, ft := newTarget(t)
	present, ok := ft.Attachment(ATTACHMENT_PRESENT)
	require.True(t, ok)
	assert.Equal(t, driver.FORMAT_BGRA8_SRGB, present.Format)
	depth, ok := ft.Attachment(ATTACHMENT_DEPTH)
	require.True(t, ok)
	assert.Equal(t, driver.FORMAT_D32_SFLOAT, depth.Format)

	require.NoError(t, ft.beginSubpass("plain"))
	ft.endSubpass()
	info, ok := ft.Subpass("plain")
	require.True(t, ok)
	assert.Equal(t, SubpassInfo{Index: 0, ColorCount: 1, HasDepth: true}, info)
}

func TestFrameTargetCompile(t *testing.T) {
	d, ft := newTarget(t)

	require.NoError(t, ft.beginSubpass("geometry"))
	require.NoError(t, ft.DeclareAttachment(albedo))
	require.NoError(t, ft.UseColor(albedo.Name))
	require.NoError(t, ft.UseDepth(ATTACHMENT_DEPTH))
	ft.endSubpass()

	require.NoError(t, ft.beginSubpass("lighting"))
	// redeclaring the same spec is allowed
	require.NoError(t, ft.DeclareAttachment(albedo))
	require.NoError(t, ft.UseInput(albedo.Name))
	require.NoError(t, ft.UseColor(ATTACHMENT_PRESENT))
	ft.endSubpass()

	require.NoError(t, ft.Compile())
	assert.True(t, ft.IsCompiled())

	desc := ft.RenderPass().Desc()
	require.Len(t, desc.Attachments, 3)
	assert.True(t, desc.Attachments[0].Present)
	assert.True(t, desc.Attachments[2].Input)
	assert.Equal(t, []int{2}, desc.Subpasses[0].Color)
	assert.Equal(t, 1, desc.Subpasses[0].Depth)
	assert.Equal(t, []int{2}, desc.Subpasses[1].Input)
	assert.Equal(t, -1, desc.Subpasses[1].Depth)

	a, _ := ft.Attachment(albedo.Name)
	assert.Contains(t, a.ResourceName, "gbuffer.albedo_0_")
	// depth, albedo
	assert.Equal(t, 2, d.LiveOf("image"))

	ft.Destroy()
	assert.Equal(t, 1, d.Live())
}

func TestFrameTargetCompileOnce(t *testing.T) {
	d, ft := newTarget(t)
	require.NoError(t, ft.beginSubpass("only"))
	ft.endSubpass()
	require.NoError(t, ft.Compile())
	live := d.Live()

	assert.ErrorIs(t, ft.Compile(), ErrInvariantViolation)
	assert.Equal(t, live, d.Live())
	assert.ErrorIs(t, ft.DeclareAttachment(albedo), ErrInvariantViolation)
	assert.ErrorIs(t, ft.beginSubpass("late"), ErrInvariantViolation)
	ft.Destroy()
}

func TestFrameTargetCompileFailureLeavesNothing(t *testing.T) {
	d, ft := newTarget(t)
	require.NoError(t, ft.beginSubpass("only"))
	ft.endSubpass()
	d.FailRenderPass = headless.ErrInjected
	assert.ErrorIs(t, ft.Compile(), headless.ErrInjected)
	assert.False(t, ft.IsCompiled())
	assert.Equal(t, 1, d.Live())
}

func TestFrameTargetRejectsMisuse(t *testing.T) {
	_, ft := newTarget(t)

	assert.ErrorIs(t, ft.UseColor(ATTACHMENT_PRESENT), ErrInvariantViolation)

	require.NoError(t, ft.beginSubpass("first"))
	assert.Error(t, ft.UseColor("missing"))
	assert.Error(t, ft.UseColor(ATTACHMENT_DEPTH))
	assert.Error(t, ft.UseDepth(ATTACHMENT_PRESENT))
	require.NoError(t, ft.DeclareAttachment(albedo))
	// nobody wrote it yet
	assert.Error(t, ft.UseInput(albedo.Name))
	changed := albedo
	changed.Format = driver.FORMAT_RGBA16_SFLOAT
	assert.Error(t, ft.DeclareAttachment(changed))
	assert.ErrorIs(t, ft.beginSubpass("nested"), ErrInvariantViolation)
	assert.ErrorIs(t, ft.Compile(), ErrInvariantViolation)
}

func TestFrameTargetClearValues(t *testing.T) {
	_, ft := newTarget(t)
	require.NoError(t, ft.beginSubpass("geometry"))
	spec := albedo
	spec.Clear = driver.ClearColor(0.5, 0, 0, 1)
	require.NoError(t, ft.DeclareAttachment(spec))
	ft.endSubpass()

	clears := ft.ClearValues([]driver.ClearValue{driver.ClearColor(0.1, 0.2, 0.3, 1)})
	require.Len(t, clears, 3)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, clears[0].Color)
	assert.Equal(t, float32(1), clears[1].Depth)
	assert.Equal(t, [4]float32{0.5, 0, 0, 1}, clears[2].Color)
}
