package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/scene"
)

const forwardTOML = `
frames_in_flight = 2

[swapchain]
image_count = 3
width = 640
height = 480

[[stages]]
kind = "geometry"

[[stages]]
kind = "overlay"
`

const deferredTOML = `
frames_in_flight = 2

[swapchain]
image_count = 3
width = 640
height = 480

[[stages]]
kind = "geometry"
deferred = true

[[stages]]
kind = "lighting"

[[stages]]
kind = "overlay"
`

func parse(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(data))
	require.NoError(t, err)
	return cfg
}

func newRenderer(t *testing.T, cfg *config.Config) (*Renderer, *HeadlessBackend) {
	t.Helper()
	b, err := NewBackend(Headless, "test", false, cfg)
	require.NoError(t, err)
	hb, ok := b.(*HeadlessBackend)
	require.True(t, ok)
	r := New(b, scene.NewRegistry())
	require.NoError(t, r.Build(cfg))
	return r, hb
}

func TestDrawFrameCyclesSlots(t *testing.T) {
	r, hb := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()

	require.True(t, r.Pipeline().IsReady())
	for i := 0; i < 4; i++ {
		require.NoError(t, r.DrawFrame(0.016))
		last := hb.LastFrame()
		require.NotNil(t, last)
		assert.Equal(t, 1, last.Count(headless.OP_BEGIN_RENDER_PASS))
		assert.Equal(t, 1, last.Count(headless.OP_NEXT_SUBPASS))
		assert.Equal(t, 1, last.Count(headless.OP_END_RENDER_PASS))
	}
	assert.Equal(t, 0, hb.currentFrame, "4 frames over 2 slots wrap back")
	assert.Equal(t, 1, hb.imageIndex, "4 frames over 3 images")
}

func TestRebuildChangesStages(t *testing.T) {
	r, hb := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()
	first := r.Pipeline()

	require.NoError(t, r.Rebuild(parse(t, deferredTOML)))
	assert.NotSame(t, first, r.Pipeline())
	assert.Len(t, r.Pipeline().Stages(), 3)

	require.NoError(t, r.DrawFrame(0.016))
	assert.Equal(t, 2, hb.LastFrame().Count(headless.OP_NEXT_SUBPASS))
}

func TestRebuildRejectsFixedSettings(t *testing.T) {
	r, _ := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()
	current := r.Pipeline()

	cfg := parse(t, forwardTOML)
	cfg.FramesInFlight = 3
	err := r.Rebuild(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Same(t, current, r.Pipeline())
}

func TestRebuildRestoresPreviousOnFailure(t *testing.T) {
	r, _ := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()

	broken := parse(t, deferredTOML)
	broken.Descriptors.MaxSets = 1
	require.Error(t, r.Rebuild(broken))

	require.NotNil(t, r.Pipeline())
	assert.True(t, r.Pipeline().IsReady())
	assert.Len(t, r.Pipeline().Stages(), 2)
	assert.NoError(t, r.DrawFrame(0.016))
}

func TestRebuildWithNewExtentResizes(t *testing.T) {
	r, hb := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()

	cfg := parse(t, forwardTOML)
	cfg.Swapchain.Width, cfg.Swapchain.Height = 800, 600
	require.NoError(t, r.Rebuild(cfg))
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, hb.Swapchain().Extent())
	for _, target := range r.Pipeline().Targets() {
		assert.Equal(t, driver.Extent{Width: 800, Height: 600}, target.Extent())
	}
}

func TestOnResizeRebuildsTargets(t *testing.T) {
	r, hb := newRenderer(t, parse(t, forwardTOML))
	defer r.Shutdown()

	require.NoError(t, r.DrawFrame(0.016))
	require.NoError(t, r.OnResize(1024, 768))
	require.True(t, r.Pipeline().IsReady())
	require.NoError(t, r.DrawFrame(0.016))
	begin := hb.LastFrame().Filter(headless.OP_BEGIN_RENDER_PASS)
	require.Len(t, begin, 1)
	assert.Equal(t, uint32(1024), begin[0].Area.Width)
}

func TestShutdownReleasesDevice(t *testing.T) {
	r, hb := newRenderer(t, parse(t, deferredTOML))
	require.NoError(t, r.DrawFrame(0.016))
	require.NoError(t, r.Shutdown())
	assert.Zero(t, hb.HeadlessDevice().Live())
}
