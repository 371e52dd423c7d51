package testbed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/stages"
	"github.com/spaghettifunk/prism/engine/scene"
)

func TestGenerateCube(t *testing.T) {
	verts, indices := GenerateCube(2, 4, 6, 1, 1)
	require.Len(t, verts, 24)
	require.Len(t, indices, 36)
	for _, v := range verts {
		assert.InDelta(t, 1, abs(v.Position.X), 1e-6)
		assert.InDelta(t, 2, abs(v.Position.Y), 1e-6)
		assert.InDelta(t, 3, abs(v.Position.Z), 1e-6)
	}
	for _, i := range indices {
		assert.Less(t, i, uint32(24))
	}
	// the front face points at +Z
	assert.Equal(t, math.NewVec3(0, 0, 1), verts[0].Normal)
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestUploadMesh(t *testing.T) {
	d := headless.NewDevice()
	verts, indices := GenerateCube(1, 1, 1, 1, 1)
	m, err := UploadMesh(d, "cube", verts, indices)
	require.NoError(t, err)
	assert.Equal(t, uint32(24), m.VertexCount)
	assert.Equal(t, uint32(36), m.IndexCount)
	assert.Equal(t, uint64(24*stages.VERTEX3D_STRIDE), m.VertexBuffer.Size())
	assert.Equal(t, verts[1].Bytes(), m.VertexBuffer.(*headless.Buffer).Bytes()[48:96])

	destroyMesh(m)
	assert.Zero(t, d.Live())
}

func TestUpdateMovesSpinnerAndCamera(t *testing.T) {
	game := NewTestGame(&engine.ApplicationConfig{})
	registry := scene.NewRegistry()
	d := headless.NewDevice()
	require.NoError(t, game.Initialize(registry, d, driver.Extent{Width: 800, Height: 600}))
	defer game.Shutdown()
	state := game.state()
	assert.InDelta(t, math.DegToRad(-20), state.WorldCamera.EulerRotation.X, 1e-6)

	metrics := core.NewMetrics()
	for i := 0; i < RESPAWN_EVERY-1; i++ {
		require.NoError(t, game.Update(0, metrics))
	}
	tr, ok := scene.Get[math.Transform](registry, state.spinner)
	require.True(t, ok)
	assert.InDelta(t, 2+3*SPINNER_RISE, tr.Position.Y, 1e-5)
	assert.Equal(t, math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), 3*SPINNER_STEP, false), tr.Rotation)
	assert.True(t, tr.IsDirty)
	assert.InDelta(t, math.DegToRad(-20)+3*CAMERA_NOD, state.WorldCamera.EulerRotation.X, 1e-5)

	// the respawned spinner starts over
	require.NoError(t, game.Update(0, metrics))
	tr, ok = scene.Get[math.Transform](registry, state.spinner)
	require.True(t, ok)
	assert.InDelta(t, 2, tr.Position.Y, 1e-6)
}

func run(t *testing.T, app *engine.ApplicationConfig) (*engine.Engine, *TestGame) {
	t.Helper()
	game := NewTestGame(app)
	e, err := engine.New(game.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	return e, game
}

func TestEngineDrawsDemoScene(t *testing.T) {
	e, game := run(t, &engine.ApplicationConfig{
		Name:       "test",
		ConfigPath: filepath.Join("..", "configs", "pipeline.toml"),
		Frames:     6,
		LogLevel:   "error",
	})
	p := e.Renderer().Pipeline()
	require.True(t, p.IsReady())
	assert.Len(t, p.Stages(), 3)
	assert.Equal(t, uint64(6), e.Metrics().Frames())

	// three cubes and the spinner
	assert.Equal(t, 4, scene.Count[components.MeshRenderer](e.Registry()))
	// the spinner replaced before draw 4 is released by draw 5
	assert.Zero(t, p.PendingReleases())

	hb := e.Renderer().Backend().(*renderer.HeadlessBackend)
	last := hb.LastFrame()
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Count(headless.OP_NEXT_SUBPASS))
	assert.Equal(t, 4, last.Count(headless.OP_DRAW_INDEXED))

	label, ok := scene.Get[components.Label](e.Registry(), game.state().hud)
	require.True(t, ok)
	assert.Contains(t, label.Text, "Entities: 8")

	require.NoError(t, e.Shutdown())
	assert.Zero(t, hb.HeadlessDevice().Live())
}

func TestEngineDefaultsWithoutConfig(t *testing.T) {
	e, _ := run(t, &engine.ApplicationConfig{Frames: 2, LogLevel: "error"})
	assert.Len(t, e.Renderer().Pipeline().Stages(), 2)
	require.NoError(t, e.Shutdown())
}

func TestEngineStopsOnCancel(t *testing.T) {
	game := NewTestGame(&engine.ApplicationConfig{LogLevel: "error"})
	e, err := engine.New(game.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, e.Run(ctx))
	require.NoError(t, e.Shutdown())
}

func TestEngineRejectsUnknownBackend(t *testing.T) {
	game := NewTestGame(&engine.ApplicationConfig{Backend: "metal", LogLevel: "error"})
	_, err := engine.New(game.Game)
	assert.Error(t, err)
}
