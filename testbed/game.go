package testbed

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

// RESPAWN_EVERY is how many updates the spinner entity lives before it is
// destroyed and created again, exercising deferred resource release.
const RESPAWN_EVERY = 4

const (
	// per update
	SPINNER_STEP  float32 = 0.25
	SPINNER_RISE  float32 = 0.1
	CAMERA_NOD    float32 = 0.002
	NOD_DIRECTION         = 60
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	registry    *scene.Registry
	WorldCamera *components.Camera

	width  uint32
	height uint32

	cube    *components.Mesh
	meshes  []scene.Entity
	spinner scene.Entity
	hud     scene.Entity

	updates int
}

func NewTestGame(app *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: app,
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize builds a camera, three parented cubes, two point lights and
// a HUD label.
func (g *TestGame) Initialize(registry *scene.Registry, device driver.Device, extent driver.Extent) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.state()
	state.registry = registry
	state.width, state.height = extent.Width, extent.Height

	verts, indices := GenerateCube(1, 1, 1, 1, 1)
	cube, err := UploadMesh(device, "test_cube", verts, indices)
	if err != nil {
		return err
	}
	state.cube = cube

	cameraEntity := registry.Create()
	camera := components.NewCamera()
	camera.Primary = true
	camera.Aspect = float32(extent.Width) / float32(extent.Height)
	camera.SetPosition(math.NewVec3(10.5, 5.0, 9.5))
	camera.SetEulerRotation(math.NewVec3(math.DegToRad(-20), math.DegToRad(45), 0))
	if state.WorldCamera, err = scene.Emplace(registry, cameraEntity, *camera); err != nil {
		return err
	}

	// Each cube is parented to the previous one.
	var parent *math.Transform
	for i, c := range []struct {
		size     float32
		position math.Vec3
	}{
		{10, math.NewVec3Zero()},
		{5, math.NewVec3(10, 0, 1)},
		{2, math.NewVec3(5, 0, 1)},
	} {
		e := registry.Create()
		tr := math.TransformFromPositionRotationScale(c.position, math.NewQuatIdentity(), math.NewVec3(c.size, c.size, c.size))
		tr.Parent = parent
		stored, err := scene.Emplace(registry, e, *tr)
		if err != nil {
			return err
		}
		parent = stored
		material := components.DefaultMaterial()
		material.Albedo = math.NewVec4(1, float32(i)*0.3, 0.2, 1)
		if _, err := scene.Emplace(registry, e, components.MeshRenderer{Mesh: cube, Material: material}); err != nil {
			return err
		}
		state.meshes = append(state.meshes, e)
	}

	for _, l := range []struct {
		position math.Vec3
		colour   math.Vec3
	}{
		{math.NewVec3(0, 10, 0), math.NewVec3(1, 0.9, 0.8)},
		{math.NewVec3(-8, 3, 6), math.NewVec3(0.2, 0.4, 1)},
	} {
		e := registry.Create()
		if _, err := scene.Emplace(registry, e, *math.TransformFromPosition(l.position)); err != nil {
			return err
		}
		if _, err := scene.Emplace(registry, e, components.PointLight{Colour: l.colour, Intensity: 4, Radius: 25}); err != nil {
			return err
		}
	}

	state.hud = registry.Create()
	if _, err := scene.Emplace(registry, state.hud, components.Label{
		Text:     "prism",
		Position: math.NewVec2(20, float32(extent.Height)-75),
		Colour:   math.NewVec4One(),
	}); err != nil {
		return err
	}

	return g.spawnSpinner()
}

func (g *TestGame) spawnSpinner() error {
	state := g.state()
	e := state.registry.Create()
	if _, err := scene.Emplace(state.registry, e, *math.TransformFromPosition(math.NewVec3(-4, 2, 0))); err != nil {
		return err
	}
	if _, err := scene.Emplace(state.registry, e, components.MeshRenderer{Mesh: state.cube, Material: components.DefaultMaterial()}); err != nil {
		return err
	}
	state.spinner = e
	return nil
}

func (g *TestGame) Update(deltaTime float64, metrics *core.Metrics) error {
	state := g.state()
	state.updates++

	// Perform a small rotation on every cube; children inherit it.
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime), false)
	for _, e := range state.meshes {
		if tr, ok := scene.Get[math.Transform](state.registry, e); ok {
			tr.Rotate(rotation)
		}
	}
	state.WorldCamera.Yaw(float32(0.1 * deltaTime))
	// Nod up and down, flipping every NOD_DIRECTION updates.
	nod := CAMERA_NOD
	if (state.updates/NOD_DIRECTION)%2 == 1 {
		nod = -nod
	}
	state.WorldCamera.Pitch(nod)

	// The spinner turns and rises until it is respawned.
	if tr, ok := scene.Get[math.Transform](state.registry, state.spinner); ok {
		tr.SetRotation(math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(state.updates)*SPINNER_STEP, false))
		tr.Translate(math.NewVec3(0, SPINNER_RISE, 0))
	}

	if state.updates%RESPAWN_EVERY == 0 {
		if err := state.registry.Destroy(state.spinner); err != nil {
			return err
		}
		if err := g.spawnSpinner(); err != nil {
			return err
		}
	}

	if label, ok := scene.Get[components.Label](state.registry, state.hud); ok {
		pos := state.WorldCamera.Position
		rot := state.WorldCamera.EulerRotation
		label.Text = fmt.Sprintf(
			"FPS: %5.1f(%4.1fms) Pos=[%7.3f %7.3f %7.3f] Rot=[%7.3f, %7.3f, %7.3f]\nEntities: %d",
			metrics.FPS(), metrics.FrameTime(),
			pos.X, pos.Y, pos.Z,
			math.RadToDeg(rot.X), math.RadToDeg(rot.Y), math.RadToDeg(rot.Z),
			state.registry.Alive(),
		)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	destroyMesh(state.cube)
	state.cube = nil
	return nil
}
