package engine

import (
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Game populates the scene the pipeline draws and animates it between
// frames.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

// Initialize receives the registry and the device meshes must be
// uploaded to.
type Initialize func(registry *scene.Registry, device driver.Device, extent driver.Extent) error
type Update func(deltaTime float64, metrics *core.Metrics) error
type Shutdown func() error
