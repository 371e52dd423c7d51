package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	registry     *scene.Registry
	renderer     *renderer.Renderer
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64
	// drawn counts frames since the last (re)build.
	drawn   int
	reloads chan *config.Config
}

// New loads the pipeline configuration and opens the backend. Nothing is
// built until Initialize.
func New(g *Game) (*Engine, error) {
	app := g.ApplicationConfig
	cfg := config.Default()
	if app.ConfigPath != "" {
		c, err := config.Load(app.ConfigPath)
		if err != nil {
			core.LogError("%s", err)
			return nil, err
		}
		cfg = c
	}
	level := cfg.LogLevel
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	core.SetLogLevel(level)

	backendType := renderer.Headless
	switch strings.ToLower(app.Backend) {
	case "", "headless":
	case "vulkan":
		backendType = renderer.Vulkan
	default:
		return nil, fmt.Errorf("unknown backend %q", app.Backend)
	}
	backend, err := renderer.NewBackend(backendType, app.Name, app.Validation, cfg)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if hb, ok := backend.(*renderer.HeadlessBackend); ok {
		hb.Dump = app.Dump
	}

	registry := scene.NewRegistry()
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		registry:     registry,
		renderer:     renderer.New(backend, registry),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		reloads:      make(chan *config.Config, 1),
	}, nil
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Registry() *scene.Registry {
	return e.registry
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

// Initialize lets the game populate the scene, then builds the pipeline.
// Renderables created here are bound by the pipeline's replay.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	backend := e.renderer.Backend()
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.registry, backend.Device(), backend.Swapchain().Extent()); err != nil {
			return err
		}
	}
	if err := e.renderer.Build(e.config); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run draws frames until ctx is done or, without Watch, until Frames have
// been drawn. With Watch, configuration changes rebuild the pipeline and
// restart the frame count.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine not initialized")
	}
	e.currentStage = EngineStageRunning
	app := e.gameInstance.ApplicationConfig

	if app.Watch && app.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, app.ConfigPath, func(c *config.Config) {
				select {
				case e.reloads <- c:
				case <-ctx.Done():
				}
			})
			if err != nil {
				core.LogError("config watch stopped: %s", err)
			}
		}()
	}

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64 = 1.0 / 60.0
	idle := time.NewTicker(100 * time.Millisecond)
	defer idle.Stop()

	for {
		if app.Frames > 0 && e.drawn >= app.Frames {
			if !app.Watch {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case c := <-e.reloads:
				e.reload(c)
			case <-idle.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case c := <-e.reloads:
			e.reload(c)
		default:
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.frame(delta); err != nil {
			return err
		}

		frameElapsed := time.Since(frameStart).Seconds()
		e.metrics.Update(frameElapsed)
		e.lastTime = currentTime

		// Pace interactive runs; a fixed frame count runs flat out.
		if app.Frames == 0 {
			if remaining := targetFrameSeconds - frameElapsed; remaining > 0 {
				time.Sleep(time.Duration(remaining * float64(time.Second)))
			}
		}
	}
}

func (e *Engine) frame(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta, e.metrics); err != nil {
			core.LogError("Game update failed, shutting down.")
			return err
		}
	}
	if err := e.renderer.DrawFrame(delta); err != nil {
		core.LogError("Draw frame failed, shutting down.")
		return err
	}
	e.drawn++
	return nil
}

func (e *Engine) reload(c *config.Config) {
	if e.gameInstance.ApplicationConfig.LogLevel == "" {
		core.SetLogLevel(c.LogLevel)
	}
	if err := e.renderer.Rebuild(c); err != nil {
		core.LogError("config reload rejected: %s", err)
		return
	}
	e.config = c
	e.drawn = 0
	core.LogInfo("pipeline rebuilt with %d stages", len(c.Stages))
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	core.LogInfo("%d frames, %.1f fps, %.3f ms average frame time", e.metrics.Frames(), e.metrics.FPS(), e.metrics.FrameTime())
	var errs []error
	// Mesh buffers belong to the game; nothing may still be reading them.
	if err := e.renderer.Backend().Device().WaitIdle(); err != nil {
		errs = append(errs, err)
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.renderer.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}
