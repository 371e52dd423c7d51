package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/renderer/stages"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Renderer is the frontend: it turns a configuration into a pipeline on
// the backend and drives one Draw per frame over the scene registry.
type Renderer struct {
	backend  RendererBackend
	registry *scene.Registry
	shaders  *stages.ShaderLibrary
	pipeline *pipeline.Pipeline
	// cfg is the configuration the current pipeline was built from.
	cfg *config.Config
}

// NewBackend creates the backend described by cfg. A vulkan backend that
// cannot be opened falls back to headless.
func NewBackend(t RendererType, appName string, validation bool, cfg *config.Config) (RendererBackend, error) {
	format, depth := cfg.SwapchainFormats()
	extent := driver.Extent{Width: cfg.Swapchain.Width, Height: cfg.Swapchain.Height}
	if t == Vulkan {
		b, err := NewVulkanBackend(appName, validation, cfg.Swapchain.ImageCount, cfg.FramesInFlight, extent, format)
		if err == nil {
			return b, nil
		}
		core.LogWarn("vulkan backend unavailable, falling back to headless: %s", err)
	}
	return NewHeadlessBackend(cfg.Swapchain.ImageCount, cfg.FramesInFlight, extent, format, depth)
}

func New(backend RendererBackend, registry *scene.Registry) *Renderer {
	return &Renderer{backend: backend, registry: registry}
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) Pipeline() *pipeline.Pipeline {
	return r.pipeline
}

func poolSizes(perCategory uint32) pipeline.PoolSizes {
	sizes := pipeline.DefaultPoolSizes()
	for t := range sizes {
		sizes[t] = perCategory
	}
	return sizes
}

// Build creates the stages cfg lists and the pipeline over them. Any
// pipeline built before is destroyed first.
func (r *Renderer) Build(cfg *config.Config) error {
	r.destroyPipeline()

	r.shaders = stages.NewShaderLibrary(r.backend.Device(), cfg.ShaderDir, r.backend.Type() == Headless)
	sctx := pipeline.StageContext{
		Device:         r.backend.Device(),
		Swapchain:      r.backend.Swapchain(),
		FramesInFlight: cfg.FramesInFlight,
		Shaders:        r.shaders,
	}
	list, err := stages.FromConfig(sctx, cfg)
	if err != nil {
		return err
	}
	p, err := pipeline.Create(
		pipeline.Context{Device: sctx.Device, Swapchain: sctx.Swapchain, FramesInFlight: cfg.FramesInFlight},
		list,
		pipeline.WithName("prism"),
		pipeline.WithRegistry(r.registry),
		pipeline.WithPoolSizes(poolSizes(cfg.Descriptors.PerCategory)),
		pipeline.WithMaxSets(cfg.Descriptors.MaxSets),
	)
	if err != nil {
		if p != nil {
			_ = p.Destroy()
		} else {
			for _, s := range list {
				_ = s.Destroy()
			}
		}
		return err
	}
	r.pipeline = p
	r.cfg = cfg
	return nil
}

// Rebuild swaps the pipeline for one built from cfg. Stage lists and
// descriptor capacity can change freely; a new extent resizes the swap
// chain. Frames in flight, image count and formats are fixed for the
// lifetime of the backend. When cfg fails to build, the previous
// configuration is built again.
func (r *Renderer) Rebuild(cfg *config.Config) error {
	prev := r.cfg
	if prev != nil {
		if cfg.FramesInFlight != prev.FramesInFlight ||
			cfg.Swapchain.ImageCount != prev.Swapchain.ImageCount ||
			cfg.Swapchain.Format != prev.Swapchain.Format ||
			cfg.Swapchain.DepthFormat != prev.Swapchain.DepthFormat {
			return fmt.Errorf("%w: frames_in_flight, image count and formats need a restart", config.ErrInvalidConfig)
		}
		if cfg.Swapchain.Width != prev.Swapchain.Width || cfg.Swapchain.Height != prev.Swapchain.Height {
			r.destroyPipeline()
			if err := r.backend.Resized(cfg.Swapchain.Width, cfg.Swapchain.Height); err != nil {
				return err
			}
		}
	}
	err := r.Build(cfg)
	if err == nil || prev == nil {
		return err
	}
	core.LogError("rebuild failed, restoring the previous pipeline: %s", err)
	if restoreErr := r.Build(prev); restoreErr != nil {
		return errors.Join(err, restoreErr)
	}
	return err
}

// DrawFrame records and submits one frame. A pipeline built for an older
// swap chain extent is resized and the frame skipped.
func (r *Renderer) DrawFrame(deltaTime float64) error {
	if r.pipeline == nil {
		return fmt.Errorf("%w: no pipeline built", pipeline.ErrNotReady)
	}
	rec, frame, err := r.backend.BeginFrame(deltaTime)
	if err != nil {
		return err
	}
	if err := r.pipeline.Draw(rec, frame, r.registry); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			core.LogInfo("%s, resizing", err)
			return r.pipeline.Resize(r.backend.Swapchain())
		}
		return err
	}
	return r.backend.EndFrame(r.pipeline, frame)
}

// OnResize recreates the swap chain images and rebuilds the pipeline
// against them.
func (r *Renderer) OnResize(width, height uint32) error {
	if err := r.backend.Resized(width, height); err != nil {
		return err
	}
	if r.cfg != nil {
		r.cfg.Swapchain.Width, r.cfg.Swapchain.Height = width, height
	}
	if r.pipeline == nil {
		return nil
	}
	return r.pipeline.Resize(r.backend.Swapchain())
}

func (r *Renderer) destroyPipeline() {
	if r.pipeline != nil {
		if err := r.pipeline.Destroy(); err != nil {
			core.LogError("pipeline destroy: %s", err)
		}
		r.pipeline = nil
	}
	if r.shaders != nil {
		r.shaders.Destroy()
		r.shaders = nil
	}
}

func (r *Renderer) Shutdown() error {
	r.destroyPipeline()
	return r.backend.Shutdown()
}
