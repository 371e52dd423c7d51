// Package stages holds the concrete pipeline stages: opaque geometry
// (forward or into a g-buffer), deferred lighting and the text overlay.
package stages

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
	"github.com/spaghettifunk/prism/engine/scene"
)

const (
	GBUFFER_ALBEDO   = "gbuffer.albedo"
	GBUFFER_NORMAL   = "gbuffer.normal"
	GBUFFER_POSITION = "gbuffer.position"
)

var gbuffer = []pipeline.AttachmentSpec{
	{
		Name:   GBUFFER_ALBEDO,
		Format: driver.FORMAT_RGBA8_UNORM,
		Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT | driver.IMAGE_USAGE_TRANSIENT,
		Load:   driver.LOAD_OP_CLEAR,
		Store:  driver.STORE_OP_DONT_CARE,
	},
	{
		Name:   GBUFFER_NORMAL,
		Format: driver.FORMAT_RGBA16_SFLOAT,
		Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT | driver.IMAGE_USAGE_TRANSIENT,
		Load:   driver.LOAD_OP_CLEAR,
		Store:  driver.STORE_OP_DONT_CARE,
	},
	{
		Name:   GBUFFER_POSITION,
		Format: driver.FORMAT_RGBA32_SFLOAT,
		Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT | driver.IMAGE_USAGE_TRANSIENT,
		Load:   driver.LOAD_OP_CLEAR,
		Store:  driver.STORE_OP_DONT_CARE,
	},
}

func invariant(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", pipeline.ErrInvariantViolation, fmt.Sprintf(format, args...))
}

func fullViewport(extent driver.Extent) (driver.Viewport, driver.Rect) {
	return driver.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}, driver.Rect{
			Width:  extent.Width,
			Height: extent.Height,
		}
}

// subpassState is the pipeline object of a stage. It is built against the
// first target; later targets share it as long as the stage's subpass is
// laid out the same way.
type subpassState struct {
	pipeline driver.Pipeline
	subpass  pipeline.SubpassInfo
}

func (s *subpassState) built(stage string, target *pipeline.FrameTarget) (bool, pipeline.SubpassInfo, error) {
	info, ok := target.Subpass(stage)
	if !ok {
		return false, info, fmt.Errorf("target %d has no subpass for %q", target.Index(), stage)
	}
	if s.pipeline == nil {
		return false, info, nil
	}
	if info.Index != s.subpass.Index || info.ColorCount != s.subpass.ColorCount || info.HasDepth != s.subpass.HasDepth {
		return true, info, fmt.Errorf("target %d lays out subpass %q differently from target 0", target.Index(), stage)
	}
	return true, info, nil
}

func (s *subpassState) destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
}

// activeCamera returns the first camera flagged primary, else the first
// camera, else a default one.
func activeCamera(snapshot *scene.Registry) *components.Camera {
	var first, primary *components.Camera
	if snapshot != nil {
		scene.Each(snapshot, func(e scene.Entity, c *components.Camera) {
			if first == nil {
				first = c
			}
			if primary == nil && c.Primary {
				primary = c
			}
		})
	}
	switch {
	case primary != nil:
		return primary
	case first != nil:
		return first
	default:
		return components.NewCamera()
	}
}

func destroyBuffers(buffers []driver.Buffer) {
	for _, b := range buffers {
		if b != nil {
			b.Destroy()
		}
	}
}
