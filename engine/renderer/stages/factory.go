package stages

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/pipeline"
)

// FromConfig builds the stage list described by cfg, in order.
func FromConfig(ctx pipeline.StageContext, cfg *config.Config) ([]pipeline.Stage, error) {
	out := make([]pipeline.Stage, 0, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		var clear []driver.ClearValue
		if len(sc.Clear) == 4 {
			clear = []driver.ClearValue{
				driver.ClearColor(sc.Clear[0], sc.Clear[1], sc.Clear[2], sc.Clear[3]),
				driver.ClearDepth(1, 0),
			}
		}
		switch sc.Kind {
		case config.STAGE_KIND_GEOMETRY:
			out = append(out, NewGeometry(ctx, GeometryConfig{Name: sc.Name, Deferred: sc.Deferred, Clear: clear}))
		case config.STAGE_KIND_LIGHTING:
			out = append(out, NewLighting(ctx, LightingConfig{Name: sc.Name}))
		case config.STAGE_KIND_OVERLAY:
			var font *FontAtlas
			if sc.Font != "" {
				f, err := LoadFontAtlas(sc.Font)
				if err != nil {
					return nil, fmt.Errorf("stage %d: %w", i, err)
				}
				font = f
			}
			out = append(out, NewOverlay(ctx, OverlayConfig{Name: sc.Name, Font: font, MaxGlyphs: sc.MaxGlyphs}))
		default:
			return nil, fmt.Errorf("%w: stage %d: unknown kind %q", config.ErrInvalidConfig, i, sc.Kind)
		}
	}
	return out, nil
}
