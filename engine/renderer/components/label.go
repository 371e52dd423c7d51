package components

import "github.com/spaghettifunk/prism/engine/math"

// Label is screen space text drawn by the overlay stage. Position is the
// top left corner in pixels.
type Label struct {
	Text     string
	Position math.Vec2
	Colour   math.Vec4
	// Scale multiplies the font size. Zero means 1.
	Scale float32
}
