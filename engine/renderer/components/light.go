package components

import "github.com/spaghettifunk/prism/engine/math"

// PointLight is consumed by the lighting stage; its position comes from
// the entity transform.
type PointLight struct {
	Colour    math.Vec3
	Intensity float32
	Radius    float32
}
