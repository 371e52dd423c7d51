package components

import (
	"github.com/spaghettifunk/prism/engine/math"
)

const (
	DEFAULT_CAMERA_NEAR     float32 = 0.1
	DEFAULT_CAMERA_FAR      float32 = 1000.0
	DEFAULT_CAMERA_FOV      float32 = 45.0
	DEFAULT_CAMERA_ASPECT   float32 = 1.618
	DEFAULT_CAMERA_GAMMA    float32 = 2.2
	DEFAULT_CAMERA_EXPOSURE float32 = 4.5
)

/**
 * @brief Represents a camera used to render the scene. The first camera
 * flagged Primary is the one the stages draw with.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: use SetPosition so the view matrix is recalculated.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: use SetEulerRotation so the view matrix is recalculated.
	 */
	EulerRotation math.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix math.Mat4

	// FOV is the vertical field of view in degrees.
	FOV      float32
	Aspect   float32
	Near     float32
	Far      float32
	Gamma    float32
	Exposure float32
	Primary  bool
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
	c.FOV = DEFAULT_CAMERA_FOV
	c.Aspect = DEFAULT_CAMERA_ASPECT
	c.Near = DEFAULT_CAMERA_NEAR
	c.Far = DEFAULT_CAMERA_FAR
	c.Gamma = DEFAULT_CAMERA_GAMMA
	c.Exposure = DEFAULT_CAMERA_EXPOSURE
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		rotation := math.NewMat4EulerXYZ(c.EulerRotation.X, c.EulerRotation.Y, c.EulerRotation.Z)
		translation := math.NewMat4Translation(c.Position)
		c.ViewMatrix = rotation.Mul(translation).Inverse()
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) Projection() math.Mat4 {
	return math.NewMat4Perspective(math.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X += amount

	// Clamp to avoid Gimbal lock.
	limit := math.DegToRad(89.0)
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -limit, limit)

	c.IsDirty = true
}
