package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix. Translation lives in elements 12, 13 and 14 and
 * vectors are multiplied as rows, so world = local.Mul(parent).
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief Represents a single vertex in 3D space, as consumed by the
 * geometry stage.
 */
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
	Texcoord Vec2
	Colour   Vec4
}

/**
 * @brief Represents a single textured and tinted vertex in 2D space, as
 * produced by the overlay stage.
 */
type Vertex2D struct {
	Position Vec2
	Texcoord Vec2
	Colour   Vec4
}

/**
 * @brief Represents the transform of an object in the world.
 * Transforms can have a parent whose own transform is then
 * taken into account. Mutate through the setters so the cached
 * local matrix is rebuilt.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	// IsDirty marks Local as stale.
	IsDirty bool
	Local   Mat4
	Parent  *Transform
}
