package pipeline

import "errors"

var (
	// ErrConstructionFailure wraps any device rejection during Build. The
	// pipeline is left short of Ready and must be destroyed.
	ErrConstructionFailure = errors.New("render pipeline construction failed")
	// ErrPoolExhausted means the configured descriptor capacity is too
	// small. Raise the capacity; retrying cannot succeed.
	ErrPoolExhausted = errors.New("descriptor pool exhausted")
	// ErrInvariantViolation marks programmer error: out of range frame
	// indices, missing components on drawn entities, double compiles.
	ErrInvariantViolation = errors.New("render pipeline invariant violated")
	ErrNotReady           = errors.New("render pipeline is not ready")
)
