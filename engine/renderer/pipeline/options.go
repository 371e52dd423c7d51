package pipeline

import "github.com/spaghettifunk/prism/engine/scene"

type Option func(*Pipeline)

// WithRegistry subscribes the pipeline to MeshRenderer lifecycle events
// of r once it is Ready.
func WithRegistry(r *scene.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

func WithPoolSizes(sizes PoolSizes) Option {
	return func(p *Pipeline) {
		p.poolSizes = sizes.clone()
	}
}

func WithMaxSets(n uint32) Option {
	return func(p *Pipeline) {
		p.maxSets = n
	}
}

func WithName(name string) Option {
	return func(p *Pipeline) {
		p.name = name
	}
}
