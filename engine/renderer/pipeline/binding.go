package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/scene"
)

// pendingRelease frees GPU state of a removed renderable once due frames
// have been drawn.
type pendingRelease struct {
	entity  scene.Entity
	due     uint64
	release func()
}

// subscribe connects to MeshRenderer lifecycle notifications and binds
// every renderer that already exists, so components created before the
// pipeline was ready are not missed.
func (p *Pipeline) subscribe() error {
	if p.registry == nil {
		return nil
	}
	p.connections = append(p.connections,
		scene.OnConstruct[components.MeshRenderer](p.registry).Connect(p.onRenderableConstructed),
		scene.OnDestroy[components.MeshRenderer](p.registry).Connect(p.onRenderableDestroyed),
		scene.OnReplace[components.MeshRenderer](p.registry).Connect(p.onRenderableReplaced),
	)
	var err error
	scene.Each(p.registry, func(e scene.Entity, mr *components.MeshRenderer) {
		if err != nil {
			return
		}
		err = p.bindRenderable(e, mr)
	})
	return err
}

func (p *Pipeline) unsubscribe() {
	if len(p.connections) == 0 {
		return
	}
	for _, c := range p.connections {
		c.Release()
	}
	p.connections = nil
	if p.registry != nil {
		scene.Each(p.registry, func(e scene.Entity, mr *components.MeshRenderer) {
			mr.Pool = nil
		})
	}
}

func (p *Pipeline) bindRenderable(e scene.Entity, mr *components.MeshRenderer) error {
	mr.Pool = p.allocator
	for _, s := range p.stages {
		b, ok := s.(RenderableBinder)
		if !ok {
			continue
		}
		if err := b.BindRenderable(e, mr); err != nil {
			return fmt.Errorf("bind %s to stage %q: %w", e, s.Name(), err)
		}
	}
	return nil
}

func (p *Pipeline) onRenderableConstructed(r *scene.Registry, e scene.Entity, mr *components.MeshRenderer) {
	if err := p.bindRenderable(e, mr); err != nil {
		core.LogError("%s: %s", p.name, err)
		if p.bindErr == nil {
			p.bindErr = err
		}
	}
}

// onRenderableDestroyed detaches the entity right away, so it is no longer
// drawn, but frees its resources only after every frame in flight that
// may reference them has been drawn over.
func (p *Pipeline) onRenderableDestroyed(r *scene.Registry, e scene.Entity, mr *components.MeshRenderer) {
	for _, s := range p.stages {
		b, ok := s.(RenderableBinder)
		if !ok {
			continue
		}
		if release := b.UnbindRenderable(e); release != nil {
			p.reclaim.Enqueue(pendingRelease{
				entity:  e,
				due:     p.frames + uint64(p.ctx.FramesInFlight),
				release: release,
			})
		}
	}
	mr.Pool = nil
}

// onRenderableReplaced hands the pool to the new value. The stage bindings
// are keyed by entity and stay as they are.
func (p *Pipeline) onRenderableReplaced(r *scene.Registry, e scene.Entity, mr *components.MeshRenderer) {
	mr.Pool = p.allocator
}

// PendingReleases returns how many removed renderables still hold GPU
// resources.
func (p *Pipeline) PendingReleases() int {
	return p.reclaim.Len()
}

func (p *Pipeline) retire(all bool) {
	for !p.reclaim.IsEmpty() {
		next, err := p.reclaim.Peek()
		if err != nil || (!all && next.due > p.frames) {
			return
		}
		_, _ = p.reclaim.Dequeue()
		next.release()
		core.LogDebug("%s: released resources of %s", p.name, next.entity)
	}
}
