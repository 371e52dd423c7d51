package scene

import (
	"errors"
	"fmt"
	"reflect"

	"golang.org/x/exp/slices"
)

var (
	ErrInvalidEntity   = errors.New("invalid or destroyed entity")
	ErrComponentExists = errors.New("component already present on entity")
)

type poolBase interface {
	remove(r *Registry, e Entity) bool
}

type pool[T any] struct {
	components map[Entity]*T
	// order holds the entities sorted by value for deterministic iteration.
	order     []Entity
	construct Sink[T]
	destroy   Sink[T]
	replace   Sink[T]
}

func newPool[T any]() *pool[T] {
	return &pool[T]{components: make(map[Entity]*T)}
}

func (p *pool[T]) insert(e Entity, c *T) {
	p.components[e] = c
	i, _ := slices.BinarySearch(p.order, e)
	p.order = slices.Insert(p.order, i, e)
}

func (p *pool[T]) remove(r *Registry, e Entity) bool {
	c, ok := p.components[e]
	if !ok {
		return false
	}
	// listeners still see the component
	p.destroy.publish(r, e, c)
	delete(p.components, e)
	if i, found := slices.BinarySearch(p.order, e); found {
		p.order = slices.Delete(p.order, i, i+1)
	}
	return true
}

// Registry is the entity/component store. It is not safe for concurrent
// use; the frame loop owns it.
type Registry struct {
	slots []entitySlot
	pools map[reflect.Type]poolBase
	// poolOrder keeps component removal on Destroy deterministic.
	poolOrder []reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{
		pools: make(map[reflect.Type]poolBase),
	}
}

func (r *Registry) Create() Entity {
	return r.acquire()
}

func (r *Registry) Valid(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(r.slots) {
		return false
	}
	slot := r.slots[idx]
	return slot.alive && slot.generation == e.Generation()
}

// Destroy removes every component of e, firing destroy notifications, and
// frees its slot.
func (r *Registry) Destroy(e Entity) error {
	if !r.Valid(e) {
		return fmt.Errorf("destroy %s: %w", e, ErrInvalidEntity)
	}
	for _, t := range r.poolOrder {
		r.pools[t].remove(r, e)
	}
	r.release(e)
	return nil
}

// Alive returns the number of live entities.
func (r *Registry) Alive() int {
	n := 0
	for _, s := range r.slots {
		if s.alive {
			n++
		}
	}
	return n
}

func poolOf[T any](r *Registry) *pool[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if p, ok := r.pools[t]; ok {
		return p.(*pool[T])
	}
	p := newPool[T]()
	r.pools[t] = p
	r.poolOrder = append(r.poolOrder, t)
	return p
}

// Emplace attaches c to e and fires the construct notification with the
// stored component.
func Emplace[T any](r *Registry, e Entity, c T) (*T, error) {
	if !r.Valid(e) {
		return nil, fmt.Errorf("emplace %T on %s: %w", c, e, ErrInvalidEntity)
	}
	p := poolOf[T](r)
	if _, ok := p.components[e]; ok {
		return nil, fmt.Errorf("emplace %T on %s: %w", c, e, ErrComponentExists)
	}
	stored := &c
	p.insert(e, stored)
	p.construct.publish(r, e, stored)
	return stored, nil
}

// Replace swaps the component value in place, so references handed out
// earlier observe the new value, and fires the replace notification.
func Replace[T any](r *Registry, e Entity, c T) (*T, error) {
	if !r.Valid(e) {
		return nil, fmt.Errorf("replace %T on %s: %w", c, e, ErrInvalidEntity)
	}
	p := poolOf[T](r)
	stored, ok := p.components[e]
	if !ok {
		return nil, fmt.Errorf("replace %T on %s: component missing", c, e)
	}
	*stored = c
	p.replace.publish(r, e, stored)
	return stored, nil
}

// Remove detaches the component, firing the destroy notification first.
// It reports whether a component was present.
func Remove[T any](r *Registry, e Entity) bool {
	if !r.Valid(e) {
		return false
	}
	return poolOf[T](r).remove(r, e)
}

func Get[T any](r *Registry, e Entity) (*T, bool) {
	if !r.Valid(e) {
		return nil, false
	}
	c, ok := poolOf[T](r).components[e]
	return c, ok
}

func Has[T any](r *Registry, e Entity) bool {
	_, ok := Get[T](r, e)
	return ok
}

// Count returns how many entities carry a T.
func Count[T any](r *Registry) int {
	return len(poolOf[T](r).order)
}

// Each visits every entity with a T in ascending entity order. The entity
// list is snapshotted, so fn may add or remove components.
func Each[T any](r *Registry, fn func(e Entity, c *T)) {
	p := poolOf[T](r)
	for _, e := range slices.Clone(p.order) {
		if c, ok := p.components[e]; ok {
			fn(e, c)
		}
	}
}

// Each2 visits every entity carrying both an A and a B.
func Each2[A, B any](r *Registry, fn func(e Entity, a *A, b *B)) {
	pa, pb := poolOf[A](r), poolOf[B](r)
	for _, e := range slices.Clone(pa.order) {
		a, ok := pa.components[e]
		if !ok {
			continue
		}
		if b, ok := pb.components[e]; ok {
			fn(e, a, b)
		}
	}
}

func OnConstruct[T any](r *Registry) *Sink[T] {
	return &poolOf[T](r).construct
}

func OnDestroy[T any](r *Registry) *Sink[T] {
	return &poolOf[T](r).destroy
}

func OnReplace[T any](r *Registry) *Sink[T] {
	return &poolOf[T](r).replace
}
