package scene

import "fmt"

// Entity packs a slot index (low 32 bits) and the slot generation (high
// 32 bits). A destroyed entity's slot is reused with a bumped generation,
// so stale handles stop validating.
type Entity uint64

const NullEntity Entity = 0

func newEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32 {
	return uint32(e)
}

func (e Entity) Generation() uint32 {
	return uint32(e >> 32)
}

func (e Entity) String() string {
	return fmt.Sprintf("entity(%d:%d)", e.Index(), e.Generation())
}

type entitySlot struct {
	generation uint32
	alive      bool
}

// acquire takes the first free slot, or appends a new one. Generations
// start at 1 so the zero Entity is never valid.
func (r *Registry) acquire() Entity {
	for i := range r.slots {
		if !r.slots[i].alive {
			r.slots[i].alive = true
			r.slots[i].generation++
			return newEntity(uint32(i), r.slots[i].generation)
		}
	}
	r.slots = append(r.slots, entitySlot{generation: 1, alive: true})
	return newEntity(uint32(len(r.slots)-1), 1)
}

func (r *Registry) release(e Entity) {
	r.slots[e.Index()].alive = false
}
