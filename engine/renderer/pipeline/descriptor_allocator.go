package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

const (
	DEFAULT_DESCRIPTORS_PER_CATEGORY uint32 = 256
	DEFAULT_MAX_SETS                 uint32 = 512
)

// PoolSizes is the descriptor capacity per category.
type PoolSizes map[driver.DescriptorType]uint32

// DefaultPoolSizes reserves DEFAULT_DESCRIPTORS_PER_CATEGORY descriptors
// for every category.
func DefaultPoolSizes() PoolSizes {
	return PoolSizes{
		driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER:         DEFAULT_DESCRIPTORS_PER_CATEGORY,
		driver.DESCRIPTOR_TYPE_STORAGE_IMAGE:          DEFAULT_DESCRIPTORS_PER_CATEGORY,
		driver.DESCRIPTOR_TYPE_SAMPLER:                DEFAULT_DESCRIPTORS_PER_CATEGORY,
		driver.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER: DEFAULT_DESCRIPTORS_PER_CATEGORY,
		driver.DESCRIPTOR_TYPE_STORAGE_BUFFER:         DEFAULT_DESCRIPTORS_PER_CATEGORY,
		driver.DESCRIPTOR_TYPE_INPUT_ATTACHMENT:       DEFAULT_DESCRIPTORS_PER_CATEGORY,
	}
}

func (ps PoolSizes) clone() PoolSizes {
	out := make(PoolSizes, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

// DescriptorAllocator is the one descriptor pool shared by every stage and
// every renderable component. It keeps its own accounting so running out
// of capacity is reported as ErrPoolExhausted before the device is asked.
type DescriptorAllocator struct {
	mu       sync.Mutex
	device   driver.Device
	pool     driver.DescriptorPool
	capacity PoolSizes
	used     PoolSizes
	maxSets  uint32
	sets     map[driver.DescriptorSet]PoolSizes
}

func NewDescriptorAllocator(device driver.Device) *DescriptorAllocator {
	return &DescriptorAllocator{device: device}
}

// CreatePool creates the device pool. It can only be called once per
// allocator lifetime.
func (da *DescriptorAllocator) CreatePool(sizes PoolSizes, maxSets uint32) error {
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.pool != nil {
		return fmt.Errorf("%w: descriptor pool created twice", ErrInvariantViolation)
	}
	if maxSets == 0 {
		return fmt.Errorf("descriptor pool with zero max sets")
	}
	pool, err := da.device.NewDescriptorPool(map[driver.DescriptorType]uint32(sizes), maxSets)
	if err != nil {
		return err
	}
	da.pool = pool
	da.capacity = sizes.clone()
	da.used = make(PoolSizes)
	da.maxSets = maxSets
	da.sets = make(map[driver.DescriptorSet]PoolSizes)
	core.LogDebug("descriptor pool created: %d sets, %d categories", maxSets, len(sizes))
	return nil
}

func demand(layout driver.DescriptorSetLayout) PoolSizes {
	need := make(PoolSizes)
	for _, b := range layout.Bindings() {
		n := b.Count
		if n == 0 {
			n = 1
		}
		need[b.Type] += n
	}
	return need
}

// Allocate returns a set for layout, or ErrPoolExhausted when the set or
// any of its descriptor categories would exceed the pool's capacity, or
// the device pool itself runs out. Other device failures are
// ErrConstructionFailure.
func (da *DescriptorAllocator) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.pool == nil {
		return nil, fmt.Errorf("%w: allocate before the descriptor pool exists", ErrInvariantViolation)
	}
	if uint32(len(da.sets)) >= da.maxSets {
		return nil, fmt.Errorf("%w: %d of %d sets in use", ErrPoolExhausted, len(da.sets), da.maxSets)
	}
	need := demand(layout)
	kinds := make([]driver.DescriptorType, 0, len(need))
	for t := range need {
		kinds = append(kinds, t)
	}
	slices.Sort(kinds)
	for _, t := range kinds {
		if da.used[t]+need[t] > da.capacity[t] {
			return nil, fmt.Errorf("%w: %s needs %d, %d of %d in use", ErrPoolExhausted, t, need[t], da.used[t], da.capacity[t])
		}
	}
	set, err := da.pool.Allocate(layout)
	if errors.Is(err, driver.ErrOutOfPoolMemory) {
		return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstructionFailure, err)
	}
	for t, n := range need {
		da.used[t] += n
	}
	da.sets[set] = need
	return set, nil
}

// Free returns set's descriptors to the pool. Only call it once no frame
// in flight can still read the set.
func (da *DescriptorAllocator) Free(set driver.DescriptorSet) error {
	da.mu.Lock()
	defer da.mu.Unlock()
	need, ok := da.sets[set]
	if !ok {
		return fmt.Errorf("%w: freeing a descriptor set this pool does not own", ErrInvariantViolation)
	}
	if err := da.pool.Free(set); err != nil {
		return err
	}
	for t, n := range need {
		da.used[t] -= n
	}
	delete(da.sets, set)
	return nil
}

// Usage returns the descriptors and sets currently allocated.
func (da *DescriptorAllocator) Usage() (PoolSizes, uint32) {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.used.clone(), uint32(len(da.sets))
}

func (da *DescriptorAllocator) Capacity() (PoolSizes, uint32) {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.capacity.clone(), da.maxSets
}

// Destroy releases every set at once and then the pool itself.
func (da *DescriptorAllocator) Destroy() {
	da.mu.Lock()
	defer da.mu.Unlock()
	if da.pool == nil {
		return
	}
	if err := da.pool.Reset(); err != nil {
		core.LogWarn("descriptor pool reset: %s", err)
	}
	da.pool.Destroy()
	da.pool = nil
	da.sets = nil
	da.used = nil
}
