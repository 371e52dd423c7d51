package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
)

func uniformLayout(t *testing.T, d *headless.Device, count uint32) driver.DescriptorSetLayout {
	t.Helper()
	layout, err := d.NewDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER, Count: count},
	})
	require.NoError(t, err)
	return layout
}

func TestAllocatorExhaustsCategory(t *testing.T) {
	d := headless.NewDevice()
	da := NewDescriptorAllocator(d)
	require.NoError(t, da.CreatePool(DefaultPoolSizes(), DEFAULT_MAX_SETS))
	defer da.Destroy()
	layout := uniformLayout(t, d, 1)

	var sets []driver.DescriptorSet
	for i := 0; i < int(DEFAULT_DESCRIPTORS_PER_CATEGORY); i++ {
		set, err := da.Allocate(layout)
		require.NoError(t, err)
		sets = append(sets, set)
	}
	_, err := da.Allocate(layout)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, da.Free(sets[0]))
	_, err = da.Allocate(layout)
	assert.NoError(t, err)

	used, n := da.Usage()
	assert.Equal(t, DEFAULT_DESCRIPTORS_PER_CATEGORY, used[driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER])
	assert.Equal(t, DEFAULT_DESCRIPTORS_PER_CATEGORY, n)
}

func TestAllocatorExhaustsSets(t *testing.T) {
	d := headless.NewDevice()
	da := NewDescriptorAllocator(d)
	require.NoError(t, da.CreatePool(DefaultPoolSizes(), 2))
	defer da.Destroy()
	layout := uniformLayout(t, d, 1)

	for i := 0; i < 2; i++ {
		_, err := da.Allocate(layout)
		require.NoError(t, err)
	}
	_, err := da.Allocate(layout)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestAllocatorCountsArrayBindings(t *testing.T) {
	d := headless.NewDevice()
	da := NewDescriptorAllocator(d)
	require.NoError(t, da.CreatePool(PoolSizes{driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER: 10}, 8))
	defer da.Destroy()

	_, err := da.Allocate(uniformLayout(t, d, 8))
	require.NoError(t, err)
	_, err = da.Allocate(uniformLayout(t, d, 3))
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// a category the pool has no room for at all
	sampled, err := d.NewDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER},
	})
	require.NoError(t, err)
	_, err = da.Allocate(sampled)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestAllocatorLifecycle(t *testing.T) {
	d := headless.NewDevice()
	da := NewDescriptorAllocator(d)
	layout := uniformLayout(t, d, 1)

	_, err := da.Allocate(layout)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	require.NoError(t, da.CreatePool(DefaultPoolSizes(), 4))
	assert.ErrorIs(t, da.CreatePool(DefaultPoolSizes(), 4), ErrInvariantViolation)

	set, err := da.Allocate(layout)
	require.NoError(t, err)
	require.NoError(t, da.Free(set))
	assert.ErrorIs(t, da.Free(set), ErrInvariantViolation)

	capacity, maxSets := da.Capacity()
	assert.Equal(t, uint32(4), maxSets)
	assert.Len(t, capacity, 6)

	da.Destroy()
	da.Destroy()
	assert.Equal(t, 0, d.LiveOf("descriptor_pool"))
}

type failingPool struct {
	driver.DescriptorPool
	err error
}

func (p failingPool) Allocate(driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	return nil, p.err
}

type failingPoolDevice struct {
	*headless.Device
	err error
}

func (d failingPoolDevice) NewDescriptorPool(sizes map[driver.DescriptorType]uint32, maxSets uint32) (driver.DescriptorPool, error) {
	pool, err := d.Device.NewDescriptorPool(sizes, maxSets)
	if err != nil {
		return nil, err
	}
	return failingPool{DescriptorPool: pool, err: d.err}, nil
}

func TestAllocatorClassifiesDeviceErrors(t *testing.T) {
	lost := errors.New("device lost")
	for _, tc := range []struct {
		name string
		err  error
		want error
		not  error
	}{
		{"pool out of memory", driver.ErrOutOfPoolMemory, ErrPoolExhausted, ErrConstructionFailure},
		{"other device failure", lost, ErrConstructionFailure, ErrPoolExhausted},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := headless.NewDevice()
			da := NewDescriptorAllocator(failingPoolDevice{Device: d, err: tc.err})
			require.NoError(t, da.CreatePool(DefaultPoolSizes(), DEFAULT_MAX_SETS))
			defer da.Destroy()

			_, err := da.Allocate(uniformLayout(t, d, 1))
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.err)
			assert.NotErrorIs(t, err, tc.not)
			used, n := da.Usage()
			assert.Zero(t, used[driver.DESCRIPTOR_TYPE_UNIFORM_BUFFER])
			assert.Zero(t, n)
		})
	}
}
