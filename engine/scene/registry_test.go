package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float32 }
type velocity struct{ DX float32 }

func TestEntityReuseBumpsGeneration(t *testing.T) {
	r := NewRegistry()
	a := r.Create()
	require.NoError(t, r.Destroy(a))
	b := r.Create()

	assert.Equal(t, a.Index(), b.Index())
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.False(t, r.Valid(a))
	assert.True(t, r.Valid(b))
	assert.False(t, r.Valid(NullEntity))
	assert.ErrorIs(t, r.Destroy(a), ErrInvalidEntity)
}

func TestEmplaceGetRemove(t *testing.T) {
	r := NewRegistry()
	e := r.Create()

	p, err := Emplace(r, e, position{1, 2})
	require.NoError(t, err)
	p.X = 5

	got, ok := Get[position](r, e)
	require.True(t, ok)
	assert.Equal(t, float32(5), got.X)

	_, err = Emplace(r, e, position{})
	assert.ErrorIs(t, err, ErrComponentExists)

	assert.True(t, Remove[position](r, e))
	assert.False(t, Has[position](r, e))
	assert.False(t, Remove[position](r, e))
}

func TestSignalsFireWithStoredComponent(t *testing.T) {
	r := NewRegistry()
	var constructed, destroyed, replaced []Entity

	conn := OnConstruct[position](r).Connect(func(_ *Registry, e Entity, c *position) {
		c.Y = 42
		constructed = append(constructed, e)
	})
	OnDestroy[position](r).Connect(func(_ *Registry, e Entity, c *position) {
		destroyed = append(destroyed, e)
	})
	OnReplace[position](r).Connect(func(_ *Registry, e Entity, c *position) {
		replaced = append(replaced, e)
	})

	e := r.Create()
	p, err := Emplace(r, e, position{})
	require.NoError(t, err)
	// the listener mutated the stored component
	assert.Equal(t, float32(42), p.Y)

	_, err = Replace(r, e, position{X: 3})
	require.NoError(t, err)
	assert.Equal(t, float32(3), p.X)

	conn.Release()
	conn.Release()
	_, err = Emplace(r, r.Create(), position{})
	require.NoError(t, err)

	require.NoError(t, r.Destroy(e))

	assert.Equal(t, []Entity{e}, constructed)
	assert.Equal(t, []Entity{e}, replaced)
	assert.Equal(t, []Entity{e}, destroyed)
}

func TestEachOrderAndMutation(t *testing.T) {
	r := NewRegistry()
	var es []Entity
	for i := 0; i < 4; i++ {
		e := r.Create()
		es = append(es, e)
		_, err := Emplace(r, e, position{X: float32(i)})
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = Emplace(r, e, velocity{DX: 1})
			require.NoError(t, err)
		}
	}

	var seen []Entity
	Each(r, func(e Entity, p *position) {
		seen = append(seen, e)
		// removing during iteration is allowed
		Remove[position](r, es[3])
	})
	assert.Equal(t, es[:3], seen)

	var both []Entity
	Each2(r, func(e Entity, p *position, v *velocity) {
		both = append(both, e)
	})
	assert.Equal(t, []Entity{es[0], es[2]}, both)
	assert.Equal(t, 3, Count[position](r))
	assert.Equal(t, 4, r.Alive())
}
