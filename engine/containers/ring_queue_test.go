package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueOrder(t *testing.T) {
	rq := NewRingQueue[int](2)
	for i := 0; i < 5; i++ {
		rq.Enqueue(i)
	}
	assert.Equal(t, 5, rq.Len())

	head, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 0, head)

	for i := 0; i < 5; i++ {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, rq.IsEmpty())
}

func TestRingQueueWrapAndGrow(t *testing.T) {
	rq := NewRingQueue[string](3)
	rq.Enqueue("a")
	rq.Enqueue("b")
	_, _ = rq.Dequeue()
	rq.Enqueue("c")
	rq.Enqueue("d")
	// full and wrapped: next write must grow without reordering
	rq.Enqueue("e")

	var out []string
	for !rq.IsEmpty() {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		out = append(out, v)
	}
	assert.Equal(t, []string{"b", "c", "d", "e"}, out)
}

func TestRingQueueEmpty(t *testing.T) {
	rq := NewRingQueue[int](0)
	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
