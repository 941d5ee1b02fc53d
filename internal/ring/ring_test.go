package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	assert := assert.New(t)

	for _, capacity := range []int{0, -1, -64} {
		buf, err := New[int](capacity)
		assert.ErrorIs(err, ErrInvalidCapacity)
		assert.Nil(buf)
	}

	buf, err := New[int](3)
	assert.NoError(err)
	assert.Equal(3, buf.Cap())
	assert.Zero(buf.Len())
}

func Test_Buffer(t *testing.T) {
	capacities := []int{1, 2, 3, 7, 64}

	for _, capacity := range capacities {
		t.Run(fmt.Sprintf("C%d", capacity), func(t *testing.T) {
			testBuffer(t, capacity)
		})
	}
}

func testBuffer(t *testing.T, capacity int) {
	assert := assert.New(t)

	buf, err := New[int](capacity)
	require.NoError(t, err)

	_, ok := buf.Get()
	assert.False(ok)

	// Wrap around several times with a partially filled ring
	next, expected := 0, 0
	for round := range 5 {
		fill := capacity - round%capacity
		for range fill {
			assert.True(buf.Put(next))
			next++
		}

		if fill == capacity {
			assert.False(buf.Put(-1))
			assert.Equal(capacity, buf.Len())
		}

		for range fill {
			item, ok := buf.Get()
			assert.True(ok)
			assert.Equal(expected, item)
			expected++
		}

		assert.Zero(buf.Len())
	}
}

func Test_BufferReleasesSlots(t *testing.T) {
	assert := assert.New(t)

	buf, err := New[*int](2)
	require.NoError(t, err)

	val := 42
	assert.True(buf.Put(&val))

	item, ok := buf.Get()
	assert.True(ok)
	assert.Same(&val, item)

	for _, slot := range buf.slots {
		assert.Nil(slot)
	}
}
