package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushEvictsOldestFirst(t *testing.T) {
	b := New[int](3)

	assert.False(t, b.Push(1))
	assert.False(t, b.Push(2))
	assert.False(t, b.Push(3))
	assert.True(t, b.Push(4))
	assert.True(t, b.Push(5))

	assert.Equal(t, []int{3, 4, 5}, b.Items())
}

func TestNeverExceedsCapacity(t *testing.T) {
	b := New[int](10)
	for i := 0; i < 250; i++ {
		b.Push(i)
		require.LessOrEqual(t, len(b.Items()), 10)
	}
	items := b.Items()
	assert.Equal(t, 240, items[0])
	assert.Equal(t, 249, items[9])
}

func TestLastMutatesInPlace(t *testing.T) {
	b := New[string](2)
	assert.Nil(t, b.Last())

	b.Push("a")
	b.Push("b")
	b.Push("c")
	*b.Last() = "c2"

	assert.Equal(t, []string{"b", "c2"}, b.Items())
}

func TestItemsIsACopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	items := b.Items()
	items[0] = 99
	assert.Equal(t, []int{1}, b.Items())
}

func TestZeroCapacityHoldsOne(t *testing.T) {
	b := New[int](0)
	assert.False(t, b.Push(7))
	assert.True(t, b.Push(8))
	assert.Equal(t, []int{8}, b.Items())
}
