package db

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type record struct {
	id   int
	name string
}

func hashInt(n *int) uint64 {
	return uint64(*n)
}

func equalInt(a, b *int) bool {
	return *a == *b
}

func ints(from, to int) []*int {
	items := make([]*int, 0, to-from+1)
	for i := from; i <= to; i++ {
		n := i
		items = append(items, &n)
	}
	return items
}

func newIntSet(t *testing.T, opts ...Option) *Set[int] {
	t.Helper()
	s, err := NewSet[int](hashInt, equalInt, 0, opts...)
	require.NoError(t, err)
	return s
}

func TestSetAddContainsRemove(t *testing.T) {
	s := newIntSet(t)
	for _, n := range ints(1, 10) {
		assert.Nil(t, s.Add(n))
	}
	assert.Equal(t, 10, s.Count())

	seven := 7
	assert.True(t, s.Contains(&seven))

	removed := s.Remove(&seven)
	require.NotNil(t, removed)
	assert.Equal(t, 7, *removed)
	assert.False(t, s.Contains(&seven))
	assert.Equal(t, 9, s.Count())

	assert.Nil(t, s.Remove(&seven))
	assert.Equal(t, 9, s.Count())

	missing := 11
	assert.False(t, s.Contains(&missing))
}

func TestSetGetReturnsStoredReference(t *testing.T) {
	s := newIntSet(t)
	items := ints(1, 3)
	for _, n := range items {
		s.Add(n)
	}

	probe := 2
	got := s.Get(&probe)
	require.NotNil(t, got)
	assert.Same(t, items[1], got)
	assert.Equal(t, hashInt(&probe), hashInt(got))
}

func TestSetAddSameItemTwice(t *testing.T) {
	s := newIntSet(t)
	first, second := 4, 4

	assert.Nil(t, s.Add(&first))
	assert.Same(t, &first, s.Add(&second))
	assert.Equal(t, 1, s.Count())
	assert.Same(t, &second, s.Get(&first))

	assert.Same(t, &second, s.Add(&second))
	assert.Equal(t, 1, s.Count())
}

func TestSetHashCollisionReplaces(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := NewSet[record](
		func(r *record) uint64 { return uint64(r.id) },
		func(a, b *record) bool { return *a == *b },
		0, WithLogger(zap.New(core)))
	require.NoError(t, err)

	a := &record{id: 1, name: "a"}
	b := &record{id: 1, name: "b"}

	assert.Nil(t, s.Add(a))
	assert.Same(t, a, s.Add(b))
	assert.Equal(t, 1, s.Count())
	assert.Same(t, b, s.Get(a))
	assert.Equal(t, 1, logs.FilterMessage("set member replaced by unequal item with the same hash").Len())

	// an equal replacement is not a collision
	c := &record{id: 1, name: "b"}
	s.Add(c)
	assert.Equal(t, 1, logs.FilterMessage("set member replaced by unequal item with the same hash").Len())
}

func TestSetGrowthKeepsMembers(t *testing.T) {
	s := newIntSet(t)
	half := s.data.Cap() / 2

	items := ints(1, half+1)
	for _, n := range items[:half-1] {
		s.Add(n)
	}
	for _, n := range items[:half-1] {
		require.Same(t, n, s.Get(n))
	}

	s.Add(items[half-1])
	s.Add(items[half])
	assert.Equal(t, 2*INITIAL_SIZE, s.data.Cap())
	assert.Equal(t, half+1, s.Count())
	for _, n := range items {
		require.Same(t, n, s.Get(n))
	}
}

func TestSetApply(t *testing.T) {
	s := newIntSet(t)
	for _, n := range ints(1, 3) {
		s.Add(n)
	}

	seen := map[int]int{}
	s.Apply(func(item *int) {
		seen[*item]++
	})
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, seen)
	assert.Len(t, s.Items(), 3)
}

func TestSetApplyAfterGrowth(t *testing.T) {
	s := newIntSet(t)
	for _, n := range ints(1, 1000) {
		s.Add(n)
	}

	visited := 0
	s.Apply(func(*int) { visited++ })
	assert.Equal(t, 1000, visited)
}

func TestSetClear(t *testing.T) {
	s := newIntSet(t)
	items := ints(1, 100)
	for _, n := range items {
		s.Add(n)
	}
	s.Clear()

	assert.Equal(t, 0, s.Count())
	for _, n := range items {
		assert.False(t, s.Contains(n))
	}
	assert.Empty(t, s.Items())
}

func TestSetCapacityHint(t *testing.T) {
	s, err := NewSet[int](hashInt, equalInt, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2048, s.data.Cap())

	items := ints(1, 1000)
	for _, n := range items {
		s.Add(n)
	}
	assert.Equal(t, 1000, s.Count())
	for _, n := range items {
		require.Same(t, n, s.Get(n))
	}
}

func TestSetDestroyLeavesItems(t *testing.T) {
	before := UsedMemory()
	s := newIntSet(t)
	items := ints(1, 5)
	for _, n := range items {
		s.Add(n)
	}
	s.Destroy()

	assert.Equal(t, before, UsedMemory())
	for i, n := range items {
		assert.Equal(t, i+1, *n)
	}
	assert.Panics(t, func() { s.Count() })
	assert.Panics(t, func() { s.Add(items[0]) })
}

func TestSetPreconditions(t *testing.T) {
	assert.Panics(t, func() { _, _ = NewSet[int](nil, equalInt, 0) })
	assert.Panics(t, func() { _, _ = NewSet[int](hashInt, nil, 0) })
	assert.Panics(t, func() { _, _ = NewSet[int](hashInt, equalInt, -1) })
	assert.Panics(t, func() { _, _ = NewSet[int](hashInt, equalInt, math.MaxInt) })
	assert.Panics(t, func() { _, _ = NewSet[int](hashInt, equalInt, math.MaxInt/2) })

	s := newIntSet(t)
	assert.Panics(t, func() { s.Add(nil) })
	assert.Panics(t, func() { s.Get(nil) })
	assert.Panics(t, func() { s.Remove(nil) })
	assert.Panics(t, func() { s.Apply(nil) })
}

func TestSetConstructionFailure(t *testing.T) {
	s, err := NewSet[int](hashInt, equalInt, 0, WithMaxMemory(1))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestSetAddOutOfMemoryIsFatal(t *testing.T) {
	s := newIntSet(t, WithMaxMemory(slotsSize[uint64, *int](INITIAL_SIZE)))
	items := ints(1, INITIAL_SIZE/2+1)
	for _, n := range items[:INITIAL_SIZE/2] {
		s.Add(n)
	}
	assert.Panics(t, func() { s.Add(items[INITIAL_SIZE/2]) })
	assert.Equal(t, INITIAL_SIZE/2, s.Count())
}
