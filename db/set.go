package db

import (
	"math"

	"go.uber.org/zap"
)

// HashFunc returns the table key for an item. It must be deterministic for
// as long as the item is in a set.
type HashFunc[E any] func(item *E) uint64

// EqualFunc reports whether two items are equal. Equal items must hash to
// the same value.
type EqualFunc[E any] func(a, b *E) bool

// Set holds borrowed references to items, indexed by their hash alone.
// Two items with the same hash are treated as the same member: adding one
// replaces the other. The set never copies or frees the items it holds.
type Set[E any] struct {
	data *HashTable[uint64, *E]
	hash HashFunc[E]
	eq   EqualFunc[E]
}

// NewSet creates a set sized so that capacity items fit without growing.
// hash and eq must not be nil.
func NewSet[E any](hash HashFunc[E], eq EqualFunc[E], capacity int, opts ...Option) (*Set[E], error) {
	if hash == nil {
		panic("set: nil hash function")
	}
	if eq == nil {
		panic("set: nil equality function")
	}
	if capacity < 0 {
		panic("set: negative capacity")
	}
	if capacity > math.MaxInt/2 {
		panic("set: capacity too large")
	}

	tableOpts := make([]Option, 0, len(opts)+1)
	tableOpts = append(tableOpts, WithInitialSize(2*capacity))
	tableOpts = append(tableOpts, opts...)
	data, err := NewHashTable[uint64, *E](tableOpts...)
	if err != nil {
		return nil, err
	}
	return &Set[E]{
		data: data,
		hash: hash,
		eq:   eq,
	}, nil
}

func (s *Set[E]) mustBeLive() {
	if s.data == nil {
		panic("set: used after Destroy")
	}
}

func (s *Set[E]) mustBeItem(item *E) {
	s.mustBeLive()
	if item == nil {
		panic("set: nil item")
	}
}

// Add inserts item, replacing and returning any member with the same hash.
// Running out of memory while growing is fatal.
func (s *Set[E]) Add(item *E) *E {
	s.mustBeItem(item)

	hash := s.hash(item)
	prev, _ := s.data.Get(hash)
	if prev != nil && prev != item && !s.eq(prev, item) {
		s.data.logger().Debug("set member replaced by unequal item with the same hash",
			zap.Uint64("hash", hash))
	}
	if err := s.data.Put(hash, item); err != nil {
		panic(err)
	}
	return prev
}

// Remove deletes the member with item's hash and returns it, or nil. The
// returned member need not be item itself.
func (s *Set[E]) Remove(item *E) *E {
	s.mustBeItem(item)

	hash := s.hash(item)
	prev, ok := s.data.Get(hash)
	if !ok {
		return nil
	}
	s.data.Delete(hash)
	return prev
}

// Contains checks if a member with item's hash is in the set
func (s *Set[E]) Contains(item *E) bool {
	return s.Get(item) != nil
}

// Get returns the member with item's hash, or nil.
func (s *Set[E]) Get(item *E) *E {
	s.mustBeItem(item)

	member, _ := s.data.Get(s.hash(item))
	return member
}

func (s *Set[E]) Count() int {
	s.mustBeLive()
	return s.data.Len()
}

// Apply calls fn with every member in slot order. The order changes as the
// set is modified, and fn must not modify the set.
func (s *Set[E]) Apply(fn func(item *E)) {
	s.mustBeLive()
	if fn == nil {
		panic("set: nil apply function")
	}

	for i := 0; i < s.data.Cap(); i++ {
		if member, ok := s.data.At(i); ok && member != nil {
			fn(member)
		}
	}
}

// Items returns the members in slot order.
func (s *Set[E]) Items() []*E {
	items := make([]*E, 0, s.Count())
	s.Apply(func(item *E) {
		items = append(items, item)
	})
	return items
}

// Clear removes every member.
func (s *Set[E]) Clear() {
	s.mustBeLive()
	s.data.Clear()
}

// Destroy releases the underlying table. Members are not touched.
func (s *Set[E]) Destroy() {
	s.mustBeLive()
	s.data.Release()
	s.data = nil
}
