package db

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/fzft/go-hashset/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"
)

const (
	INITIAL_SIZE     = 256
	MAX_CHAIN_LENGTH = 8
)

type slot[K constraints.Unsigned, V any] struct {
	key   K
	inUse bool
	value V
}

// HashTable is an open-addressed map from an unsigned key to a value.
// Lookups probe at most MAX_CHAIN_LENGTH consecutive slots from the key's
// base index, and the table doubles before it becomes more than half full.
// It is not safe for concurrent use.
type HashTable[K constraints.Unsigned, V any] struct {
	table     []slot[K, V]
	size      int
	count     int
	maxMemory int64
	log       *zap.Logger
}

func NewHashTable[K constraints.Unsigned, V any](opts ...Option) (*HashTable[K, V], error) {
	o := newOptions(opts)
	table, err := zcalloc[K, V](o.initialSize, 0, o.maxMemory)
	if err != nil {
		return nil, err
	}
	return &HashTable[K, V]{
		table:     table,
		size:      o.initialSize,
		maxMemory: o.maxMemory,
		log:       o.logger,
	}, nil
}

func (h *HashTable[K, V]) mustBeLive() {
	if h.table == nil {
		panic("hash table: used after Release")
	}
}

func (h *HashTable[K, V]) logger() *zap.Logger {
	if h.log != nil {
		return h.log
	}
	return log.Logger
}

// baseIndex folds key to 32 bits, mixes it and reduces it modulo size.
func baseIndex[K constraints.Unsigned](key K, size int) int {
	wide := uint64(key)
	k := uint32(wide ^ wide>>32)

	// Robert Jenkins' 32 bit mix function
	k += k << 12
	k ^= k >> 22
	k += k << 4
	k ^= k >> 9
	k += k << 10
	k ^= k >> 2
	k += k << 7
	k ^= k >> 12

	// Knuth's multiplicative method
	k = (k >> 3) * 2654435761

	return int(uint64(k) % uint64(size))
}

// probe returns the slot in table already holding key, or else the first
// empty slot, looking no further than MAX_CHAIN_LENGTH slots.
func probe[K constraints.Unsigned, V any](table []slot[K, V], key K) (int, bool) {
	size := len(table)
	curr := baseIndex(key, size)
	empty := -1
	for i := 0; i < MAX_CHAIN_LENGTH; i++ {
		s := &table[curr]
		if !s.inUse {
			if empty < 0 {
				empty = curr
			}
		} else if s.key == key {
			return curr, true
		}
		curr = (curr + 1) % size
	}
	return empty, empty >= 0
}

// find returns the occupied slot holding key within the probe bound.
func (h *HashTable[K, V]) find(key K) (int, bool) {
	curr := baseIndex(key, h.size)
	for i := 0; i < MAX_CHAIN_LENGTH; i++ {
		if h.table[curr].inUse && h.table[curr].key == key {
			return curr, true
		}
		curr = (curr + 1) % h.size
	}
	return 0, false
}

// locate reports false when the table is half full or the probe bound is
// exhausted, in which case the caller grows and asks again.
func (h *HashTable[K, V]) locate(key K) (int, bool) {
	if h.count >= h.size/2 {
		return 0, false
	}
	return probe(h.table, key)
}

// grow doubles the table, doubling again whenever an entry does not fit
// within the probe bound of the new array. The old array stays in place
// until an allocation succeeds and every entry has been moved.
func (h *HashTable[K, V]) grow() error {
	held := slotsSize[K, V](h.size)
	newSize := h.size * 2
	for {
		table, err := zcalloc[K, V](newSize, held, h.maxMemory)
		if err != nil {
			h.logger().Error("hash table growth refused",
				zap.Int("size", h.size), zap.Int("count", h.count), zap.Error(err))
			return err
		}
		if rehash(h.table, table) {
			h.logger().Debug("hash table grown",
				zap.Int("from", h.size), zap.Int("to", newSize), zap.Int("count", h.count),
				zap.String("bytes", humanize.IBytes(uint64(slotsSize[K, V](newSize)))))
			zfree(h.table)
			h.table = table
			h.size = newSize
			return nil
		}
		zfree(table)
		if newSize > math.MaxInt/2 {
			return errors.Wrapf(ErrOutOfMemory, "growing past %d slots", newSize)
		}
		newSize *= 2
	}
}

// rehash moves every occupied slot of from into to. It reports false if an
// entry cannot be placed within the probe bound.
func rehash[K constraints.Unsigned, V any](from, to []slot[K, V]) bool {
	for i := range from {
		if !from[i].inUse {
			continue
		}
		index, ok := probe(to, from[i].key)
		if !ok {
			return false
		}
		to[index] = from[i]
	}
	return true
}

// Put stores value under key, replacing any value already there. The only
// error is ErrOutOfMemory from growth, which leaves the table as it was.
func (h *HashTable[K, V]) Put(key K, value V) error {
	h.mustBeLive()
	index, ok := h.locate(key)
	for !ok {
		if err := h.grow(); err != nil {
			return err
		}
		index, ok = h.locate(key)
	}

	s := &h.table[index]
	if !s.inUse {
		h.count++
	}
	s.key = key
	s.value = value
	s.inUse = true
	return nil
}

func (h *HashTable[K, V]) Get(key K) (V, bool) {
	h.mustBeLive()
	if index, ok := h.find(key); ok {
		return h.table[index].value, true
	}
	var zero V
	return zero, false
}

// Delete removes key and reports whether it was present.
func (h *HashTable[K, V]) Delete(key K) bool {
	h.mustBeLive()
	index, ok := h.find(key)
	if !ok {
		return false
	}
	h.table[index] = slot[K, V]{}
	h.count--
	return true
}

// Clear removes every entry. The capacity is kept.
func (h *HashTable[K, V]) Clear() {
	h.mustBeLive()
	for i := range h.table {
		h.table[i] = slot[K, V]{}
	}
	h.logger().Debug("hash table cleared", zap.Int("size", h.size), zap.Int("count", h.count))
	h.count = 0
}

// Len returns the number of entries in the hash table
func (h *HashTable[K, V]) Len() int {
	return h.count
}

// Empty returns true if the hash table is empty
func (h *HashTable[K, V]) Empty() bool {
	return h.count == 0
}

// Cap returns the number of slots.
func (h *HashTable[K, V]) Cap() int {
	return h.size
}

// At returns the value stored at physical position i, and whether that slot
// is occupied. i must be in [0, Cap()).
func (h *HashTable[K, V]) At(i int) (V, bool) {
	return h.table[i].value, h.table[i].inUse
}

func (h *HashTable[K, V]) MemoryStatus() MemoryStatus {
	return newMemoryStatus(slotsSize[K, V](h.size), h.maxMemory)
}

// Release hands the slot array back. The table must not be used afterwards;
// values it referenced are left alone.
func (h *HashTable[K, V]) Release() {
	h.mustBeLive()
	zfree(h.table)
	h.table = nil
	h.size = 0
	h.count = 0
}
