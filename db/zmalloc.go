package db

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// ErrOutOfMemory is returned when a slot array cannot be allocated within
// the table's memory limit.
var ErrOutOfMemory = errors.New("out of memory")

// usedMemory counts the bytes held by every live slot array in the process.
var usedMemory int64 = 0

func updateZmallocStatAlloc(n int64) {
	atomic.AddInt64(&usedMemory, n)
}

func updateZmallocStatFree(n int64) {
	atomic.AddInt64(&usedMemory, -n)
}

// UsedMemory returns the bytes currently held by slot arrays across all tables.
func UsedMemory() int64 {
	return atomic.LoadInt64(&usedMemory)
}

// MemoryStatus reports the memory used by a single table.
type MemoryStatus struct {
	Total int64   // bytes held by the slot array
	Limit int64   // configured ceiling, 0 when unlimited
	Level float64 // Total/Limit, 0 when unlimited
}

func (m MemoryStatus) String() string {
	if m.Limit <= 0 {
		return fmt.Sprintf("%s (unlimited)", humanize.IBytes(uint64(m.Total)))
	}
	return fmt.Sprintf("%s of %s (%.1f%%)",
		humanize.IBytes(uint64(m.Total)), humanize.IBytes(uint64(m.Limit)), m.Level*100)
}

func newMemoryStatus(total, limit int64) MemoryStatus {
	status := MemoryStatus{Total: total, Limit: limit}
	if limit > 0 {
		status.Level = float64(total) / float64(limit)
	}
	return status
}

// slotsSize is the number of bytes taken by n slots.
func slotsSize[K constraints.Unsigned, V any](n int) int64 {
	var s slot[K, V]
	return int64(n) * int64(unsafe.Sizeof(s))
}

// zcalloc returns n zeroed slots. held is what the caller already owns and
// still counts against limit until it is freed.
func zcalloc[K constraints.Unsigned, V any](n int, held, limit int64) ([]slot[K, V], error) {
	size := slotsSize[K, V](n)
	if limit > 0 && held+size > limit {
		return nil, errors.Wrapf(ErrOutOfMemory, "allocating %s with %s held, limit %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(held)), humanize.IBytes(uint64(limit)))
	}
	table := make([]slot[K, V], n)
	updateZmallocStatAlloc(size)
	return table, nil
}

func zfree[K constraints.Unsigned, V any](table []slot[K, V]) {
	updateZmallocStatFree(slotsSize[K, V](len(table)))
}
