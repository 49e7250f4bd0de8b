package db

import (
	"math"

	"go.uber.org/zap"
)

type options struct {
	initialSize int
	maxMemory   int64
	logger      *zap.Logger
}

// Option configures a HashTable or a Set.
type Option func(*options)

// WithInitialSize sets the initial number of slots. It is rounded up to a
// power of two and never goes below INITIAL_SIZE.
func WithInitialSize(n int) Option {
	return func(o *options) {
		o.initialSize = n
	}
}

// WithMaxMemory caps the bytes a table may hold in slot arrays, counting
// both arrays while a rehash is in flight. Zero means unlimited.
func WithMaxMemory(bytes int64) Option {
	return func(o *options) {
		o.maxMemory = bytes
	}
}

// WithLogger overrides log.Logger for one table or set.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{initialSize: INITIAL_SIZE}
	for _, opt := range opts {
		opt(&o)
	}
	o.initialSize = roundSize(o.initialSize)
	return o
}

func roundSize(n int) int {
	size := INITIAL_SIZE
	for size < n {
		if size > math.MaxInt/2 {
			panic("db: initial size too large")
		}
		size <<= 1
	}
	return size
}
