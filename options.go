// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash func(key K) uint64
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// It is required for key types without a built-in hasher (structs, arrays,
// interfaces). The top two bits of the returned value are ignored.
func WithHash[K comparable, V any](hash func(key K) uint64) option[K, V] {
	return hashOption[K, V]{hash}
}

type maxLoadFactorOption[K comparable, V any] struct {
	maxLoadFactor float64
}

func (op maxLoadFactorOption[K, V]) apply(m *Map[K, V]) {
	m.maxLoadFactor = op.maxLoadFactor
}

// WithMaxLoadFactor is an option to specify the fraction of buckets that may
// be occupied (by live entries or tombstones) before the Map grows or
// compacts. It must be in (0, 1). Zero selects the default of 0.6.
func WithMaxLoadFactor[K comparable, V any](maxLoadFactor float64) option[K, V] {
	return maxLoadFactorOption[K, V]{maxLoadFactor}
}

type loggerOption[K comparable, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger is an option to specify the logger a Map reports rehashes and
// allocation failures to. By default nothing is logged.
func WithLogger[K comparable, V any](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

//go:generate mockgen -source=options.go -destination=mock_hashtable/mock_allocator.go -package=mock_hashtable -exclude_interfaces=option

// Allocator specifies an interface for allocating and releasing the bucket
// arrays used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that bucket
// arrays be freed then Map.Close must be called in order to ensure Free is
// called for the final array.
type Allocator[K comparable, V any] interface {
	// Alloc should return a slice equivalent to make([]Bucket[K,V], n). A
	// request for zero buckets returns (nil, nil). Failure is reported with
	// a non-nil error, preferably one wrapping ErrOutOfMemory. The Map zeroes
	// the returned buckets itself.
	Alloc(n int) ([]Bucket[K, V], error)

	// Realloc resizes b to n buckets, preserving the first min(len(b), n)
	// buckets. Realloc(nil, n) is Alloc(n) and Realloc(b, 0) is Free(b). On
	// failure b is left untouched.
	Realloc(b []Bucket[K, V], n int) ([]Bucket[K, V], error)

	// Free can optionally release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by Alloc or Realloc.
	Free(b []Bucket[K, V])
}

// BucketSize returns the size in bytes of a single Bucket[K,V], for
// allocators that account for memory in bytes.
func BucketSize[K comparable, V any]() int {
	var b Bucket[K, V]
	return int(unsafe.Sizeof(b))
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) Alloc(n int) ([]Bucket[K, V], error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "alloc of %d buckets", n)
	}
	if n == 0 {
		return nil, nil
	}
	return makeBuckets[K, V](n)
}

func (a defaultAllocator[K, V]) Realloc(b []Bucket[K, V], n int) ([]Bucket[K, V], error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "realloc to %d buckets", n)
	}
	if n == 0 {
		a.Free(b)
		return nil, nil
	}
	if n <= cap(b) {
		r := b[:n]
		if n > len(b) {
			clear(r[len(b):])
		}
		return r, nil
	}
	r, err := makeBuckets[K, V](n)
	if err != nil {
		return nil, err
	}
	copy(r, b)
	return r, nil
}

func (defaultAllocator[K, V]) Free(_ []Bucket[K, V]) {
}

// makeBuckets allocates n buckets, reporting ErrOutOfMemory for sizes the
// runtime refuses to allocate.
func makeBuckets[K comparable, V any](n int) (b []Bucket[K, V], err error) {
	if n > maxBuckets[K, V]() {
		return nil, errors.Wrapf(ErrOutOfMemory, "alloc of %d buckets", n)
	}
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			b, err = nil, errors.Wrapf(ErrOutOfMemory, "alloc of %d buckets: %v", n, rerr)
		}
	}()
	return make([]Bucket[K, V], n), nil
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
