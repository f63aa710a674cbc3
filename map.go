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

// Package hashtable implements an open-addressing hash table with a
// locality-preserving hash function and a compact binary persistence format.
//
// # Buckets
//
// A Map is a single power-of-two array of buckets. Each bucket holds the
// key, the value and the key's hash. The two most significant bits of the
// stored hash double as the bucket's status:
//
//	bit 63 (valid)    the bucket has held an entry at some point
//	bit 62 (visible)  the entry is live
//	bits 0..61        hash digest
//
// An empty bucket has valid clear and terminates probing. A deleted entry
// leaves a tombstone behind (valid set, visible clear) which lookups skip
// over. Lookups compare the full tagged hash before comparing keys, so the
// status check and the digest check are a single integer comparison on a
// word that shares a cache line with the key.
//
// # Probing
//
// Probing starts at hash&mask and advances by 1, 2, 3, ... buckets (see
// probeSeq). Because the hash preserves locality, keys that are close to
// each other (sequential integers, strings differing in their final byte)
// land in nearby buckets, and runs of such keys are inserted and looked up
// with good cache behaviour.
//
// # Growth
//
// Tombstones count towards the load of the table. When an insert would push
// the load over the limit (capacity*maxLoadFactor) the table is rehashed.
// If at least half of the load consists of tombstones the table is rebuilt
// at its current size, which discards the tombstones; otherwise the
// capacity is doubled. Rehashing reuses the stored hashes and never calls
// the hash function.
//
// # Persistence
//
// Encode and Decode convert a Map to and from a flat little-endian buffer.
// See Encode for the layout.
package hashtable

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// minCapacity is the smallest bucket array a Map ever allocates.
	minCapacity = 16

	defaultMaxLoadFactor = 0.6

	// compactRatio selects between compacting and growing when the load
	// limit is reached: compact when load+1 >= compactRatio*(count+1).
	compactRatio = 2
)

// statusHash is a key's hash with the bucket status packed into its top two
// bits.
type statusHash uint64

const (
	bucketValid   statusHash = 1 << 63
	bucketVisible statusHash = 1 << 62
	bucketStatus             = bucketValid | bucketVisible
)

// tag returns the stored form of hash h for a live entry.
func tag(h uint64) statusHash {
	return statusHash(h) | bucketStatus
}

func (h statusHash) valid() bool {
	return h&bucketValid != 0
}

func (h statusHash) live() bool {
	return h&bucketStatus == bucketStatus
}

func (h statusHash) tombstone() bool {
	return h&bucketStatus == bucketValid
}

func (h statusHash) String() string {
	switch {
	case !h.valid():
		return "empty"
	case h.tombstone():
		return fmt.Sprintf("deleted(%016x)", uint64(h&^bucketStatus))
	default:
		return fmt.Sprintf("%016x", uint64(h&^bucketStatus))
	}
}

// Bucket holds a key, a value and the tagged hash of the key. A Map with a
// value type of struct{} is a set.
type Bucket[K comparable, V any] struct {
	hash  statusHash
	key   K
	value V
}

// Map is an unordered map from keys to values with Put, Get, Delete, and
// iteration operations. By default a Map[K,V] hashes keys with Hash applied
// to the key's in-memory representation, which covers integers, floats,
// strings, bools and pointers. Other key types need WithHash.
//
// A Map is NOT goroutine-safe. Concurrent readers are fine as long as no
// mutation is in progress.
type Map[K comparable, V any] struct {
	hash      func(key K) uint64
	allocator Allocator[K, V]
	logger    *zap.Logger
	// buckets has a power-of-two length of at least minCapacity, except
	// after Close when it is nil.
	buckets []Bucket[K, V]
	// The number of live entries.
	count int
	// The number of live entries plus tombstones. Tombstones are only
	// reclaimed by a rehash.
	load int
	// The maximum value of load, cached from maxLoadFactor*len(buckets).
	growthLimit   int
	maxLoadFactor float64
	// epoch is incremented by every structural mutation and is used to
	// detect stale iterators.
	epoch uint64
}

// New constructs a new Map able to hold initialCapacity entries without
// rehashing. The bucket array always has at least 16 buckets. New fails if
// an option is invalid, if K has no built-in hasher and WithHash was not
// given, or if the allocator fails.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) (*Map[K, V], error) {
	if initialCapacity < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "initial capacity %d", initialCapacity)
	}
	m := &Map[K, V]{
		allocator:     defaultAllocator[K, V]{},
		maxLoadFactor: defaultMaxLoadFactor,
	}
	m.hash, _ = defaultHasher[K]()

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		var k K
		return nil, errors.Wrapf(ErrNoHashFunc, "%T", k)
	}
	if m.allocator == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil allocator")
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.maxLoadFactor == 0 {
		m.maxLoadFactor = defaultMaxLoadFactor
	}
	if !(m.maxLoadFactor > 0 && m.maxLoadFactor < 1) {
		return nil, errors.Wrapf(ErrInvalidArgument, "max load factor %v", m.maxLoadFactor)
	}

	if err := m.rehash(minCapacity, initialCapacity, "init"); err != nil {
		return nil, err
	}
	return m, nil
}

// Close closes the map, releasing the bucket array back to its configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	if m.buckets != nil {
		m.allocator.Free(m.buckets)
		m.buckets = nil
	}
	m.count = 0
	m.load = 0
	m.growthLimit = 0
	m.epoch++
}

// Hash returns the hash the map uses for key, without status bits.
func (m *Map[K, V]) Hash(key K) uint64 {
	return m.hash(key)
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. Overwriting a value does not
// invalidate iterators; inserting a new entry does. An error is returned
// only if the map needed to grow and the allocator failed, in which case
// the map is unchanged.
func (m *Map[K, V]) Put(key K, value V) error {
	return m.PutHashed(m.hash(key), key, value)
}

// PutHashed is Put with a precomputed hash, which must equal m.Hash(key).
func (m *Map[K, V]) PutHashed(hash uint64, key K, value V) error {
	// Put is find composed with uncheckedPut. If the key is already present
	// we overwrite the existing value. Otherwise find stopped at the first
	// empty bucket in the probe sequence, which is where the new entry goes
	// unless the table has to be rehashed first.
	h := tag(hash)
	i, ok := m.find(h, key)
	if ok {
		m.buckets[i].value = value
		return nil
	}
	if m.buckets == nil {
		return errors.Wrap(ErrInvalidArgument, "put on closed map")
	}
	if m.load+1 > m.growthLimit {
		if err := m.grow(); err != nil {
			return err
		}
		i = m.findEmpty(h)
	}
	m.buckets[i] = Bucket[K, V]{hash: h, key: key, value: value}
	m.count++
	m.load++
	m.epoch++
	m.checkInvariants()
	return nil
}

// Get retrieves the value from the map for the specified key, return
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	return m.GetHashed(m.hash(key), key)
}

// GetHashed is Get with a precomputed hash, which must equal m.Hash(key).
func (m *Map[K, V]) GetHashed(hash uint64, key K) (value V, ok bool) {
	i, ok := m.find(tag(hash), key)
	if !ok {
		return value, false
	}
	return m.buckets[i].value, true
}

// Contains reports whether key is present in the map.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.find(tag(m.hash(key)), key)
	return ok
}

// Count returns the number of entries with the specified key: 0 or 1.
func (m *Map[K, V]) Count(key K) int {
	if m.Contains(key) {
		return 1
	}
	return 0
}

// Delete deletes the entry corresponding to the specified key from the map,
// reporting whether it was present. The bucket becomes a tombstone which is
// reclaimed by the next rehash.
func (m *Map[K, V]) Delete(key K) bool {
	return m.DeleteHashed(m.hash(key), key)
}

// DeleteHashed is Delete with a precomputed hash, which must equal
// m.Hash(key).
func (m *Map[K, V]) DeleteHashed(hash uint64, key K) bool {
	i, ok := m.find(tag(hash), key)
	if !ok {
		return false
	}
	b := &m.buckets[i]
	// Zero the key and value so the map does not retain references through
	// a tombstone.
	*b = Bucket[K, V]{hash: b.hash &^ bucketVisible}
	m.count--
	m.epoch++
	m.checkInvariants()
	return true
}

// Clear deletes all entries from the map resulting in an empty map. The
// capacity is retained.
func (m *Map[K, V]) Clear() {
	clear(m.buckets)
	m.count = 0
	m.load = 0
	m.epoch++
	m.checkInvariants()
}

// Reserve rehashes the map into a bucket array of at least capacity buckets
// (rounded up to a power of two), and never fewer than needed to hold the
// current entries. It can shrink an over-allocated map. Tombstones are
// discarded. If the allocator fails the map is unchanged.
func (m *Map[K, V]) Reserve(capacity int) error {
	if capacity < 0 {
		return errors.Wrapf(ErrInvalidArgument, "reserve %d", capacity)
	}
	return m.rehash(capacity, m.count, "reserve")
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.count
}

// Empty reports whether the map has no entries.
func (m *Map[K, V]) Empty() bool {
	return m.count == 0
}

// Capacity returns the number of buckets in the map.
func (m *Map[K, V]) Capacity() int {
	return len(m.buckets)
}

// LoadFactor returns the fraction of buckets holding a live entry or a
// tombstone.
func (m *Map[K, V]) LoadFactor() float64 {
	if len(m.buckets) == 0 {
		return 0
	}
	return float64(m.load) / float64(len(m.buckets))
}

// find probes for key. If the key is present it returns its bucket index
// and true. Otherwise it returns the index of the empty bucket that
// terminated the probe and false.
func (m *Map[K, V]) find(h statusHash, key K) (int, bool) {
	if len(m.buckets) == 0 {
		return 0, false
	}
	seq := makeProbeSeq(uintptr(h), uintptr(len(m.buckets)-1))
	for ; ; seq = seq.next() {
		b := &m.buckets[seq.offset]
		if b.hash == h && b.key == key {
			return int(seq.offset), true
		}
		if !b.hash.valid() {
			return int(seq.offset), false
		}
	}
}

// findEmpty returns the first empty bucket in the probe sequence for h. The
// table must have an empty bucket, which the load limit guarantees.
func (m *Map[K, V]) findEmpty(h statusHash) int {
	seq := makeProbeSeq(uintptr(h), uintptr(len(m.buckets)-1))
	for ; ; seq = seq.next() {
		if !m.buckets[seq.offset].hash.valid() {
			return int(seq.offset)
		}
	}
}

// grow makes room for one more entry, either by compacting tombstones at
// the current capacity or by doubling it.
func (m *Map[K, V]) grow() error {
	capacity := len(m.buckets)
	if m.load+1 >= compactRatio*(m.count+1) {
		return m.rehash(capacity, m.count+1, "compact")
	}
	return m.rehash(2*capacity, m.count+1, "grow")
}

// maxBuckets returns the largest power-of-two bucket count whose array size
// in bytes fits in an int.
func maxBuckets[K comparable, V any]() int {
	n := min(1<<(bits.UintSize-2), math.MaxInt/max(BucketSize[K, V](), 1))
	return 1 << (bits.Len(uint(n)) - 1)
}

// growthLimit returns the maximum load for a table of the given capacity.
func growthLimit(capacity int, maxLoadFactor float64) int {
	return int(float64(capacity) * maxLoadFactor)
}

// rehash moves the live entries into a new bucket array of at least
// capacity buckets that can hold need entries under the load limit. The new
// array is allocated before the map is touched, so an allocation failure
// leaves the map as it was.
func (m *Map[K, V]) rehash(capacity, need int, reason string) error {
	limit := maxBuckets[K, V]()
	if capacity > limit || need > growthLimit(limit, m.maxLoadFactor) {
		return errors.Wrapf(ErrOutOfMemory, "%s to %d buckets for %d entries", reason, capacity, need)
	}
	capacity = max(capacity, m.count, minCapacity)
	capacity = 1 << bits.Len(uint(capacity-1))
	for growthLimit(capacity, m.maxLoadFactor) < need {
		capacity *= 2
	}

	buckets, err := m.allocator.Alloc(capacity)
	if err == nil && len(buckets) != capacity {
		if buckets != nil {
			m.allocator.Free(buckets)
		}
		err = errors.Errorf("allocator returned %d buckets", len(buckets))
	}
	if err != nil {
		m.logger.Warn("hashtable: bucket allocation failed",
			zap.String("reason", reason),
			zap.Int("capacity", capacity),
			zap.Int("count", m.count),
			zap.Error(err))
		if !errors.Is(err, ErrOutOfMemory) {
			err = errors.Wrap(ErrOutOfMemory, err.Error())
		}
		return errors.Wrapf(err, "%s to %d buckets", reason, capacity)
	}
	// The allocator is not required to hand back zeroed memory.
	clear(buckets)

	old := m.buckets
	m.buckets = buckets
	for i := range old {
		if b := &old[i]; b.hash.live() {
			m.buckets[m.findEmpty(b.hash)] = *b
		}
	}
	m.load = m.count
	m.growthLimit = growthLimit(capacity, m.maxLoadFactor)
	m.epoch++

	if old != nil {
		m.logger.Debug("hashtable: rehash",
			zap.String("reason", reason),
			zap.Int("from", len(old)),
			zap.Int("to", capacity),
			zap.Int("count", m.count))
		m.allocator.Free(old)
	}
	m.checkInvariants()
	return nil
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		capacity := len(m.buckets)
		if capacity != 0 && (capacity < minCapacity || capacity&(capacity-1) != 0) {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two >= %d\n%s",
				capacity, minCapacity, m.debugString()))
		}
		if m.load > m.growthLimit || m.growthLimit >= max(capacity, 1) {
			panic(fmt.Sprintf("invariant failed: load=%d growthLimit=%d capacity=%d\n%s",
				m.load, m.growthLimit, capacity, m.debugString()))
		}

		// For every live bucket, verify we can find the key again and that
		// its hash matches. Count the number of live and deleted buckets.
		var live, deleted int
		for i := range m.buckets {
			b := &m.buckets[i]
			switch {
			case !b.hash.valid():
			case b.hash.tombstone():
				deleted++
			default:
				if h := tag(m.hash(b.key)); h != b.hash {
					panic(fmt.Sprintf("invariant failed: bucket(%d): %v stored with hash %s, expected %s\n%s",
						i, b.key, b.hash, h, m.debugString()))
				}
				if j, ok := m.find(b.hash, b.key); !ok || j != i {
					panic(fmt.Sprintf("invariant failed: bucket(%d): %v not found\n%s",
						i, b.key, m.debugString()))
				}
				live++
			}
		}

		if live != m.count {
			panic(fmt.Sprintf("invariant failed: found %d live buckets, but count is %d\n%s",
				live, m.count, m.debugString()))
		}
		if live+deleted != m.load {
			panic(fmt.Sprintf("invariant failed: found %d live+deleted buckets, but load is %d\n%s",
				live+deleted, m.load, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  count=%d  load=%d  growth-limit=%d\n",
		len(m.buckets), m.count, m.load, m.growthLimit)
	for i := range m.buckets {
		switch b := &m.buckets[i]; {
		case !b.hash.valid():
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case b.hash.tombstone():
			fmt.Fprintf(&buf, "  %4d: %s\n", i, b.hash)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [hash=%s]\n", i, b.key, b.hash)
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := (i^2 + i)/2 + hash (mod mask+1)
//
// It visits every bucket exactly once if the number of buckets is a power
// of two, since (i^2+i)/2 is a bijection in Z/(2^m). See
// https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}
