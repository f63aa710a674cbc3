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

// Iterator is a cursor over the live entries of a Map, in bucket order. It
// is used as:
//
//	it := m.Iter()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// Any structural mutation of the map (inserting a new key, Delete, Clear,
// Reserve, a rehash or Close) invalidates the iterator: the following call
// to Next returns false and Err returns ErrIteratorInvalidated. Overwriting
// the value of an existing key is not a structural mutation.
type Iterator[K comparable, V any] struct {
	m     *Map[K, V]
	epoch uint64
	pos   int
	cur   Bucket[K, V]
	done  bool
	err   error
}

// Iter returns an iterator positioned before the first entry of m.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{m: m, epoch: m.epoch, pos: -1}
}

// Next advances to the next live entry and reports whether there is one.
// Once Next returns false it keeps returning false.
func (it *Iterator[K, V]) Next() bool {
	if it.done {
		return false
	}
	if it.epoch != it.m.epoch {
		it.err = ErrIteratorInvalidated
		it.finish()
		return false
	}
	buckets := it.m.buckets
	for it.pos++; it.pos < len(buckets); it.pos++ {
		if b := &buckets[it.pos]; b.hash.live() {
			it.cur = *b
			return true
		}
	}
	it.finish()
	return false
}

func (it *Iterator[K, V]) finish() {
	it.done = true
	it.cur = Bucket[K, V]{}
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.cur.key
}

// Value returns the value of the current entry as of the call to Next.
func (it *Iterator[K, V]) Value() V {
	return it.cur.value
}

// Hash returns the stored hash of the current entry, including the status
// bits.
func (it *Iterator[K, V]) Hash() uint64 {
	return uint64(it.cur.hash)
}

// Err returns ErrIteratorInvalidated if iteration stopped because the map
// was structurally modified, and nil otherwise.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, All stops the iteration. The map must not be
// structurally modified by yield; All panics with ErrIteratorInvalidated if
// it is.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	it := m.Iter()
	for it.Next() {
		if !yield(it.Key(), it.Value()) {
			return
		}
	}
	if err := it.Err(); err != nil {
		panic(err)
	}
}
