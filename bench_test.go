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
	"fmt"
	"io"
	"strconv"
	"testing"
	"unsafe"

	"github.com/aclements/go-perfevent/perfbench"
	"github.com/cespare/xxhash/v2"
	"github.com/probing/hashtable/fastrand"
)

type benchTypes interface {
	int32 | int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	var t T
	switch any(t).(type) {
	case int32:
		keys := make([]int32, end-start)
		for i := range keys {
			keys[i] = int32(start + i)
		}
		return unsafeConvertSlice[T](keys)
	case int64:
		keys := make([]int64, end-start)
		for i := range keys {
			keys[i] = int64(start + i)
		}
		return unsafeConvertSlice[T](keys)
	case string:
		keys := make([]string, end-start)
		for i := range keys {
			keys[i] = strconv.Itoa(start + i)
		}
		return unsafeConvertSlice[T](keys)
	default:
		panic("not reached")
	}
}

func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}

type benchFn[T benchTypes] func(b *testing.B, n int, genKeys func(start, end int) []T)

// benchAllTypes runs one implementation of a benchmark for each key type.
func benchAllTypes(
	b *testing.B, impl string, i64 benchFn[int64], i32 benchFn[int32], str benchFn[string],
) {
	b.Run("impl="+impl, func(b *testing.B) {
		b.Run("t=Int64", benchSizes[int64](i64, genKeys[int64]))
		b.Run("t=Int32", benchSizes[int32](i32, genKeys[int32]))
		b.Run("t=String", benchSizes[string](str, genKeys[string]))
	})
}

func BenchmarkMapIter(b *testing.B) {
	benchAllTypes(b, "runtimeMap",
		benchmarkRuntimeMapIter[int64], benchmarkRuntimeMapIter[int32], benchmarkRuntimeMapIter[string])
	benchAllTypes(b, "hashtable",
		benchmarkMapIter[int64], benchmarkMapIter[int32], benchmarkMapIter[string])
}

func BenchmarkMapGetHit(b *testing.B) {
	benchAllTypes(b, "runtimeMap",
		benchmarkRuntimeMapGetHit[int64], benchmarkRuntimeMapGetHit[int32], benchmarkRuntimeMapGetHit[string])
	benchAllTypes(b, "hashtable",
		benchmarkMapGetHit[int64], benchmarkMapGetHit[int32], benchmarkMapGetHit[string])
}

func BenchmarkMapGetMiss(b *testing.B) {
	benchAllTypes(b, "runtimeMap",
		benchmarkRuntimeMapGetMiss[int64], benchmarkRuntimeMapGetMiss[int32], benchmarkRuntimeMapGetMiss[string])
	benchAllTypes(b, "hashtable",
		benchmarkMapGetMiss[int64], benchmarkMapGetMiss[int32], benchmarkMapGetMiss[string])
}

func BenchmarkMapPutGrow(b *testing.B) {
	benchAllTypes(b, "runtimeMap",
		benchmarkRuntimeMapPutGrow[int64], benchmarkRuntimeMapPutGrow[int32], benchmarkRuntimeMapPutGrow[string])
	benchAllTypes(b, "hashtable",
		benchmarkMapPutGrow[int64], benchmarkMapPutGrow[int32], benchmarkMapPutGrow[string])
}

func BenchmarkMapPutDelete(b *testing.B) {
	benchAllTypes(b, "runtimeMap",
		benchmarkRuntimeMapPutDelete[int64], benchmarkRuntimeMapPutDelete[int32], benchmarkRuntimeMapPutDelete[string])
	benchAllTypes(b, "hashtable",
		benchmarkMapPutDelete[int64], benchmarkMapPutDelete[int32], benchmarkMapPutDelete[string])
}

func newBenchMap[T benchTypes](b *testing.B, n int, keys []T) *Map[T, T] {
	m, err := New[T, T](n)
	if err != nil {
		b.Fatal(err)
	}
	for _, k := range keys {
		if err := m.Put(k, k); err != nil {
			b.Fatal(err)
		}
	}
	return m
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	for _, k := range genKeys(0, n) {
		m[k] = k
	}
	b.ResetTimer()
	perfbench.Open(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += k + v
		}
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap(b, n, genKeys(0, n))
	b.ResetTimer()
	perfbench.Open(b)
	var tmp T
	for i := 0; i < b.N; i++ {
		it := m.Iter()
		for it.Next() {
			tmp += it.Key() + it.Value()
		}
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkRuntimeMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T)
	for _, k := range genKeys(0, n) {
		m[k] = k
	}
	miss := genKeys(-n, 0)
	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m[miss[i%len(miss)]]
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap(b, 0, genKeys(0, n))
	miss := genKeys(-n, 0)
	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	for _, k := range genKeys(0, n) {
		m[k] = k
	}

	// Go's builtin map has an optimization to avoid string comparisons if
	// there is pointer equality. Defeat this optimization to get a better
	// apples-to-apples comparison.
	keys := genKeys(0, n)

	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m[keys[i%n]]
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap(b, n, genKeys(0, n))
	keys := genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		newBenchMap(b, 0, keys).Close()
	}
}

func benchmarkRuntimeMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkMapPutDelete[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	m := newBenchMap(b, n, keys)
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Delete(keys[j])
		_ = m.Put(keys[j], keys[j])
	}
}

func BenchmarkHash(b *testing.B) {
	rng := fastrand.New(1)
	for _, n := range []int{4, 8, 16, 31, 32, 64, 256, 4096} {
		data := rng.Bytes(n)
		b.Run(fmt.Sprintf("impl=hashtable/len=%d", n), func(b *testing.B) {
			b.SetBytes(int64(n))
			b.ResetTimer()
			perfbench.Open(b)
			var h uint64
			for i := 0; i < b.N; i++ {
				h += Hash(data)
			}
			b.StopTimer()
			fmt.Fprint(io.Discard, h)
		})
		b.Run(fmt.Sprintf("impl=xxhash/len=%d", n), func(b *testing.B) {
			b.SetBytes(int64(n))
			b.ResetTimer()
			perfbench.Open(b)
			var h uint64
			for i := 0; i < b.N; i++ {
				h += xxhash.Sum64(data)
			}
			b.StopTimer()
			fmt.Fprint(io.Discard, h)
		})
	}
}

func BenchmarkMapGetHitXXHash(b *testing.B) {
	const n = 1 << 16
	keys := genKeys[string](0, n)
	m, err := New[string, string](n, WithHash[string, string](xxhash.Sum64String))
	if err != nil {
		b.Fatal(err)
	}
	for _, k := range keys {
		_ = m.Put(k, k)
	}
	b.ResetTimer()
	perfbench.Open(b)
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}
