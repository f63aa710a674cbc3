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
	"encoding/binary"
	"math"
	"math/bits"
	"reflect"
	"unsafe"
)

const (
	k0 = 0xc3a5c85c97cb3127

	// Masks that clear the two low bits of the final byte of a word. Keys
	// differing only in those bits mix identically and then differ by a
	// small additive delta, keeping neighbouring keys in neighbouring
	// buckets.
	mask16 = 0xfcff
	mask32 = 0xfcffffff
	mask64 = 0xfcffffffffffffff

	// intMask additionally drops the two low bits of the first byte and
	// the top two bits of the word before mixing the integer path.
	intMask = 0x3cfffffffffffffc
)

// Hash returns a 64-bit locality-preserving hash of b. Inputs of 32 bytes or
// more are first folded 32 bytes at a time through an AES round; the
// remaining tail is mixed with a multiply-rotate step.
//
// Hash is fast and deterministic within a process but it is not a
// cryptographic hash, and values are not stable across byte orders.
func Hash(b []byte) uint64 {
	var seed uint64
	if len(b) >= 32 {
		seed, b = hashWide(b)
	}
	return hashTail(seed, b)
}

// HashString is Hash for strings. It does not copy s.
func HashString(s string) uint64 {
	return Hash(unsafe.Slice(unsafe.StringData(s), len(s)))
}

func hashWide(b []byte) (uint64, []byte) {
	var h1, h2, h3 lane
	for len(b) >= 32 {
		h1 = h1.add(loadLane(b[0:16]))
		h2 = h2.add(loadLane(b[16:32]))
		h3 = h3.add(aesenc(h1, h2))
		b = b[32:]
	}
	h3 = aesenc(h3, h1)
	h3 = aesenc(h3, h2)
	// Both halves carry key material from h2, so both fold into the seed.
	return h3.lo ^ h3.hi, b
}

func hashTail(h uint64, s []byte) uint64 {
	n := len(s)
	switch {
	case n == 0:
		return h
	case n == 1:
		return h + uint64(s[0])<<1
	case n < 4:
		var sum uint64
		for o := 0; o+2 < n; o += 2 {
			sum += uint64(binary.LittleEndian.Uint16(s[o:]))
		}
		last := uint64(binary.LittleEndian.Uint16(s[n-2:]))
		return mixTail(h, sum+last&mask16, n, s[n-1])
	case n < 8:
		var sum uint64
		for o := 0; o+4 < n; o += 4 {
			sum += uint64(binary.LittleEndian.Uint32(s[o:]))
		}
		last := uint64(binary.LittleEndian.Uint32(s[n-4:]))
		return mixTail(h, sum+last&mask32, n, s[n-1])
	case n == 8:
		return mixWord(h, binary.LittleEndian.Uint64(s))
	default:
		var sum uint64
		for o := 0; o+8 < n; o += 8 {
			sum += binary.LittleEndian.Uint64(s[o:])
		}
		last := binary.LittleEndian.Uint64(s[n-8:])
		return mixTail(h, sum+last&mask64, n, s[n-1])
	}
}

func mixTail(h, sum uint64, n int, last byte) uint64 {
	return bits.RotateLeft64((h+sum+uint64(n))*k0, -33) + uint64(last)<<1
}

// mixWord hashes a single 64-bit word. Words that differ only in their two
// low bits hash exactly 2 apart per unit of difference.
func mixWord(h, x uint64) uint64 {
	y := x & intMask
	return h + bits.RotateLeft64(y*k0, -47) + x<<1 + x>>62
}

// HashUint64 hashes x as its 8 little-endian bytes.
func HashUint64(x uint64) uint64 {
	return mixWord(0, x)
}

// HashInt64 hashes x as its 8 little-endian bytes.
func HashInt64(x int64) uint64 {
	return mixWord(0, uint64(x))
}

// HashInt hashes x as a 64-bit integer regardless of platform word size.
func HashInt(x int) uint64 {
	return mixWord(0, uint64(x))
}

// HashUint32 hashes x widened to 64 bits, so that it hashes like the equal
// uint64.
func HashUint32(x uint32) uint64 {
	return mixWord(0, uint64(x))
}

// HashInt32 hashes x sign-extended to 64 bits, so that it hashes like the
// equal int64.
func HashInt32(x int32) uint64 {
	return mixWord(0, uint64(int64(x)))
}

// HashFloat64 hashes the bit pattern of f. Negative zero hashes as positive
// zero so that values comparing equal hash equally.
func HashFloat64(f float64) uint64 {
	if f == 0 {
		f = 0
	}
	return HashUint64(math.Float64bits(f))
}

// HashFloat32 is HashFloat64 for float32.
func HashFloat32(f float32) uint64 {
	if f == 0 {
		f = 0
	}
	return HashUint32(math.Float32bits(f))
}

// defaultHasher returns the built-in hash function for K, or false if K's
// kind has none and a hash function must be supplied with WithHash.
// Integers of every width hash like the equal 64-bit integer.
func defaultHasher[K comparable]() (func(K) uint64, bool) {
	var zero K
	switch reflect.TypeOf(&zero).Elem().Kind() {
	case reflect.Int:
		return func(k K) uint64 { return HashInt(*(*int)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Int8:
		return func(k K) uint64 { return HashInt64(int64(*(*int8)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Int16:
		return func(k K) uint64 { return HashInt64(int64(*(*int16)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Int32:
		return func(k K) uint64 { return HashInt32(*(*int32)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Int64:
		return func(k K) uint64 { return HashInt64(*(*int64)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Uint8, reflect.Bool:
		return func(k K) uint64 { return HashUint64(uint64(*(*uint8)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Uint16:
		return func(k K) uint64 { return HashUint64(uint64(*(*uint16)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Uint32:
		return func(k K) uint64 { return HashUint32(*(*uint32)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Uint64:
		return func(k K) uint64 { return HashUint64(*(*uint64)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Uint:
		return func(k K) uint64 { return HashUint64(uint64(*(*uint)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Uintptr, reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		// Pointers hash by address; the Go heap does not move objects.
		return func(k K) uint64 { return HashUint64(uint64(*(*uintptr)(noescape(unsafe.Pointer(&k))))) }, true
	case reflect.Float32:
		return func(k K) uint64 { return HashFloat32(*(*float32)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.Float64:
		return func(k K) uint64 { return HashFloat64(*(*float64)(noescape(unsafe.Pointer(&k)))) }, true
	case reflect.String:
		return func(k K) uint64 { return HashString(*(*string)(noescape(unsafe.Pointer(&k)))) }, true
	}
	return nil, false
}

// noescape hides a pointer from escape analysis. noescape is the identity
// function but escape analysis doesn't think the output depends on the
// input. USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
