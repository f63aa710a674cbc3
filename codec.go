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
	"unsafe"

	"github.com/pkg/errors"
)

// KeyKind identifies how keys are laid out in an encoded Map.
type KeyKind uint64

const (
	// KeyKindRaw keys occupy a fixed number of bytes given by the codec's
	// Size.
	KeyKindRaw KeyKind = 0
	// KeyKindString keys are variable length, NUL terminated, and prefixed
	// with their padded length.
	KeyKindString KeyKind = 1
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindRaw:
		return "raw"
	case KeyKindString:
		return "string"
	default:
		return "unknown"
	}
}

// KeyCodec converts keys to and from their encoded form.
type KeyCodec[K any] interface {
	Kind() KeyKind
	// Size is the encoded size of a KeyKindRaw key. It is 0 for
	// KeyKindString.
	Size() int
	// AppendKey appends the encoding of key to dst. Raw keys must append
	// exactly Size bytes. String keys append their bytes without the NUL
	// terminator.
	AppendKey(dst []byte, key K) ([]byte, error)
	// ReadKey decodes a key from exactly the bytes produced by AppendKey.
	ReadKey(src []byte) (K, error)
}

// ValueCodec converts values to and from their fixed-size encoded form.
type ValueCodec[V any] interface {
	Size() int
	AppendValue(dst []byte, value V) ([]byte, error)
	ReadValue(src []byte) (V, error)
}

// Integer is the set of types IntCodec can encode.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// IntCodec encodes integers as little-endian values of their native size. It
// can be used as both a KeyCodec and a ValueCodec.
type IntCodec[T Integer] struct{}

func (IntCodec[T]) Kind() KeyKind { return KeyKindRaw }

func (IntCodec[T]) Size() int {
	var t T
	return int(unsafe.Sizeof(t))
}

func (c IntCodec[T]) AppendKey(dst []byte, key T) ([]byte, error) {
	return appendUint(dst, uint64(key), c.Size()), nil
}

func (c IntCodec[T]) ReadKey(src []byte) (T, error) {
	x, err := readUint(src, c.Size())
	// Converting back truncates to the width of T, which restores the sign
	// of narrow signed types.
	return T(x), err
}

func (c IntCodec[T]) AppendValue(dst []byte, value T) ([]byte, error) {
	return c.AppendKey(dst, value)
}

func (c IntCodec[T]) ReadValue(src []byte) (T, error) {
	return c.ReadKey(src)
}

// FloatCodec encodes floating point numbers as their little-endian IEEE 754
// bit pattern. It can be used as both a KeyCodec and a ValueCodec.
type FloatCodec[T ~float32 | ~float64] struct{}

func (FloatCodec[T]) Kind() KeyKind { return KeyKindRaw }

func (FloatCodec[T]) Size() int {
	var t T
	return int(unsafe.Sizeof(t))
}

func (c FloatCodec[T]) AppendKey(dst []byte, key T) ([]byte, error) {
	if c.Size() == 4 {
		return appendUint(dst, uint64(math.Float32bits(float32(key))), 4), nil
	}
	return appendUint(dst, math.Float64bits(float64(key)), 8), nil
}

func (c FloatCodec[T]) ReadKey(src []byte) (T, error) {
	x, err := readUint(src, c.Size())
	if c.Size() == 4 {
		return T(math.Float32frombits(uint32(x))), err
	}
	return T(math.Float64frombits(x)), err
}

func (c FloatCodec[T]) AppendValue(dst []byte, value T) ([]byte, error) {
	return c.AppendKey(dst, value)
}

func (c FloatCodec[T]) ReadValue(src []byte) (T, error) {
	return c.ReadKey(src)
}

// StringCodec is the KeyCodec for string keys.
type StringCodec[T ~string] struct{}

func (StringCodec[T]) Kind() KeyKind { return KeyKindString }

func (StringCodec[T]) Size() int { return 0 }

func (StringCodec[T]) AppendKey(dst []byte, key T) ([]byte, error) {
	return append(dst, string(key)...), nil
}

func (StringCodec[T]) ReadKey(src []byte) (T, error) {
	return T(src), nil
}

// SetCodec is the ValueCodec for maps used as sets. Values take no space
// and decode as the zero value.
type SetCodec[V any] struct{}

func (SetCodec[V]) Size() int { return 0 }

func (SetCodec[V]) AppendValue(dst []byte, _ V) ([]byte, error) {
	return dst, nil
}

func (SetCodec[V]) ReadValue(_ []byte) (V, error) {
	var v V
	return v, nil
}

func appendUint(dst []byte, x uint64, n int) []byte {
	if n == 8 {
		return binary.LittleEndian.AppendUint64(dst, x)
	}
	for i := 0; i < n; i++ {
		dst = append(dst, byte(x>>(8*i)))
	}
	return dst
}

func readUint(src []byte, n int) (uint64, error) {
	if len(src) != n {
		return 0, errors.Wrapf(ErrCorrupt, "expected %d bytes, found %d", n, len(src))
	}
	if n == 8 {
		return binary.LittleEndian.Uint64(src), nil
	}
	var x uint64
	for i := n - 1; i >= 0; i-- {
		x = x<<8 | uint64(src[i])
	}
	return x, nil
}
