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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntCodec(t *testing.T) {
	var c8 IntCodec[int8]
	require.Equal(t, KeyKindRaw, c8.Kind())
	require.Equal(t, 1, c8.Size())
	b, err := c8.AppendKey(nil, -1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff}, b)
	k, err := c8.ReadKey(b)
	require.NoError(t, err)
	require.EqualValues(t, -1, k)

	var c16 IntCodec[uint16]
	require.Equal(t, 2, c16.Size())
	b, err = c16.AppendValue([]byte{9}, 0x1234)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 0x34, 0x12}, b)
	v, err := c16.ReadValue(b[1:])
	require.NoError(t, err)
	require.EqualValues(t, 0x1234, v)

	var c64 IntCodec[int64]
	require.Equal(t, 8, c64.Size())
	b, err = c64.AppendKey(nil, math.MinInt64)
	require.NoError(t, err)
	k64, err := c64.ReadKey(b)
	require.NoError(t, err)
	require.EqualValues(t, math.MinInt64, k64)

	_, err = c64.ReadKey(b[:7])
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFloatCodec(t *testing.T) {
	var c32 FloatCodec[float32]
	require.Equal(t, 4, c32.Size())
	b, err := c32.AppendKey(nil, 1.5)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0xc0, 0x3f}, b)
	f32, err := c32.ReadKey(b)
	require.NoError(t, err)
	require.EqualValues(t, 1.5, f32)

	var c64 FloatCodec[float64]
	require.Equal(t, 8, c64.Size())
	b, err = c64.AppendValue(nil, -2.25)
	require.NoError(t, err)
	f64, err := c64.ReadValue(b)
	require.NoError(t, err)
	require.EqualValues(t, -2.25, f64)

	b, err = c64.AppendValue(nil, math.Inf(1))
	require.NoError(t, err)
	f64, err = c64.ReadValue(b)
	require.NoError(t, err)
	require.True(t, math.IsInf(f64, 1))
}

func TestStringAndSetCodecs(t *testing.T) {
	type name string
	var sc StringCodec[name]
	require.Equal(t, KeyKindString, sc.Kind())
	require.Zero(t, sc.Size())
	b, err := sc.AppendKey([]byte("x"), "hello")
	require.NoError(t, err)
	require.Equal(t, "xhello", string(b))
	k, err := sc.ReadKey(b[1:])
	require.NoError(t, err)
	require.Equal(t, name("hello"), k)

	var set SetCodec[struct{}]
	require.Zero(t, set.Size())
	b, err = set.AppendValue([]byte("y"), struct{}{})
	require.NoError(t, err)
	require.Equal(t, "y", string(b))
	_, err = set.ReadValue(nil)
	require.NoError(t, err)

	require.Equal(t, "raw", KeyKindRaw.String())
	require.Equal(t, "string", KeyKindString.String())
	require.Equal(t, "unknown", KeyKind(7).String())
}
