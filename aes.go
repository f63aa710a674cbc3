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
	"math/bits"
)

// lane is a 128-bit value viewed as two little-endian 64-bit halves. Byte i
// of the AES state is byte i%8 of lo (i < 8) or hi (i >= 8).
type lane struct {
	lo, hi uint64
}

func loadLane(b []byte) lane {
	_ = b[15]
	return lane{
		lo: binary.LittleEndian.Uint64(b[0:8]),
		hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func (l lane) bytes() (s [16]byte) {
	binary.LittleEndian.PutUint64(s[0:8], l.lo)
	binary.LittleEndian.PutUint64(s[8:16], l.hi)
	return s
}

// add performs two independent 64-bit additions, one per half.
func (l lane) add(o lane) lane {
	return lane{lo: l.lo + o.lo, hi: l.hi + o.hi}
}

// sbox is the AES substitution box.
var sbox = func() (s [256]byte) {
	// Walk the multiplicative group of GF(2^8) with generator 3 (p) while
	// tracking its inverse (q), then apply the affine transformation.
	p, q := byte(1), byte(1)
	for {
		if p&0x80 != 0 {
			p ^= p<<1 ^ 0x1b
		} else {
			p ^= p << 1
		}
		q ^= q << 1
		q ^= q << 2
		q ^= q << 4
		if q&0x80 != 0 {
			q ^= 0x09
		}
		x := q ^ bits.RotateLeft8(q, 1) ^ bits.RotateLeft8(q, 2) ^
			bits.RotateLeft8(q, 3) ^ bits.RotateLeft8(q, 4)
		s[p] = x ^ 0x63
		if p == 1 {
			break
		}
	}
	// Zero has no inverse.
	s[0] = 0x63
	return s
}()

// xtime multiplies by x (i.e. 2) in GF(2^8).
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func mixColumn(c *[4]byte) {
	a0, a1, a2, a3 := c[0], c[1], c[2], c[3]
	c[0] = xtime(a0) ^ xtime(a1) ^ a1 ^ a2 ^ a3
	c[1] = a0 ^ xtime(a1) ^ xtime(a2) ^ a2 ^ a3
	c[2] = a0 ^ a1 ^ xtime(a2) ^ xtime(a3) ^ a3
	c[3] = xtime(a0) ^ a0 ^ a1 ^ a2 ^ xtime(a3)
}

// aesenc performs one AES encryption round on state using key as the round
// key: ShiftRows, SubBytes, MixColumns, AddRoundKey. The result matches the
// x86 AESENC instruction bit for bit.
func aesenc(state, key lane) lane {
	s := state.bytes()
	var t [16]byte
	for c := 0; c < 4; c++ {
		var col [4]byte
		for r := 0; r < 4; r++ {
			col[r] = sbox[s[((c+r)%4)*4+r]]
		}
		mixColumn(&col)
		copy(t[c*4:], col[:])
	}
	out := loadLane(t[:])
	out.lo ^= key.lo
	out.hi ^= key.hi
	return out
}
