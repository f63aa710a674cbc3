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

// Package fastrand provides a small, fast, non-cryptographic pseudo-random
// number generator based on xoroshiro128+.
package fastrand

import (
	"crypto/rand"
	"encoding/binary"
	"math/bits"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Rand is a xoroshiro128+ generator. The zero value is not a useful
// generator; use New or Seed. A Rand is NOT goroutine-safe.
type Rand struct {
	s0, s1 uint64
}

// New returns a generator seeded with seed. Generators with the same seed
// produce the same sequence.
func New(seed uint64) *Rand {
	r := &Rand{}
	r.Seed(seed)
	return r
}

// NewSeeded returns a generator seeded from the operating system's secure
// random source.
func NewSeeded() (*Rand, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, errors.Wrap(err, "fastrand: reading seed")
	}
	return New(binary.LittleEndian.Uint64(b[:])), nil
}

// Seed resets the generator state from seed.
func (r *Rand) Seed(seed uint64) {
	r.s0 = seed
	r.s1 = 1
	r.Uint64()
}

// Uint64 returns the next 64 pseudo-random bits. It makes Rand a
// math/rand/v2 Source.
func (r *Rand) Uint64() uint64 {
	s0, s1 := r.s0, r.s1
	result := s0 + s1
	s1 ^= s0
	r.s0 = bits.RotateLeft64(s0, 24) ^ s1 ^ s1<<16
	r.s1 = bits.RotateLeft64(s1, 37)
	return result
}

// Randint returns a pseudo-random integer in [lo, hi]. The result is reduced
// modulo the range size and so carries a slight bias for very wide ranges.
// It panics if lo > hi.
func (r *Rand) Randint(lo, hi int64) int64 {
	if lo > hi {
		panic(errors.Errorf("fastrand: invalid range [%d, %d]", lo, hi))
	}
	span := uint64(hi-lo) + 1
	if span == 0 {
		// The range covers every int64.
		return int64(r.Uint64())
	}
	return int64(uint64(lo) + r.Uint64()%span)
}

// Float64 returns a pseudo-random number in [0, 1) with 53 bits of
// precision.
func (r *Rand) Float64() float64 {
	return float64(r.Uint64()>>11) * 0x1.0p-53
}

// Read fills p with pseudo-random bytes. It always returns len(p), nil.
func (r *Rand) Read(p []byte) (int, error) {
	i := 0
	for ; i+8 <= len(p); i += 8 {
		binary.LittleEndian.PutUint64(p[i:], r.Uint64())
	}
	for ; i < len(p); i++ {
		p[i] = byte(r.Uint64())
	}
	return len(p), nil
}

// Bytes returns n pseudo-random bytes.
func (r *Rand) Bytes(n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

// UUID returns a version 4, RFC 4122 variant UUID built from 128
// pseudo-random bits. It is not suitable where UUIDs must be unguessable.
func (r *Rand) UUID() uuid.UUID {
	var u uuid.UUID
	binary.LittleEndian.PutUint64(u[0:8], r.Uint64())
	binary.LittleEndian.PutUint64(u[8:16], r.Uint64())
	u[6] = u[6]&0x0f | 0x40
	u[8] = u[8]&0x3f | 0x80
	return u
}

// UUID4 returns UUID in its canonical 36 character form.
func (r *Rand) UUID4() string {
	return r.UUID().String()
}
