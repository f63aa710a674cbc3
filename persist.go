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
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	// encodingMagic is "HASHTBL1" read as a little-endian word.
	encodingMagic uint64 = 0x4841534854424C31

	headerSize = 5 * 8
)

func align8(n int) int {
	return (n + 7) &^ 7
}

// checkCodecs verifies that the codecs describe a representable layout.
func checkCodecs[K comparable, V any](kc KeyCodec[K], vc ValueCodec[V]) error {
	switch kind := kc.Kind(); kind {
	case KeyKindRaw:
		if kc.Size() <= 0 {
			return errors.Wrapf(ErrInvalidCodec, "raw key size %d", kc.Size())
		}
	case KeyKindString:
		if kc.Size() != 0 {
			return errors.Wrapf(ErrInvalidCodec, "string key size %d", kc.Size())
		}
	default:
		return errors.Wrapf(ErrInvalidCodec, "key kind %d", uint64(kind))
	}
	if vc.Size() < 0 {
		return errors.Wrapf(ErrInvalidCodec, "value size %d", vc.Size())
	}
	return nil
}

// Encode returns the binary encoding of m. All fields are little-endian
// 64-bit words or runs of bytes padded with zeros to a multiple of 8:
//
//	magic       "HASHTBL1"
//	key_size    encoded key size, 0 for string keys
//	value_size  encoded value size
//	count       number of entries
//	key_kind    KeyKind
//	count entries of:
//	  hash      stored hash, status bits included
//	  key       raw:    key_size bytes, padded
//	            string: word holding the padded length, then the key
//	                    bytes, a NUL and padding
//	  value     value_size bytes, padded
//
// String keys must not contain NUL bytes.
func Encode[K comparable, V any](m *Map[K, V], kc KeyCodec[K], vc ValueCodec[V]) ([]byte, error) {
	return AppendEncoded(nil, m, kc, vc)
}

// AppendEncoded appends the encoding of m to dst. On error dst is returned
// unmodified, along with the error.
func AppendEncoded[K comparable, V any](
	dst []byte, m *Map[K, V], kc KeyCodec[K], vc ValueCodec[V],
) ([]byte, error) {
	if err := checkCodecs(kc, vc); err != nil {
		return dst, err
	}
	dst0 := dst
	kind := kc.Kind()
	keySize, valueSize := kc.Size(), vc.Size()

	dst = binary.LittleEndian.AppendUint64(dst, encodingMagic)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(keySize))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(valueSize))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(m.count))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(kind))

	var err error
	it := m.Iter()
	for it.Next() {
		key, value := it.Key(), it.Value()
		dst = binary.LittleEndian.AppendUint64(dst, it.Hash())

		if kind == KeyKindString {
			lenPos := len(dst)
			dst = binary.LittleEndian.AppendUint64(dst, 0)
			start := len(dst)
			if dst, err = kc.AppendKey(dst, key); err != nil {
				return dst0, errors.Wrapf(err, "encoding key %v", key)
			}
			n := len(dst) - start
			if bytes.IndexByte(dst[start:], 0) >= 0 {
				return dst0, errors.Wrapf(ErrKeyContainsNUL, "key %q", dst[start:])
			}
			encLen := align8(n + 1)
			binary.LittleEndian.PutUint64(dst[lenPos:], uint64(encLen))
			dst = appendZeros(dst, encLen-n)
		} else if dst, err = appendPadded(dst, keySize, func(dst []byte) ([]byte, error) {
			return kc.AppendKey(dst, key)
		}); err != nil {
			return dst0, errors.Wrapf(err, "encoding key %v", key)
		}

		if dst, err = appendPadded(dst, valueSize, func(dst []byte) ([]byte, error) {
			return vc.AppendValue(dst, value)
		}); err != nil {
			return dst0, errors.Wrapf(err, "encoding value of key %v", key)
		}
	}
	if err := it.Err(); err != nil {
		return dst0, err
	}
	return dst, nil
}

// appendPadded appends a fixed-size field of size bytes using fn and pads it
// to a multiple of 8.
func appendPadded(dst []byte, size int, fn func([]byte) ([]byte, error)) ([]byte, error) {
	start := len(dst)
	dst, err := fn(dst)
	if err != nil {
		return dst, err
	}
	if n := len(dst) - start; n != size {
		return dst, errors.Wrapf(ErrInvalidCodec, "codec wrote %d bytes, expected %d", n, size)
	}
	return appendZeros(dst, align8(size)-size), nil
}

func appendZeros(dst []byte, n int) []byte {
	for ; n > 0; n-- {
		dst = append(dst, 0)
	}
	return dst
}

// decoder reads little-endian words from a buffer.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) bytes(n int, what string) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, errors.Wrapf(ErrTruncated, "reading %s: need %d bytes at offset %d, have %d",
			what, n, d.off, d.remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) uint64(what string) (uint64, error) {
	b, err := d.bytes(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Decode reconstructs a Map from a buffer produced by Encode. The codecs
// must match the ones used for encoding, and the map's hash function must
// reproduce the stored hashes. Options are applied to the new map as in
// New.
//
// Decode either returns a complete map or an error, never a partial map.
// ErrWrongByteOrder is returned for buffers written on a machine with the
// opposite byte order, ErrUnrecognizedFormat for anything else that does
// not start with the magic number, ErrTruncated for buffers that end early
// and ErrCorrupt for inconsistent contents.
func Decode[K comparable, V any](
	buf []byte, kc KeyCodec[K], vc ValueCodec[V], options ...option[K, V],
) (*Map[K, V], error) {
	if err := checkCodecs(kc, vc); err != nil {
		return nil, err
	}
	d := decoder{buf: buf}

	magic, err := d.uint64("magic")
	if err != nil {
		return nil, err
	}
	switch magic {
	case encodingMagic:
	case bits.ReverseBytes64(encodingMagic):
		return nil, ErrWrongByteOrder
	default:
		return nil, errors.Wrapf(ErrUnrecognizedFormat, "magic %016x", magic)
	}

	var header [4]uint64
	for i, what := range []string{"key size", "value size", "count", "key kind"} {
		if header[i], err = d.uint64(what); err != nil {
			return nil, err
		}
	}
	keySize, valueSize, count, kind := header[0], header[1], header[2], KeyKind(header[3])

	switch {
	case kind != KeyKindRaw && kind != KeyKindString:
		return nil, errors.Wrapf(ErrCorrupt, "key kind %d", uint64(kind))
	case kind != kc.Kind():
		return nil, errors.Wrapf(ErrCorrupt, "buffer has %s keys, codec expects %s keys", kind, kc.Kind())
	case keySize != uint64(kc.Size()):
		return nil, errors.Wrapf(ErrCorrupt, "buffer has key size %d, codec expects %d", keySize, kc.Size())
	case valueSize != uint64(vc.Size()):
		return nil, errors.Wrapf(ErrCorrupt, "buffer has value size %d, codec expects %d", valueSize, vc.Size())
	}

	// Bound count by the smallest possible entry before allocating for it.
	minEntry := 8 + align8(kc.Size()) + align8(vc.Size())
	if kind == KeyKindString {
		minEntry += 16
	}
	if count > uint64(d.remaining()/minEntry) {
		return nil, errors.Wrapf(ErrTruncated, "%d entries of at least %d bytes in %d bytes",
			count, minEntry, d.remaining())
	}

	m, err := New[K, V](int(count), options...)
	if err != nil {
		return nil, err
	}
	if err := decodeEntries(&d, m, int(count), kc, vc); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func decodeEntries[K comparable, V any](
	d *decoder, m *Map[K, V], count int, kc KeyCodec[K], vc ValueCodec[V],
) error {
	keySize, valueSize := kc.Size(), vc.Size()
	for i := 0; i < count; i++ {
		hash, err := d.uint64("hash")
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		if h := statusHash(hash); !h.live() {
			return errors.Wrapf(ErrCorrupt, "entry %d: hash %016x lacks status bits", i, hash)
		}

		var key K
		if kc.Kind() == KeyKindString {
			encLen, err := d.uint64("key length")
			if err != nil {
				return errors.Wrapf(err, "entry %d", i)
			}
			if encLen == 0 || encLen%8 != 0 {
				return errors.Wrapf(ErrCorrupt, "entry %d: key length %d", i, encLen)
			}
			if encLen > uint64(d.remaining()) {
				return errors.Wrapf(ErrTruncated, "entry %d: key length %d exceeds %d remaining bytes",
					i, encLen, d.remaining())
			}
			b, _ := d.bytes(int(encLen), "key")
			n := bytes.IndexByte(b, 0)
			if n < 0 {
				return errors.Wrapf(ErrCorrupt, "entry %d: key is not NUL terminated", i)
			}
			if encLen != uint64(align8(n+1)) {
				return errors.Wrapf(ErrCorrupt, "entry %d: key length %d for a %d byte key", i, encLen, n)
			}
			if len(bytes.TrimRight(b[n:], "\x00")) != 0 {
				return errors.Wrapf(ErrCorrupt, "entry %d: non-zero key padding", i)
			}
			if key, err = kc.ReadKey(b[:n]); err != nil {
				return errors.Wrapf(err, "entry %d: decoding key", i)
			}
		} else {
			b, err := d.bytes(align8(keySize), "key")
			if err != nil {
				return errors.Wrapf(err, "entry %d", i)
			}
			if key, err = kc.ReadKey(b[:keySize]); err != nil {
				return errors.Wrapf(err, "entry %d: decoding key", i)
			}
		}

		b, err := d.bytes(align8(valueSize), "value")
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		value, err := vc.ReadValue(b[:valueSize])
		if err != nil {
			return errors.Wrapf(err, "entry %d: decoding value", i)
		}

		if tag(m.hash(key)) != statusHash(hash) {
			return errors.Wrapf(ErrCorrupt, "entry %d: stored hash %016x does not match key %v", i, hash, key)
		}
		if err := m.PutHashed(hash, key, value); err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
	}
	if m.Len() != count {
		return errors.Wrapf(ErrCorrupt, "%d entries decoded to %d distinct keys", count, m.Len())
	}
	if d.remaining() != 0 {
		return errors.Wrapf(ErrCorrupt, "%d trailing bytes", d.remaining())
	}
	return nil
}
