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

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when the Allocator cannot supply a bucket
	// array. The Map is left exactly as it was before the failing operation.
	ErrOutOfMemory = errors.New("hashtable: out of memory")

	// ErrInvalidArgument is returned for malformed options or arguments.
	ErrInvalidArgument = errors.New("hashtable: invalid argument")

	// ErrNoHashFunc is returned by New when the key type has no built-in
	// hasher and none was supplied with WithHash.
	ErrNoHashFunc = errors.New("hashtable: no hash function for key type")

	// ErrIteratorInvalidated is reported by an Iterator whose Map was
	// structurally modified after the Iterator was created.
	ErrIteratorInvalidated = errors.New("hashtable: iterator invalidated by concurrent modification")
)

// Errors returned by Encode and Decode.
var (
	ErrUnrecognizedFormat = errors.New("hashtable: unrecognized format")
	ErrWrongByteOrder     = errors.New("hashtable: buffer was written with the opposite byte order")
	ErrTruncated          = errors.New("hashtable: buffer truncated")
	ErrCorrupt            = errors.New("hashtable: corrupt buffer")
	ErrKeyContainsNUL     = errors.New("hashtable: string key contains NUL byte")
	ErrInvalidCodec       = errors.New("hashtable: invalid codec")
)
