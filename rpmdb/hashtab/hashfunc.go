package hashtab

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// StringHash hashes a string key with xxhash.
func StringHash(s string) uint64 { return xxhash.Sum64String(s) }

// StringEqual compares string keys.
func StringEqual(a, b string) bool { return a == b }

// BytesHash hashes a byte-slice key with xxhash.
func BytesHash(b []byte) uint64 { return xxhash.Sum64(b) }

// BytesEqual compares byte-slice keys.
func BytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }

// BytesClone is the copy policy for byte-slice keys whose backing array the
// caller reuses.
func BytesClone(b []byte) []byte { return bytes.Clone(b) }

// Uint32Hash hashes a small integer key, e.g. an interned string id.
func Uint32Hash(v uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return xxhash.Sum64(buf[:])
}

// Uint32Equal compares integer keys.
func Uint32Equal(a, b uint32) bool { return a == b }
