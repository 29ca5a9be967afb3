// Package index implements the disk-resident extendible hash table (C5)
// described in SPEC_FULL.md §4.5, built directly on top of pkg/storage's
// buffer pool.
package index

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Comparator reports whether a and b are the same key. The hash table
// only needs equality, never ordering, since keys are unique.
type Comparator[K any] func(a, b K) bool

// HashFunc produces a 32-bit digest for a key (SPEC_FULL.md §4.5, "Hash
// derivation").
type HashFunc[K any] func(key K) uint32

// Serializer renders a key to bytes for hashing.
type Serializer[K any] func(key K) []byte

// Blake2bHash truncates a blake2b-256 digest of the serialized key to its
// first four bytes, read big-endian — the "32-bit truncation of a [wider] hash function applied
// to the serialized key" SPEC_FULL.md §4.5 calls for, wired to the
// blake2b dependency rather than a hand-rolled hash.
func Blake2bHash[K any](serialize Serializer[K]) HashFunc[K] {
	return func(key K) uint32 {
		sum := blake2b.Sum256(serialize(key))
		return binary.BigEndian.Uint32(sum[:4])
	}
}

// IdentityHash32 is the test-only identity hash for int32 keys that
// SPEC_FULL.md §4.5 and the S6/S8 scenarios call for.
func IdentityHash32(key int32) uint32 { return uint32(key) }

// EntrySerde describes how to pack a fixed-size (K, V) pair into a
// bucket page and back. Both KeySize and ValSize must be constant across
// every key/value the table ever stores — the hash table is a
// fixed-slot structure, not a variable-length one.
type EntrySerde[K any, V any] struct {
	KeySize int
	ValSize int

	EncodeKey func(dst []byte, key K)
	DecodeKey func(src []byte) K
	EncodeVal func(dst []byte, val V)
	DecodeVal func(src []byte) V
}

func (s EntrySerde[K, V]) entrySize() int { return s.KeySize + s.ValSize }

// Int32Serde returns an EntrySerde for int32-keyed, int32-valued tables —
// the shape cmd/pager and the package's tests use.
func Int32Serde() EntrySerde[int32, int32] {
	return EntrySerde[int32, int32]{
		KeySize: 4,
		ValSize: 4,
		EncodeKey: func(dst []byte, key int32) {
			binary.LittleEndian.PutUint32(dst, uint32(key))
		},
		DecodeKey: func(src []byte) int32 {
			return int32(binary.LittleEndian.Uint32(src))
		},
		EncodeVal: func(dst []byte, val int32) {
			binary.LittleEndian.PutUint32(dst, uint32(val))
		},
		DecodeVal: func(src []byte) int32 {
			return int32(binary.LittleEndian.Uint32(src))
		},
	}
}
