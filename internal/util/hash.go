// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// Hash32 hashes raw key bytes to 32 bits.
// The same value picks the shard (top bits) and the table bucket (low bits),
// so both halves of the 64-bit xxhash digest are folded in.
func Hash32(b []byte) uint32 {
	h := xxhash.Sum64(b)
	return uint32(h) ^ uint32(h>>32)
}
