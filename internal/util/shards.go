package util

import "math/bits"

// DefaultShardBits selects 16 shards.
const DefaultShardBits = 4

// MaxShardBits caps the shard count at 256.
const MaxShardBits = 8

// ShardBits returns the number of hash bits needed to address n shards,
// i.e. n rounded up to a power of two, clamped to [1..1<<MaxShardBits].
// n <= 0 selects DefaultShardBits.
func ShardBits(n int) uint {
	if n <= 0 {
		return DefaultShardBits
	}
	b := uint(bits.Len(uint(n - 1)))
	if b > MaxShardBits {
		b = MaxShardBits
	}
	return b
}

// ShardIndex maps a 32-bit hash to a shard using its top bits.
// The low bits stay free for bucket selection inside the shard.
func ShardIndex(hash uint32, bits uint) int {
	if bits == 0 {
		return 0
	}
	return int(hash >> (32 - bits))
}
