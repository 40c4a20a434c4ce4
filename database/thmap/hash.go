// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package thmap

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2s"
)

//go:generate mockgen -source hash.go -destination hash_mocks.go -package thmap

const (
	rootBits  = 6
	rootSize  = 1 << rootBits
	rootMask  = rootSize - 1
	levelBits = 4
	levelSize = 1 << levelBits
	levelMask = levelSize - 1
	blockBits = 32
)

// Hasher is a keyed hash function producing the hash bits used to navigate
// the trie. Every call produces one 32-bit block of hash bits; deeper trie
// levels consume later blocks. Implementations must be deterministic for a
// given seed, block index, and key.
type Hasher interface {
	// Hash computes the given 32-bit block of the hash of key.
	Hash(seed uint32, block uint32, key []byte) uint32
}

// DefaultHasher uses the seeded xxHash64 function for the first block of
// hash bits and keyed BLAKE2s for all following blocks. Keys only need to be
// disambiguated by later blocks if their first block collides, in which case
// the secret seed makes further collisions hard to provoke.
type DefaultHasher struct{}

func (DefaultHasher) Hash(seed uint32, block uint32, key []byte) uint32 {
	if block == 0 {
		digest := xxhash.NewWithSeed(uint64(seed))
		digest.Write(key)
		return uint32(digest.Sum64())
	}
	var buffer [4]byte
	binary.LittleEndian.PutUint32(buffer[:], seed)
	hash, err := blake2s.New256(buffer[:])
	if err != nil {
		panic(fmt.Sprintf("failed to create keyed hash: %v", err))
	}
	binary.LittleEndian.PutUint32(buffer[:], block)
	hash.Write(buffer[:])
	hash.Write(key)
	var sum [blake2s.Size]byte
	return binary.LittleEndian.Uint32(hash.Sum(sum[:0]))
}

// RandomSeed draws a seed from a cryptographically secure source.
func RandomSeed() uint32 {
	var buffer [4]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		panic(fmt.Sprintf("failed to read random seed: %v", err))
	}
	return binary.LittleEndian.Uint32(buffer[:])
}

// query is the per-operation navigation state of a key. It caches the block
// of hash bits covering the current trie level, such that the hasher is only
// consulted once per 32 bits consumed.
type query struct {
	hasher Hasher
	seed   uint32
	key    []byte
	rslot  uint32 // the root slot of the key
	level  uint32 // the current trie level
	block  uint32 // the index of the cached hash block
	hash   uint32 // the cached hash block
}

func newQuery(hasher Hasher, seed uint32, key []byte) query {
	hash := hasher.Hash(seed, 0, key)
	return query{
		hasher: hasher,
		seed:   seed,
		key:    key,
		rslot:  ((hash >> (blockBits - rootBits)) ^ uint32(len(key))) & rootMask,
		hash:   hash,
	}
}

// slot returns the index of the slot covering the key at the given level.
func (q *query) slot(level uint32) uint32 {
	offset := level * levelBits
	if block := offset / blockBits; block != q.block {
		q.hash = q.hasher.Hash(q.seed, block, q.key)
		q.block = block
	}
	return (q.hash >> (offset % blockBits)) & levelMask
}
