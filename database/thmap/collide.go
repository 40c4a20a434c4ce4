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
	"fmt"

	"github.com/NetBSD/src-sub289/common"
)

const ErrNoCollision = common.ConstError("no colliding keys found")

// maxCollisionDepth is the deepest level for which a signature of the
// leading hash bits fits into 64 bits.
const maxCollisionDepth = (64 - rootBits) / levelBits

// maxCollisionAttempts bounds the number of candidate keys inspected.
const maxCollisionAttempts = 1 << 24

// FindCollidingKeys searches for count keys of equal length that are placed
// in the same root slot and share their slots on all levels above depth, but
// occupy distinct slots at level depth. Inserted into a map using the same
// hasher and seed, such keys force the trie to grow depth+1 levels deep.
func FindCollidingKeys(hasher Hasher, seed uint32, depth, count int) ([][]byte, error) {
	if depth < 0 || depth > maxCollisionDepth {
		return nil, fmt.Errorf("%w: depth %d not in [0,%d]", ErrInvalidConfig, depth, maxCollisionDepth)
	}
	if count < 2 || count > levelSize {
		return nil, fmt.Errorf("%w: count %d not in [2,%d]", ErrInvalidConfig, count, levelSize)
	}
	if hasher == nil {
		hasher = DefaultHasher{}
	}

	type candidate struct {
		key  []byte
		slot uint32
	}
	groups := map[uint64][]candidate{}
	for i := 0; i < maxCollisionAttempts; i++ {
		key := []byte(fmt.Sprintf("key-%010d", i))
		query := newQuery(hasher, seed, key)
		signature := uint64(query.rslot)
		for level := 0; level < depth; level++ {
			signature = signature<<levelBits | uint64(query.slot(uint32(level)))
		}
		slot := query.slot(uint32(depth))

		group := groups[signature]
		unique := true
		for _, cur := range group {
			if cur.slot == slot {
				unique = false
				break
			}
		}
		if !unique {
			continue
		}
		group = append(group, candidate{key: key, slot: slot})
		if len(group) == count {
			res := make([][]byte, 0, count)
			for _, cur := range group {
				res = append(res, cur.key)
			}
			return res, nil
		}
		groups[signature] = group
	}
	return nil, fmt.Errorf("%w: depth %d, count %d", ErrNoCollision, depth, count)
}
