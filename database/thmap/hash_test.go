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
	"testing"

	"go.uber.org/mock/gomock"
)

func TestDefaultHasher_IsDeterministic(t *testing.T) {
	hasher := DefaultHasher{}
	for block := uint32(0); block < 4; block++ {
		for _, key := range []string{"", "a", "hello", "some much longer key exceeding a block"} {
			a := hasher.Hash(12, block, []byte(key))
			b := hasher.Hash(12, block, []byte(key))
			if a != b {
				t.Errorf("hash of %q in block %d is not deterministic: %x vs %x", key, block, a, b)
			}
		}
	}
}

func TestDefaultHasher_DependsOnSeedBlockAndKey(t *testing.T) {
	hasher := DefaultHasher{}
	key := []byte("key")
	for block := uint32(0); block < 3; block++ {
		if hasher.Hash(1, block, key) == hasher.Hash(2, block, key) {
			t.Errorf("block %d does not depend on the seed", block)
		}
		if hasher.Hash(1, block, key) == hasher.Hash(1, block, []byte("other")) {
			t.Errorf("block %d does not depend on the key", block)
		}
	}
	if hasher.Hash(1, 1, key) == hasher.Hash(1, 2, key) {
		t.Errorf("hash blocks should differ")
	}
}

func TestDefaultHasher_SpreadsKeysOverRootSlots(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 10_000; i++ {
		query := newQuery(DefaultHasher{}, 0, []byte(fmt.Sprintf("key-%d", i)))
		seen[query.rslot] = true
	}
	if len(seen) != rootSize {
		t.Errorf("keys should cover all %d root slots, covered %d", rootSize, len(seen))
	}
}

func TestQuery_RootSlotMixesHashAndKeyLength(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewMockHasher(ctrl)
	hasher.EXPECT().Hash(uint32(7), uint32(0), []byte("abc")).Return(uint32(0xA4000000))

	query := newQuery(hasher, 7, []byte("abc"))
	if got, want := query.rslot, uint32((0xA4000000>>26)^3)&rootMask; got != want {
		t.Errorf("unexpected root slot, wanted %d, got %d", want, got)
	}
}

func TestQuery_SlotsAreTakenFromConsecutiveNibbles(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewMockHasher(ctrl)
	key := []byte("key")
	hasher.EXPECT().Hash(uint32(0), uint32(0), key).Return(uint32(0x76543210))
	hasher.EXPECT().Hash(uint32(0), uint32(1), key).Return(uint32(0xFEDCBA98))

	query := newQuery(hasher, 0, key)
	for level := uint32(0); level < 16; level++ {
		if got, want := query.slot(level), level; got != want {
			t.Errorf("unexpected slot at level %d, wanted %d, got %d", level, want, got)
		}
	}
}

func TestQuery_HashBlocksAreRecomputedWhenSwitchingBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewMockHasher(ctrl)
	key := []byte("key")
	gomock.InOrder(
		hasher.EXPECT().Hash(uint32(3), uint32(0), key).Return(uint32(0x11111111)),
		hasher.EXPECT().Hash(uint32(3), uint32(2), key).Return(uint32(0x22222222)),
		hasher.EXPECT().Hash(uint32(3), uint32(0), key).Return(uint32(0x11111111)),
	)

	query := newQuery(hasher, 3, key)
	if got := query.slot(1); got != 1 {
		t.Errorf("unexpected slot in first block, got %d", got)
	}
	if got := query.slot(17); got != 2 {
		t.Errorf("unexpected slot in third block, got %d", got)
	}
	if got := query.slot(16); got != 2 {
		t.Errorf("unexpected slot in third block, got %d", got)
	}
	if got := query.slot(0); got != 1 {
		t.Errorf("unexpected slot in first block, got %d", got)
	}
}

func TestRandomSeed_ProducesDifferentSeeds(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		seen[RandomSeed()] = true
	}
	if len(seen) < 2 {
		t.Errorf("random seeds should differ, got %v", seen)
	}
}
