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
	"runtime"
	"sync/atomic"
)

// ref is the content of a slot. It is either empty, a reference to an
// intermediate node, or a reference to a leaf. References are stock indexes,
// not pointers, so a trie stays valid when shared through its Storage.
type ref uint32

const (
	nilRef  ref = 0
	leafBit ref = 1

	// maxHandle is the largest stock index that can be encoded in a ref.
	maxHandle = 1<<31 - 2
)

func nodeRef(handle uint32) ref {
	return ref(handle+1) << 1
}

func leafRef(handle uint32) ref {
	return ref(handle+1)<<1 | leafBit
}

func (r ref) isLeaf() bool {
	return r&leafBit != 0
}

func (r ref) isNode() bool {
	return r != nilRef && r&leafBit == 0
}

func (r ref) handle() uint32 {
	return uint32(r>>1) - 1
}

// The state word of an intermediate node.
const (
	nodeLocked  uint32 = 1 << 31
	nodeDeleted uint32 = 1 << 30
	nodeCount   uint32 = nodeDeleted - 1
)

// inode is an intermediate node of the trie, branching on 4 bits of hash.
//
// Slots are only modified while holding the node's lock, or before the node
// is published. Readers access slots exclusively through atomic loads, so an
// object referenced by a slot is always fully initialized when observed.
type inode struct {
	state  atomic.Uint32
	parent ref // nilRef for nodes placed in a root slot; never changes
	slots  [levelSize]atomic.Uint32
}

func (n *inode) get(slot uint32) ref {
	return ref(n.slots[slot].Load())
}

// insert fills an empty slot. The node must be locked or private.
func (n *inode) insert(slot uint32, r ref) {
	n.slots[slot].Store(uint32(r))
	n.state.Store(n.state.Load() + 1)
}

// remove clears an occupied slot. The node must be locked.
func (n *inode) remove(slot uint32) {
	n.slots[slot].Store(uint32(nilRef))
	n.state.Store(n.state.Load() - 1)
}

func (n *inode) count() uint32 {
	return n.state.Load() & nodeCount
}

func (n *inode) isDeleted() bool {
	return n.state.Load()&nodeDeleted != 0
}

// markDeleted flags the node as removed from the trie. The node must be locked.
func (n *inode) markDeleted() {
	n.state.Store(n.state.Load() | nodeDeleted)
}

// lock acquires the node's spin lock. Only writers lock nodes; readers are
// never blocked.
func (n *inode) lock() {
	backoff := 1
	for {
		state := n.state.Load()
		if state&nodeLocked == 0 && n.state.CompareAndSwap(state, state|nodeLocked) {
			return
		}
		spin(&backoff)
	}
}

func (n *inode) unlock() {
	n.state.Store(n.state.Load() &^ nodeLocked)
}

const maxBackoff = 32

// spin waits for a growing number of scheduling rounds.
func spin(backoff *int) {
	for i := 0; i < *backoff; i++ {
		runtime.Gosched()
	}
	if *backoff < maxBackoff {
		*backoff <<= 1
	}
}

// leaf is a key/value pair stored in the trie. Leaves are never modified
// while being reachable.
type leaf[V any] struct {
	key   []byte
	value V
}

// rootArray holds the entry points of the trie. Each slot is either empty or
// references an intermediate node placed there by a compare-and-swap.
type rootArray [rootSize]atomic.Uint32
