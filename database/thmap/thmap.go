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
	"bytes"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/NetBSD/src-sub289/common"
)

const (
	ErrNoRoot        = common.ConstError("no root attached")
	ErrRootAttached  = common.ConstError("root already attached")
	ErrInvalidRoot   = common.ConstError("invalid root handle")
	ErrInvalidConfig = common.ConstError("invalid configuration")
)

// Flags modify the behavior of a Map.
type Flags uint8

const (
	// FlagNoCopy makes leaves reference the caller's key slices instead of
	// retaining a copy. Callers must not modify keys after inserting them.
	FlagNoCopy Flags = 1 << iota
	// FlagSetRoot creates a map without a root. The map becomes usable once a
	// root of its storage has been attached through SetRoot.
	FlagSetRoot

	allFlags = FlagNoCopy | FlagSetRoot
)

// Config summarizes the parameters of a Map.
type Config[V any] struct {
	// Seed keys the hash function. Maps sharing a trie must use the same seed.
	Seed uint32
	// Flags, see FlagNoCopy and FlagSetRoot.
	Flags Flags
	// Hasher used to navigate the trie, DefaultHasher if nil.
	Hasher Hasher
	// Storage to allocate objects from. If nil, a private, unlimited storage
	// is created.
	Storage *Storage[V]
}

// Map is a concurrent trie-hash map from byte keys to values of type V.
//
// Keys are hashed and the trie is navigated using 6 bits of hash for one of
// 64 root slots followed by 4 bits per level. Lookups never block: they only
// perform atomic loads and restart if they encounter a node that got removed
// concurrently. Insertions and deletions lock the node they modify.
//
// Removed nodes and leaves are not released immediately since concurrent
// lookups may still access them. Instead, they are staged and need to be
// collected by calling StageGC and, once no operation started before the
// StageGC call is still running, GC.
type Map[V any] struct {
	root    atomic.Pointer[root]
	seed    uint32
	flags   Flags
	hasher  Hasher
	storage *Storage[V]
	gcList  atomic.Pointer[gcEntry]
}

type root struct {
	handle uint32
	slots  *rootArray
}

// edge is the position in the trie at which a descent for a key stopped.
type edge struct {
	node   *inode
	handle uint32
	slot   uint32
	target ref // the content of the slot when it was inspected
}

// New creates an empty Map.
func New[V any](config Config[V]) (*Map[V], error) {
	if config.Flags&^allFlags != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrInvalidConfig, uint8(config.Flags&^allFlags))
	}
	storage := config.Storage
	if storage == nil {
		var err error
		storage, err = NewStorage[V](StorageConfig{})
		if err != nil {
			return nil, err
		}
	}
	hasher := config.Hasher
	if hasher == nil {
		hasher = DefaultHasher{}
	}
	res := &Map[V]{
		seed:    config.Seed,
		flags:   config.Flags,
		hasher:  hasher,
		storage: storage,
	}
	if config.Flags&FlagSetRoot == 0 {
		handle, slots, err := storage.newRoots()
		if err != nil {
			return nil, err
		}
		res.root.Store(&root{handle: handle, slots: slots})
	}
	return res, nil
}

// Destroy releases all staged objects. Unless the map was created with
// FlagSetRoot, all remaining entries and the root array are released as well.
// The map must not be used anymore afterwards, and no other operation may be
// running concurrently.
func (m *Map[V]) Destroy() {
	m.GC(m.StageGC())
	root := m.root.Swap(nil)
	if root == nil || m.flags&FlagSetRoot != 0 {
		return
	}
	for i := range root.slots {
		if r := ref(root.slots[i].Load()); r != nilRef {
			m.freeTree(r.handle())
		}
	}
	m.storage.free(kindRoots, root.handle)
}

func (m *Map[V]) freeTree(handle uint32) {
	node := m.storage.node(handle)
	for i := range node.slots {
		switch r := node.get(uint32(i)); {
		case r.isLeaf():
			m.storage.free(kindLeaf, r.handle())
		case r.isNode():
			m.freeTree(r.handle())
		}
	}
	m.storage.free(kindNode, handle)
}

// GetRoot returns the handle of the map's root array within its storage.
func (m *Map[V]) GetRoot() (uint32, error) {
	root := m.root.Load()
	if root == nil {
		return 0, ErrNoRoot
	}
	return root.handle, nil
}

// SetRoot attaches the map to the root array with the given handle, which
// must have been obtained from GetRoot of a map using the same storage.
func (m *Map[V]) SetRoot(handle uint32) error {
	if m.root.Load() != nil {
		return ErrRootAttached
	}
	slots, err := m.storage.getRoots(handle)
	if err != nil {
		return err
	}
	if !m.root.CompareAndSwap(nil, &root{handle: handle, slots: slots}) {
		return ErrRootAttached
	}
	return nil
}

func (m *Map[V]) newQuery(key []byte) query {
	return newQuery(m.hasher, m.seed, key)
}

// Get retrieves the value associated to the given key. The second result
// reports whether the key is present.
func (m *Map[V]) Get(key []byte) (V, bool) {
	var zero V
	root := m.root.Load()
	if root == nil {
		return zero, false
	}
	query := m.newQuery(key)
	for {
		edge, ok := m.findEdgeNode(root.slots, &query)
		if !ok {
			continue
		}
		if edge.node == nil || !edge.target.isLeaf() {
			return zero, false
		}
		if leaf := m.storage.leaf(edge.target.handle()); bytes.Equal(leaf.key, key) {
			return leaf.value, true
		}
		return zero, false
	}
}

// Put associates the given value to the key, unless the key is already
// present. The value associated to the key after the operation is returned,
// with loaded reporting whether it was already present. Existing values are
// never overwritten. An error is returned if objects could not be allocated,
// in which case the map is not modified.
func (m *Map[V]) Put(key []byte, value V) (actual V, loaded bool, err error) {
	var zero V
	root := m.root.Load()
	if root == nil {
		return zero, false, ErrNoRoot
	}
	query := m.newQuery(key)
	handle, _, err := m.storage.newLeaf(key, value, m.flags&FlagNoCopy != 0)
	if err != nil {
		return zero, false, err
	}

	var edge edge
	for {
		installed, err := m.rootTryPut(root.slots, &query, handle)
		if err != nil {
			m.storage.free(kindLeaf, handle)
			return zero, false, err
		}
		if installed {
			return value, false, nil
		}
		// The root slot may have been emptied in the meantime, in which case
		// the fast path is worth another try.
		if edge = m.findEdgeNodeLocked(root.slots, &query); edge.node != nil {
			break
		}
	}

	if edge.target == nilRef {
		edge.node.insert(edge.slot, leafRef(handle))
		edge.node.unlock()
		return value, false, nil
	}

	other := m.storage.leaf(edge.target.handle())
	if bytes.Equal(other.key, key) {
		edge.node.unlock()
		// The new leaf has never been visible, so it can be released at once.
		m.storage.free(kindLeaf, handle)
		return other.value, true, nil
	}

	// The slot is occupied by a different key. Push the present leaf one level
	// down until the hashes of both keys select different slots.
	otherQuery := m.newQuery(other.key)
	for {
		childHandle, child, err := m.storage.newNode(nodeRef(edge.handle), true)
		if err != nil {
			edge.node.unlock()
			m.storage.free(kindLeaf, handle)
			return zero, false, err
		}
		query.level++
		otherSlot := otherQuery.slot(query.level)
		child.insert(otherSlot, edge.target)

		// Publishing the child makes it visible to readers, which still find
		// the present leaf through it.
		edge.node.slots[edge.slot].Store(uint32(nodeRef(childHandle)))
		edge.node.unlock()

		edge.node = child
		edge.handle = childHandle
		edge.slot = query.slot(query.level)
		if edge.slot != otherSlot {
			break
		}
	}
	edge.node.insert(edge.slot, leafRef(handle))
	edge.node.unlock()
	return value, false, nil
}

// rootTryPut installs a new node holding the given leaf into the query's
// root slot, if it is empty. It reports whether the leaf was installed.
func (m *Map[V]) rootTryPut(roots *rootArray, query *query, leaf uint32) (bool, error) {
	slot := &roots[query.rslot]
	if slot.Load() != uint32(nilRef) {
		return false, nil
	}
	handle, node, err := m.storage.newNode(nilRef, false)
	if err != nil {
		return false, err
	}
	query.level = 0
	node.insert(query.slot(0), leafRef(leaf))
	if !slot.CompareAndSwap(uint32(nilRef), uint32(nodeRef(handle))) {
		// Another goroutine was faster. Our node has never been visible.
		m.storage.free(kindNode, handle)
		return false, nil
	}
	return true, nil
}

// Delete removes the given key from the map. The value it was associated to
// is returned, and the second result reports whether the key was present.
func (m *Map[V]) Delete(key []byte) (V, bool) {
	var zero V
	root := m.root.Load()
	if root == nil {
		return zero, false
	}
	query := m.newQuery(key)
	edge := m.findEdgeNodeLocked(root.slots, &query)
	if edge.node == nil {
		return zero, false
	}
	if !edge.target.isLeaf() {
		edge.node.unlock()
		return zero, false
	}
	leaf := m.storage.leaf(edge.target.handle())
	if !bytes.Equal(leaf.key, key) {
		edge.node.unlock()
		return zero, false
	}
	value := leaf.value
	edge.node.remove(edge.slot)
	m.stage(kindLeaf, edge.target.handle())

	// Remove nodes that became empty, bottom-up. The parent is locked while
	// the child's lock is still held, the only order in which any goroutine
	// holds two locks.
	node, handle := edge.node, edge.handle
	for node.count() == 0 && node.parent != nilRef {
		query.level--
		parentHandle := node.parent.handle()
		parent := m.storage.node(parentHandle)
		parent.lock()
		node.markDeleted()
		node.unlock()
		parent.remove(query.slot(query.level))
		m.stage(kindNode, handle)
		node, handle = parent, parentHandle
	}
	if node.count() == 0 {
		// The node is placed in a root slot. Holding its lock prevents any
		// other writer from modifying the root slot.
		node.markDeleted()
		root.slots[query.rslot].Store(uint32(nilRef))
		m.stage(kindNode, handle)
	}
	node.unlock()
	return value, true
}

// findEdgeNode descends from the query's root slot to the edge node. If the
// root slot is empty, an edge without a node is returned. The second result
// is false if a removed node was encountered and the descent needs to be
// restarted.
func (m *Map[V]) findEdgeNode(roots *rootArray, query *query) (edge, bool) {
	query.level = 0
	r := ref(roots[query.rslot].Load())
	if r == nilRef {
		return edge{}, true
	}
	return m.descend(query, r.handle())
}

// descend continues a descent at the given node, located at the query's
// current level.
func (m *Map[V]) descend(query *query, handle uint32) (edge, bool) {
	node := m.storage.node(handle)
	for {
		slot := query.slot(query.level)
		target := node.get(slot)
		if node.isDeleted() {
			return edge{}, false
		}
		if !target.isNode() {
			return edge{node: node, handle: handle, slot: slot, target: target}, true
		}
		handle = target.handle()
		node = m.storage.node(handle)
		query.level++
	}
}

// findEdgeNodeLocked locates and locks the edge node for the query. If the
// root slot is empty, an edge without a node is returned.
func (m *Map[V]) findEdgeNodeLocked(roots *rootArray, query *query) edge {
	for {
		edge, ok := m.findEdgeNode(roots, query)
		for ok {
			if edge.node == nil {
				return edge
			}
			edge.node.lock()
			if edge.node.isDeleted() {
				edge.node.unlock()
				break
			}
			edge.target = edge.node.get(edge.slot)
			if !edge.target.isNode() {
				return edge
			}
			// The trie grew below the edge; continue the descent from there.
			edge.node.unlock()
			query.level++
			edge, ok = m.descend(query, edge.target.handle())
		}
	}
}

func (m *Map[V]) GetMemoryFootprint() *common.MemoryFootprint {
	res := common.NewMemoryFootprint(unsafe.Sizeof(*m))
	res.AddChild("storage", m.storage.GetMemoryFootprint())
	pending := 0
	for entry := m.gcList.Load(); entry != nil; entry = entry.next {
		pending++
	}
	res.AddChild("gc", common.NewMemoryFootprint(uintptr(pending)*unsafe.Sizeof(gcEntry{})))
	return res
}
