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
	"unsafe"

	"github.com/NetBSD/src-sub289/backend/stock"
	"github.com/NetBSD/src-sub289/backend/stock/memory"
	"github.com/NetBSD/src-sub289/common"
)

// objectKind identifies the stock an object was allocated from.
type objectKind uint8

const (
	kindNode objectKind = iota
	kindLeaf
	kindRoots
)

func (k objectKind) String() string {
	switch k {
	case kindNode:
		return "node"
	case kindLeaf:
		return "leaf"
	case kindRoots:
		return "roots"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// StorageConfig limits the number of objects a Storage may hold. A limit of
// 0 means unlimited.
type StorageConfig struct {
	MaxNodes  int
	MaxLeaves int
	MaxRoots  int
}

// Usage summarizes the number of live objects in a Storage.
type Usage struct {
	Nodes  int
	Leaves int
	Roots  int
}

// Storage is the memory all objects of one or more maps are allocated from.
// Objects are addressed by stock indexes instead of pointers, so any map
// using the same Storage can attach to a trie through its root handle.
//
// Storage does not decide when objects are released. Maps only free objects
// through their two-phase garbage collection, or objects that have never
// been visible to other goroutines.
type Storage[V any] struct {
	nodes  stock.Stock[uint32, inode]
	leaves stock.Stock[uint32, leaf[V]]
	roots  stock.Stock[uint32, rootArray]
}

// NewStorage creates an empty storage for maps with values of type V.
func NewStorage[V any](config StorageConfig) (*Storage[V], error) {
	if config.MaxNodes < 0 || config.MaxLeaves < 0 || config.MaxRoots < 0 {
		return nil, fmt.Errorf("%w: negative storage limit %+v", ErrInvalidConfig, config)
	}
	return newStorage(
		memory.NewStock[uint32, inode](config.MaxNodes),
		memory.NewStock[uint32, leaf[V]](config.MaxLeaves),
		memory.NewStock[uint32, rootArray](config.MaxRoots),
	), nil
}

func newStorage[V any](
	nodes stock.Stock[uint32, inode],
	leaves stock.Stock[uint32, leaf[V]],
	roots stock.Stock[uint32, rootArray],
) *Storage[V] {
	return &Storage[V]{
		nodes:  nodes,
		leaves: leaves,
		roots:  roots,
	}
}

// newNode allocates an intermediate node below the given parent. Locked
// nodes are intended to be populated privately before being published.
func (s *Storage[V]) newNode(parent ref, locked bool) (uint32, *inode, error) {
	handle, node, err := s.nodes.New()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to allocate node: %w", err)
	}
	if handle > maxHandle {
		s.free(kindNode, handle)
		return 0, nil, fmt.Errorf("failed to allocate node: %w", stock.ErrOutOfSpace)
	}
	node.parent = parent
	if locked {
		node.state.Store(nodeLocked)
	}
	return handle, node, nil
}

func (s *Storage[V]) node(handle uint32) *inode {
	return s.nodes.Get(handle)
}

// newLeaf allocates a leaf for the given key and value. Unless noCopy is
// set, the leaf retains a private copy of the key.
func (s *Storage[V]) newLeaf(key []byte, value V, noCopy bool) (uint32, *leaf[V], error) {
	handle, entry, err := s.leaves.New()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to allocate leaf: %w", err)
	}
	if handle > maxHandle {
		s.free(kindLeaf, handle)
		return 0, nil, fmt.Errorf("failed to allocate leaf: %w", stock.ErrOutOfSpace)
	}
	if noCopy {
		entry.key = key
	} else {
		entry.key = append(make([]byte, 0, len(key)), key...)
	}
	entry.value = value
	return handle, entry, nil
}

func (s *Storage[V]) leaf(handle uint32) *leaf[V] {
	return s.leaves.Get(handle)
}

func (s *Storage[V]) newRoots() (uint32, *rootArray, error) {
	handle, roots, err := s.roots.New()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to allocate root array: %w", err)
	}
	return handle, roots, nil
}

// getRoots resolves a root handle, checking that it is in use.
func (s *Storage[V]) getRoots(handle uint32) (*rootArray, error) {
	ids, err := s.roots.GetIds()
	if err != nil {
		return nil, err
	}
	if !ids.Contains(handle) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRoot, handle)
	}
	return s.roots.Get(handle), nil
}

// free releases an object. Failing to do so indicates a corrupted trie.
func (s *Storage[V]) free(kind objectKind, handle uint32) {
	var err error
	switch kind {
	case kindNode:
		err = s.nodes.Delete(handle)
	case kindLeaf:
		err = s.leaves.Delete(handle)
	case kindRoots:
		err = s.roots.Delete(handle)
	default:
		err = fmt.Errorf("unknown object kind")
	}
	if err != nil {
		panic(fmt.Sprintf("failed to free %v %d: %v", kind, handle, err))
	}
}

// GetUsage reports the number of objects currently allocated.
func (s *Storage[V]) GetUsage() (Usage, error) {
	nodes, err := s.nodes.GetIds()
	if err != nil {
		return Usage{}, err
	}
	leaves, err := s.leaves.GetIds()
	if err != nil {
		return Usage{}, err
	}
	roots, err := s.roots.GetIds()
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Nodes:  nodes.Size(),
		Leaves: leaves.Size(),
		Roots:  roots.Size(),
	}, nil
}

func (s *Storage[V]) GetMemoryFootprint() *common.MemoryFootprint {
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("nodes", s.nodes.GetMemoryFootprint())
	res.AddChild("leaves", s.leaves.GetMemoryFootprint())
	res.AddChild("roots", s.roots.GetMemoryFootprint())
	return res
}
