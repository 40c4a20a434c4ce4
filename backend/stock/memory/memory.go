// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/NetBSD/src-sub289/backend/stock"
	"github.com/NetBSD/src-sub289/common"
)

// pageSize is the number of values kept in a single page. Pages are never
// moved once allocated, so pointers to values remain stable.
const pageSize = 1 << 10

type page[V any] [pageSize]V

// inMemoryStock provides an in-memory implementation of the stock.Stock
// interface. Values are organized in fixed-size pages referenced by a page
// table that is replaced copy-on-write whenever the stock grows. Lookups are
// thus lock free, while allocations and deletions are serialized.
type inMemoryStock[I stock.Index, V any] struct {
	pages    atomic.Pointer[[]*page[V]]
	size     I   // number of values handed out so far, including freed ones
	freeList []I // freed indexes, reused in LIFO order
	live     int
	capacity int // maximum number of live values, 0 for unlimited
	mutex    sync.Mutex
}

// NewStock creates an empty in-memory stock holding up to capacity live
// values. A capacity of 0 disables the limit.
func NewStock[I stock.Index, V any](capacity int) stock.Stock[I, V] {
	return newStock[I, V](capacity)
}

func newStock[I stock.Index, V any](capacity int) *inMemoryStock[I, V] {
	res := &inMemoryStock[I, V]{capacity: capacity}
	pages := make([]*page[V], 0, 4)
	res.pages.Store(&pages)
	return res
}

func (s *inMemoryStock[I, V]) New() (I, *V, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.capacity > 0 && s.live >= s.capacity {
		return 0, nil, stock.ErrOutOfSpace
	}

	// Reuse free index positions or grow list of values.
	if lenFreeList := len(s.freeList); lenFreeList > 0 {
		index := s.freeList[lenFreeList-1]
		s.freeList = s.freeList[0 : lenFreeList-1]
		s.live++
		return index, s.Get(index), nil
	}

	index := s.size
	if index+1 == 0 {
		return 0, nil, stock.ErrOutOfSpace
	}
	pages := *s.pages.Load()
	if int(uint64(index)/pageSize) >= len(pages) {
		// Readers only access the first len(pages) entries, so extending the
		// shared backing array in place is safe.
		grown := append(pages, new(page[V]))
		s.pages.Store(&grown)
	}
	s.size++
	s.live++
	return index, s.Get(index), nil
}

func (s *inMemoryStock[I, V]) Get(index I) *V {
	pages := *s.pages.Load()
	return &pages[uint64(index)/pageSize][uint64(index)%pageSize]
}

func (s *inMemoryStock[I, V]) Delete(index I) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if index >= s.size {
		return fmt.Errorf("index out of range, got %d, range [0,%d)", index, s.size)
	}
	var zero V
	*s.Get(index) = zero
	s.freeList = append(s.freeList, index)
	s.live--
	return nil
}

func (s *inMemoryStock[I, V]) GetIds() (stock.IndexSet[I], error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	res := stock.MakeComplementSet[I](0, s.size)
	for _, i := range s.freeList {
		res.Remove(i)
	}
	return res, nil
}

func (s *inMemoryStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var value V
	var index I
	pages := *s.pages.Load()
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("values", common.NewMemoryFootprint(unsafe.Sizeof(value)*pageSize*uintptr(len(pages))))
	res.AddChild("pagetable", common.NewMemoryFootprint(unsafe.Sizeof((*page[V])(nil))*uintptr(cap(pages))))
	res.AddChild("freelist", common.NewMemoryFootprint(unsafe.Sizeof(index)*uintptr(cap(s.freeList))))
	return res
}
