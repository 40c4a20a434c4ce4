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

// gcEntry is an object removed from the trie that has not been released yet.
type gcEntry struct {
	kind   objectKind
	handle uint32
	next   *gcEntry
}

// GCList is a batch of removed objects obtained from StageGC. It is owned by
// the caller until passed to GC.
type GCList struct {
	head *gcEntry
}

// Len returns the number of objects in the list.
func (l *GCList) Len() int {
	if l == nil {
		return 0
	}
	res := 0
	for entry := l.head; entry != nil; entry = entry.next {
		res++
	}
	return res
}

// stage records a removed object for later release. It may be called by any
// number of goroutines concurrently.
func (m *Map[V]) stage(kind objectKind, handle uint32) {
	entry := &gcEntry{kind: kind, handle: handle}
	for {
		head := m.gcList.Load()
		entry.next = head
		if m.gcList.CompareAndSwap(head, entry) {
			return
		}
	}
}

// StageGC takes all objects removed from the map so far. The returned list
// needs to be passed to GC once no operation that started before this call
// is still running. Objects removed afterwards are collected by the next
// StageGC call.
func (m *Map[V]) StageGC() *GCList {
	return &GCList{head: m.gcList.Swap(nil)}
}

// GC releases all objects in the given list. It is the caller's
// responsibility to ensure that no operation still accesses them, typically
// by waiting for all operations running at the time of the StageGC call to
// complete.
func (m *Map[V]) GC(list *GCList) {
	if list == nil {
		return
	}
	for entry := list.head; entry != nil; entry = entry.next {
		m.storage.free(entry.kind, entry.handle)
	}
	list.head = nil
}
