// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package thmap provides a concurrent trie-hash map for byte keys.
//
// The map is a radix trie over hashed keys: a key's hash selects one of 64
// root slots, followed by 16-way intermediate nodes consuming 4 bits of hash
// per level. Leaves store a key and its value. Lookups are lock free, while
// insertions and deletions lock only the node they modify.
//
// All objects of a map are allocated from a Storage and referenced through
// stock indexes. Maps created on the same Storage may attach to the same
// trie through SetRoot and GetRoot.
//
// Memory of removed objects is reclaimed in two phases. Removed objects are
// staged on deletion; StageGC hands the staged objects to the caller, who
// releases them with GC once no lookup started before StageGC is running.
// Detecting that point is left to the user of the map:
//
//	list := m.StageGC()
//	... wait for operations in flight to complete ...
//	m.GC(list)
package thmap
