// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stock

import (
	"github.com/NetBSD/src-sub289/common"
	"golang.org/x/exp/constraints"
)

//go:generate mockgen -source stock.go -destination stock_mocks.go -package stock -exclude_interfaces Index,IndexSet

// ErrOutOfSpace is returned by New if a stock has reached its capacity.
const ErrOutOfSpace = common.ConstError("stock capacity exhausted")

// Stock is a collection of objects each associated to a unique,
// Stock-controlled index serving as an identifier.
//
// Stocks mirror a memory-management system: indexes are pointers
// referencing memory locations, while values are the objects stored in those
// memory locations. The Stock interface's `New` operation is the allocation
// function and the `Delete` method the free function. The `Get` function
// corresponds to pointer dereferencing.
//
// Since indexes are plain integers, structures built on top of a stock can be
// shared by anybody holding the same stock, independently of where the
// individual objects are placed in memory.
//
// I ... the type used to address values in the stock (=index space)
// V ... the type of values stored in the stock
type Stock[I Index, V any] interface {
	// New allocates a zero-initialized value and returns its index together
	// with a pointer to it. The pointer remains valid until the index is
	// deleted. Freed up indexes may be reassigned. If the stock has reached
	// its capacity, ErrOutOfSpace is returned.
	New() (I, *V, error)

	// Get resolves the given index. The index must be alive, i.e. created
	// through New and not yet deleted. Get must be safe to be called
	// concurrently with New, Delete, and other Get calls.
	Get(I) *V

	// Delete releases the value associated to the given index. The value is
	// reset to its zero value and the index may be reused by future New calls.
	// Indexes may only be deleted once.
	Delete(I) error

	// GetIds fetches a snapshot of the valid indexes at a given time. It is
	// intended for consistency checks, not for performance critical code.
	GetIds() (IndexSet[I], error)

	// Stocks must provide information on their memory footprint.
	common.MemoryFootprintProvider
}

// Index defines the type constraints on Stock index types.
type Index interface {
	constraints.Unsigned
}

// IndexSet is an interface for the representation of a set of index value. To
// avoid the need of explicit enumerations (which could be very memory intensive)
// this abstract interface is used to facilitate more compact representations.
type IndexSet[I Index] interface {
	// Contains tests whether the given index element is part of this set.
	Contains(I) bool
	// GetLowerBound returns an index value less or equal to any element in the set.
	GetLowerBound() I
	// GetUpperBound returns an index value greater than any element in this set.
	GetUpperBound() I
	// Size returns the number of elements in this set.
	Size() int
}
