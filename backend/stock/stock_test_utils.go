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
	"errors"
	"sync"
	"testing"
)

type NamedStockFactory struct {
	ImplementationName string
	// Open creates a fresh stock limited to the given number of live
	// elements, where 0 means unlimited.
	Open func(t *testing.T, capacity int) Stock[uint32, int]
}

// RunStockTests runs a set of black-box unit test against a generic Stock
// implementation defined by the given factory. It is intended to be used
// in implementation specific unit test packages to cover basic compliance
// properties as imposed by the Stock interface.
func RunStockTests(t *testing.T, factory NamedStockFactory) {
	wrap := func(test func(*testing.T, NamedStockFactory)) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			test(t, factory)
		}
	}
	t.Run("NewCreatesFreshIndexValues", wrap(testNewCreatesFreshIndexValues))
	t.Run("LookUpsRetrieveTheSameValue", wrap(testLookUpsRetrieveTheSameValue))
	t.Run("DeletedElementsAreReused", wrap(testDeletedElementsAreReused))
	t.Run("ReusedElementsAreCleared", wrap(testReusedElementsAreCleared))
	t.Run("LargeNumberOfElements", wrap(testLargeNumberOfElements))
	t.Run("CapacityIsEnforced", wrap(testCapacityIsEnforced))
	t.Run("GetIdsListsLiveElements", wrap(testGetIdsListsLiveElements))
	t.Run("ConcurrentLookUpsDuringGrowth", wrap(testConcurrentLookUpsDuringGrowth))
	t.Run("ProvidesMemoryFootprint", wrap(testProvidesMemoryFootprint))
}

func testNewCreatesFreshIndexValues(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	index1, _, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	index2, _, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if index1 == index2 {
		t.Errorf("Expected different index values, got %v and %v", index1, index2)
	}
}

func testLookUpsRetrieveTheSameValue(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	index1, value1, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	*value1 = 1

	index2, value2, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	*value2 = 2

	if got := stock.Get(index1); got != value1 || *got != 1 {
		t.Errorf("failed to obtain value for index %d: got %d, wanted %d", index1, *got, 1)
	}
	if got := stock.Get(index2); got != value2 || *got != 2 {
		t.Errorf("failed to obtain value for index %d: got %d, wanted %d", index2, *got, 2)
	}
}

func testDeletedElementsAreReused(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	seen := map[uint32]bool{}
	for i := 0; i < 10_000; i++ {
		index, _, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		if seen[index] {
			t.Fatalf("index %d was returned twice", index)
		}
		seen[index] = true
		if i%2 == 0 {
			continue
		}
		if err := stock.Delete(index); err != nil {
			t.Fatalf("failed to delete element %d: %v", index, err)
		}
		next, _, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		if next != index {
			t.Fatalf("deleted index %d was not reused, got %d", index, next)
		}
	}
}

func testReusedElementsAreCleared(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	index, value, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	*value = 123
	if err := stock.Delete(index); err != nil {
		t.Fatalf("failed to delete element: %v", err)
	}
	reused, value, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if reused != index {
		t.Fatalf("expected index %d to be reused, got %d", index, reused)
	}
	if *value != 0 {
		t.Errorf("reused element was not cleared, got %d", *value)
	}
}

func testLargeNumberOfElements(t *testing.T, factory NamedStockFactory) {
	const N = 100_000
	stock := factory.Open(t, 0)
	indexes := make([]uint32, 0, N)
	for i := 0; i < N; i++ {
		index, value, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		*value = i
		indexes = append(indexes, index)
	}
	for i, index := range indexes {
		if got := *stock.Get(index); got != i {
			t.Fatalf("invalid value for index %d, wanted %d, got %d", index, i, got)
		}
	}
}

func testCapacityIsEnforced(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 3)
	var indexes []uint32
	for i := 0; i < 3; i++ {
		index, _, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create element %d within capacity: %v", i, err)
		}
		indexes = append(indexes, index)
	}
	if _, _, err := stock.New(); !errors.Is(err, ErrOutOfSpace) {
		t.Fatalf("expected capacity to be exhausted, got %v", err)
	}
	if err := stock.Delete(indexes[1]); err != nil {
		t.Fatalf("failed to delete element: %v", err)
	}
	if _, _, err := stock.New(); err != nil {
		t.Errorf("deleting an element should free capacity, got %v", err)
	}
}

func testGetIdsListsLiveElements(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	var indexes []uint32
	for i := 0; i < 10; i++ {
		index, _, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		indexes = append(indexes, index)
	}
	for _, index := range indexes[:5] {
		if err := stock.Delete(index); err != nil {
			t.Fatalf("failed to delete element: %v", err)
		}
	}
	ids, err := stock.GetIds()
	if err != nil {
		t.Fatalf("failed to get ids: %v", err)
	}
	if got, want := ids.Size(), 5; got != want {
		t.Errorf("unexpected number of live elements, wanted %d, got %d", want, got)
	}
	for i, index := range indexes {
		if got, want := ids.Contains(index), i >= 5; got != want {
			t.Errorf("invalid membership of %d, wanted %t, got %t", index, want, got)
		}
	}
}

func testConcurrentLookUpsDuringGrowth(t *testing.T, factory NamedStockFactory) {
	const N = 20_000
	stock := factory.Open(t, 0)
	first, value, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	*value = 42

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if got := *stock.Get(first); got != 42 {
					t.Errorf("unexpected value during growth, wanted 42, got %d", got)
					return
				}
			}
		}()
	}
	for i := 0; i < N; i++ {
		if _, _, err := stock.New(); err != nil {
			t.Errorf("failed to create new element: %v", err)
			break
		}
	}
	close(done)
	wg.Wait()
}

func testProvidesMemoryFootprint(t *testing.T, factory NamedStockFactory) {
	stock := factory.Open(t, 0)
	empty := stock.GetMemoryFootprint().Total()
	for i := 0; i < 5000; i++ {
		if _, _, err := stock.New(); err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
	}
	if full := stock.GetMemoryFootprint().Total(); full <= empty {
		t.Errorf("memory footprint did not grow, empty %d, full %d", empty, full)
	}
}
