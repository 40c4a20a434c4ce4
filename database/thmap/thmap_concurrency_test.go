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
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMap_ConcurrentInsertsOfDisjointKeys(t *testing.T) {
	const N = 8
	const M = 5_000
	m := newTestMap(t, Config[int]{Seed: RandomSeed()})
	defer m.Destroy()

	var wg sync.WaitGroup
	errs := make([]error, N)
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < M; j++ {
				key := []byte(fmt.Sprintf("%d-%d", i, j))
				if _, loaded, err := m.Put(key, i*M+j); err != nil || loaded {
					errs[i] = fmt.Errorf("failed to insert %s: loaded %t, err %v", key, loaded, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	m.GC(m.StageGC())

	for i := 0; i < N; i++ {
		for j := 0; j < M; j++ {
			checkGet(t, m, fmt.Sprintf("%d-%d", i, j), i*M+j, true)
		}
	}
	if got, want := getUsage(t, m).Leaves, N*M; got != want {
		t.Errorf("unexpected number of leaves, wanted %d, got %d", want, got)
	}
}

func TestMap_ConcurrentInsertsOfSameKeysAgreeOnValue(t *testing.T) {
	const N = 8
	const M = 1_000
	m := newTestMap(t, Config[int]{})
	defer m.Destroy()

	results := make([][]int, N)
	inserted := make([]atomic.Int32, M)
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = make([]int, M)
			for j := 0; j < M; j++ {
				value, loaded, err := m.Put([]byte(fmt.Sprintf("key-%d", j)), i)
				if err != nil {
					t.Errorf("failed to insert: %v", err)
					return
				}
				if !loaded {
					inserted[j].Add(1)
				}
				results[i][j] = value
			}
		}(i)
	}
	wg.Wait()

	for j := 0; j < M; j++ {
		if got := inserted[j].Load(); got != 1 {
			t.Errorf("key %d should be inserted exactly once, got %d", j, got)
		}
		value, found := m.Get([]byte(fmt.Sprintf("key-%d", j)))
		if !found {
			t.Fatalf("key %d is missing", j)
		}
		for i := 0; i < N; i++ {
			if results[i][j] != value {
				t.Errorf("goroutine %d observed value %d for key %d, map holds %d", i, results[i][j], j, value)
			}
		}
	}
}

// record is a value whose consistency can be checked. A torn read would
// produce a record whose checksum does not match its content.
type record struct {
	key      string
	version  uint64
	checksum uint64
}

func newRecord(key string, version uint64) record {
	return record{key: key, version: version, checksum: recordChecksum(key, version)}
}

func recordChecksum(key string, version uint64) uint64 {
	res := version * 0x9E3779B97F4A7C15
	for _, c := range []byte(key) {
		res = res*31 + uint64(c)
	}
	return res
}

func TestMap_ConcurrentMixedOperationsNeverTearValues(t *testing.T) {
	const (
		N    = 8
		Keys = 256
		Ops  = 20_000
	)
	// Few keys in a small key space produce lots of contention and frequent
	// collapsing and re-expansion of branches.
	m := newTestMap(t, Config[record]{Seed: RandomSeed()})
	defer m.Destroy()

	// Operations register themselves, such that GC is only run while no
	// operation started before the StageGC call is still in flight.
	var gcLock sync.RWMutex

	var wg sync.WaitGroup
	var failed atomic.Bool
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			random := rand.New(rand.NewSource(int64(i)))
			for j := 0; j < Ops && !failed.Load(); j++ {
				key := fmt.Sprintf("key-%d", random.Intn(Keys))
				gcLock.RLock()
				var value record
				var found bool
				switch random.Intn(3) {
				case 0:
					value, found = m.Get([]byte(key))
				case 1:
					var err error
					value, _, err = m.Put([]byte(key), newRecord(key, uint64(i)<<32|uint64(j)))
					if err != nil {
						t.Errorf("failed to insert: %v", err)
						failed.Store(true)
					}
					found = err == nil
				case 2:
					value, found = m.Delete([]byte(key))
				}
				gcLock.RUnlock()
				if found && (value.key != key || value.checksum != recordChecksum(value.key, value.version)) {
					t.Errorf("observed inconsistent value %+v for key %s", value, key)
					failed.Store(true)
				}
				if j%1000 == 0 {
					gcLock.Lock()
					m.GC(m.StageGC())
					gcLock.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < Keys; i++ {
		key := fmt.Sprintf("key-%d", i)
		m.Delete([]byte(key))
	}
	m.GC(m.StageGC())
	if got, want := getUsage(t, m), (Usage{Roots: 1}); got != want {
		t.Errorf("empty map should only hold its root, wanted %+v, got %+v", want, got)
	}
}

func TestMap_ConcurrentDeletesCollapseSharedBranches(t *testing.T) {
	const Rounds = 50
	keys, err := FindCollidingKeys(DefaultHasher{}, 0, 1, 16)
	if err != nil {
		t.Fatalf("failed to find colliding keys: %v", err)
	}
	m := newTestMap(t, Config[int]{})
	defer m.Destroy()

	for round := 0; round < Rounds; round++ {
		for i, key := range keys {
			mustPut(t, m, string(key), i)
		}
		var wg sync.WaitGroup
		for i, key := range keys {
			wg.Add(1)
			go func(i int, key []byte) {
				defer wg.Done()
				if value, found := m.Delete(key); !found || value != i {
					t.Errorf("unexpected delete result, wanted (%d,true), got (%d,%t)", i, value, found)
				}
			}(i, key)
		}
		wg.Wait()

		m.GC(m.StageGC())
		if got, want := getUsage(t, m), (Usage{Roots: 1}); got != want {
			t.Fatalf("branch should be fully collapsed in round %d, wanted %+v, got %+v", round, want, got)
		}
	}
}

func TestMap_ConcurrentInsertsAndDeletesOnSharedBranch(t *testing.T) {
	const Rounds = 200
	keys, err := FindCollidingKeys(DefaultHasher{}, 0, 1, 8)
	if err != nil {
		t.Fatalf("failed to find colliding keys: %v", err)
	}
	m := newTestMap(t, Config[int]{})
	defer m.Destroy()

	// Every goroutine inserts and removes its own key of a shared branch,
	// repeatedly creating and collapsing it.
	var gcLock sync.RWMutex
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key []byte) {
			defer wg.Done()
			for round := 0; round < Rounds; round++ {
				gcLock.RLock()
				if _, _, err := m.Put(key, i); err != nil {
					t.Errorf("failed to insert: %v", err)
				}
				if value, found := m.Get(key); !found || value != i {
					t.Errorf("inserted key not found, got (%d,%t)", value, found)
				}
				if value, found := m.Delete(key); !found || value != i {
					t.Errorf("unexpected delete result, got (%d,%t)", value, found)
				}
				gcLock.RUnlock()
				if round%50 == 0 {
					gcLock.Lock()
					m.GC(m.StageGC())
					gcLock.Unlock()
				}
			}
		}(i, key)
	}
	wg.Wait()

	m.GC(m.StageGC())
	if got, want := getUsage(t, m), (Usage{Roots: 1}); got != want {
		t.Errorf("map should be empty, wanted %+v, got %+v", want, got)
	}
}
