// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/NetBSD/src-sub289/backend/stock"
	"github.com/NetBSD/src-sub289/common/interrupt"
	"github.com/NetBSD/src-sub289/database/thmap"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
)

var StressCmd = cli.Command{
	Action: addPerformanceDiagnoses(stress),
	Name:   "stress",
	Usage:  "runs concurrent lookups, insertions and deletions on a shared map",
	Flags: []cli.Flag{
		&seedFlag,
		&threadsFlag,
		&keysFlag,
		&roundsFlag,
		&opsFlag,
		&maxNodesFlag,
		&maxLeavesFlag,
	},
}

var (
	threadsFlag = cli.IntFlag{
		Name:  "threads",
		Usage: "the number of goroutines operating on the map, 0 for one per CPU",
		Value: 0,
	}
	keysFlag = cli.IntFlag{
		Name:  "keys",
		Usage: "the size of the key space shared by all goroutines",
		Value: 1 << 16,
	}
	roundsFlag = cli.IntFlag{
		Name:  "rounds",
		Usage: "the number of rounds, each followed by a garbage collection",
		Value: 10,
	}
	opsFlag = cli.IntFlag{
		Name:  "ops",
		Usage: "the number of operations per goroutine and round",
		Value: 100_000,
	}
	maxNodesFlag = cli.IntFlag{
		Name:  "max-nodes",
		Usage: "limits the number of intermediate nodes, 0 for no limit",
		Value: 0,
	}
	maxLeavesFlag = cli.IntFlag{
		Name:  "max-leaves",
		Usage: "limits the number of leaves, 0 for no limit",
		Value: 0,
	}
)

type stressParams struct {
	seed      uint32
	threads   int
	keys      int
	rounds    int
	ops       int
	maxNodes  int
	maxLeaves int
}

type stressStats struct {
	rounds   int
	gets     uint64
	puts     uint64
	deletes  uint64
	rejected uint64 // insertions failing due to exhausted storage
	usage    thmap.Usage
}

func (s *stressStats) add(other stressStats) {
	s.gets += other.gets
	s.puts += other.puts
	s.deletes += other.deletes
	s.rejected += other.rejected
}

func stress(context *cli.Context) error {
	seed, err := getSeed(context)
	if err != nil {
		return err
	}
	params := stressParams{
		seed:      seed,
		threads:   context.Int(threadsFlag.Name),
		keys:      context.Int(keysFlag.Name),
		rounds:    context.Int(roundsFlag.Name),
		ops:       context.Int(opsFlag.Name),
		maxNodes:  context.Int(maxNodesFlag.Name),
		maxLeaves: context.Int(maxLeavesFlag.Name),
	}
	if params.threads <= 0 {
		params.threads = runtime.NumCPU()
	}
	log.Printf("Running %d rounds of %d operations on %d goroutines, seed %d ...", params.rounds, params.ops, params.threads, params.seed)

	ctx := interrupt.Register(context.Context)
	start := time.Now()
	stats, err := runStress(ctx, params, func(stats stressStats, footprint uintptr) {
		log.Printf(
			"[%v] round %d done, %d gets, %d puts (%d rejected), %d deletes, %d nodes, %d leaves, map memory %.2f MiB, free system memory %.2f GiB",
			time.Since(start).Round(time.Millisecond),
			stats.rounds,
			stats.gets,
			stats.puts,
			stats.rejected,
			stats.deletes,
			stats.usage.Nodes,
			stats.usage.Leaves,
			float64(footprint)/(1<<20),
			float64(memory.FreeMemory())/(1<<30),
		)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Completed %d rounds in %v\n", stats.rounds, time.Since(start).Round(time.Millisecond))
	return nil
}

// runStress operates on a map from a number of goroutines, verifying every
// value observed. Between rounds all goroutines are stopped, which makes it
// safe to collect the objects staged during the round.
func runStress(ctx context.Context, params stressParams, report func(stressStats, uintptr)) (stressStats, error) {
	if params.threads <= 0 || params.keys <= 0 || params.ops < 0 || params.rounds < 0 {
		return stressStats{}, fmt.Errorf("invalid stress parameters %+v", params)
	}
	storage, err := thmap.NewStorage[entry](thmap.StorageConfig{
		MaxNodes:  params.maxNodes,
		MaxLeaves: params.maxLeaves,
	})
	if err != nil {
		return stressStats{}, err
	}
	m, err := thmap.New[entry](thmap.Config[entry]{
		Seed:    params.seed,
		Storage: storage,
	})
	if err != nil {
		return stressStats{}, err
	}
	defer m.Destroy()

	var total stressStats
	for round := 0; round < params.rounds; round++ {
		if interrupt.IsCancelled(ctx) {
			return total, interrupt.ErrCanceled
		}

		var wg sync.WaitGroup
		stats := make([]stressStats, params.threads)
		errs := make([]error, params.threads)
		for i := 0; i < params.threads; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				random := rand.New(rand.NewSource(int64(round*params.threads + i)))
				stats[i], errs[i] = runWorker(m, random, params, uint32(round))
			}(i)
		}
		wg.Wait()
		if err := errors.Join(errs...); err != nil {
			return total, err
		}

		// All operations of the round are complete.
		m.GC(m.StageGC())

		for _, cur := range stats {
			total.add(cur)
		}
		total.rounds = round + 1
		if total.usage, err = storage.GetUsage(); err != nil {
			return total, err
		}
		if report != nil {
			report(total, m.GetMemoryFootprint().Total())
		}
	}
	return total, nil
}

func runWorker(m *thmap.Map[entry], random *rand.Rand, params stressParams, round uint32) (stressStats, error) {
	var stats stressStats
	key := make([]byte, 8)
	for j := 0; j < params.ops; j++ {
		index := uint64(random.Intn(params.keys))
		binary.BigEndian.PutUint64(key, index)

		var value entry
		var found bool
		switch random.Intn(3) {
		case 0:
			stats.gets++
			value, found = m.Get(key)
		case 1:
			stats.puts++
			var err error
			value, _, err = m.Put(key, newEntry(index, round))
			if errors.Is(err, stock.ErrOutOfSpace) {
				stats.rejected++
				continue
			}
			if err != nil {
				return stats, err
			}
			found = true
		case 2:
			stats.deletes++
			value, found = m.Delete(key)
		}
		if found && !value.isValidFor(index) {
			return stats, fmt.Errorf("observed corrupted value %+v for key %d", value, index)
		}
	}
	return stats, nil
}

// entry is the value stored in the map. It encodes its key, such that any
// value observed for the wrong key, or only partially written, is detected.
type entry struct {
	key      uint64
	round    uint32
	checksum uint64
}

func newEntry(key uint64, round uint32) entry {
	return entry{key: key, round: round, checksum: entryChecksum(key, round)}
}

func entryChecksum(key uint64, round uint32) uint64 {
	return (key ^ uint64(round)<<32) * 0x9E3779B97F4A7C15
}

func (e entry) isValidFor(key uint64) bool {
	return e.key == key && e.checksum == entryChecksum(e.key, e.round)
}
