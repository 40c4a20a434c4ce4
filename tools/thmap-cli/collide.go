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
	"fmt"
	"io"
	"log"
	"os"

	"github.com/NetBSD/src-sub289/database/thmap"
	"github.com/urfave/cli/v2"
)

var CollideCmd = cli.Command{
	Action: addPerformanceDiagnoses(collide),
	Name:   "collide",
	Usage:  "searches keys sharing their trie path down to a given depth",
	Flags: []cli.Flag{
		&seedFlag,
		&depthFlag,
		&countFlag,
	},
}

var (
	depthFlag = cli.IntFlag{
		Name:  "depth",
		Usage: "the trie level at which the keys should diverge",
		Value: 1,
	}
	countFlag = cli.IntFlag{
		Name:  "count",
		Usage: "the number of keys to search",
		Value: 3,
	}
)

func collide(context *cli.Context) error {
	seed, err := getSeed(context)
	if err != nil {
		return err
	}
	depth := context.Int(depthFlag.Name)
	count := context.Int(countFlag.Name)
	log.Printf("Searching %d keys diverging at level %d for seed %d ...", count, depth, seed)
	return printCollidingKeys(os.Stdout, seed, depth, count)
}

// printCollidingKeys searches colliding keys and verifies that a map
// retains all of them before printing them.
func printCollidingKeys(out io.Writer, seed uint32, depth, count int) error {
	keys, err := thmap.FindCollidingKeys(thmap.DefaultHasher{}, seed, depth, count)
	if err != nil {
		return err
	}

	storage, err := thmap.NewStorage[int](thmap.StorageConfig{})
	if err != nil {
		return err
	}
	m, err := thmap.New[int](thmap.Config[int]{Seed: seed, Storage: storage})
	if err != nil {
		return err
	}
	defer m.Destroy()
	for i, key := range keys {
		if _, _, err := m.Put(key, i); err != nil {
			return err
		}
	}
	usage, err := storage.GetUsage()
	if err != nil {
		return err
	}
	if want := depth + 1; usage.Nodes != want {
		return fmt.Errorf("keys produced %d nodes instead of %d", usage.Nodes, want)
	}

	fmt.Fprintf(out, "Seed: %d\n", seed)
	for _, key := range keys {
		fmt.Fprintf(out, "%x\t%s\n", key, key)
	}
	return nil
}
