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
	"os"
	"runtime/pprof"
	"strings"

	"github.com/NetBSD/src-sub289/database/thmap"
	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./tools/thmap-cli <command> <flags>

var (
	cpuProfileFlag = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "sets the target file for storing CPU profiles to, disabled if empty",
		Value: "",
	}
	seedFlag = cli.Uint64Flag{
		Name:  "seed",
		Usage: "the seed of the map's hash function, random if not set",
	}
)

func main() {
	app := &cli.App{
		Name:      "thmap",
		Usage:     "trie-hash map toolbox",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags: []cli.Flag{
			&cpuProfileFlag,
		},
		Commands: []*cli.Command{
			&StressCmd,
			&CollideCmd,
			&InfoCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addPerformanceDiagnoses(action cli.ActionFunc) cli.ActionFunc {
	return func(context *cli.Context) error {
		cpuProfileFileName := context.String(cpuProfileFlag.Name)
		if strings.TrimSpace(cpuProfileFileName) != "" {
			if err := startCpuProfiler(cpuProfileFileName); err != nil {
				return err
			}
			defer stopCpuProfiler()
		}
		return action(context)
	}
}

func startCpuProfiler(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %s", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %s", err)
	}
	return nil
}

func stopCpuProfiler() {
	pprof.StopCPUProfile()
}

// getSeed returns the seed selected by the user, or a random one.
func getSeed(context *cli.Context) (uint32, error) {
	if !context.IsSet(seedFlag.Name) {
		return thmap.RandomSeed(), nil
	}
	seed := context.Uint64(seedFlag.Name)
	if seed > 1<<32-1 {
		return 0, fmt.Errorf("seed %d exceeds 32 bits", seed)
	}
	return uint32(seed), nil
}
