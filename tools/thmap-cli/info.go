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
	"os"

	"github.com/NetBSD/src-sub289/database/thmap"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
)

var InfoCmd = cli.Command{
	Action: info,
	Name:   "info",
	Usage:  "lists the memory consumption of an empty map and the memory of the system",
}

func info(context *cli.Context) error {
	return printInfo(os.Stdout)
}

func printInfo(out io.Writer) error {
	m, err := thmap.New[uint64](thmap.Config[uint64]{})
	if err != nil {
		return err
	}
	defer m.Destroy()

	const GiB = 1024 * 1024 * 1024
	fmt.Fprintf(out, "System memory:\n")
	fmt.Fprintf(out, "\tTotal: %.2f GiB\n", float64(memory.TotalMemory())/GiB)
	fmt.Fprintf(out, "\tFree:  %.2f GiB\n", float64(memory.FreeMemory())/GiB)
	fmt.Fprintf(out, "Memory footprint of an empty map:\n%v", m.GetMemoryFootprint())
	return nil
}
