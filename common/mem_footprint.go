// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryFootprint describes the memory consumption of a data structure. A
// footprint is a tree: every node reports the bytes owned directly by a
// component and names the footprints of its sub-components.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
	note     string
}

// MemoryFootprintProvider is implemented by all types able to report their
// memory usage.
type MemoryFootprintProvider interface {
	GetMemoryFootprint() *MemoryFootprint
}

// NewMemoryFootprint creates a new MemoryFootprint instance for a data structure
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{
		value:    value,
		children: make(map[string]*MemoryFootprint),
	}
}

// AddChild allows to attach a MemoryFootprint of a sub-component. Nil
// children are ignored.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	if child != nil {
		mf.children[name] = child
	}
}

// GetChild returns the footprint of the named sub-component, nil if there is
// no such component.
func (mf *MemoryFootprint) GetChild(name string) *MemoryFootprint {
	return mf.children[name]
}

// SetNote attaches a free-text remark printed next to this footprint.
func (mf *MemoryFootprint) SetNote(note string) {
	mf.note = note
}

// Value provides the amount of bytes consumed by the structure (excluding its subcomponents)
func (mf *MemoryFootprint) Value() uintptr {
	return mf.value
}

// Total provides the amount of bytes consumed by the structure including all its subcomponents
func (mf *MemoryFootprint) Total() uintptr {
	includedObjects := make(map[*MemoryFootprint]bool)
	return includeObjectIntoTotal(mf, includedObjects)
}

func includeObjectIntoTotal(mf *MemoryFootprint, includedObjects map[*MemoryFootprint]bool) (total uintptr) {
	if _, exists := includedObjects[mf]; exists {
		return 0
	}
	includedObjects[mf] = true
	total = mf.value
	for _, child := range mf.children {
		total += includeObjectIntoTotal(child, includedObjects)
	}
	return total
}

// String provides the memory footprint as a tree summary. Sub-components are
// listed before their parent, ordered by name.
func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.toStringBuilder(&sb, ".", map[*MemoryFootprint]bool{})
	return sb.String()
}

func (mf *MemoryFootprint) toStringBuilder(sb *strings.Builder, path string, visited map[*MemoryFootprint]bool) {
	if visited[mf] {
		return
	}
	visited[mf] = true
	names := maps.Keys(mf.children)
	slices.Sort(names)
	for _, name := range names {
		mf.children[name].toStringBuilder(sb, path+"/"+name, visited)
	}
	memoryAmountToString(sb, mf.Total())
	sb.WriteRune(' ')
	sb.WriteString(path)
	if mf.note != "" {
		sb.WriteString(" (")
		sb.WriteString(mf.note)
		sb.WriteRune(')')
	}
	sb.WriteRune('\n')
}

func memoryAmountToString(sb *strings.Builder, bytes uintptr) {
	const unit = 1024
	const prefixes = " KMGTPE"
	value, exp := float64(bytes), 0
	for value >= unit && exp+1 < len(prefixes) {
		value /= unit
		exp++
	}
	fmt.Fprintf(sb, "%6.1f %cB", value, prefixes[exp])
}
