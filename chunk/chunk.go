// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package chunk describes the contiguous sub-hyperrectangles a dataset is
// split into for partial I/O, and the unordered table of chunks a backend
// reports for a given dataset.
package chunk

import "fmt"

// Chunk is a contiguous sub-hyperrectangle of a dataset: all indices i with
// Offset[d] <= i[d] < Offset[d]+Extent[d] for every dimension d. SourceID
// identifies the writer that produced the chunk in multi-writer scenarios;
// backends that don't track provenance report 0.
type Chunk struct {
	Offset   []uint64
	Extent   []uint64
	SourceID int32
}

// Volume returns the number of elements the chunk covers.
func (c Chunk) Volume() uint64 {
	if len(c.Extent) == 0 {
		return 0
	}
	v := uint64(1)
	for _, e := range c.Extent {
		v *= e
	}
	return v
}

// Contains reports whether c fully covers the hyperrectangle described by
// offset/extent. Dimensions must match in length.
func (c Chunk) Contains(offset, extent []uint64) bool {
	if len(offset) != len(c.Offset) || len(extent) != len(c.Extent) {
		return false
	}
	for d := range offset {
		if offset[d] < c.Offset[d] {
			return false
		}
		if offset[d]+extent[d] > c.Offset[d]+c.Extent[d] {
			return false
		}
	}
	return true
}

func (c Chunk) String() string {
	return fmt.Sprintf("Chunk{offset=%v extent=%v source=%d}", c.Offset, c.Extent, c.SourceID)
}

// Table is an unordered sequence of chunks a backend holds for one dataset.
type Table []Chunk

// Contiguous builds the single-chunk Table a contiguous-storage backend
// reports: one chunk starting at the all-zero offset and spanning extent.
func Contiguous(extent []uint64) Table {
	offset := make([]uint64, len(extent))
	return Table{{Offset: offset, Extent: append([]uint64(nil), extent...), SourceID: 0}}
}
