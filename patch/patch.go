// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package patch implements the particle-patch table: a column-oriented
// description of how a particle species' particles are partitioned across
// writers.
package patch

import (
	"fmt"

	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// Table is a column-oriented table with one row per patch. NumParticles and
// NumParticlesOffset are the two dedicated columns every patch table
// carries; Columns holds the remaining named columns (e.g. "offset.x",
// "extent.x"), each a dataset of length len(NumParticles).
type Table struct {
	NumParticles       []uint64
	NumParticlesOffset []uint64
	Columns            map[string]Column
}

// Column is one named column of a Table: a homogeneous vector of Attribute
// values, one per patch, sharing a single Datatype.
type Column struct {
	Datatype datatype.Datatype
	Values   []datatype.Attribute
}

// NumPatches returns the row count of t, derived from NumParticles.
func (t *Table) NumPatches() int { return len(t.NumParticles) }

// New creates an empty patch table for the given number of patches.
func New(numPatches int) *Table {
	return &Table{
		NumParticles:       make([]uint64, numPatches),
		NumParticlesOffset: make([]uint64, numPatches),
		Columns:            make(map[string]Column),
	}
}

// SetColumn installs or replaces a named column. It fails if len(values) !=
// t.NumPatches().
func (t *Table) SetColumn(name string, dtype datatype.Datatype, values []datatype.Attribute) error {
	if len(values) != t.NumPatches() {
		return errors.E(errors.WrongAPIUsage, fmt.Sprintf("patch: column %q has %d values, table has %d patches", name, len(values), t.NumPatches()))
	}
	t.Columns[name] = Column{Datatype: dtype, Values: append([]datatype.Attribute(nil), values...)}
	return nil
}

// Get returns the named column and whether it exists.
func (t *Table) Get(name string) (Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}
