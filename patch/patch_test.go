// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/datatype"
)

func TestNewTableShape(t *testing.T) {
	tbl := New(3)
	assert.Equal(t, 3, tbl.NumPatches())
	assert.Len(t, tbl.NumParticles, 3)
	assert.Len(t, tbl.NumParticlesOffset, 3)
}

func TestSetColumnAndGet(t *testing.T) {
	tbl := New(2)
	vals := []datatype.Attribute{datatype.New(int64(1)), datatype.New(int64(2))}
	require.NoError(t, tbl.SetColumn("offset.x", datatype.Int64, vals))

	col, ok := tbl.Get("offset.x")
	require.True(t, ok)
	assert.Equal(t, datatype.Int64, col.Datatype)
	assert.Len(t, col.Values, 2)

	_, ok = tbl.Get("missing")
	assert.False(t, ok)
}

func TestSetColumnWrongLengthFails(t *testing.T) {
	tbl := New(3)
	err := tbl.SetColumn("offset.x", datatype.Int64, []datatype.Attribute{datatype.New(int64(1))})
	assert.Error(t, err)
}
