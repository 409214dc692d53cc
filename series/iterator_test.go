// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/datatype"

	_ "github.com/openpmd-io/openpmd-go/iohandler/hierarchical"
)

func writeGroupBasedFixture(t *testing.T, path string, indices []uint64) {
	t.Helper()
	s, err := Open(path, backend.Create, "")
	require.NoError(t, err)
	for _, idx := range indices {
		it, err := s.Iteration(idx)
		require.NoError(t, err)
		require.NoError(t, it.SetAttribute("step", datatype.New(int64(idx))))
		it.Close()
	}
	require.NoError(t, s.Close())
}

func TestReadIterationsVisitsEveryIteration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.opmd")
	writeGroupBasedFixture(t, path, []uint64{0, 1, 2})

	s, err := Open(path, backend.ReadOnly, "")
	require.NoError(t, err)

	var seen []uint64
	iter := s.ReadIterations()
	for iter.Next() {
		seen = append(seen, iter.Index())
		assert.Equal(t, iter.Index(), iter.Current().index)
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []uint64{0, 1, 2}, seen)

	require.NoError(t, s.Close())
}

func TestReadIterationsEmptySeries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.opmd")
	writeGroupBasedFixture(t, path, nil)

	s, err := Open(path, backend.ReadOnly, "")
	require.NoError(t, err)

	iter := s.ReadIterations()
	assert.False(t, iter.Next())
	require.NoError(t, iter.Err())

	require.NoError(t, s.Close())
}
