// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilenamePatternFileBased(t *testing.T) {
	p, err := parseFilenamePattern("run/data%06T.opmd")
	require.NoError(t, err)
	assert.True(t, p.FileBased)
	assert.Equal(t, "run", p.Directory)
	assert.Equal(t, "data", p.Prefix)
	assert.Equal(t, "", p.Postfix)
	assert.Equal(t, "opmd", p.Extension)
	assert.Equal(t, 6, p.Padding)
	assert.Equal(t, "data000042", p.basenameFor(42))
}

func TestParseFilenamePatternUnpadded(t *testing.T) {
	p, err := parseFilenamePattern("data%Tpost.json")
	require.NoError(t, err)
	assert.True(t, p.FileBased)
	assert.Equal(t, 0, p.Padding)
	assert.Equal(t, "post", p.Postfix)
	assert.Equal(t, "data7post", p.basenameFor(7))
}

func TestParseFilenamePatternGroupBased(t *testing.T) {
	p, err := parseFilenamePattern("run/data.opmd")
	require.NoError(t, err)
	assert.False(t, p.FileBased)
	assert.Equal(t, "data", p.Prefix)
	assert.Equal(t, "data", p.basenameFor(5))
}

func TestFilenamePatternMatch(t *testing.T) {
	p, err := parseFilenamePattern("data%06T.opmd")
	require.NoError(t, err)

	idx, width, ok := p.match("data000123")
	require.True(t, ok)
	assert.EqualValues(t, 123, idx)
	assert.Equal(t, 6, width)

	_, _, ok = p.match("other000123")
	assert.False(t, ok)
}

func TestCheckConsistentPadding(t *testing.T) {
	w, ok := checkConsistentPadding([]int{6, 6, 6})
	assert.True(t, ok)
	assert.Equal(t, 6, w)

	_, ok = checkConsistentPadding([]int{6, 4})
	assert.False(t, ok)

	w, ok = checkConsistentPadding([]int{0, 0})
	assert.True(t, ok)
	assert.Equal(t, 0, w)
}
