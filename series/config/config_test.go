// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyYieldsZeroConfig(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.False(t, cfg.DeferIterationParsing)
	assert.Empty(t, cfg.Backend)
}

func TestParseInlineJSON(t *testing.T) {
	cfg, err := Parse(`{"defer_iteration_parsing": true, "hierarchical": {"compression": "zstd"}}`)
	require.NoError(t, err)
	assert.True(t, cfg.DeferIterationParsing)
	assert.Contains(t, cfg.Backend, "hierarchical")
}

func TestParseAtFileIndirection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"defer_iteration_parsing": false, "chunks": 4}`), 0o644))

	cfg, err := Parse("@" + path)
	require.NoError(t, err)
	assert.False(t, cfg.DeferIterationParsing)
	assert.EqualValues(t, 4, cfg.Backend["chunks"])
}

func TestParseInvalidJSONFails(t *testing.T) {
	_, err := Parse("not json")
	assert.Error(t, err)
}
