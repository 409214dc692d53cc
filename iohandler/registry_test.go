// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package iohandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndFindBackend(t *testing.T) {
	factory := func(map[string]interface{}) (Backend, error) { return nil, nil }
	RegisterBackend("test-ext-registry-case", factory)

	assert.NotNil(t, FindBackend("test-ext-registry-case"))
	assert.NotNil(t, FindBackend("TEST-EXT-REGISTRY-CASE"))
	assert.Nil(t, FindBackend("no-such-extension"))
}

func TestRegisterBackendPanicsOnDuplicate(t *testing.T) {
	factory := func(map[string]interface{}) (Backend, error) { return nil, nil }
	RegisterBackend("dup-ext-registry-case", factory)
	assert.Panics(t, func() { RegisterBackend("dup-ext-registry-case", factory) })
}

func TestRegisterBackendPanicsOnNilFactory(t *testing.T) {
	assert.Panics(t, func() { RegisterBackend("nil-factory-ext", nil) })
}

func TestExtensionOfMultiPartSuffix(t *testing.T) {
	factory := func(map[string]interface{}) (Backend, error) { return nil, nil }
	RegisterBackend("opmds.sst", factory)

	assert.Equal(t, "opmds.sst", ExtensionOf("run/data.opmds.sst"))
	assert.Equal(t, "json", ExtensionOf("run/data.json"))
	require.Equal(t, "", ExtensionOf("no-extension"))
}
