// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/errors"
)

func TestErrorChaining(t *testing.T) {
	_, osErr := os.Open("/dev/notexist-openpmd")
	e1 := errors.E(errors.NoSuchFile, "opening series file", osErr)
	require.True(t, errors.Is(errors.NoSuchFile, e1))
	assert.Contains(t, e1.Error(), "opening series file")
	assert.Contains(t, e1.Error(), "no such file")

	e2 := errors.E("wrapping", e1)
	require.True(t, errors.Is(errors.NoSuchFile, e2))
	assert.Contains(t, e2.Error(), errors.Separator)
}

func TestReadErrorDetail(t *testing.T) {
	err := errors.ReadErr(errors.ObjectDataset, errors.ReasonNotFound, "jsonbackend", "rho not found")
	e := errors.Recover(err)
	assert.Equal(t, errors.Read, e.Kind)
	assert.Equal(t, errors.ObjectDataset, e.ObjectKind)
	assert.Equal(t, errors.ReasonNotFound, e.Reason)
	assert.Contains(t, err.Error(), "object=dataset")
	assert.Contains(t, err.Error(), "reason=NotFound")
	assert.Contains(t, err.Error(), "backend=jsonbackend")
}

func TestOnceKeepsFirstError(t *testing.T) {
	var once errors.Once
	require.NoError(t, once.Err())
	once.Set(errors.New("first"))
	once.Set(errors.New("second"))
	assert.EqualError(t, once.Err(), "first")
}

func TestCleanUpChains(t *testing.T) {
	err := errors.New("primary")
	errors.CleanUp(func() error { return errors.New("close failed") }, &err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "second error in cleanup")
}
