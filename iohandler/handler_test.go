// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package iohandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// recordingBackend implements Backend, recording the order operations
// dispatch in and optionally failing a named operation once.
type recordingBackend struct {
	order        []backend.Operation
	needsSetup   bool
	failOn       backend.Operation
	failed       bool
}

func (b *recordingBackend) fail(op backend.Operation) error {
	if op == b.failOn && !b.failed {
		b.failed = true
		return errors.E(errors.Internal, "injected failure")
	}
	b.order = append(b.order, op)
	return nil
}

func (b *recordingBackend) NeedsSetupQueue() bool { return b.needsSetup }

func (b *recordingBackend) CreateFile(*backend.Writable, *backend.CreateFileParams) error {
	return b.fail(backend.CreateFile)
}
func (b *recordingBackend) OpenFile(*backend.Writable, *backend.OpenFileParams) error {
	return b.fail(backend.OpenFile)
}
func (b *recordingBackend) CloseFile(*backend.Writable, *backend.CloseFileParams) error {
	return b.fail(backend.CloseFile)
}
func (b *recordingBackend) DeleteFile(*backend.Writable, *backend.DeleteFileParams) error {
	return b.fail(backend.DeleteFile)
}
func (b *recordingBackend) CreatePath(*backend.Writable, *backend.CreatePathParams) error {
	return b.fail(backend.CreatePath)
}
func (b *recordingBackend) OpenPath(*backend.Writable, *backend.OpenPathParams) error {
	return b.fail(backend.OpenPath)
}
func (b *recordingBackend) ClosePath(*backend.Writable, *backend.ClosePathParams) error {
	return b.fail(backend.ClosePath)
}
func (b *recordingBackend) DeletePath(*backend.Writable, *backend.DeletePathParams) error {
	return b.fail(backend.DeletePath)
}
func (b *recordingBackend) CreateDataset(*backend.Writable, *backend.CreateDatasetParams) error {
	return b.fail(backend.CreateDataset)
}
func (b *recordingBackend) ExtendDataset(*backend.Writable, *backend.ExtendDatasetParams) error {
	return b.fail(backend.ExtendDataset)
}
func (b *recordingBackend) OpenDataset(*backend.Writable, *backend.OpenDatasetParams) error {
	return b.fail(backend.OpenDataset)
}
func (b *recordingBackend) DeleteDataset(*backend.Writable, *backend.DeleteDatasetParams) error {
	return b.fail(backend.DeleteDataset)
}
func (b *recordingBackend) WriteDataset(*backend.Writable, *backend.WriteDatasetParams) error {
	return b.fail(backend.WriteDataset)
}
func (b *recordingBackend) ReadDataset(*backend.Writable, *backend.ReadDatasetParams) error {
	return b.fail(backend.ReadDataset)
}
func (b *recordingBackend) GetBufferView(*backend.Writable, *backend.GetBufferViewParams) error {
	return b.fail(backend.GetBufferView)
}
func (b *recordingBackend) WriteAtt(*backend.Writable, *backend.WriteAttParams) error {
	return b.fail(backend.WriteAtt)
}
func (b *recordingBackend) ReadAtt(*backend.Writable, *backend.ReadAttParams) error {
	return b.fail(backend.ReadAtt)
}
func (b *recordingBackend) DeleteAtt(*backend.Writable, *backend.DeleteAttParams) error {
	return b.fail(backend.DeleteAtt)
}
func (b *recordingBackend) ListPaths(*backend.Writable, *backend.ListPathsParams) error {
	return b.fail(backend.ListPaths)
}
func (b *recordingBackend) ListDatasets(*backend.Writable, *backend.ListDatasetsParams) error {
	return b.fail(backend.ListDatasets)
}
func (b *recordingBackend) ListAtts(*backend.Writable, *backend.ListAttsParams) error {
	return b.fail(backend.ListAtts)
}
func (b *recordingBackend) Advance(*backend.Writable, *backend.AdvanceParams) error {
	return b.fail(backend.Advance)
}
func (b *recordingBackend) AvailableChunks(*backend.Writable, *backend.AvailableChunksParams) error {
	return b.fail(backend.AvailableChunks)
}
func (b *recordingBackend) Deregister(*backend.Writable, *backend.DeregisterParams) error {
	return b.fail(backend.Deregister)
}

func TestEnqueueSplitsSetupAndWorkQueues(t *testing.T) {
	impl := &recordingBackend{needsSetup: true}
	h := NewHandler("/tmp/x", backend.Create, impl)

	w := backend.NewWritable(nil, "", h)
	require.NoError(t, w.Enqueue(backend.CreateFile, &backend.CreateFileParams{Name: "x"}))
	require.NoError(t, w.Enqueue(backend.WriteDataset, &backend.WriteDatasetParams{Datatype: datatype.Float64}))
	require.NoError(t, w.Enqueue(backend.CreatePath, &backend.CreatePathParams{Path: "meshes"}))

	require.NoError(t, h.Flush(backend.UserFlush))
	assert.Equal(t, []backend.Operation{backend.CreateFile, backend.CreatePath, backend.WriteDataset}, impl.order)
}

func TestFlushStopsQueueOnFailure(t *testing.T) {
	impl := &recordingBackend{failOn: backend.WriteDataset}
	h := NewHandler("/tmp/x", backend.Create, impl)
	w := backend.NewWritable(nil, "", h)

	require.NoError(t, w.Enqueue(backend.WriteDataset, &backend.WriteDatasetParams{Datatype: datatype.Float64}))
	require.NoError(t, w.Enqueue(backend.ReadAtt, &backend.ReadAttParams{Name: "x"}))

	err := h.Flush(backend.UserFlush)
	assert.Error(t, err)
	assert.False(t, h.LastFlushSuccessful())
	assert.Empty(t, impl.order)

	// The ReadAtt task remains queued; a retrying Flush processes it.
	require.NoError(t, h.Flush(backend.UserFlush))
	assert.True(t, h.LastFlushSuccessful())
	assert.Equal(t, []backend.Operation{backend.ReadAtt}, impl.order)
}

func TestHandlerAccessMode(t *testing.T) {
	impl := &recordingBackend{}
	h := NewHandler("/tmp/x", backend.ReadOnly, impl)
	assert.Equal(t, backend.ReadOnly, h.AccessMode())
}

func TestHandlerDefaultParsePreference(t *testing.T) {
	impl := &recordingBackend{}
	h := NewHandler("/tmp/x", backend.Create, impl)
	assert.Equal(t, backend.ParseUpFront, h.ParsePreference())
}
