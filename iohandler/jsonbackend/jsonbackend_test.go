// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package jsonbackend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/iohandler"
)

type fakeHandler struct {
	mode backend.AccessMode
	impl iohandler.Backend
}

func (h *fakeHandler) AccessMode() backend.AccessMode { return h.mode }

func (h *fakeHandler) Enqueue(t backend.Task) error {
	switch p := t.Params.(type) {
	case *backend.CreateFileParams:
		return h.impl.CreateFile(t.Target, p)
	case *backend.OpenFileParams:
		return h.impl.OpenFile(t.Target, p)
	case *backend.CloseFileParams:
		return h.impl.CloseFile(t.Target, p)
	case *backend.CreatePathParams:
		return h.impl.CreatePath(t.Target, p)
	case *backend.OpenPathParams:
		return h.impl.OpenPath(t.Target, p)
	case *backend.CreateDatasetParams:
		return h.impl.CreateDataset(t.Target, p)
	case *backend.OpenDatasetParams:
		return h.impl.OpenDataset(t.Target, p)
	case *backend.WriteDatasetParams:
		return h.impl.WriteDataset(t.Target, p)
	case *backend.ReadDatasetParams:
		return h.impl.ReadDataset(t.Target, p)
	case *backend.WriteAttParams:
		return h.impl.WriteAtt(t.Target, p)
	case *backend.ReadAttParams:
		return h.impl.ReadAtt(t.Target, p)
	case *backend.AvailableChunksParams:
		return h.impl.AvailableChunks(t.Target, p)
	}
	panic("fakeHandler: unhandled params type")
}

func newWriteSeries(t *testing.T, impl iohandler.Backend, dir, name string) (*fakeHandler, *backend.Writable) {
	t.Helper()
	h := &fakeHandler{mode: backend.Create, impl: impl}
	root := backend.NewRoot(h, dir, name, "json")
	require.NoError(t, root.Enqueue(backend.CreateFile, &backend.CreateFileParams{Name: filepath.Join(dir, name+".json")}))
	return h, root
}

func TestCreateWriteCloseOpenReadDataset(t *testing.T) {
	dir := t.TempDir()
	b, err := New(nil)
	require.NoError(t, err)

	h, root := newWriteSeries(t, b, dir, "data")

	meshes := backend.NewWritable(root, "meshes", h)
	require.NoError(t, meshes.Enqueue(backend.CreatePath, &backend.CreatePathParams{Path: "meshes"}))
	require.NoError(t, meshes.Enqueue(backend.OpenPath, &backend.OpenPathParams{Path: "meshes"}))

	e := backend.NewWritable(meshes, "E", h)
	create := &backend.CreateDatasetParams{Name: "E", Datatype: datatype.Float64, Extent: []uint64{4}}
	require.NoError(t, e.Enqueue(backend.CreateDataset, create))

	write := &backend.WriteDatasetParams{Offset: []uint64{0}, Extent: []uint64{4}, Datatype: datatype.Float64, Data: []float64{1, 2, 3, 4}}
	require.NoError(t, e.Enqueue(backend.WriteDataset, write))

	require.NoError(t, root.Enqueue(backend.CloseFile, &backend.CloseFileParams{}))

	diskPath := filepath.Join(dir, "data.json")
	_, statErr := os.Stat(diskPath)
	require.NoError(t, statErr)

	b2, err := New(nil)
	require.NoError(t, err)
	h2 := &fakeHandler{mode: backend.ReadOnly, impl: b2}
	root2 := backend.NewRoot(h2, dir, "data", "json")
	require.NoError(t, root2.Enqueue(backend.OpenFile, &backend.OpenFileParams{Name: diskPath}))

	meshes2 := backend.NewWritable(root2, "meshes", h2)
	require.NoError(t, meshes2.Enqueue(backend.OpenPath, &backend.OpenPathParams{Path: "meshes"}))

	e2 := backend.NewWritable(meshes2, "E", h2)
	open := &backend.OpenDatasetParams{Name: "E"}
	require.NoError(t, e2.Enqueue(backend.OpenDataset, open))
	assert.Equal(t, datatype.Float64, open.Datatype)
	assert.Equal(t, []uint64{4}, open.Extent)

	buf := make([]float64, 4)
	read := &backend.ReadDatasetParams{Offset: []uint64{0}, Extent: []uint64{4}, Datatype: datatype.Float64, Data: buf}
	require.NoError(t, e2.Enqueue(backend.ReadDataset, read))
	assert.Equal(t, []float64{1, 2, 3, 4}, buf)
}

func TestDatasetIsStoredAsPreSizedNestedArray(t *testing.T) {
	dir := t.TempDir()
	b, err := New(nil)
	require.NoError(t, err)
	h, root := newWriteSeries(t, b, dir, "nested")

	ds := backend.NewWritable(root, "rho", h)
	require.NoError(t, ds.Enqueue(backend.CreateDataset, &backend.CreateDatasetParams{Name: "rho", Datatype: datatype.Int32, Extent: []uint64{2, 3}}))
	data := []int32{1, 2, 3, 4, 5, 6}
	require.NoError(t, ds.Enqueue(backend.WriteDataset, &backend.WriteDatasetParams{Offset: []uint64{0, 0}, Extent: []uint64{2, 3}, Datatype: datatype.Int32, Data: data}))
	require.NoError(t, root.Enqueue(backend.CloseFile, &backend.CloseFileParams{}))

	raw, err := os.ReadFile(filepath.Join(dir, "nested.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data"`)
	assert.Contains(t, string(raw), "platform_byte_widths")

	b2, err := New(nil)
	require.NoError(t, err)
	h2 := &fakeHandler{mode: backend.ReadOnly, impl: b2}
	root2 := backend.NewRoot(h2, dir, "nested", "json")
	require.NoError(t, root2.Enqueue(backend.OpenFile, &backend.OpenFileParams{Name: filepath.Join(dir, "nested.json")}))
	ds2 := backend.NewWritable(root2, "rho", h2)
	require.NoError(t, ds2.Enqueue(backend.OpenDataset, &backend.OpenDatasetParams{Name: "rho"}))
	buf := make([]int32, 6)
	require.NoError(t, ds2.Enqueue(backend.ReadDataset, &backend.ReadDatasetParams{Offset: []uint64{0, 0}, Extent: []uint64{2, 3}, Datatype: datatype.Int32, Data: buf}))
	assert.Equal(t, data, buf)
}

func TestAttributeRoundTripIncludingComplex(t *testing.T) {
	dir := t.TempDir()
	b, err := New(nil)
	require.NoError(t, err)
	h, root := newWriteSeries(t, b, dir, "attrs")

	require.NoError(t, root.Enqueue(backend.WriteAtt, &backend.WriteAttParams{Name: "openPMD", Attribute: datatype.New("1.1.0")}))
	require.NoError(t, root.Enqueue(backend.WriteAtt, &backend.WriteAttParams{Name: "phase", Attribute: datatype.New(complex128(1 + 2i))}))
	require.NoError(t, root.Enqueue(backend.CloseFile, &backend.CloseFileParams{}))

	diskPath := filepath.Join(dir, "attrs.json")
	b2, err := New(nil)
	require.NoError(t, err)
	h2 := &fakeHandler{mode: backend.ReadOnly, impl: b2}
	root2 := backend.NewRoot(h2, dir, "attrs", "json")
	require.NoError(t, root2.Enqueue(backend.OpenFile, &backend.OpenFileParams{Name: diskPath}))

	read := &backend.ReadAttParams{Name: "openPMD"}
	require.NoError(t, root2.Enqueue(backend.ReadAtt, read))
	v, err := datatype.Get[string](read.Attribute)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v)

	readComplex := &backend.ReadAttParams{Name: "phase"}
	require.NoError(t, root2.Enqueue(backend.ReadAtt, readComplex))
	c, err := datatype.Get[complex128](readComplex.Attribute)
	require.NoError(t, err)
	assert.Equal(t, complex128(1+2i), c)
}

func TestWriteUnderReadOnlyFails(t *testing.T) {
	dir := t.TempDir()
	b, err := New(nil)
	require.NoError(t, err)
	h := &fakeHandler{mode: backend.ReadOnly, impl: b}
	root := backend.NewRoot(h, dir, "ro", "json")
	err = root.Enqueue(backend.CreateFile, &backend.CreateFileParams{Name: filepath.Join(dir, "ro.json")})
	assert.Error(t, err)
}

func TestAvailableChunksReportsFullExtent(t *testing.T) {
	dir := t.TempDir()
	b, err := New(nil)
	require.NoError(t, err)
	h, root := newWriteSeries(t, b, dir, "chunks")

	ds := backend.NewWritable(root, "E", h)
	require.NoError(t, ds.Enqueue(backend.CreateDataset, &backend.CreateDatasetParams{Name: "E", Datatype: datatype.Float32, Extent: []uint64{3, 3}}))

	chunks := &backend.AvailableChunksParams{}
	require.NoError(t, ds.Enqueue(backend.AvailableChunks, chunks))
	require.Len(t, chunks.Chunks, 1)
	assert.Equal(t, []uint64{3, 3}, chunks.Chunks[0].Extent)
}
