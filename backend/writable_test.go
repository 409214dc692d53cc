// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/datatype"
)

type recordingHandler struct {
	mode   AccessMode
	tasks  []Task
}

func (h *recordingHandler) AccessMode() AccessMode { return h.mode }

func (h *recordingHandler) Enqueue(t Task) error {
	h.tasks = append(h.tasks, t)
	return nil
}

func TestNewTaskPanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewTask(nil, OpenFile, &CreateFileParams{Name: "x"})
	})
}

func TestNewTaskAccepts(t *testing.T) {
	task := NewTask(nil, CreateFile, &CreateFileParams{Name: "x"})
	assert.Equal(t, CreateFile, task.Op)
}

func TestWritableAttributeLifecycle(t *testing.T) {
	h := &recordingHandler{mode: Create}
	w := NewWritable(nil, "mesh", h)

	replaced, err := w.SetAttribute("unitSI", datatype.New(1.0))
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = w.SetAttribute("unitSI", datatype.New(2.0))
	require.NoError(t, err)
	assert.True(t, replaced)

	v, ok := w.GetAttribute("unitSI")
	require.True(t, ok)
	f, err := datatype.Get[float64](v)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	assert.True(t, w.Contains("unitSI"))
	assert.Equal(t, []string{"unitSI"}, w.AttributeNames())

	require.NoError(t, w.DeleteAttribute("unitSI"))
	assert.False(t, w.Contains("unitSI"))
	assert.Empty(t, w.AttributeNames())

	err = w.DeleteAttribute("unitSI")
	assert.Error(t, err)
}

func TestWritableReadOnlyRejectsMutation(t *testing.T) {
	h := &recordingHandler{mode: ReadOnly}
	w := NewWritable(nil, "mesh", h)
	_, err := w.SetAttribute("unitSI", datatype.New(1.0))
	assert.Error(t, err)
}

func TestWritableMyPath(t *testing.T) {
	h := &recordingHandler{mode: Create}
	root := NewRoot(h, "/tmp/run1", "data", "opmd")
	meshes := NewWritable(root, "meshes", h)
	e := NewWritable(meshes, "E", h)

	p := e.MyPath()
	assert.Equal(t, "/tmp/run1", p.Directory)
	assert.Equal(t, "data", p.Basename)
	assert.Equal(t, "opmd", p.Extension)
	assert.Equal(t, []string{"meshes", "E"}, p.Group)
}

func TestWritableDirtyWrittenState(t *testing.T) {
	h := &recordingHandler{mode: Create}
	w := NewWritable(nil, "mesh", h)
	assert.True(t, w.Dirty())

	w.ClearDirty()
	assert.False(t, w.Dirty())
	w.MarkDirty()
	assert.True(t, w.Dirty())

	assert.False(t, w.Written())
	assert.Nil(t, w.Position())

	w.MarkWritten(&Position{Kind: "hierarchical", Token: "x"})
	assert.True(t, w.Written())
	assert.NotNil(t, w.Position())

	w.ClearWritten()
	assert.False(t, w.Written())
	assert.Nil(t, w.Position())
}

func TestWritableEnqueueRoutesToHandler(t *testing.T) {
	h := &recordingHandler{mode: Create}
	w := NewWritable(nil, "mesh", h)
	require.NoError(t, w.Enqueue(CreateFile, &CreateFileParams{Name: "x"}))
	require.Len(t, h.tasks, 1)
	assert.Equal(t, CreateFile, h.tasks[0].Op)
	assert.Same(t, w, h.tasks[0].Target)
}
