// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// Handler is the subset of iohandler.Handler that a Writable needs: the
// ability to enqueue a task and to report the current access mode. Defined
// here (rather than imported from package iohandler) so that backend does
// not depend upward on the package that depends on it; iohandler.Handler
// satisfies this interface structurally.
type Handler interface {
	Enqueue(t Task) error
	AccessMode() AccessMode
}

// Position is the opaque, backend-tagged token a Writable is stamped with
// once its backing artifact exists. Kind identifies which backend stamped
// it ("hierarchical", "streaming", "json"); Token is backend-private state
// (e.g. a byte offset, a JSON-pointer path, a variable name).
type Position struct {
	Kind  string
	Token interface{}
}

// RootInfo holds the filename components known only at the Series (root
// Writable) level; MyPath walks up to the root and reads this to build a
// full path.
type RootInfo struct {
	Directory string
	Basename  string
	Extension string
}

// Path is the result of Writable.MyPath: the owning series' directory,
// basename and extension, plus the `/`-separated group path from the root
// down to this node.
type Path struct {
	Directory string
	Basename  string
	Extension string
	Group     []string
}

// String renders p the way error messages and diagnostics want it:
// "dir/basename.ext:/group/path".
func (p Path) String() string {
	return fmt.Sprintf("%s/%s.%s:/%s", p.Directory, p.Basename, p.Extension, strings.Join(p.Group, "/"))
}

// Writable is one node of the hierarchy graph: it owns a set of attributes,
// an optional backend Position, dirty/written flags, a non-owning pointer to
// its parent, and a reference to the Handler that will eventually drain
// tasks enqueued against it. Every exported type in package series embeds
// or wraps a *Writable.
//
// Parent back-references are plain pointers, not weak or reference-counted
// handles: unlike the reference-counted source this is derived from, Go's
// garbage collector reclaims cycles, so a child holding a strong pointer to
// its parent (and vice versa through child maps) introduces no leak.
type Writable struct {
	mu sync.Mutex

	parent *Writable
	key    string
	root   *RootInfo
	handler Handler

	attrNames []string
	attrs     map[string]datatype.Attribute

	position *Position
	dirty    bool
	written  bool
}

// NewWritable constructs a child of parent named key. handler is normally
// parent.handler; it is accepted explicitly so the Series root (which has
// no parent) can construct itself.
func NewWritable(parent *Writable, key string, handler Handler) *Writable {
	return &Writable{
		parent:  parent,
		key:     key,
		handler: handler,
		attrs:   make(map[string]datatype.Attribute),
		dirty:   true,
	}
}

// NewRoot constructs the root Writable of a hierarchy (the Series itself),
// stamping it with the filename components MyPath needs.
func NewRoot(handler Handler, directory, basename, extension string) *Writable {
	w := NewWritable(nil, "", handler)
	w.root = &RootInfo{Directory: directory, Basename: basename, Extension: extension}
	return w
}

// Handler returns w's handler.
func (w *Writable) Handler() Handler { return w.handler }

// Parent returns w's parent, or nil at the root.
func (w *Writable) Parent() *Writable { return w.parent }

// Key returns w's key within its parent's child map ("" at the root).
func (w *Writable) Key() string { return w.key }

// SetAttribute stores value under name, marking w dirty. Returns true if an
// attribute of that name already existed (it was replaced). Fails with
// ReadOnly if the owning handler does not permit mutation.
func (w *Writable) SetAttribute(name string, value datatype.Attribute) (bool, error) {
	if !w.handler.AccessMode().Writable() {
		return false, errors.E(errors.ReadOnly, fmt.Sprintf("cannot set attribute %q under %s access", name, w.handler.AccessMode()))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, replaced := w.attrs[name]
	if !replaced {
		w.attrNames = append(w.attrNames, name)
	}
	w.attrs[name] = value
	w.dirty = true
	return replaced, nil
}

// GetAttribute returns the attribute stored under name, and whether it was
// present.
func (w *Writable) GetAttribute(name string) (datatype.Attribute, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.attrs[name]
	return v, ok
}

// DeleteAttribute removes the attribute stored under name. Fails with
// ReadOnly under a read-only handler, or NoSuchAttribute if name is absent.
func (w *Writable) DeleteAttribute(name string) error {
	if !w.handler.AccessMode().Writable() {
		return errors.E(errors.ReadOnly, fmt.Sprintf("cannot delete attribute %q under %s access", name, w.handler.AccessMode()))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.attrs[name]; !ok {
		return errors.E(errors.NoSuchAttribute, fmt.Sprintf("no attribute %q", name))
	}
	delete(w.attrs, name)
	for i, n := range w.attrNames {
		if n == name {
			w.attrNames = append(w.attrNames[:i], w.attrNames[i+1:]...)
			break
		}
	}
	w.dirty = true
	return nil
}

// AttributeNames returns the attribute names in insertion order.
func (w *Writable) AttributeNames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.attrNames...)
}

// Contains reports whether name is a stored attribute.
func (w *Writable) Contains(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.attrs[name]
	return ok
}

// MyPath walks w's parent chain to the root and returns the series
// directory/basename/extension plus the group path from root to w.
func (w *Writable) MyPath() Path {
	var group []string
	node := w
	for node.parent != nil {
		group = append([]string{node.key}, group...)
		node = node.parent
	}
	p := Path{Group: group}
	if node.root != nil {
		p.Directory, p.Basename, p.Extension = node.root.Directory, node.root.Basename, node.root.Extension
	}
	return p
}

// Dirty reports whether w has unflushed mutations.
func (w *Writable) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// MarkDirty flags w as having unflushed mutations.
func (w *Writable) MarkDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = true
}

// ClearDirty flags w as fully flushed.
func (w *Writable) ClearDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = false
}

// Written reports whether w's backing artifact has been created.
func (w *Writable) Written() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Position returns w's backend position token, or nil if unwritten.
func (w *Writable) Position() *Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

// MarkWritten stamps w with pos and flags it written.
func (w *Writable) MarkWritten(pos *Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.position = pos
	w.written = true
}

// ClearWritten flags w as unwritten, releasing its backend position (the
// invariant written=false ⇒ position=none).
func (w *Writable) ClearWritten() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = false
	w.position = nil
}

// Enqueue builds a Task from op/params targeting w and enqueues it on w's
// handler.
func (w *Writable) Enqueue(op Operation, params Params) error {
	return w.handler.Enqueue(NewTask(w, op, params))
}
