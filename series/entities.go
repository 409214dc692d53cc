// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/chunk"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
	"github.com/openpmd-io/openpmd-go/iohandler"
	"github.com/openpmd-io/openpmd-go/patch"
)

// concreteHandler recovers the *iohandler.Handler driving w: every Handler
// in this codebase is one, so a failed assertion means a Writable was
// constructed with something other than a real handler.
func concreteHandler(w *backend.Writable) (*iohandler.Handler, error) {
	h, ok := w.Handler().(*iohandler.Handler)
	if !ok {
		return nil, errors.E(errors.Internal, "series: Writable's handler is not *iohandler.Handler")
	}
	return h, nil
}

// setAttribute both caches value on w (for cheap re-reads later in the same
// session) and enqueues the WriteAtt task that actually persists it;
// SetAttribute alone only updates Writable's in-memory bookkeeping.
func setAttribute(w *backend.Writable, name string, value datatype.Attribute) error {
	if _, err := w.SetAttribute(name, value); err != nil {
		return err
	}
	return w.Enqueue(backend.WriteAtt, &backend.WriteAttParams{Name: name, Attribute: value})
}

// getAttribute returns w's cached copy of name if present, else enqueues
// and flushes a ReadAtt task to fetch it from the backend.
func getAttribute(w *backend.Writable, name string) (datatype.Attribute, bool, error) {
	if v, ok := w.GetAttribute(name); ok {
		return v, true, nil
	}
	h, err := concreteHandler(w)
	if err != nil {
		return datatype.Attribute{}, false, err
	}
	p := &backend.ReadAttParams{Name: name}
	if err := w.Enqueue(backend.ReadAtt, p); err != nil {
		return datatype.Attribute{}, false, err
	}
	if err := h.Flush(backend.InternalFlush); err != nil {
		if errors.Is(errors.NoSuchAttribute, err) {
			return datatype.Attribute{}, false, nil
		}
		return datatype.Attribute{}, false, err
	}
	return p.Attribute, true, nil
}

// ScalarComponent is the reserved component name a scalar Record's sole
// RecordComponent is keyed under.
const ScalarComponent = "scalar"

// RecordComponent is a Writable wrapping exactly one dataset: a declared
// Datatype and Extent, plus the chunked read/write/extend operations every
// backend implements. The core never interprets the values it carries.
type RecordComponent struct {
	w        *backend.Writable
	Datatype datatype.Datatype
	Extent   []uint64
}

func newRecordComponent(parent *backend.Writable, name string, handler backend.Handler) *RecordComponent {
	return &RecordComponent{w: backend.NewWritable(parent, name, handler)}
}

// Writable exposes the underlying hierarchy node, for callers that need
// attribute access the typed wrappers don't surface directly.
func (rc *RecordComponent) Writable() *backend.Writable { return rc.w }

// CreateDataset declares rc's shape for writing. ChunkSize/Compression/
// Transform are optional hints a backend may ignore; unset fields zero.
func (rc *RecordComponent) CreateDataset(dt datatype.Datatype, extent []uint64, opts ...DatasetOption) error {
	p := &backend.CreateDatasetParams{Name: rc.w.Key(), Datatype: dt, Extent: extent}
	for _, opt := range opts {
		opt(p)
	}
	rc.Datatype, rc.Extent = dt, extent
	return rc.w.Enqueue(backend.CreateDataset, p)
}

// DatasetOption configures optional CreateDataset hints.
type DatasetOption func(*backend.CreateDatasetParams)

// WithChunkSize hints a preferred on-disk chunk shape.
func WithChunkSize(chunkSize []uint64) DatasetOption {
	return func(p *backend.CreateDatasetParams) { p.ChunkSize = chunkSize }
}

// WithCompression hints a compression scheme (e.g. "zstd", "deflate").
func WithCompression(name string) DatasetOption {
	return func(p *backend.CreateDatasetParams) { p.Compression = name }
}

// Open reads back rc's declared Datatype and Extent from the backend. Since
// OpenDataset's out fields are only populated once the task has actually
// dispatched, Open flushes rc's handler immediately rather than deferring
// to the next user-initiated Flush.
func (rc *RecordComponent) Open() error {
	h, err := concreteHandler(rc.w)
	if err != nil {
		return err
	}
	p := &backend.OpenDatasetParams{Name: rc.w.Key()}
	if err := rc.w.Enqueue(backend.OpenDataset, p); err != nil {
		return err
	}
	if err := h.Flush(backend.InternalFlush); err != nil {
		return err
	}
	rc.Datatype, rc.Extent = p.Datatype, p.Extent
	return nil
}

// Extend grows rc's leading dimension to newExtent.
func (rc *RecordComponent) Extend(newExtent []uint64) error {
	if err := rc.w.Enqueue(backend.ExtendDataset, &backend.ExtendDatasetParams{NewExtent: newExtent}); err != nil {
		return err
	}
	rc.Extent = newExtent
	return nil
}

// Write enqueues a chunked write of data into the hyperrectangle described
// by offset/extent.
func (rc *RecordComponent) Write(offset, extent []uint64, data interface{}) error {
	return rc.w.Enqueue(backend.WriteDataset, &backend.WriteDatasetParams{
		Offset: offset, Extent: extent, Datatype: rc.Datatype, Data: data,
	})
}

// Read enqueues a chunked read of the hyperrectangle described by
// offset/extent into the caller-allocated data buffer.
func (rc *RecordComponent) Read(offset, extent []uint64, data interface{}) error {
	return rc.w.Enqueue(backend.ReadDataset, &backend.ReadDatasetParams{
		Offset: offset, Extent: extent, Datatype: rc.Datatype, Data: data,
	})
}

// AvailableChunks reports the chunk table the backend currently holds for
// rc's dataset, flushing immediately so the out field is populated.
func (rc *RecordComponent) AvailableChunks() (chunk.Table, error) {
	h, err := concreteHandler(rc.w)
	if err != nil {
		return nil, err
	}
	p := &backend.AvailableChunksParams{}
	if err := rc.w.Enqueue(backend.AvailableChunks, p); err != nil {
		return nil, err
	}
	if err := h.Flush(backend.InternalFlush); err != nil {
		return nil, err
	}
	return p.Chunks, nil
}

// SetAttribute/GetAttribute persist to and read back from the backend.
func (rc *RecordComponent) SetAttribute(name string, v datatype.Attribute) error {
	return setAttribute(rc.w, name, v)
}

func (rc *RecordComponent) GetAttribute(name string) (datatype.Attribute, bool, error) {
	return getAttribute(rc.w, name)
}

// Record is an ordered map from component name to RecordComponent, itself a
// Writable path (so a vector record's components, e.g. "x"/"y"/"z", live
// under one group). A record whose only component is ScalarComponent is a
// scalar record.
type Record struct {
	w          *backend.Writable
	names      []string
	Components map[string]*RecordComponent
}

func newRecord(parent *backend.Writable, name string, handler backend.Handler, create bool) (*Record, error) {
	w := backend.NewWritable(parent, name, handler)
	if err := establishPath(w, create); err != nil {
		return nil, err
	}
	return &Record{w: w, Components: map[string]*RecordComponent{}}, nil
}

// Component returns the named component, creating it (as a fresh, not yet
// CreateDataset'd RecordComponent) if it does not already exist.
func (r *Record) Component(name string) *RecordComponent {
	if rc, ok := r.Components[name]; ok {
		return rc
	}
	rc := newRecordComponent(r.w, name, r.w.Handler())
	r.Components[name] = rc
	r.names = append(r.names, name)
	return rc
}

// ComponentNames returns the known component names in first-use order.
func (r *Record) ComponentNames() []string { return append([]string(nil), r.names...) }

// IsScalar reports whether r's only component is ScalarComponent.
func (r *Record) IsScalar() bool {
	_, ok := r.Components[ScalarComponent]
	return ok && len(r.Components) == 1
}

func (r *Record) SetAttribute(name string, v datatype.Attribute) error {
	return setAttribute(r.w, name, v)
}

func (r *Record) GetAttribute(name string) (datatype.Attribute, bool, error) {
	return getAttribute(r.w, name)
}

// Mesh is a Record plus the mesh-specific attributes (geometry,
// gridSpacing, gridGlobalOffset, gridUnitSI, axisLabels, dataOrder,
// unitDimension) the core forwards opaquely as plain Attributes.
type Mesh struct {
	*Record
}

func newMesh(parent *backend.Writable, name string, handler backend.Handler, create bool) (*Mesh, error) {
	r, err := newRecord(parent, name, handler, create)
	if err != nil {
		return nil, err
	}
	return &Mesh{Record: r}, nil
}

// ParticleSpecies is a container of Records (position, positionOffset,
// particle id, momentum, …, all opaque to the core) plus one particle
// patch table describing how this species' particles are partitioned
// across writers.
type ParticleSpecies struct {
	w       *backend.Writable
	names   []string
	Records map[string]*Record
	Patches *patch.Table
}

func newParticleSpecies(parent *backend.Writable, name string, handler backend.Handler, create bool) (*ParticleSpecies, error) {
	w := backend.NewWritable(parent, name, handler)
	if err := establishPath(w, create); err != nil {
		return nil, err
	}
	return &ParticleSpecies{w: w, Records: map[string]*Record{}}, nil
}

// Record returns the named record (e.g. "position"), creating it under a
// writable handler or opening it under a read-only one, if not already
// cached.
func (ps *ParticleSpecies) Record(name string) (*Record, error) {
	if r, ok := ps.Records[name]; ok {
		return r, nil
	}
	r, err := newRecord(ps.w, name, ps.w.Handler(), ps.w.Handler().AccessMode().Writable())
	if err != nil {
		return nil, err
	}
	ps.Records[name] = r
	ps.names = append(ps.names, name)
	return r, nil
}

// RecordNames returns the known record names in first-use order.
func (ps *ParticleSpecies) RecordNames() []string { return append([]string(nil), ps.names...) }

func (ps *ParticleSpecies) SetAttribute(name string, v datatype.Attribute) error {
	return setAttribute(ps.w, name, v)
}

func (ps *ParticleSpecies) GetAttribute(name string) (datatype.Attribute, bool, error) {
	return getAttribute(ps.w, name)
}

// createPath enqueues the CreatePath task that establishes w as a group
// under its already-open parent; w.Key() is always the path argument, since
// CreatePathParams.Path is resolved relative to w.Parent()'s backend
// position.
func createPath(w *backend.Writable) error {
	return w.Enqueue(backend.CreatePath, &backend.CreatePathParams{Path: w.Key()})
}

func openPath(w *backend.Writable) error {
	return w.Enqueue(backend.OpenPath, &backend.OpenPathParams{Path: w.Key()})
}

// establishPath creates w as a new group when create is true, or opens an
// existing one otherwise.
func establishPath(w *backend.Writable, create bool) error {
	if create {
		return createPath(w)
	}
	return openPath(w)
}
