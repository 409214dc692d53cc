// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"strconv"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/iohandler"
)

// CloseStatus tracks whether an Iteration's backing group/file has been
// asked to close, and whether that request has reached the backend yet.
type CloseStatus int

const (
	// Open: the iteration may still be written to or read from.
	Open CloseStatus = iota
	// ClosedInFrontend: Close() was called, but the CloseFile/ClosePath
	// task has not yet been flushed.
	ClosedInFrontend
	// ClosedInBackend: the close task has been flushed; any further
	// access is illegal.
	ClosedInBackend
)

// StepStatus tracks an Iteration's position relative to the streaming I/O
// step protocol.
type StepStatus int

const (
	// NoStep: BeginStep has not yet been issued for this iteration.
	NoStep StepStatus = iota
	// DuringStep: BeginStep has been issued and EndStep has not.
	DuringStep
	// AfterStep: EndStep has been issued.
	AfterStep
)

// Iteration is one snapshot in a Series: a group (or, under file-based
// encoding, an entire file) holding a Meshes container and a Particles
// container, each keyed by name.
type Iteration struct {
	series *Series
	index  uint64

	// ownRoot/ownHandler are populated only under file-based encoding,
	// where every iteration is backed by its own file and therefore its
	// own Handler — this is what lets Series.Flush drive independent
	// file-based iterations' handlers concurrently without two goroutines
	// ever touching one Handler's queues.
	ownRoot    *backend.Writable
	ownHandler *iohandler.Handler

	w          *backend.Writable // the "data[/index]" group
	meshesW    *backend.Writable
	particlesW *backend.Writable

	Meshes    map[string]*Mesh
	Particles map[string]*ParticleSpecies

	closeStatus CloseStatus
	stepStatus  StepStatus

	// deferred is not set anywhere in this package: a file-based iteration
	// matched on open has no Iteration value until Series.Iteration is
	// first called for it.
	deferred bool
}

func (it *Iteration) handler() backend.Handler {
	if it.series.encoding == FileBased {
		return it.ownHandler
	}
	return it.series.handler
}

func (it *Iteration) root() *backend.Writable {
	if it.series.encoding == FileBased {
		return it.ownRoot
	}
	return it.series.root
}

// dataGroup returns the "data" group this iteration's subtree hangs off of,
// creating or opening it as needed. File-based iterations get their own
// private "data" group (one per file); group/variable-based iterations
// share the series-wide one.
func (it *Iteration) dataGroup() (*backend.Writable, error) {
	if it.series.encoding != FileBased {
		return it.series.ensureDataGroup()
	}
	w := backend.NewWritable(it.ownRoot, "data", it.ownHandler)
	if err := establishPath(w, it.series.mode.Writable()); err != nil {
		return nil, err
	}
	return w, nil
}

// setup resolves it.w: the per-iteration group under the data group
// (skipped for variable-based encoding, where every iteration shares the
// one data group directly — a simplification of the real
// variable-per-iteration layout, documented in DESIGN.md).
func (it *Iteration) setup() error {
	dg, err := it.dataGroup()
	if err != nil {
		return err
	}
	if it.series.encoding == VariableBased {
		it.w = dg
		return nil
	}
	w := backend.NewWritable(dg, strconv.FormatUint(it.index, 10), it.handler())
	if err := establishPath(w, it.series.mode.Writable()); err != nil {
		return err
	}
	it.w = w
	return nil
}

func (it *Iteration) meshesGroup() (*backend.Writable, error) {
	if it.meshesW != nil {
		return it.meshesW, nil
	}
	w := backend.NewWritable(it.w, "meshes", it.handler())
	if err := establishPath(w, it.series.mode.Writable()); err != nil {
		return nil, err
	}
	it.meshesW = w
	return w, nil
}

func (it *Iteration) particlesGroup() (*backend.Writable, error) {
	if it.particlesW != nil {
		return it.particlesW, nil
	}
	w := backend.NewWritable(it.w, "particles", it.handler())
	if err := establishPath(w, it.series.mode.Writable()); err != nil {
		return nil, err
	}
	it.particlesW = w
	return w, nil
}

// Mesh returns the named mesh, creating (write mode) or opening (read mode)
// it if not already cached on this Iteration.
func (it *Iteration) Mesh(name string) (*Mesh, error) {
	if m, ok := it.Meshes[name]; ok {
		return m, nil
	}
	g, err := it.meshesGroup()
	if err != nil {
		return nil, err
	}
	m, err := newMesh(g, name, it.handler(), it.series.mode.Writable())
	if err != nil {
		return nil, err
	}
	it.Meshes[name] = m
	return m, nil
}

// ListMeshes reports the names of every mesh present under this iteration.
func (it *Iteration) ListMeshes() ([]string, error) {
	g, err := it.meshesGroup()
	if err != nil {
		return nil, err
	}
	p := &backend.ListPathsParams{}
	if err := g.Enqueue(backend.ListPaths, p); err != nil {
		return nil, err
	}
	if err := it.concreteHandler().Flush(backend.InternalFlush); err != nil {
		return nil, err
	}
	return p.Paths, nil
}

// Particle returns the named particle species, creating or opening it.
func (it *Iteration) Particle(name string) (*ParticleSpecies, error) {
	if p, ok := it.Particles[name]; ok {
		return p, nil
	}
	g, err := it.particlesGroup()
	if err != nil {
		return nil, err
	}
	p, err := newParticleSpecies(g, name, it.handler(), it.series.mode.Writable())
	if err != nil {
		return nil, err
	}
	it.Particles[name] = p
	return p, nil
}

// ListParticles reports the names of every particle species present under
// this iteration.
func (it *Iteration) ListParticles() ([]string, error) {
	g, err := it.particlesGroup()
	if err != nil {
		return nil, err
	}
	p := &backend.ListPathsParams{}
	if err := g.Enqueue(backend.ListPaths, p); err != nil {
		return nil, err
	}
	if err := it.concreteHandler().Flush(backend.InternalFlush); err != nil {
		return nil, err
	}
	return p.Paths, nil
}

// Closed reports whether this iteration has (at least) been asked to close.
func (it *Iteration) Closed() bool { return it.closeStatus != Open }

// Close marks the iteration closed in the frontend; the actual
// CloseFile/ClosePath task is enqueued by the owning Series' next Flush.
func (it *Iteration) Close() {
	if it.closeStatus == Open {
		it.closeStatus = ClosedInFrontend
	}
}

// concreteHandler returns the *iohandler.Handler backing it, so callers can
// force an immediate flush of an out-field-bearing task (Advance,
// ListPaths, ReadAtt) without waiting for the next user-level Flush.
func (it *Iteration) concreteHandler() *iohandler.Handler {
	if it.series.encoding == FileBased {
		return it.ownHandler
	}
	return it.series.handler
}

// beginStep issues Advance(BeginStep) on it, used by both the write-side
// gate and the read-side iterator. Status/AvailableIterations are out
// fields, so beginStep flushes immediately rather than deferring.
func (it *Iteration) beginStep() (backend.AdvanceStatus, []uint64, error) {
	p := &backend.AdvanceParams{Mode: backend.BeginStep}
	if err := it.w.Enqueue(backend.Advance, p); err != nil {
		return 0, nil, err
	}
	if err := it.concreteHandler().Flush(backend.InternalFlush); err != nil {
		return 0, nil, err
	}
	it.stepStatus = DuringStep
	return p.Status, p.AvailableIterations, nil
}

// endStep issues Advance(EndStep) on it and flushes it immediately.
func (it *Iteration) endStep() error {
	p := &backend.AdvanceParams{Mode: backend.EndStep}
	if err := it.w.Enqueue(backend.Advance, p); err != nil {
		return err
	}
	if err := it.concreteHandler().Flush(backend.InternalFlush); err != nil {
		return err
	}
	it.stepStatus = AfterStep
	return nil
}

// SetAttribute/GetAttribute persist to and read back from the per-iteration
// group Writable.
func (it *Iteration) SetAttribute(name string, v datatype.Attribute) error {
	return setAttribute(it.w, name, v)
}

func (it *Iteration) GetAttribute(name string) (datatype.Attribute, bool, error) {
	return getAttribute(it.w, name)
}
