// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/errors"
)

// WriteIterations is the write-side gate onto a Series' iterations: it
// enforces that at most one iteration is open for writing at a time and
// drives the BeginStep/close protocol that lets a streaming backend pace
// writes one step at a time. Grounded on WriteIterations.cpp's
// SharedResources/operator[].
type WriteIterations struct {
	series       *Series
	currentIndex uint64
	hasCurrent   bool
	closed       bool
}

func newWriteIterations(s *Series) *WriteIterations {
	return &WriteIterations{series: s}
}

// Open returns the iteration at index, closing whichever other iteration is
// currently open first. Opening the already-open index is a no-op beyond
// returning it. Issues BeginStep on first access to a freshly opened
// iteration; a backend that cannot support stepping surfaces that failure
// here and leaves the gate with no active iteration.
func (g *WriteIterations) Open(index uint64) (*Iteration, error) {
	if g.closed {
		return nil, errors.E(errors.WrongAPIUsage, "series: WriteIterations accessed after close")
	}
	if g.hasCurrent && g.currentIndex != index {
		if err := g.closeCurrent(); err != nil {
			return nil, err
		}
	}

	it, err := g.series.Iteration(index)
	if err != nil {
		return nil, err
	}
	g.currentIndex = index
	g.hasCurrent = true

	if it.stepStatus == NoStep {
		if _, _, err := it.beginStep(); err != nil {
			g.hasCurrent = false
			return nil, errors.E(errors.Unsupported, "series: backend does not support BeginStep", err)
		}
	}
	return it, nil
}

// closeCurrent flushes and closes whichever iteration is presently open,
// per the ordering guarantee that a group-based backend requires iteration
// N fully flushed before iteration N+1 is written.
func (g *WriteIterations) closeCurrent() error {
	if !g.hasCurrent {
		return nil
	}
	if it, ok := g.series.iterations[g.currentIndex]; ok {
		it.Close()
		if err := g.series.Flush(backend.UserFlush); err != nil {
			return err
		}
	}
	g.hasCurrent = false
	return nil
}

// Close closes whichever iteration is open and makes the gate permanently
// unusable; further Open calls fail with WrongAPIUsage.
func (g *WriteIterations) Close() error {
	if g.closed {
		return nil
	}
	err := g.closeCurrent()
	g.closed = true
	return err
}
