// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/log"
)

// SeriesIterator drives read-side iteration discovery one I/O step at a
// time. Its state machine is grounded on ReadIterations.cpp's
// loopBody/nextIterationInStep/nextStep recursion, re-expressed as explicit
// Go control flow instead of C++ exceptions-as-control-flow: a read error
// opening or stepping an iteration is logged and the iterator moves on to
// the next candidate instead of unwinding the stack.
type SeriesIterator struct {
	series *Series

	queue        []uint64
	currentIndex uint64
	current      *Iteration
	started      bool
	done         bool
	err          error

	ignore map[uint64]bool
}

// ReadIterations constructs the read-side iterator over s. The zero value
// of the returned *SeriesIterator, before the first Next, refers to no
// iteration; call Next to advance to the first one.
func (s *Series) ReadIterations() *SeriesIterator {
	return &SeriesIterator{series: s, ignore: map[uint64]bool{}}
}

// Next advances the iterator to the next iteration, returning false once
// the stream is exhausted or a fatal error occurred (distinguishable via
// Err).
func (it *SeriesIterator) Next() bool {
	if it.done {
		return false
	}
	var err error
	if !it.started {
		it.started = true
		err = it.init()
	} else {
		err = it.loopBody()
	}
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	return !it.done
}

// Current returns the iteration Next most recently advanced to.
func (it *SeriesIterator) Current() *Iteration { return it.current }

// Index returns the index of Current.
func (it *SeriesIterator) Index() uint64 { return it.currentIndex }

// Err returns the error that ended iteration, if any.
func (it *SeriesIterator) Err() error { return it.err }

func (it *SeriesIterator) init() error {
	idxs := it.series.Iterations()
	if len(idxs) == 0 {
		it.done = true
		return nil
	}
	first := idxs[0]
	iter, err := it.series.Iteration(first)
	if err != nil {
		return err
	}

	var status backend.AdvanceStatus
	var available []uint64
	if it.series.encoding == FileBased {
		status, available, err = iter.beginStep()
	} else {
		status, available, err = it.series.advanceShared()
	}
	if err != nil {
		return err
	}

	if len(available) > 0 && status != backend.StatusRandomAccess {
		it.queue = available
	} else {
		it.queue = []uint64{first}
	}
	if status == backend.StatusOver || len(it.queue) == 0 {
		it.done = true
		return nil
	}

	it.currentIndex = it.queue[0]
	cur, err := it.series.Iteration(it.currentIndex)
	if err != nil {
		return err
	}
	it.current = cur
	cur.stepStatus = DuringStep
	return nil
}

// loopBody implements operator++: close the current iteration, try the
// next one queued for this step, else begin a new step; skip anything
// already seen or unreadable; land on the next live iteration or end.
func (it *SeriesIterator) loopBody() error {
	for {
		if it.current != nil {
			it.current.Close()
		}

		idx, ok, err := it.nextIterationInStep()
		if err != nil {
			return err
		}
		if !ok {
			if it.series.encoding == FileBased {
				it.done = true
				return nil
			}
			idx, ok, err = it.nextStep(1)
			if err != nil {
				return err
			}
			if !ok {
				it.done = true
				return nil
			}
		}

		if it.ignore[idx] {
			if err := it.deactivateDeadIteration(idx); err != nil {
				return err
			}
			continue
		}

		iter, err := it.series.Iteration(idx)
		if err != nil {
			log.Error.Printf("series: cannot read iteration %d, skipping: %v", idx, err)
			if derr := it.deactivateDeadIteration(idx); derr != nil {
				return derr
			}
			continue
		}
		if it.series.encoding == FileBased {
			if _, _, err := iter.beginStep(); err != nil {
				log.Error.Printf("series: cannot begin step for iteration %d, skipping: %v", idx, err)
				if derr := it.deactivateDeadIteration(idx); derr != nil {
					return derr
				}
				continue
			}
		}

		it.currentIndex = idx
		it.current = iter
		iter.stepStatus = DuringStep

		if it.series.mode == backend.ReadLinear {
			prev := it.currentIndex
			delete(it.series.iterations, prev)
			removeFromSlice(&it.series.indices, prev)
			it.ignore[prev] = true
		}
		return nil
	}
}

// nextIterationInStep pops the front of the current step's queue, reporting
// the next candidate index, or false once the queue is drained.
func (it *SeriesIterator) nextIterationInStep() (uint64, bool, error) {
	if len(it.queue) == 0 {
		return 0, false, nil
	}
	it.queue = it.queue[1:]
	if len(it.queue) == 0 {
		return 0, false, nil
	}
	return it.queue[0], true, nil
}

// nextStep advances one I/O step on the series' shared handler (only
// reachable for group/variable-based series; file-based series end their
// iterator as soon as their one-and-only step is exhausted). recursionDepth
// counts how many linear-fallback advances have been folded into this call,
// guaranteeing termination since the backend eventually reports StatusOver
// or StatusRandomAccess.
func (it *SeriesIterator) nextStep(recursionDepth int) (uint64, bool, error) {
	status, available, err := it.series.advanceShared()
	if err != nil {
		return 0, false, err
	}

	if len(available) > 0 && status != backend.StatusRandomAccess {
		it.queue = available
		if len(it.queue) == 0 {
			return 0, false, nil
		}
		return it.queue[0], true, nil
	}

	idxs := it.series.Iterations()
	pos, found := indexOf(idxs, it.currentIndex)
	if !found || pos+recursionDepth >= len(idxs) {
		if status == backend.StatusRandomAccess || status == backend.StatusOver {
			return 0, false, nil
		}
		return 0, false, nil
	}
	next := idxs[pos+recursionDepth]
	it.queue = []uint64{next}
	return next, true, nil
}

// deactivateDeadIteration closes out idx (file-based: CloseFile;
// group/variable-based: EndStep), erases it from the series' live map and
// remembers it in the ignore set so a later duplicate sighting is skipped
// without re-running this cleanup.
func (it *SeriesIterator) deactivateDeadIteration(idx uint64) error {
	if iter, ok := it.series.iterations[idx]; ok {
		if it.series.encoding == FileBased {
			if err := iter.ownRoot.Enqueue(backend.CloseFile, &backend.CloseFileParams{}); err != nil {
				return err
			}
			if err := iter.ownHandler.Flush(backend.InternalFlush); err != nil {
				return err
			}
		} else {
			if err := iter.endStep(); err != nil {
				return err
			}
			if err := it.series.handler.Flush(backend.InternalFlush); err != nil {
				return err
			}
		}
		delete(it.series.iterations, idx)
		removeFromSlice(&it.series.indices, idx)
	}
	it.ignore[idx] = true
	return nil
}

// advanceShared issues Advance(BeginStep) on the series' shared root,
// used by group/variable-based series where one step spans every
// iteration sharing the one Handler.
func (s *Series) advanceShared() (backend.AdvanceStatus, []uint64, error) {
	p := &backend.AdvanceParams{Mode: backend.BeginStep}
	if err := s.root.Enqueue(backend.Advance, p); err != nil {
		return 0, nil, err
	}
	if err := s.handler.Flush(backend.InternalFlush); err != nil {
		return 0, nil, err
	}
	return p.Status, p.AvailableIterations, nil
}

func removeFromSlice(xs *[]uint64, v uint64) {
	for i, x := range *xs {
		if x == v {
			*xs = append((*xs)[:i], (*xs)[i+1:]...)
			return
		}
	}
}
