// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package iohandler

import (
	"sync"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/errors"
	"github.com/openpmd-io/openpmd-go/log"
)

// Handler owns the two FIFO queues a hierarchy's tasks drain through, and
// drives a Backend's dispatch at flush points. It implements
// backend.Handler, so a *backend.Writable constructed with a *Handler can
// enqueue tasks against it directly.
type Handler struct {
	mu sync.Mutex

	directory string
	mode      backend.AccessMode
	impl      Backend

	setupQueue []backend.Task
	workQueue  []backend.Task

	flushLevel          backend.FlushLevel
	lastFlushSuccessful bool
}

// NewHandler constructs a Handler over impl for the given logical directory
// and access mode.
func NewHandler(directory string, mode backend.AccessMode, impl Backend) *Handler {
	return &Handler{
		directory:           directory,
		mode:                mode,
		impl:                impl,
		lastFlushSuccessful: true,
	}
}

// Directory returns the handler's logical directory.
func (h *Handler) Directory() string { return h.directory }

// AccessMode implements backend.Handler.
func (h *Handler) AccessMode() backend.AccessMode { return h.mode }

// FlushLevel returns the flush level in effect for the flush currently (or
// most recently) running.
func (h *Handler) FlushLevel() backend.FlushLevel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLevel
}

// LastFlushSuccessful reports whether the most recent Flush call completed
// without error. A Series checks this before attempting a destructor flush:
// failure suppresses the final flush.
func (h *Handler) LastFlushSuccessful() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastFlushSuccessful
}

// Enqueue implements backend.Handler: it classifies t into the setup queue
// or the work queue per backend.IsSetupOperation, but only for backends
// that declared NeedsSetupQueue; other backends route every task through
// the work queue, which keeps per-queue enqueue order as the only ordering
// guarantee they need. Per-operation READ_ONLY rejection ("create_file
// fails in read-only mode", etc.) is each Backend method's own
// responsibility, since only the operation knows whether it mutates.
func (h *Handler) Enqueue(t backend.Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.impl.NeedsSetupQueue() && backend.IsSetupOperation(t.Op) {
		h.setupQueue = append(h.setupQueue, t)
	} else {
		h.workQueue = append(h.workQueue, t)
	}
	return nil
}

// Flush drains the setup queue, then the work queue, dispatching each task
// to impl in enqueue order. A failing task is popped from its queue before
// the error is returned; every task still behind it in that flush's queues
// remains enqueued for the next Flush call.
func (h *Handler) Flush(level backend.FlushLevel) error {
	h.mu.Lock()
	h.flushLevel = level
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.flushLevel = backend.InternalFlush
		h.mu.Unlock()
	}()

	for _, q := range []*[]backend.Task{&h.setupQueue, &h.workQueue} {
		for {
			h.mu.Lock()
			if len(*q) == 0 {
				h.mu.Unlock()
				break
			}
			t := (*q)[0]
			h.mu.Unlock()

			if err := h.dispatch(t); err != nil {
				log.Error.Printf("IO task %s failed; dropping and rethrowing", t.Op)
				h.mu.Lock()
				*q = (*q)[1:]
				h.lastFlushSuccessful = false
				h.mu.Unlock()
				return err
			}
			h.mu.Lock()
			*q = (*q)[1:]
			h.mu.Unlock()
		}
	}
	h.mu.Lock()
	h.lastFlushSuccessful = true
	h.mu.Unlock()
	return nil
}

// dispatch routes t to the matching Backend method via an exhaustive type
// switch on t.Op and t.Params, avoiding any dynamic downcast.
func (h *Handler) dispatch(t backend.Task) error {
	log.Debug.Printf("dispatching %s", t.Op)
	switch p := t.Params.(type) {
	case *backend.CreateFileParams:
		return h.impl.CreateFile(t.Target, p)
	case *backend.OpenFileParams:
		return h.impl.OpenFile(t.Target, p)
	case *backend.CloseFileParams:
		return h.impl.CloseFile(t.Target, p)
	case *backend.DeleteFileParams:
		return h.impl.DeleteFile(t.Target, p)
	case *backend.CreatePathParams:
		return h.impl.CreatePath(t.Target, p)
	case *backend.OpenPathParams:
		return h.impl.OpenPath(t.Target, p)
	case *backend.ClosePathParams:
		return h.impl.ClosePath(t.Target, p)
	case *backend.DeletePathParams:
		return h.impl.DeletePath(t.Target, p)
	case *backend.CreateDatasetParams:
		return h.impl.CreateDataset(t.Target, p)
	case *backend.ExtendDatasetParams:
		return h.impl.ExtendDataset(t.Target, p)
	case *backend.OpenDatasetParams:
		return h.impl.OpenDataset(t.Target, p)
	case *backend.DeleteDatasetParams:
		return h.impl.DeleteDataset(t.Target, p)
	case *backend.WriteDatasetParams:
		return h.impl.WriteDataset(t.Target, p)
	case *backend.ReadDatasetParams:
		return h.impl.ReadDataset(t.Target, p)
	case *backend.GetBufferViewParams:
		return h.impl.GetBufferView(t.Target, p)
	case *backend.WriteAttParams:
		return h.impl.WriteAtt(t.Target, p)
	case *backend.ReadAttParams:
		return h.impl.ReadAtt(t.Target, p)
	case *backend.DeleteAttParams:
		return h.impl.DeleteAtt(t.Target, p)
	case *backend.ListPathsParams:
		return h.impl.ListPaths(t.Target, p)
	case *backend.ListDatasetsParams:
		return h.impl.ListDatasets(t.Target, p)
	case *backend.ListAttsParams:
		return h.impl.ListAtts(t.Target, p)
	case *backend.AdvanceParams:
		return h.impl.Advance(t.Target, p)
	case *backend.AvailableChunksParams:
		return h.impl.AvailableChunks(t.Target, p)
	case *backend.DeregisterParams:
		return h.impl.Deregister(t.Target, p)
	default:
		return errors.E(errors.Internal, "iohandler: unrecognized task parameter type")
	}
}

// ParsePreference exposes the backend's declared parse preference so the
// streaming iterator (package series) can decide whether to re-parse the
// hierarchy on every new step.
func (h *Handler) ParsePreference() backend.ParsePreference {
	if pp, ok := h.impl.(interface {
		ParsePreference() backend.ParsePreference
	}); ok {
		return pp.ParsePreference()
	}
	return backend.ParseUpFront
}
