// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package iohandler implements the deferred-I/O task pipeline's driving
// side: the Handler that owns a backend's setup/work queues and drains them
// at flush points, the Backend interface a concrete storage adapter
// implements (one method per Operation), and an extension-keyed registry so
// a Series can select a Backend purely from the filename it was given.
package iohandler

import "github.com/openpmd-io/openpmd-go/backend"

// Backend is implemented once per concrete storage adapter
// (iohandler/jsonbackend, iohandler/hierarchical, iohandler/streaming),
// replacing the source's class-hierarchy polymorphism with a single
// interface and one implementation type per variant (per the "virtual
// dispatch across backends" design note). Every method corresponds to one
// backend.Operation; Handler.dispatch's type switch is exhaustive over this
// set, so adding an operation means extending every implementation in
// lockstep.
type Backend interface {
	CreateFile(*backend.Writable, *backend.CreateFileParams) error
	OpenFile(*backend.Writable, *backend.OpenFileParams) error
	CloseFile(*backend.Writable, *backend.CloseFileParams) error
	DeleteFile(*backend.Writable, *backend.DeleteFileParams) error
	CreatePath(*backend.Writable, *backend.CreatePathParams) error
	OpenPath(*backend.Writable, *backend.OpenPathParams) error
	ClosePath(*backend.Writable, *backend.ClosePathParams) error
	DeletePath(*backend.Writable, *backend.DeletePathParams) error
	CreateDataset(*backend.Writable, *backend.CreateDatasetParams) error
	ExtendDataset(*backend.Writable, *backend.ExtendDatasetParams) error
	OpenDataset(*backend.Writable, *backend.OpenDatasetParams) error
	DeleteDataset(*backend.Writable, *backend.DeleteDatasetParams) error
	WriteDataset(*backend.Writable, *backend.WriteDatasetParams) error
	ReadDataset(*backend.Writable, *backend.ReadDatasetParams) error
	GetBufferView(*backend.Writable, *backend.GetBufferViewParams) error
	WriteAtt(*backend.Writable, *backend.WriteAttParams) error
	ReadAtt(*backend.Writable, *backend.ReadAttParams) error
	DeleteAtt(*backend.Writable, *backend.DeleteAttParams) error
	ListPaths(*backend.Writable, *backend.ListPathsParams) error
	ListDatasets(*backend.Writable, *backend.ListDatasetsParams) error
	ListAtts(*backend.Writable, *backend.ListAttsParams) error
	Advance(*backend.Writable, *backend.AdvanceParams) error
	AvailableChunks(*backend.Writable, *backend.AvailableChunksParams) error
	Deregister(*backend.Writable, *backend.DeregisterParams) error

	// NeedsSetupQueue reports whether this backend requires all variable
	// declarations to precede any write: when true, Handler.Enqueue
	// classifies CreateFile/CreatePath/OpenPath/CreateDataset/OpenFile/
	// WriteAtt into the setup queue.
	NeedsSetupQueue() bool
}
