// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package backend defines the deferred-I/O task pipeline's vocabulary: the
// Writable hierarchy node, the Task/Operation/Params triple enqueued against
// a handler, and the Handler interface a Writable enqueues through (the
// Backend interface a concrete storage adapter implements lives in package
// iohandler). Nothing in this package performs I/O; it describes the
// contract between the hierarchy the user mutates and the handler that
// drains it.
package backend

import "fmt"

// Operation names one kind of task the dispatcher can route to a Backend.
// The vocabulary is closed: adding an operation means extending this list,
// the Params sum type, and every Backend implementation in lockstep (see
// the "dynamic downcasts in the dispatcher" note this package eliminates by
// construction — Params is a sealed interface, not a class hierarchy).
type Operation int

const (
	CreateFile Operation = iota
	OpenFile
	CloseFile
	DeleteFile
	CreatePath
	OpenPath
	ClosePath
	DeletePath
	CreateDataset
	ExtendDataset
	OpenDataset
	DeleteDataset
	WriteDataset
	ReadDataset
	GetBufferView
	WriteAtt
	ReadAtt
	DeleteAtt
	ListPaths
	ListDatasets
	ListAtts
	Advance
	AvailableChunks
	// Deregister notifies a backend that a Writable has left the hierarchy
	// (e.g. its in-memory wrapper was destroyed) without necessarily being
	// deleted from the backing store.
	Deregister

	maxOperation
)

var operationNames = map[Operation]string{
	CreateFile:      "CreateFile",
	OpenFile:        "OpenFile",
	CloseFile:       "CloseFile",
	DeleteFile:      "DeleteFile",
	CreatePath:      "CreatePath",
	OpenPath:        "OpenPath",
	ClosePath:       "ClosePath",
	DeletePath:      "DeletePath",
	CreateDataset:   "CreateDataset",
	ExtendDataset:   "ExtendDataset",
	OpenDataset:     "OpenDataset",
	DeleteDataset:   "DeleteDataset",
	WriteDataset:    "WriteDataset",
	ReadDataset:     "ReadDataset",
	GetBufferView:   "GetBufferView",
	WriteAtt:        "WriteAtt",
	ReadAtt:         "ReadAtt",
	DeleteAtt:       "DeleteAtt",
	ListPaths:       "ListPaths",
	ListDatasets:    "ListDatasets",
	ListAtts:        "ListAtts",
	Advance:         "Advance",
	AvailableChunks: "AvailableChunks",
	Deregister:      "Deregister",
}

func (op Operation) String() string {
	if s, ok := operationNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// IsSetupOperation reports whether op must be drained from a handler's setup
// queue rather than its work queue: backends that require all variable
// declarations to precede any write classify CreateFile/CreatePath/OpenPath/
// CreateDataset/OpenFile/WriteAtt this way.
func IsSetupOperation(op Operation) bool {
	switch op {
	case CreateFile, CreatePath, OpenPath, CreateDataset, OpenFile, WriteAtt:
		return true
	default:
		return false
	}
}

// AccessMode controls what mutations a Handler permits.
type AccessMode int

const (
	Create AccessMode = iota
	ReadOnly
	ReadWrite
	ReadLinear
	Append
)

func (m AccessMode) String() string {
	switch m {
	case Create:
		return "Create"
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	case ReadLinear:
		return "ReadLinear"
	case Append:
		return "Append"
	default:
		return "AccessMode(?)"
	}
}

// Writable reports whether m permits enqueueing mutating operations.
func (m AccessMode) Writable() bool {
	return m == Create || m == ReadWrite || m == Append
}

// FlushLevel reflects the current caller's flush intent, passed explicitly
// with every flush call rather than read from mutable global state (see the
// "global default flush parameters" design note).
type FlushLevel int

const (
	InternalFlush FlushLevel = iota
	UserFlush
)

// ParsePreference is a step-based backend's declared preference for when the
// hierarchy should be (re-)parsed.
type ParsePreference int

const (
	ParseUpFront ParsePreference = iota
	ParsePerStep
)

// AdvanceMode selects which half of an I/O step Advance performs.
type AdvanceMode int

const (
	BeginStep AdvanceMode = iota
	EndStep
)

func (m AdvanceMode) String() string {
	if m == BeginStep {
		return "BeginStep"
	}
	return "EndStep"
}

// AdvanceStatus is the result of an Advance task.
type AdvanceStatus int

const (
	// StatusOK indicates the step advanced normally.
	StatusOK AdvanceStatus = iota
	// StatusOver indicates no further steps remain.
	StatusOver
	// StatusRandomAccess indicates the backend does not have a notion of
	// sequential steps; the caller may access any iteration directly.
	StatusRandomAccess
)

func (s AdvanceStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusOver:
		return "Over"
	case StatusRandomAccess:
		return "RandomAccess"
	default:
		return "AdvanceStatus(?)"
	}
}
