// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package backend

import (
	"github.com/openpmd-io/openpmd-go/chunk"
	"github.com/openpmd-io/openpmd-go/datatype"
)

// Params is the sealed sum type of task parameters, indexed by Operation.
// Only types defined in this file implement it; the dispatcher exhausts the
// type switch instead of performing a dynamic downcast (see the "dynamic
// downcasts in the dispatcher" design note).
type Params interface {
	op() Operation
}

// CreateFileParams is the parameter for CreateFile.
type CreateFileParams struct {
	// Name is the file's logical name, without extension.
	Name string
}

func (*CreateFileParams) op() Operation { return CreateFile }

// OpenFileParams is the parameter for OpenFile.
type OpenFileParams struct {
	Name string
	// ParsePreference is an out field: the backend reports its preference
	// for per-step vs. up-front hierarchy parsing.
	ParsePreference ParsePreference
}

func (*OpenFileParams) op() Operation { return OpenFile }

// CloseFileParams is the parameter for CloseFile.
type CloseFileParams struct{}

func (*CloseFileParams) op() Operation { return CloseFile }

// DeleteFileParams is the parameter for DeleteFile.
type DeleteFileParams struct {
	Name string
}

func (*DeleteFileParams) op() Operation { return DeleteFile }

// CreatePathParams is the parameter for CreatePath.
type CreatePathParams struct {
	Path string
}

func (*CreatePathParams) op() Operation { return CreatePath }

// OpenPathParams is the parameter for OpenPath.
type OpenPathParams struct {
	Path string
}

func (*OpenPathParams) op() Operation { return OpenPath }

// ClosePathParams is the parameter for ClosePath.
type ClosePathParams struct{}

func (*ClosePathParams) op() Operation { return ClosePath }

// DeletePathParams is the parameter for DeletePath.
type DeletePathParams struct {
	Path string
}

func (*DeletePathParams) op() Operation { return DeletePath }

// CreateDatasetParams is the parameter for CreateDataset.
type CreateDatasetParams struct {
	Name        string
	Datatype    datatype.Datatype
	Extent      []uint64
	ChunkSize   []uint64 // optional chunking hint
	Compression string   // optional compression hint, e.g. "zstd", "deflate"
	Transform   string   // optional transform hint
}

func (*CreateDatasetParams) op() Operation { return CreateDataset }

// ExtendDatasetParams is the parameter for ExtendDataset.
type ExtendDatasetParams struct {
	NewExtent []uint64
}

func (*ExtendDatasetParams) op() Operation { return ExtendDataset }

// OpenDatasetParams is the parameter for OpenDataset. Datatype and Extent are
// out fields populated by the backend.
type OpenDatasetParams struct {
	Name     string
	Datatype datatype.Datatype
	Extent   []uint64
}

func (*OpenDatasetParams) op() Operation { return OpenDataset }

// DeleteDatasetParams is the parameter for DeleteDataset.
type DeleteDatasetParams struct {
	Name string
}

func (*DeleteDatasetParams) op() Operation { return DeleteDataset }

// WriteDatasetParams is the parameter for WriteDataset.
type WriteDatasetParams struct {
	Offset   []uint64
	Extent   []uint64
	Datatype datatype.Datatype
	Data     interface{}
}

func (*WriteDatasetParams) op() Operation { return WriteDataset }

// ReadDatasetParams is the parameter for ReadDataset. Data is a
// caller-allocated buffer the backend fills in place.
type ReadDatasetParams struct {
	Offset   []uint64
	Extent   []uint64
	Datatype datatype.Datatype
	Data     interface{}
}

func (*ReadDatasetParams) op() Operation { return ReadDataset }

// GetBufferViewParams is the parameter for GetBufferView. View and
// BackendManagedBuffer are out fields.
type GetBufferViewParams struct {
	Offset               []uint64
	Extent               []uint64
	View                 interface{}
	BackendManagedBuffer bool
}

func (*GetBufferViewParams) op() Operation { return GetBufferView }

// WriteAttParams is the parameter for WriteAtt.
type WriteAttParams struct {
	Name      string
	Attribute datatype.Attribute
}

func (*WriteAttParams) op() Operation { return WriteAtt }

// ReadAttParams is the parameter for ReadAtt. Attribute is an out field.
type ReadAttParams struct {
	Name      string
	Attribute datatype.Attribute
}

func (*ReadAttParams) op() Operation { return ReadAtt }

// DeleteAttParams is the parameter for DeleteAtt.
type DeleteAttParams struct {
	Name string
}

func (*DeleteAttParams) op() Operation { return DeleteAtt }

// ListPathsParams is the parameter for ListPaths. Paths is an out field.
type ListPathsParams struct {
	Paths []string
}

func (*ListPathsParams) op() Operation { return ListPaths }

// ListDatasetsParams is the parameter for ListDatasets. Datasets is an out
// field.
type ListDatasetsParams struct {
	Datasets []string
}

func (*ListDatasetsParams) op() Operation { return ListDatasets }

// ListAttsParams is the parameter for ListAtts. Names is an out field.
type ListAttsParams struct {
	Names []string
}

func (*ListAttsParams) op() Operation { return ListAtts }

// AdvanceParams is the parameter for Advance. Status is an out field.
type AdvanceParams struct {
	Mode   AdvanceMode
	Status AdvanceStatus
	// AvailableIterations is an out field: the set of iteration indices the
	// backend reports as available in the step just begun, in
	// backend-provided order. Nil means the backend has no opinion and the
	// core should fall back to treating the next ascending iteration as
	// available.
	AvailableIterations []uint64
}

func (*AdvanceParams) op() Operation { return Advance }

// AvailableChunksParams is the parameter for AvailableChunks. Chunks is an
// out field.
type AvailableChunksParams struct {
	Chunks chunk.Table
}

func (*AvailableChunksParams) op() Operation { return AvailableChunks }

// DeregisterParams is the parameter for Deregister.
type DeregisterParams struct{}

func (*DeregisterParams) op() Operation { return Deregister }
