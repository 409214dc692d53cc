// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package jsonbackend

import (
	"fmt"
	"reflect"

	"github.com/openpmd-io/openpmd-go/errors"
)

// nestFlat rebuilds the pre-sized nested-array shape a JSON dataset is
// written as from a flat, row-major reflect.Value slice and its declared
// extent.
func nestFlat(flat reflect.Value, extent []uint64) interface{} {
	if len(extent) == 0 {
		if flat.Len() == 0 {
			return nil
		}
		return flat.Index(0).Interface()
	}
	return nestDim(flat, extent, 0, 0)
}

// nestDim returns the nested slice covering dims[d:] of flat, starting at
// flat index base.
func nestDim(flat reflect.Value, dims []uint64, d int, base int) interface{} {
	if d == len(dims)-1 {
		out := make([]interface{}, dims[d])
		for i := range out {
			out[i] = flat.Index(base + i).Interface()
		}
		return out
	}
	stride := 1
	for _, e := range dims[d+1:] {
		stride *= int(e)
	}
	out := make([]interface{}, dims[d])
	for i := range out {
		out[i] = nestDim(flat, dims, d+1, base+i*stride)
	}
	return out
}

// flattenNested is nestFlat's inverse: given the generic []interface{}
// nesting encoding/json.Unmarshal produces, and the expected extent, it
// appends every leaf value (in row-major order) to dst via appendLeaf.
func flattenNested(v interface{}, extent []uint64, appendLeaf func(interface{}) error) error {
	if len(extent) == 0 {
		return appendLeaf(v)
	}
	arr, ok := v.([]interface{})
	if !ok {
		return errors.E(errors.Read, fmt.Sprintf("jsonbackend: expected a JSON array for dataset dimension, got %T", v))
	}
	if uint64(len(arr)) != extent[0] {
		return errors.E(errors.Read, fmt.Sprintf("jsonbackend: dataset dimension has %d elements, expected %d", len(arr), extent[0]))
	}
	for _, e := range arr {
		if err := flattenNested(e, extent[1:], appendLeaf); err != nil {
			return err
		}
	}
	return nil
}
