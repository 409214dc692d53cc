// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package jsonbackend

import (
	"fmt"
	"reflect"

	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// nodeToDisk renders an in-memory tree node into the generic map shape
// encoding/json will marshal: a dataset node carries "datatype"/"extent"
// plus either "data" (pre-sized nested array) or "value" (a constant fill),
// a group node carries one entry per child keyed by name. Both kinds carry
// "attributes".
func nodeToDisk(n *node) map[string]interface{} {
	out := make(map[string]interface{}, len(n.Children)+2)
	attrs := make(map[string]jsonAttr, len(n.Attrs))
	for k, v := range n.Attrs {
		attrs[k] = attrToJSON(v)
	}
	out["attributes"] = attrs
	if n.Dataset != nil {
		ds := n.Dataset
		out["datatype"] = ds.Datatype.String()
		out["extent"] = ds.Extent
		if ds.Constant {
			out["value"] = valueToJSON(ds.ConstantValue)
		} else {
			out["data"] = nestFlat(ds.Data, ds.Extent)
		}
		return out
	}
	for name, child := range n.Children {
		out[name] = nodeToDisk(child)
	}
	return out
}

// nodeFromDisk is nodeToDisk's inverse, operating on the generic
// map[string]interface{} tree encoding/json.Unmarshal produces.
func nodeFromDisk(raw map[string]interface{}) (*node, error) {
	n := newNode()
	if attrsRaw, ok := raw["attributes"]; ok {
		m, ok := attrsRaw.(map[string]interface{})
		if !ok {
			return nil, errors.E(errors.IllTyped, "jsonbackend: \"attributes\" must be an object")
		}
		for name, v := range m {
			entry, ok := v.(map[string]interface{})
			if !ok {
				return nil, errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: attribute %q is malformed", name))
			}
			dtName, _ := entry["datatype"].(string)
			attr, err := jsonToAttr(jsonAttr{Datatype: dtName, Value: entry["value"]})
			if err != nil {
				return nil, err
			}
			n.Attrs[name] = attr
		}
	}
	if dtRaw, hasDataset := raw["datatype"]; hasDataset {
		dtName, _ := dtRaw.(string)
		dt := datatype.ParseName(dtName)
		if dt == datatype.Undefined {
			return nil, errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: unknown dataset datatype %q", dtName))
		}
		extentRaw, _ := raw["extent"].([]interface{})
		extent := make([]uint64, len(extentRaw))
		for i, e := range extentRaw {
			f, ok := e.(float64)
			if !ok {
				return nil, errors.E(errors.IllTyped, "jsonbackend: dataset extent must be an array of numbers")
			}
			extent[i] = uint64(f)
		}
		ds := &datasetState{Datatype: dt, Extent: extent}
		if valueRaw, ok := raw["value"]; ok {
			cv, err := jsonToAttr(jsonAttr{Datatype: dtName, Value: valueRaw})
			if err != nil {
				return nil, err
			}
			ds.Constant = true
			ds.ConstantValue = cv
		} else {
			elemType, ok := elemGoType(dt)
			if !ok {
				return nil, errors.E(errors.Unsupported, fmt.Sprintf("jsonbackend: dataset element type %s is not supported", dt))
			}
			data := reflect.MakeSlice(reflect.SliceOf(elemType), ds.volume(), ds.volume())
			idx := 0
			err := flattenNested(raw["data"], extent, func(leaf interface{}) error {
				if idx >= data.Len() {
					return errors.ReadErr(errors.ObjectDataset, errors.ReasonUnexpectedContent, "json", "dataset payload has more elements than its extent declares")
				}
				if err := setLeaf(data, idx, dt, leaf); err != nil {
					return err
				}
				idx++
				return nil
			})
			if err != nil {
				return nil, err
			}
			ds.Data = data
		}
		n.Dataset = ds
		return n, nil
	}
	for name, v := range raw {
		if name == "attributes" {
			continue
		}
		childRaw, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		child, err := nodeFromDisk(childRaw)
		if err != nil {
			return nil, err
		}
		n.Children[name] = child
	}
	return n, nil
}

// elemGoType returns the concrete Go element type backing a dataset of the
// given Datatype, for the subset of scalar kinds jsonbackend supports as
// dataset element types. Complex datasets and the structured/array
// attribute-only kinds are not supported as dataset element types here.
func elemGoType(dt datatype.Datatype) (reflect.Type, bool) {
	switch dt {
	case datatype.Int8:
		return reflect.TypeOf(int8(0)), true
	case datatype.Int16:
		return reflect.TypeOf(int16(0)), true
	case datatype.Int32:
		return reflect.TypeOf(int32(0)), true
	case datatype.Int64:
		return reflect.TypeOf(int64(0)), true
	case datatype.UInt8:
		return reflect.TypeOf(uint8(0)), true
	case datatype.UInt16:
		return reflect.TypeOf(uint16(0)), true
	case datatype.UInt32:
		return reflect.TypeOf(uint32(0)), true
	case datatype.UInt64:
		return reflect.TypeOf(uint64(0)), true
	case datatype.Float32:
		return reflect.TypeOf(float32(0)), true
	case datatype.Float64:
		return reflect.TypeOf(float64(0)), true
	case datatype.Bool:
		return reflect.TypeOf(false), true
	default:
		return nil, false
	}
}

func isUnsignedKind(dt datatype.Datatype) bool {
	switch dt {
	case datatype.UInt8, datatype.UInt16, datatype.UInt32, datatype.UInt64:
		return true
	default:
		return false
	}
}

func isFloatKind(dt datatype.Datatype) bool {
	return dt == datatype.Float32 || dt == datatype.Float64
}

// setLeaf assigns the idx'th element of dst (a slice of elemGoType(dt)) from
// raw, a JSON-native leaf value.
func setLeaf(dst reflect.Value, idx int, dt datatype.Datatype, raw interface{}) error {
	elem := dst.Index(idx)
	if dt == datatype.Bool {
		b, ok := raw.(bool)
		if !ok {
			return errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: expected bool dataset element, got %T", raw))
		}
		elem.SetBool(b)
		return nil
	}
	f, ok := raw.(float64)
	if !ok {
		return errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: expected numeric dataset element, got %T", raw))
	}
	switch {
	case isFloatKind(dt):
		elem.SetFloat(f)
	case isUnsignedKind(dt):
		elem.SetUint(uint64(f))
	default:
		elem.SetInt(int64(f))
	}
	return nil
}

// fillConstant replicates value, a scalar Attribute, across every element of
// dst (a slice of the dataset's declared Go element type).
func fillConstant(dt datatype.Datatype, value datatype.Attribute, dst reflect.Value) error {
	raw := datatype.RawValue(value)
	for i := 0; i < dst.Len(); i++ {
		switch v := raw.(type) {
		case bool:
			dst.Index(i).SetBool(v)
		case int8:
			dst.Index(i).SetInt(int64(v))
		case int16:
			dst.Index(i).SetInt(int64(v))
		case int32:
			dst.Index(i).SetInt(int64(v))
		case int64:
			dst.Index(i).SetInt(v)
		case uint8:
			dst.Index(i).SetUint(uint64(v))
		case uint16:
			dst.Index(i).SetUint(uint64(v))
		case uint32:
			dst.Index(i).SetUint(uint64(v))
		case uint64:
			dst.Index(i).SetUint(v)
		case float32:
			dst.Index(i).SetFloat(float64(v))
		case float64:
			dst.Index(i).SetFloat(v)
		default:
			return errors.E(errors.Unsupported, fmt.Sprintf("jsonbackend: constant fill value of type %T is not supported", v))
		}
	}
	return nil
}
