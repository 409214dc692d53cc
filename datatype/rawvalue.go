// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package datatype

import (
	"fmt"

	"github.com/openpmd-io/openpmd-go/errors"
)

// RawValue returns a's own exact-type Go value, with no widening
// conversion applied — the same value New(v) was built from. Exported for
// backends (package jsonbackend) that need to hand the value to a generic
// encoder without going through Get's type-parameterized widening path.
func RawValue(a Attribute) interface{} { return a.raw() }

var nameToDatatype map[string]Datatype

func init() {
	nameToDatatype = make(map[string]Datatype, len(names))
	for dt, n := range names {
		nameToDatatype[n] = dt
	}
}

// ParseName is String's inverse: it returns the Datatype named by s, or
// Undefined if s names no Datatype.
func ParseName(s string) Datatype {
	if dt, ok := nameToDatatype[s]; ok {
		return dt
	}
	return Undefined
}

// FromRawValue builds an Attribute of kind dt from v, a value in the shape
// encoding/json.Unmarshal produces when decoding into an interface{}
// (float64 for any JSON number, bool, string, or []interface{} for an
// array). It does not handle the complex kinds, whose 2-element
// [real, imag] array encoding a caller (package jsonbackend) decodes
// itself before falling back to FromRawValue for everything else.
func FromRawValue(dt Datatype, v interface{}) (Attribute, error) {
	switch dt {
	case Int8:
		f, err := asFloat(v)
		return New(int8(f)), err
	case Int16:
		f, err := asFloat(v)
		return New(int16(f)), err
	case Int32:
		f, err := asFloat(v)
		return New(int32(f)), err
	case Int64:
		f, err := asFloat(v)
		return New(int64(f)), err
	case UInt8:
		f, err := asFloat(v)
		return New(uint8(f)), err
	case UInt16:
		f, err := asFloat(v)
		return New(uint16(f)), err
	case UInt32:
		f, err := asFloat(v)
		return New(uint32(f)), err
	case UInt64:
		f, err := asFloat(v)
		return New(uint64(f)), err
	case Float32:
		f, err := asFloat(v)
		return New(float32(f)), err
	case Float64:
		f, err := asFloat(v)
		return New(f), err
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return Attribute{}, badRawValue(dt, v)
		}
		return New(b), nil
	case String:
		s, ok := v.(string)
		if !ok {
			return Attribute{}, badRawValue(dt, v)
		}
		return New(s), nil
	case Array7Float64:
		arr, ok := v.([]interface{})
		if !ok || len(arr) != 7 {
			return Attribute{}, badRawValue(dt, v)
		}
		var out [7]float64
		for i, e := range arr {
			f, err := asFloat(e)
			if err != nil {
				return Attribute{}, err
			}
			out[i] = f
		}
		return New(out), nil
	case VecBool:
		arr, ok := v.([]interface{})
		if !ok {
			return Attribute{}, badRawValue(dt, v)
		}
		out := make([]bool, len(arr))
		for i, e := range arr {
			b, ok := e.(bool)
			if !ok {
				return Attribute{}, badRawValue(dt, v)
			}
			out[i] = b
		}
		return New(out), nil
	case VecString:
		arr, ok := v.([]interface{})
		if !ok {
			return Attribute{}, badRawValue(dt, v)
		}
		out := make([]string, len(arr))
		for i, e := range arr {
			s, ok := e.(string)
			if !ok {
				return Attribute{}, badRawValue(dt, v)
			}
			out[i] = s
		}
		return New(out), nil
	case VecInt8, VecInt16, VecInt32, VecInt64, VecUInt8, VecUInt16, VecUInt32, VecUInt64, VecFloat32, VecFloat64:
		return fromRawVector(dt, v)
	default:
		return Attribute{}, errors.E(errors.Unsupported, fmt.Sprintf("datatype.FromRawValue: %s is not supported", dt))
	}
}

func fromRawVector(dt Datatype, v interface{}) (Attribute, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return Attribute{}, badRawValue(dt, v)
	}
	fs := make([]float64, len(arr))
	for i, e := range arr {
		f, err := asFloat(e)
		if err != nil {
			return Attribute{}, err
		}
		fs[i] = f
	}
	switch dt {
	case VecInt8:
		out := make([]int8, len(fs))
		for i, f := range fs {
			out[i] = int8(f)
		}
		return New(out), nil
	case VecInt16:
		out := make([]int16, len(fs))
		for i, f := range fs {
			out[i] = int16(f)
		}
		return New(out), nil
	case VecInt32:
		out := make([]int32, len(fs))
		for i, f := range fs {
			out[i] = int32(f)
		}
		return New(out), nil
	case VecInt64:
		out := make([]int64, len(fs))
		for i, f := range fs {
			out[i] = int64(f)
		}
		return New(out), nil
	case VecUInt8:
		out := make([]uint8, len(fs))
		for i, f := range fs {
			out[i] = uint8(f)
		}
		return New(out), nil
	case VecUInt16:
		out := make([]uint16, len(fs))
		for i, f := range fs {
			out[i] = uint16(f)
		}
		return New(out), nil
	case VecUInt32:
		out := make([]uint32, len(fs))
		for i, f := range fs {
			out[i] = uint32(f)
		}
		return New(out), nil
	case VecUInt64:
		out := make([]uint64, len(fs))
		for i, f := range fs {
			out[i] = uint64(f)
		}
		return New(out), nil
	case VecFloat32:
		out := make([]float32, len(fs))
		for i, f := range fs {
			out[i] = float32(f)
		}
		return New(out), nil
	case VecFloat64:
		return New(fs), nil
	default:
		return Attribute{}, errors.E(errors.Unsupported, fmt.Sprintf("datatype.FromRawValue: %s is not supported", dt))
	}
}

func asFloat(v interface{}) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, errors.E(errors.IllTyped, fmt.Sprintf("datatype.FromRawValue: expected JSON number, got %T", v))
	}
	return f, nil
}

func badRawValue(dt Datatype, v interface{}) error {
	return errors.E(errors.IllTyped, fmt.Sprintf("datatype.FromRawValue: %s cannot hold a Go %T", dt, v))
}
