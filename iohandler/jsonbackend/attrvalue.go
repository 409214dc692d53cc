// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package jsonbackend

import (
	"fmt"

	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// jsonAttr is the on-disk shape of one Attribute: a datatype tag alongside a
// JSON-native value (complex values become a 2-element [re, im] array,
// since JSON has no complex number literal).
type jsonAttr struct {
	Datatype string      `json:"datatype"`
	Value    interface{} `json:"value"`
}

func attrToJSON(a datatype.Attribute) jsonAttr {
	return jsonAttr{Datatype: a.Datatype().String(), Value: valueToJSON(a)}
}

func valueToJSON(a datatype.Attribute) interface{} {
	dt := a.Datatype()
	switch {
	case dt == datatype.Complex64 || dt == datatype.Complex128 || dt == datatype.ComplexExtended:
		v, _ := datatype.Get[complex128](a)
		return []float64{real(v), imag(v)}
	case dt == datatype.VecComplex64 || dt == datatype.VecComplex128 || dt == datatype.VecComplexExtended:
		v, _ := datatype.Get[[]complex128](a)
		out := make([][]float64, len(v))
		for i, c := range v {
			out[i] = []float64{real(c), imag(c)}
		}
		return out
	default:
		return datatype.RawValue(a)
	}
}

func jsonToAttr(j jsonAttr) (datatype.Attribute, error) {
	dt := datatype.ParseName(j.Datatype)
	if dt == datatype.Undefined {
		return datatype.Attribute{}, errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: unknown datatype name %q", j.Datatype))
	}
	switch dt {
	case datatype.Complex64, datatype.Complex128, datatype.ComplexExtended:
		pair, ok := j.Value.([]interface{})
		if !ok || len(pair) != 2 {
			return datatype.Attribute{}, errors.E(errors.IllTyped, "jsonbackend: complex attribute value must be a 2-element [real, imag] array")
		}
		re, reErr := asFloat(pair[0])
		im, imErr := asFloat(pair[1])
		if reErr != nil || imErr != nil {
			return datatype.Attribute{}, errors.E(errors.IllTyped, "jsonbackend: complex attribute value must hold two numbers")
		}
		c := complex(re, im)
		switch dt {
		case datatype.Complex64:
			return datatype.New(complex64(c)), nil
		default:
			return datatype.New(c), nil
		}
	case datatype.VecComplex64, datatype.VecComplex128, datatype.VecComplexExtended:
		arr, ok := j.Value.([]interface{})
		if !ok {
			return datatype.Attribute{}, errors.E(errors.IllTyped, "jsonbackend: complex vector attribute value must be an array")
		}
		out := make([]complex128, len(arr))
		for i, e := range arr {
			pair, ok := e.([]interface{})
			if !ok || len(pair) != 2 {
				return datatype.Attribute{}, errors.E(errors.IllTyped, "jsonbackend: complex vector element must be a 2-element [real, imag] array")
			}
			re, reErr := asFloat(pair[0])
			im, imErr := asFloat(pair[1])
			if reErr != nil || imErr != nil {
				return datatype.Attribute{}, errors.E(errors.IllTyped, "jsonbackend: complex vector element must hold two numbers")
			}
			out[i] = complex(re, im)
		}
		if dt == datatype.VecComplex64 {
			out32 := make([]complex64, len(out))
			for i, c := range out {
				out32[i] = complex64(c)
			}
			return datatype.New(out32), nil
		}
		return datatype.New(out), nil
	default:
		return datatype.FromRawValue(dt, j.Value)
	}
}

func asFloat(v interface{}) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, errors.E(errors.IllTyped, fmt.Sprintf("jsonbackend: expected JSON number, got %T", v))
	}
	return f, nil
}
