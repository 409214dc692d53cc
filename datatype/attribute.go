// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package datatype

import (
	"fmt"
	"math"

	oerrors "github.com/openpmd-io/openpmd-go/errors"
)

// Attribute is a (Datatype, value) pair: a tagged union over every scalar
// and vector kind in the Datatype enumeration. Attributes are immutable
// once constructed; widening conversions are performed by Get, not by
// mutating the stored value.
type Attribute struct {
	dtype Datatype

	i    int64
	u    uint64
	f    float64
	c    complex128
	b    bool
	s    string
	arr7 [7]float64

	vi []int64
	vu []uint64
	vf []float64
	vc []complex128
	vb []bool
	vs []string
}

// Datatype returns the Attribute's stored kind.
func (a Attribute) Datatype() Datatype { return a.dtype }

// New constructs an Attribute from a native Go scalar, slice, or [7]float64,
// inferring the Datatype tag from v's concrete type. New panics if v's type
// has no corresponding Datatype — callers that accept arbitrary user input
// should use NewFromDatatype with an explicit conversion instead.
func New(v interface{}) Attribute {
	switch x := v.(type) {
	case int8:
		return Attribute{dtype: Int8, i: int64(x)}
	case int16:
		return Attribute{dtype: Int16, i: int64(x)}
	case int32:
		return Attribute{dtype: Int32, i: int64(x)}
	case int64:
		return Attribute{dtype: Int64, i: x}
	case uint8:
		return Attribute{dtype: UInt8, u: uint64(x)}
	case uint16:
		return Attribute{dtype: UInt16, u: uint64(x)}
	case uint32:
		return Attribute{dtype: UInt32, u: uint64(x)}
	case uint64:
		return Attribute{dtype: UInt64, u: x}
	case float32:
		return Attribute{dtype: Float32, f: float64(x)}
	case float64:
		return Attribute{dtype: Float64, f: x}
	case complex64:
		return Attribute{dtype: Complex64, c: complex128(x)}
	case complex128:
		return Attribute{dtype: Complex128, c: x}
	case bool:
		return Attribute{dtype: Bool, b: x}
	case string:
		return Attribute{dtype: String, s: x}
	case [7]float64:
		return Attribute{dtype: Array7Float64, arr7: x}
	case []int8:
		return Attribute{dtype: VecInt8, vi: widenInts8(x)}
	case []int16:
		return Attribute{dtype: VecInt16, vi: widenInts16(x)}
	case []int32:
		return Attribute{dtype: VecInt32, vi: widenInts32(x)}
	case []int64:
		return Attribute{dtype: VecInt64, vi: append([]int64(nil), x...)}
	case []uint8:
		return Attribute{dtype: VecUInt8, vu: widenUints8(x)}
	case []uint16:
		return Attribute{dtype: VecUInt16, vu: widenUints16(x)}
	case []uint32:
		return Attribute{dtype: VecUInt32, vu: widenUints32(x)}
	case []uint64:
		return Attribute{dtype: VecUInt64, vu: append([]uint64(nil), x...)}
	case []float32:
		return Attribute{dtype: VecFloat32, vf: widenFloats32(x)}
	case []float64:
		return Attribute{dtype: VecFloat64, vf: append([]float64(nil), x...)}
	case []complex64:
		vc := make([]complex128, len(x))
		for i, e := range x {
			vc[i] = complex128(e)
		}
		return Attribute{dtype: VecComplex64, vc: vc}
	case []complex128:
		return Attribute{dtype: VecComplex128, vc: append([]complex128(nil), x...)}
	case []bool:
		return Attribute{dtype: VecBool, vb: append([]bool(nil), x...)}
	case []string:
		return Attribute{dtype: VecString, vs: append([]string(nil), x...)}
	default:
		panic(fmt.Sprintf("datatype.New: unsupported Go type %T", v))
	}
}

func widenInts8(x []int8) []int64 {
	out := make([]int64, len(x))
	for i, e := range x {
		out[i] = int64(e)
	}
	return out
}
func widenInts16(x []int16) []int64 {
	out := make([]int64, len(x))
	for i, e := range x {
		out[i] = int64(e)
	}
	return out
}
func widenInts32(x []int32) []int64 {
	out := make([]int64, len(x))
	for i, e := range x {
		out[i] = int64(e)
	}
	return out
}
func widenUints8(x []uint8) []uint64 {
	out := make([]uint64, len(x))
	for i, e := range x {
		out[i] = uint64(e)
	}
	return out
}
func widenUints16(x []uint16) []uint64 {
	out := make([]uint64, len(x))
	for i, e := range x {
		out[i] = uint64(e)
	}
	return out
}
func widenUints32(x []uint32) []uint64 {
	out := make([]uint64, len(x))
	for i, e := range x {
		out[i] = uint64(e)
	}
	return out
}
func widenFloats32(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, e := range x {
		out[i] = float64(e)
	}
	return out
}

// datatypeOf infers the Datatype tag that corresponds to the Go zero value
// z, used by Get's type parameter to pick a target kind.
func datatypeOf(z interface{}) (Datatype, bool) {
	switch z.(type) {
	case int8:
		return Int8, true
	case int16:
		return Int16, true
	case int32:
		return Int32, true
	case int64:
		return Int64, true
	case uint8:
		return UInt8, true
	case uint16:
		return UInt16, true
	case uint32:
		return UInt32, true
	case uint64:
		return UInt64, true
	case float32:
		return Float32, true
	case float64:
		return Float64, true
	case complex64:
		return Complex64, true
	case complex128:
		return Complex128, true
	case bool:
		return Bool, true
	case string:
		return String, true
	case [7]float64:
		return Array7Float64, true
	case []int8:
		return VecInt8, true
	case []int16:
		return VecInt16, true
	case []int32:
		return VecInt32, true
	case []int64:
		return VecInt64, true
	case []uint8:
		return VecUInt8, true
	case []uint16:
		return VecUInt16, true
	case []uint32:
		return VecUInt32, true
	case []uint64:
		return VecUInt64, true
	case []float32:
		return VecFloat32, true
	case []float64:
		return VecFloat64, true
	case []complex64:
		return VecComplex64, true
	case []complex128:
		return VecComplex128, true
	case []bool:
		return VecBool, true
	case []string:
		return VecString, true
	default:
		return Undefined, false
	}
}

// Get reads the Attribute's value as T, applying the widening conversions:
// any integer may be read as a wider integer of the same signedness; any
// floating-point may be read as a wider floating-point (narrower
// floating-point reads succeed but yield NaN rather than an error); a
// single-element vector may be read as its scalar element type and vice
// versa; Array7Float64 and a 7-element []float64 convert both ways; Bool
// reads back from a UInt8 store and vice versa. Anything else returns an
// IllTyped error.
func Get[T any](a Attribute) (T, error) {
	var zero T
	want, ok := datatypeOf(any(zero))
	if !ok {
		return zero, oerrors.E(oerrors.Internal, fmt.Sprintf("datatype.Get: unsupported Go type %T", zero))
	}
	conv, err := a.convertTo(want)
	if err != nil {
		return zero, err
	}
	v, ok := conv.(T)
	if !ok {
		return zero, oerrors.E(oerrors.Internal, "datatype.Get: conversion produced unexpected Go type")
	}
	return v, nil
}

// convertTo performs the widening/narrowing logic and returns the
// interface{}-boxed Go value of kind want, or an IllTyped error.
func (a Attribute) convertTo(want Datatype) (interface{}, error) {
	if want == a.dtype {
		return a.raw(), nil
	}

	// Bool <-> UInt8 aliasing: Bool is persisted as 8-bit unsigned.
	if a.dtype == Bool && want == UInt8 {
		if a.b {
			return uint8(1), nil
		}
		return uint8(0), nil
	}
	if a.dtype == UInt8 && want == Bool {
		return a.u != 0, nil
	}

	wi, wok := info[want]
	si, sok := info[a.dtype]
	if !wok || !sok {
		return nil, illTyped(a.dtype, want)
	}

	// Array7Float64 <-> 7-element VecFloat64.
	if a.dtype == Array7Float64 && want == VecFloat64 {
		return append([]float64(nil), a.arr7[:]...), nil
	}
	if a.dtype == VecFloat64 && want == Array7Float64 && len(a.vf) == 7 {
		var out [7]float64
		copy(out[:], a.vf)
		return out, nil
	}
	if a.dtype == Array7Float64 || want == Array7Float64 {
		return nil, illTyped(a.dtype, want)
	}

	// Single-element vector <-> scalar, recursing on the element kind.
	if si.vector && !wi.vector {
		scalar, err := a.vectorSingleton()
		if err != nil {
			return nil, err
		}
		return scalar.convertTo(want)
	}
	if !si.vector && wi.vector && wi.elem != Undefined {
		elemVal, err := a.convertTo(wi.elem)
		if err != nil {
			return nil, err
		}
		return wrapSingleton(wi, elemVal)
	}

	if si.vector != wi.vector {
		return nil, illTyped(a.dtype, want)
	}

	// Scalar-to-scalar (or elementwise vector-to-vector) widening.
	switch {
	case (si.signed && wi.signed) || (si.unsigned && wi.unsigned):
		return convertIntKind(a, si, wi, want)
	case si.float && wi.float:
		return convertFloatKind(a, si, wi, want)
	case si.complex && wi.complex:
		return convertComplexKind(a, si, wi, want)
	case si.str && wi.str:
		return a.raw(), nil
	default:
		return nil, illTyped(a.dtype, want)
	}
}

func illTyped(have, want Datatype) error {
	return oerrors.E(oerrors.IllTyped, fmt.Sprintf("cannot read attribute of type %s as %s", have, want))
}

// vectorSingleton extracts the sole element of a as a scalar Attribute, or
// fails if a is not a vector of length exactly one.
func (a Attribute) vectorSingleton() (Attribute, error) {
	switch a.dtype {
	case VecInt8, VecInt16, VecInt32, VecInt64:
		if len(a.vi) != 1 {
			return Attribute{}, illTyped(a.dtype, a.dtype.ElementType())
		}
		return Attribute{dtype: a.dtype.ElementType(), i: a.vi[0]}, nil
	case VecUInt8, VecUInt16, VecUInt32, VecUInt64:
		if len(a.vu) != 1 {
			return Attribute{}, illTyped(a.dtype, a.dtype.ElementType())
		}
		return Attribute{dtype: a.dtype.ElementType(), u: a.vu[0]}, nil
	case VecFloat32, VecFloat64, VecFloatExtended:
		if len(a.vf) != 1 {
			return Attribute{}, illTyped(a.dtype, a.dtype.ElementType())
		}
		return Attribute{dtype: a.dtype.ElementType(), f: a.vf[0]}, nil
	case VecComplex64, VecComplex128, VecComplexExtended:
		if len(a.vc) != 1 {
			return Attribute{}, illTyped(a.dtype, a.dtype.ElementType())
		}
		return Attribute{dtype: a.dtype.ElementType(), c: a.vc[0]}, nil
	case VecBool:
		if len(a.vb) != 1 {
			return Attribute{}, illTyped(a.dtype, Bool)
		}
		return Attribute{dtype: Bool, b: a.vb[0]}, nil
	case VecString:
		if len(a.vs) != 1 {
			return Attribute{}, illTyped(a.dtype, String)
		}
		return Attribute{dtype: String, s: a.vs[0]}, nil
	default:
		return Attribute{}, illTyped(a.dtype, a.dtype)
	}
}

// wrapSingleton builds a single-element vector Go value of the vector kind
// described by wi from a scalar elemVal of wi.elem's Go type.
func wrapSingleton(wi kindInfo, elemVal interface{}) (interface{}, error) {
	switch {
	case wi.signed:
		v := elemVal.(int64)
		switch wi.bytes {
		case 1:
			return []int8{int8(v)}, nil
		case 2:
			return []int16{int16(v)}, nil
		case 4:
			return []int32{int32(v)}, nil
		default:
			return []int64{v}, nil
		}
	case wi.unsigned && !wi.boolean:
		v := elemVal.(uint64)
		switch wi.bytes {
		case 1:
			return []uint8{uint8(v)}, nil
		case 2:
			return []uint16{uint16(v)}, nil
		case 4:
			return []uint32{uint32(v)}, nil
		default:
			return []uint64{v}, nil
		}
	case wi.boolean:
		return []bool{elemVal.(bool)}, nil
	case wi.float:
		v := elemVal.(float64)
		if wi.bytes == 4 {
			return []float32{float32(v)}, nil
		}
		return []float64{v}, nil
	case wi.complex:
		v := elemVal.(complex128)
		if wi.bytes == 8 {
			return []complex64{complex64(v)}, nil
		}
		return []complex128{v}, nil
	case wi.str:
		return []string{elemVal.(string)}, nil
	default:
		return nil, oerrors.E(oerrors.Internal, "datatype: unreachable vector wrap")
	}
}

func convertIntKind(a Attribute, si, wi kindInfo, want Datatype) (interface{}, error) {
	narrow := wi.bytes < si.bytes
	if a.dtype.IsVector() || want.IsVector() {
		if narrow {
			return nil, illTyped(a.dtype, want)
		}
		return convertIntVector(a, wi, want)
	}
	if narrow {
		return nil, illTyped(a.dtype, want)
	}
	if si.signed {
		return boxInt(a.i, wi)
	}
	return boxUint(a.u, wi)
}

func convertIntVector(a Attribute, wi kindInfo, want Datatype) (interface{}, error) {
	if wi.signed {
		out := make([]int64, len(a.vi))
		copy(out, a.vi)
		return boxIntSlice(out, wi)
	}
	out := make([]uint64, len(a.vu))
	copy(out, a.vu)
	return boxUintSlice(out, wi)
}

func boxInt(v int64, wi kindInfo) (interface{}, error) {
	switch wi.bytes {
	case 1:
		return int8(v), nil
	case 2:
		return int16(v), nil
	case 4:
		return int32(v), nil
	default:
		return v, nil
	}
}
func boxUint(v uint64, wi kindInfo) (interface{}, error) {
	switch wi.bytes {
	case 1:
		return uint8(v), nil
	case 2:
		return uint16(v), nil
	case 4:
		return uint32(v), nil
	default:
		return v, nil
	}
}
func boxIntSlice(v []int64, wi kindInfo) (interface{}, error) {
	switch wi.bytes {
	case 1:
		out := make([]int8, len(v))
		for i, e := range v {
			out[i] = int8(e)
		}
		return out, nil
	case 2:
		out := make([]int16, len(v))
		for i, e := range v {
			out[i] = int16(e)
		}
		return out, nil
	case 4:
		out := make([]int32, len(v))
		for i, e := range v {
			out[i] = int32(e)
		}
		return out, nil
	default:
		return v, nil
	}
}
func boxUintSlice(v []uint64, wi kindInfo) (interface{}, error) {
	switch wi.bytes {
	case 1:
		out := make([]uint8, len(v))
		for i, e := range v {
			out[i] = uint8(e)
		}
		return out, nil
	case 2:
		out := make([]uint16, len(v))
		for i, e := range v {
			out[i] = uint16(e)
		}
		return out, nil
	case 4:
		out := make([]uint32, len(v))
		for i, e := range v {
			out[i] = uint32(e)
		}
		return out, nil
	default:
		return v, nil
	}
}

func convertFloatKind(a Attribute, si, wi kindInfo, want Datatype) (interface{}, error) {
	if a.dtype.IsVector() || want.IsVector() {
		out := make([]float64, len(a.vf))
		for i, e := range a.vf {
			out[i] = narrowFloatOrNaN(e, si.bytes, wi.bytes)
		}
		return boxFloatSlice(out, wi), nil
	}
	v := narrowFloatOrNaN(a.f, si.bytes, wi.bytes)
	if wi.bytes == 4 {
		return float32(v), nil
	}
	return v, nil
}

// narrowFloatOrNaN implements the float-widening rule: widening (want
// width >= have width) is a normal lossless conversion; narrowing (want
// width < have width) yields NaN rather than failing.
func narrowFloatOrNaN(v float64, haveBytes, wantBytes int) float64 {
	if wantBytes < haveBytes {
		return math.NaN()
	}
	return v
}

func boxFloatSlice(v []float64, wi kindInfo) interface{} {
	if wi.bytes == 4 {
		out := make([]float32, len(v))
		for i, e := range v {
			out[i] = float32(e)
		}
		return out
	}
	return v
}

func convertComplexKind(a Attribute, si, wi kindInfo, want Datatype) (interface{}, error) {
	narrow := wi.bytes < si.bytes
	if narrow {
		return nil, illTyped(a.dtype, want)
	}
	if a.dtype.IsVector() || want.IsVector() {
		out := append([]complex128(nil), a.vc...)
		if wi.bytes == 8 {
			narrowed := make([]complex64, len(out))
			for i, e := range out {
				narrowed[i] = complex64(e)
			}
			return narrowed, nil
		}
		return out, nil
	}
	if wi.bytes == 8 {
		return complex64(a.c), nil
	}
	return a.c, nil
}

// raw returns the Go value stored for a's own Datatype, with no conversion.
func (a Attribute) raw() interface{} {
	i := info[a.dtype]
	switch {
	case a.dtype == Bool:
		return a.b
	case a.dtype == String:
		return a.s
	case a.dtype == Array7Float64:
		return a.arr7
	case i.vector && i.boolean:
		return append([]bool(nil), a.vb...)
	case i.vector && i.str:
		return append([]string(nil), a.vs...)
	case i.vector && i.signed:
		return boxIntSliceExact(a.vi, i.bytes)
	case i.vector && i.unsigned:
		return boxUintSliceExact(a.vu, i.bytes)
	case i.vector && i.float:
		return boxFloatSliceExact(a.vf, i.bytes)
	case i.vector && i.complex:
		return boxComplexSliceExact(a.vc, i.bytes)
	case i.signed:
		return boxIntExact(a.i, i.bytes)
	case i.unsigned:
		return boxUintExact(a.u, i.bytes)
	case i.float:
		return boxFloatExact(a.f, i.bytes)
	case i.complex:
		return boxComplexExact(a.c, i.bytes)
	default:
		return nil
	}
}

func boxIntExact(v int64, bytes int) interface{} {
	switch bytes {
	case 1:
		return int8(v)
	case 2:
		return int16(v)
	case 4:
		return int32(v)
	default:
		return v
	}
}
func boxUintExact(v uint64, bytes int) interface{} {
	switch bytes {
	case 1:
		return uint8(v)
	case 2:
		return uint16(v)
	case 4:
		return uint32(v)
	default:
		return v
	}
}
func boxFloatExact(v float64, bytes int) interface{} {
	if bytes == 4 {
		return float32(v)
	}
	return v
}
func boxComplexExact(v complex128, bytes int) interface{} {
	if bytes == 8 {
		return complex64(v)
	}
	return v
}
func boxIntSliceExact(v []int64, bytes int) interface{} {
	r, _ := boxIntSlice(v, kindInfo{signed: true, bytes: bytes})
	return r
}
func boxUintSliceExact(v []uint64, bytes int) interface{} {
	r, _ := boxUintSlice(v, kindInfo{unsigned: true, bytes: bytes})
	return r
}
func boxFloatSliceExact(v []float64, bytes int) interface{} {
	return boxFloatSlice(v, kindInfo{float: true, bytes: bytes})
}
func boxComplexSliceExact(v []complex128, bytes int) interface{} {
	if bytes == 8 {
		out := make([]complex64, len(v))
		for i, e := range v {
			out[i] = complex64(e)
		}
		return out
	}
	return v
}

// Equal reports whether a and b have the same Datatype and an equal value.
// Vector/slice equality compares elementwise; NaN floats are never equal,
// matching Go's native float semantics.
func Equal(a, b Attribute) bool {
	if a.dtype != b.dtype {
		return false
	}
	switch {
	case a.dtype == Bool:
		return a.b == b.b
	case a.dtype == String:
		return a.s == b.s
	case a.dtype == Array7Float64:
		return a.arr7 == b.arr7
	}
	i := info[a.dtype]
	switch {
	case i.vector && i.boolean:
		return equalBoolSlice(a.vb, b.vb)
	case i.vector && i.str:
		return equalStringSlice(a.vs, b.vs)
	case i.vector && i.signed:
		return equalInt64Slice(a.vi, b.vi)
	case i.vector && i.unsigned:
		return equalUint64Slice(a.vu, b.vu)
	case i.vector && i.float:
		return equalFloat64Slice(a.vf, b.vf)
	case i.vector && i.complex:
		return equalComplex128Slice(a.vc, b.vc)
	case i.signed:
		return a.i == b.i
	case i.unsigned:
		return a.u == b.u
	case i.float:
		return a.f == b.f
	case i.complex:
		return a.c == b.c
	default:
		return false
	}
}

func equalBoolSlice(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
func equalStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
func equalInt64Slice(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
func equalUint64Slice(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
func equalFloat64Slice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
func equalComplex128Slice(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
