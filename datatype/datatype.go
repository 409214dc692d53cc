// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package datatype implements the closed Datatype enumeration and the
// tagged-union Attribute value that the rest of openpmd-go persists and
// retrieves through the task pipeline. It is the leaf of the dependency
// graph (component A of the design): it holds no backend state, and the
// only package of this module it depends on is errors.
package datatype

import "fmt"

// Datatype is the closed enumeration of scalar and vector kinds an
// Attribute or RecordComponent may declare. Two sentinel values exist for
// internal bookkeeping only and must never appear in persisted output:
// Undefined (an attribute/dataset that has not yet been assigned a type)
// and Sentinel (the "DATATYPE" placeholder used by backend code that needs
// to refer to "a Datatype value" generically, e.g. in a Parameter struct
// before the concrete type is known).
type Datatype int

const (
	Undefined Datatype = iota
	Sentinel

	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64

	Float32
	Float64
	FloatExtended

	Complex64
	Complex128
	ComplexExtended

	Bool
	String

	// Array7Float64 is the fixed-length 7-element double array used for
	// small fixed-size vectors (e.g. unitDimension).
	Array7Float64

	VecInt8
	VecInt16
	VecInt32
	VecInt64
	VecUInt8
	VecUInt16
	VecUInt32
	VecUInt64
	VecFloat32
	VecFloat64
	VecFloatExtended
	VecComplex64
	VecComplex128
	VecComplexExtended
	VecBool
	VecString

	maxDatatype
)

var names = map[Datatype]string{
	Undefined:           "UNDEFINED",
	Sentinel:            "DATATYPE",
	Int8:                "INT8",
	Int16:               "INT16",
	Int32:               "INT32",
	Int64:               "INT64",
	UInt8:               "UINT8",
	UInt16:              "UINT16",
	UInt32:              "UINT32",
	UInt64:              "UINT64",
	Float32:             "FLOAT",
	Float64:             "DOUBLE",
	FloatExtended:       "LONG_DOUBLE",
	Complex64:           "CFLOAT",
	Complex128:          "CDOUBLE",
	ComplexExtended:     "CLONG_DOUBLE",
	Bool:                "BOOL",
	String:              "STRING",
	Array7Float64:       "ARR_DBL_7",
	VecInt8:             "VEC_INT8",
	VecInt16:            "VEC_INT16",
	VecInt32:            "VEC_INT32",
	VecInt64:            "VEC_INT64",
	VecUInt8:            "VEC_UINT8",
	VecUInt16:           "VEC_UINT16",
	VecUInt32:           "VEC_UINT32",
	VecUInt64:           "VEC_UINT64",
	VecFloat32:          "VEC_FLOAT",
	VecFloat64:          "VEC_DOUBLE",
	VecFloatExtended:    "VEC_LONG_DOUBLE",
	VecComplex64:        "VEC_CFLOAT",
	VecComplex128:       "VEC_CDOUBLE",
	VecComplexExtended:  "VEC_CLONG_DOUBLE",
	VecBool:             "VEC_BOOL",
	VecString:           "VEC_STRING",
}

func (d Datatype) String() string {
	if s, ok := names[d]; ok {
		return s
	}
	return fmt.Sprintf("Datatype(%d)", int(d))
}

// kindInfo describes the representation of one Datatype: whether it is
// signed/unsigned integer, floating point, complex, boolean or string, its
// width in bytes (0 for string, meaningful for same-representation
// aliasing of integers), whether it is a vector kind, and for vector kinds
// the scalar element Datatype.
type kindInfo struct {
	signed    bool
	unsigned  bool
	float     bool
	complex   bool
	boolean   bool
	str       bool
	bytes     int
	vector    bool
	elem      Datatype
}

var info = map[Datatype]kindInfo{
	Int8:   {signed: true, bytes: 1},
	Int16:  {signed: true, bytes: 2},
	Int32:  {signed: true, bytes: 4},
	Int64:  {signed: true, bytes: 8},
	UInt8:  {unsigned: true, bytes: 1},
	UInt16: {unsigned: true, bytes: 2},
	UInt32: {unsigned: true, bytes: 4},
	UInt64: {unsigned: true, bytes: 8},

	Float32:       {float: true, bytes: 4},
	Float64:       {float: true, bytes: 8},
	FloatExtended: {float: true, bytes: 16},

	Complex64:       {complex: true, bytes: 8},
	Complex128:      {complex: true, bytes: 16},
	ComplexExtended: {complex: true, bytes: 32},

	// Bool is represented the same way as UInt8 on the wire (spec: "Bool is
	// persisted as 8-bit unsigned and read back as bool when requested");
	// Attribute.convertTo handles the Bool<->UInt8 aliasing explicitly, and
	// the boolean flag keeps IsSameRepresentation(Bool, UInt8) false.
	Bool: {boolean: true, unsigned: true, bytes: 1},

	String: {str: true},

	Array7Float64: {float: true, bytes: 8, vector: true, elem: Float64},

	VecInt8:             {signed: true, bytes: 1, vector: true, elem: Int8},
	VecInt16:            {signed: true, bytes: 2, vector: true, elem: Int16},
	VecInt32:            {signed: true, bytes: 4, vector: true, elem: Int32},
	VecInt64:            {signed: true, bytes: 8, vector: true, elem: Int64},
	VecUInt8:            {unsigned: true, bytes: 1, vector: true, elem: UInt8},
	VecUInt16:           {unsigned: true, bytes: 2, vector: true, elem: UInt16},
	VecUInt32:           {unsigned: true, bytes: 4, vector: true, elem: UInt32},
	VecUInt64:           {unsigned: true, bytes: 8, vector: true, elem: UInt64},
	VecFloat32:          {float: true, bytes: 4, vector: true, elem: Float32},
	VecFloat64:          {float: true, bytes: 8, vector: true, elem: Float64},
	VecFloatExtended:    {float: true, bytes: 16, vector: true, elem: FloatExtended},
	VecComplex64:        {complex: true, bytes: 8, vector: true, elem: Complex64},
	VecComplex128:       {complex: true, bytes: 16, vector: true, elem: Complex128},
	VecComplexExtended:  {complex: true, bytes: 32, vector: true, elem: ComplexExtended},
	VecBool:             {boolean: true, unsigned: true, bytes: 1, vector: true, elem: Bool},
	VecString:           {str: true, vector: true, elem: String},
}

// IsVector reports whether d is a vector (or Array7Float64) kind.
func (d Datatype) IsVector() bool { return info[d].vector }

// IsInteger reports whether d is a signed or unsigned integer scalar kind.
func (d Datatype) IsInteger() bool {
	i := info[d]
	return !i.vector && (i.signed || i.unsigned) && !i.boolean
}

// IsFloat reports whether d is a floating-point scalar kind.
func (d Datatype) IsFloat() bool { i := info[d]; return !i.vector && i.float }

// ElementType returns the scalar element kind of a vector Datatype, or d
// itself if d is already scalar.
func (d Datatype) ElementType() Datatype {
	if i, ok := info[d]; ok && i.vector {
		return i.elem
	}
	return d
}

// VectorType returns the vector Datatype whose element kind is d, or
// Undefined if none exists (d is already a vector, or has no vector form).
func (d Datatype) VectorType() Datatype {
	for dt, i := range info {
		if i.vector && i.elem == d && dt != Array7Float64 {
			return dt
		}
	}
	return Undefined
}

// ByteWidth returns the size in bytes of one element of d (the element
// type, for vector kinds), or 0 for String/VecString, which have no fixed
// width.
func (d Datatype) ByteWidth() int { return info[d].bytes }

// IsSameRepresentation reports whether a and b describe values with
// identical signedness and byte width, needed because native integer types
// (short/int/long/long long/size_t) may collide in width on a given
// platform. Two kinds with the same representation may be freely aliased
// without going through the normal
// widening rules.
func IsSameRepresentation(a, b Datatype) bool {
	ia, oka := info[a]
	ib, okb := info[b]
	if !oka || !okb {
		return a == b
	}
	return ia.vector == ib.vector &&
		ia.signed == ib.signed &&
		ia.unsigned == ib.unsigned &&
		ia.float == ib.float &&
		ia.complex == ib.complex &&
		ia.boolean == ib.boolean &&
		ia.str == ib.str &&
		ia.bytes == ib.bytes
}
