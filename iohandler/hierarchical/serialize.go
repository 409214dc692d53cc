// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hierarchical

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/DataDog/zstd"
	"github.com/klauspost/compress/flate"

	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
)

// compressBytes applies the codec named by compression (already validated by
// CreateDataset to be "deflate" or "zstd") to raw, returning raw unchanged
// for the empty codec.
func compressBytes(compression string, raw []byte) ([]byte, error) {
	switch compression {
	case "":
		return raw, nil
	case "deflate":
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: deflate writer", err)
		}
		if _, err := w.Write(raw); err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: deflate write", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: deflate close", err)
		}
		return buf.Bytes(), nil
	case "zstd":
		out, err := zstd.Compress(nil, raw)
		if err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: zstd compress", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// decompressBytes is compressBytes' inverse.
func decompressBytes(compression string, data []byte) ([]byte, error) {
	switch compression {
	case "":
		return data, nil
	case "deflate":
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: deflate read", err)
		}
		return out, nil
	case "zstd":
		out, err := zstd.Decompress(nil, data)
		if err != nil {
			return nil, errors.E(errors.Internal, "hierarchical: zstd decompress", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// cloneForDisk deep-copies n, replacing every dataset's Data with its
// compressed form so CloseFile can gob-encode the result without disturbing
// the resident, uncompressed in-memory tree (which stays available for
// further writes if the same name is reopened within this process).
func cloneForDisk(n *node) (*node, error) {
	out := &node{Attrs: make(map[string]datatype.Attribute, len(n.Attrs)), AttrNames: append([]string(nil), n.AttrNames...), Children: make(map[string]*node, len(n.Children))}
	for k, v := range n.Attrs {
		out.Attrs[k] = v
	}
	for name, child := range n.Children {
		cc, err := cloneForDisk(child)
		if err != nil {
			return nil, err
		}
		out.Children[name] = cc
	}
	if n.Dataset != nil {
		compressed, err := compressBytes(n.Dataset.Compression, n.Dataset.Data)
		if err != nil {
			return nil, err
		}
		cp := *n.Dataset
		cp.Data = compressed
		out.Dataset = &cp
	}
	return out, nil
}

// decompressInPlace walks a freshly gob-decoded tree and restores each
// dataset's Data to its uncompressed form.
func decompressInPlace(n *node) error {
	if n.Dataset != nil {
		raw, err := decompressBytes(n.Dataset.Compression, n.Dataset.Data)
		if err != nil {
			return err
		}
		n.Dataset.Data = raw
	}
	for _, child := range n.Children {
		if err := decompressInPlace(child); err != nil {
			return err
		}
	}
	return nil
}

// flattenToBytes encodes the concrete slice held in data (its element type
// must match dt) into little-endian bytes.
func flattenToBytes(dt datatype.Datatype, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	switch dt {
	case datatype.Int8:
		for _, v := range data.([]int8) {
			buf.WriteByte(byte(v))
		}
	case datatype.UInt8, datatype.Bool:
		switch v := data.(type) {
		case []uint8:
			buf.Write(v)
		case []bool:
			for _, b := range v {
				if b {
					buf.WriteByte(1)
				} else {
					buf.WriteByte(0)
				}
			}
		default:
			return nil, errors.E(errors.WrongAPIUsage, fmt.Sprintf("hierarchical: write_dataset: unexpected Go type %T for %s", data, dt))
		}
	case datatype.Int16:
		writeEach(&buf, data.([]int16), func(v int16) uint64 { return uint64(uint16(v)) }, 2)
	case datatype.UInt16:
		writeEach(&buf, data.([]uint16), func(v uint16) uint64 { return uint64(v) }, 2)
	case datatype.Int32:
		writeEach(&buf, data.([]int32), func(v int32) uint64 { return uint64(uint32(v)) }, 4)
	case datatype.UInt32:
		writeEach(&buf, data.([]uint32), func(v uint32) uint64 { return uint64(v) }, 4)
	case datatype.Int64:
		writeEach(&buf, data.([]int64), func(v int64) uint64 { return uint64(v) }, 8)
	case datatype.UInt64:
		writeEach(&buf, data.([]uint64), func(v uint64) uint64 { return v }, 8)
	case datatype.Float32:
		writeEach(&buf, data.([]float32), func(v float32) uint64 { return uint64(math.Float32bits(v)) }, 4)
	case datatype.Float64:
		writeEach(&buf, data.([]float64), func(v float64) uint64 { return math.Float64bits(v) }, 8)
	case datatype.Complex64:
		for _, v := range data.([]complex64) {
			var b [8]byte
			binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(real(v)))
			binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(imag(v)))
			buf.Write(b[:])
		}
	case datatype.Complex128:
		for _, v := range data.([]complex128) {
			var b [16]byte
			binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(real(v)))
			binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(imag(v)))
			buf.Write(b[:])
		}
	default:
		return nil, errors.E(errors.Unsupported, fmt.Sprintf("hierarchical: datatype %s not supported as a dataset element type", dt))
	}
	return buf.Bytes(), nil
}

func writeEach[T any](buf *bytes.Buffer, vs []T, toBits func(T) uint64, width int) {
	for _, v := range vs {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], toBits(v))
		buf.Write(b[:width])
	}
}

// unflattenFromBytes is flattenToBytes' inverse: it decodes raw into the
// caller-allocated slice held in out (whose element type must match dt).
func unflattenFromBytes(dt datatype.Datatype, raw []byte, out interface{}) error {
	switch dt {
	case datatype.Int8:
		dst := out.([]int8)
		for i := range dst {
			dst[i] = int8(raw[i])
		}
	case datatype.UInt8:
		copy(out.([]uint8), raw)
	case datatype.Bool:
		dst := out.([]bool)
		for i := range dst {
			dst[i] = raw[i] != 0
		}
	case datatype.Int16:
		dst := out.([]int16)
		for i := range dst {
			dst[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case datatype.UInt16:
		dst := out.([]uint16)
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
	case datatype.Int32:
		dst := out.([]int32)
		for i := range dst {
			dst[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case datatype.UInt32:
		dst := out.([]uint32)
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
	case datatype.Int64:
		dst := out.([]int64)
		for i := range dst {
			dst[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case datatype.UInt64:
		dst := out.([]uint64)
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
	case datatype.Float32:
		dst := out.([]float32)
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case datatype.Float64:
		dst := out.([]float64)
		for i := range dst {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case datatype.Complex64:
		dst := out.([]complex64)
		for i := range dst {
			re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
			dst[i] = complex(re, im)
		}
	case datatype.Complex128:
		dst := out.([]complex128)
		for i := range dst {
			re := math.Float64frombits(binary.LittleEndian.Uint64(raw[i*16:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(raw[i*16+8:]))
			dst[i] = complex(re, im)
		}
	default:
		return errors.E(errors.Unsupported, fmt.Sprintf("hierarchical: datatype %s not supported as a dataset element type", dt))
	}
	return nil
}

// fillConstant replicates value (a scalar Attribute of dt's element kind)
// across every element of the caller-allocated out slice, for a dataset
// flagged constant.
func fillConstant(dt datatype.Datatype, value datatype.Attribute, extent []uint64, out interface{}) error {
	switch dt {
	case datatype.Int8:
		v, err := datatype.Get[int8](value)
		if err != nil {
			return err
		}
		fill(out.([]int8), v)
	case datatype.UInt8:
		v, err := datatype.Get[uint8](value)
		if err != nil {
			return err
		}
		fill(out.([]uint8), v)
	case datatype.Bool:
		v, err := datatype.Get[bool](value)
		if err != nil {
			return err
		}
		fill(out.([]bool), v)
	case datatype.Int16:
		v, err := datatype.Get[int16](value)
		if err != nil {
			return err
		}
		fill(out.([]int16), v)
	case datatype.UInt16:
		v, err := datatype.Get[uint16](value)
		if err != nil {
			return err
		}
		fill(out.([]uint16), v)
	case datatype.Int32:
		v, err := datatype.Get[int32](value)
		if err != nil {
			return err
		}
		fill(out.([]int32), v)
	case datatype.UInt32:
		v, err := datatype.Get[uint32](value)
		if err != nil {
			return err
		}
		fill(out.([]uint32), v)
	case datatype.Int64:
		v, err := datatype.Get[int64](value)
		if err != nil {
			return err
		}
		fill(out.([]int64), v)
	case datatype.UInt64:
		v, err := datatype.Get[uint64](value)
		if err != nil {
			return err
		}
		fill(out.([]uint64), v)
	case datatype.Float32:
		v, err := datatype.Get[float32](value)
		if err != nil {
			return err
		}
		fill(out.([]float32), v)
	case datatype.Float64:
		v, err := datatype.Get[float64](value)
		if err != nil {
			return err
		}
		fill(out.([]float64), v)
	case datatype.Complex64:
		v, err := datatype.Get[complex64](value)
		if err != nil {
			return err
		}
		fill(out.([]complex64), v)
	case datatype.Complex128:
		v, err := datatype.Get[complex128](value)
		if err != nil {
			return err
		}
		fill(out.([]complex128), v)
	default:
		return errors.E(errors.Unsupported, fmt.Sprintf("hierarchical: constant dataset of datatype %s not supported", dt))
	}
	return nil
}

func fill[T any](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}
