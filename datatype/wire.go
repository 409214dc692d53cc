// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package datatype

import (
	"bytes"
	"encoding/gob"
)

// wireAttribute is the exported mirror of Attribute's private fields, used
// only to get gob (which cannot see unexported fields) across the wire for
// binary-container backends. Complex values are split into Re/Im pairs
// since gob has no native complex support.
type wireAttribute struct {
	Dtype Datatype

	I    int64
	U    uint64
	F    float64
	Re   float64
	Im   float64
	B    bool
	S    string
	Arr7 [7]float64

	VI  []int64
	VU  []uint64
	VF  []float64
	VRe []float64
	VIm []float64
	VB  []bool
	VS  []string
}

func (a Attribute) toWire() wireAttribute {
	w := wireAttribute{
		Dtype: a.dtype,
		I:     a.i, U: a.u, F: a.f,
		Re: real(a.c), Im: imag(a.c),
		B: a.b, S: a.s, Arr7: a.arr7,
		VI: a.vi, VU: a.vu, VF: a.vf, VB: a.vb, VS: a.vs,
	}
	if len(a.vc) > 0 {
		w.VRe = make([]float64, len(a.vc))
		w.VIm = make([]float64, len(a.vc))
		for i, c := range a.vc {
			w.VRe[i], w.VIm[i] = real(c), imag(c)
		}
	}
	return w
}

func (w wireAttribute) toAttribute() Attribute {
	a := Attribute{
		dtype: w.Dtype,
		i:     w.I, u: w.U, f: w.F,
		c:    complex(w.Re, w.Im),
		b:    w.B, s: w.S, arr7: w.Arr7,
		vi: w.VI, vu: w.VU, vf: w.VF, vb: w.VB, vs: w.VS,
	}
	if len(w.VRe) > 0 {
		a.vc = make([]complex128, len(w.VRe))
		for i := range w.VRe {
			a.vc[i] = complex(w.VRe[i], w.VIm[i])
		}
	}
	return a
}

// GobEncode implements gob.GobEncoder, letting backends that persist data
// as an opaque gob-encoded container (package iohandler/hierarchical) store
// an Attribute without reimplementing its tagged-union layout — gob cannot
// see Attribute's unexported fields directly.
func (a Attribute) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a.toWire()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (a *Attribute) GobDecode(data []byte) error {
	var w wireAttribute
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	*a = w.toAttribute()
	return nil
}
