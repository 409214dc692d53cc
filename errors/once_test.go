// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpmd-io/openpmd-go/errors"
)

func BenchmarkOnceReadNoError(b *testing.B) {
	var e errors.Once
	for i := 0; i < b.N; i++ {
		if e.Err() != nil {
			require.Fail(b, "err")
		}
	}
}

func BenchmarkOnceSet(b *testing.B) {
	var e errors.Once
	err := errors.New("testerror")
	for i := 0; i < b.N; i++ {
		e.Set(err)
	}
}
