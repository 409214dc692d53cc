// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"context"
	"fmt"
)

// CleanUp is defer-able syntactic sugar that calls cleanUp and chains any
// resulting error onto *dst. Pass the caller's named return error.
func CleanUp(cleanUp func() error, dst *error) {
	addErr(cleanUp(), dst)
}

// CleanUpCtx is CleanUp for a context-ful cleanUp, used when closing backend
// file handles that require a context (e.g. a staging transport's EndStep).
func CleanUpCtx(ctx context.Context, cleanUp func(context.Context) error, dst *error) {
	addErr(cleanUp(ctx), dst)
}

func addErr(err2 error, dst *error) {
	if err2 == nil {
		return
	}
	if *dst == nil {
		*dst = err2
		return
	}
	*dst = E(*dst, fmt.Sprintf("second error in cleanup: %v", err2))
}
