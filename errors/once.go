// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Once captures at most one error, safely across goroutines: the first
// non-nil error passed to Set is kept and later ones are dropped.
//
// A zero Once is ready to use.
type Once struct {
	mu  sync.Mutex
	err unsafe.Pointer // stores *error
}

// Err returns the first non-nil error passed to Set, or nil.
func (e *Once) Err() error {
	p := atomic.LoadPointer(&e.err)
	if p == nil {
		return nil
	}
	return *(*error)(p)
}

// Set records err if it is the first non-nil error seen.
func (e *Once) Set(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		atomic.StorePointer(&e.err, unsafe.Pointer(&err))
	}
}
