// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package backend

// Task is an immutable (target, operation, parameters) triple enqueued
// against a Handler. Parameter structs that report results to the caller
// (OpenDataset's datatype/extent, ReadAtt's value, Advance's status) carry
// those as ordinary struct fields; because Params values flow through the
// queue as interfaces and the dispatcher type-switches on the concrete type,
// a Handler that wants the populated result reads Task.Params back after
// the task has run rather than through a separate side channel.
type Task struct {
	Target *Writable
	Op     Operation
	Params Params
}

// NewTask constructs a Task, checking that params matches op (a
// programming-error guard; mismatches indicate a bug in the caller, not
// user input, so panicking here is correct — it can never be reached by
// well-formed call sites).
func NewTask(target *Writable, op Operation, params Params) Task {
	if params.op() != op {
		panic("backend: task operation/parameter mismatch")
	}
	return Task{Target: target, Op: op, Params: params}
}
