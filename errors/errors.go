// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package errors implements the error taxonomy shared by every subsystem of
// openpmd-go: a Kind-tagged, chainable error type so that callers (the task
// dispatcher in particular) can decide whether an error is recoverable
// without parsing messages. Errors can be constructed, annotated and chained
// through a single variadic constructor, E, in the style that the rest of
// this module's error sites rely on throughout the task pipeline, the
// Writable graph and the streaming iterators.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Separator is inserted between chained errors in error messages.
var Separator = ":\n\t"

// Kind enumerates the error taxonomy from the I/O task pipeline's
// perspective. Dispatch code switches on Kind to decide whether an error is
// recoverable (e.g. the streaming iterator catches Read and skips the
// iteration) or must propagate.
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// Read indicates a backend could not produce requested data. Carries
	// ObjectKind/Reason for finer-grained interpretation.
	Read
	// NoSuchFile indicates the directory or file is missing on open.
	NoSuchFile
	// NoSuchAttribute indicates a requested attribute is absent.
	NoSuchAttribute
	// IllTyped indicates an Attribute read requested an incompatible type.
	IllTyped
	// WrongAPIUsage indicates a caller used a closed or partially
	// constructed object.
	WrongAPIUsage
	// Unsupported indicates an operation a backend does not implement.
	Unsupported
	// ReadOnly indicates a mutation was attempted under a read-only handler.
	ReadOnly
	// Internal indicates an invariant violation; must never be reachable
	// from well-formed user input.
	Internal
	// Canceled indicates a context cancellation.
	Canceled

	maxKind
)

var kinds = map[Kind]string{
	Other:           "unknown error",
	Read:            "read error",
	NoSuchFile:      "no such file",
	NoSuchAttribute: "no such attribute",
	IllTyped:        "ill-typed attribute access",
	WrongAPIUsage:   "wrong API usage",
	Unsupported:     "operation not supported by backend",
	ReadOnly:        "mutation under read-only access",
	Internal:        "internal invariant violation",
	Canceled:        "operation was canceled",
}

var kindStdErrs = map[Kind]error{
	Canceled:   context.Canceled,
	NoSuchFile: os.ErrNotExist,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string { return kinds[k] }

// ObjectKind names the kind of hierarchy object a Read error concerns.
type ObjectKind int

const (
	// ObjectOther is an unclassified object.
	ObjectOther ObjectKind = iota
	// ObjectAttribute is an Attribute.
	ObjectAttribute
	// ObjectDataset is a dataset / RecordComponent.
	ObjectDataset
	// ObjectFile is a backing file.
	ObjectFile
	// ObjectGroup is a group / path.
	ObjectGroup
)

func (o ObjectKind) String() string {
	switch o {
	case ObjectAttribute:
		return "attribute"
	case ObjectDataset:
		return "dataset"
	case ObjectFile:
		return "file"
	case ObjectGroup:
		return "group"
	default:
		return "other"
	}
}

// Reason further classifies a Read error.
type Reason int

const (
	// ReasonOther is an unclassified reason.
	ReasonOther Reason = iota
	// ReasonNotFound means the requested object does not exist.
	ReasonNotFound
	// ReasonCannotRead means the object exists but could not be read.
	ReasonCannotRead
	// ReasonUnexpectedContent means the object's content violated an
	// expected shape or encoding.
	ReasonUnexpectedContent
	// ReasonInaccessible means the backend/transport could not be reached.
	ReasonInaccessible
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "NotFound"
	case ReasonCannotRead:
		return "CannotRead"
	case ReasonUnexpectedContent:
		return "UnexpectedContent"
	case ReasonInaccessible:
		return "Inaccessible"
	default:
		return "Other"
	}
}

// Error is the standard error type used throughout openpmd-go. It carries a
// Kind (error code), a Message, an optional underlying cause Err, and for
// Kind==Read, the ObjectKind/Reason/Backend detail spec'd by the error
// taxonomy.
//
// Errors may form chains through Err; the full chain is printed by Error().
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Detail fields, populated only when Kind == Read.
	ObjectKind ObjectKind
	Reason     Reason
	Backend    string
}

// E constructs a new Error from the provided arguments, interpreted
// according to their type:
//
//   - Kind: sets the Error's kind
//   - string: appended (space-separated) to the Error's message
//   - *Error: copies the error and sets it as the cause
//   - error: sets the cause
//
// If no Kind is given but a cause is, E attempts to classify the cause via
// a small set of conventions (os.IsNotExist, context.Canceled, an embedded
// *Error's Kind).
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(a)
		case *Error:
			cp := *a
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = a
		default:
			return &Error{Kind: Internal, Message: fmt.Sprintf("errors.E: bad argument type %T", arg)}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	if prev, ok := e.Err.(*Error); ok {
		if e.Kind == Other {
			e.Kind = prev.Kind
		}
		if e.Kind == Read && e.ObjectKind == ObjectOther {
			e.ObjectKind, e.Reason, e.Backend = prev.ObjectKind, prev.Reason, prev.Backend
		}
	} else if e.Kind == Other {
		for k := Kind(0); k < maxKind; k++ {
			std := kindStdErrs[k]
			if std != nil && errors.Is(e.Err, std) {
				e.Kind = k
				break
			}
		}
	}
	return e
}

// ReadErr builds a Read error with the detail fields the taxonomy requires.
func ReadErr(object ObjectKind, reason Reason, backend string, args ...interface{}) error {
	e := &Error{Kind: Read, ObjectKind: object, Reason: reason, Backend: backend}
	var msg strings.Builder
	for _, arg := range args {
		switch a := arg.(type) {
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(a)
		case error:
			e.Err = a
		}
	}
	e.Message = msg.String()
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *strings.Builder) {
	if e.Message != "" {
		pad(b)
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b)
		b.WriteString(e.Kind.String())
	}
	if e.Kind == Read {
		pad(b)
		fmt.Fprintf(b, "(object=%s reason=%s", e.ObjectKind, e.Reason)
		if e.Backend != "" {
			fmt.Fprintf(b, " backend=%s", e.Backend)
		}
		b.WriteString(")")
	}
	if e.Err == nil {
		return
	}
	if inner, ok := e.Err.(*Error); ok {
		b.WriteString(Separator)
		b.WriteString(inner.Error())
	} else {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
}

func pad(b *strings.Builder) {
	if b.Len() > 0 {
		b.WriteString(": ")
	}
}

// Unwrap returns e's cause, if any, letting errors.Unwrap/errors.Is/As work.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether e's Kind corresponds to the target's std-library
// equivalent (see kindStdErrs), or whether target is itself an *Error with
// an equal Kind.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if other, ok := target.(*Error); ok {
		return e.Kind == other.Kind
	}
	return kindStdErrs[e.Kind] == target
}

// Recover coerces any error into *Error, wrapping non-Error values as Kind
// Other.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Is reports whether err (or any error in its chain) has the given Kind.
func Is(kind Kind, err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		break
	}
	return false
}

// New is a convenience wrapper matching the standard library's errors.New,
// useful for constructing sentinel causes passed to E.
func New(msg string) error { return errors.New(msg) }
