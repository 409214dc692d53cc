// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package log provides simple level logging for openpmd-go. Log output is
// implemented by an Outputter, which by default prints through Go's
// standard "log" package; callers that embed openpmd-go in a larger program
// may install their own Outputter (e.g. bridging to zap or glog) so that the
// dispatcher's "task failed; dropping and rethrowing" messages and the
// streaming iterator's "skipping iteration" messages land wherever the rest
// of the host program's logs go.
package log

import "fmt"

// An Outputter is a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting messages.
	Level() Level
	// Output writes s at calldepth/level. Implementations drop the message
	// if they are not logging at the requested level.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs a new Outputter and returns the previous one.
// Not safe to call concurrently with logging; call during initialization.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the currently installed Outputter.
func GetOutputter() Outputter { return out }

// At reports whether the current outputter is logging at level.
func At(level Level) bool { return level <= out.Level() }

// A Level is a log verbosity level. Lower values are higher priority: if the
// outputter logs at level L, all messages with level M <= L are emitted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages — used by the dispatcher when a task
	// fails and by backends reporting unsupported-hint fallbacks.
	Error = Level(-2)
	// Info is the standard logging level.
	Info = Level(0)
	// Debug outputs messages intended for development, e.g. per-task
	// dispatch tracing.
	Debug = Level(1)
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	default:
		if l < 0 {
			return fmt.Sprintf("level%d", l)
		}
		return fmt.Sprintf("debug%d", l)
	}
}

// Print, Println and Printf output at level l to the current outputter.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprint(v...))
	}
}

func (l Level) Println(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintln(v...))
	}
}

func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print/Printf output at the Info level to the current outputter.
func Print(v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprint(v...))
	}
}

func Printf(format string, v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}
