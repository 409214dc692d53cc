// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package log

import (
	golog "log"
	"sync/atomic"
)

var golevel int32 = int32(Info)

// SetLevel sets the level for the default (Go standard library) outputter.
// Should be called once, early, by an embedding program.
func SetLevel(level Level) {
	atomic.StoreInt32(&golevel, int32(level))
}

type gologOutputter struct{}

func (gologOutputter) Level() Level { return Level(atomic.LoadInt32(&golevel)) }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if Level(atomic.LoadInt32(&golevel)) < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
