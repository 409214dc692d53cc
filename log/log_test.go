// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package log_test

import (
	"testing"

	"github.com/openpmd-io/openpmd-go/log"
)

type testOutputter struct {
	level    log.Level
	messages map[log.Level][]string
}

func newTestOutputter(level log.Level) *testOutputter {
	return &testOutputter{level, make(map[log.Level][]string)}
}

func (t *testOutputter) Empty() bool {
	for _, m := range t.messages {
		if len(m) != 0 {
			return false
		}
	}
	return true
}

func (t *testOutputter) Next(level log.Level) string {
	if len(t.messages[level]) == 0 {
		return ""
	}
	var m string
	m, t.messages[level] = t.messages[level][0], t.messages[level][1:]
	return m
}

func (t *testOutputter) Level() log.Level { return t.level }

func (t *testOutputter) Output(calldepth int, level log.Level, s string) error {
	t.messages[level] = append(t.messages[level], s)
	return nil
}

func TestLog(t *testing.T) {
	out := newTestOutputter(log.Info)
	defer log.SetOutputter(log.SetOutputter(out))
	log.Printf("dispatching %q", "CreateFile")
	if got, want := out.Next(log.Info), `dispatching "CreateFile"`; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	log.Error.Printf("task %s failed; dropping and rethrowing", "WriteDataset")
	if got, want := out.Next(log.Error), "task WriteDataset failed; dropping and rethrowing"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	log.Debug.Print("invisible at Info level")
	if got, want := out.Next(log.Debug), ""; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !out.Empty() {
		t.Error("extra messages")
	}
}

func TestLevelGating(t *testing.T) {
	out := newTestOutputter(log.Off)
	defer log.SetOutputter(log.SetOutputter(out))
	log.Error.Print("should be dropped")
	if !out.Empty() {
		t.Error("expected no messages at Off level")
	}
}
