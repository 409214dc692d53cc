// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package config ingests a Series constructor's configuration string: an
// inline JSON object, or, prefixed with "@", a path to a JSON file holding
// one. The recognized top-level key is defer_iteration_parsing; every other
// key is passed through to the selected backend's factory unopened,
// following the literal-vs-"@path"-indirection convention of
// config/parse.go's flag values, reapplied here to a JSON payload instead
// of a flag string.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/openpmd-io/openpmd-go/errors"
)

// Config is the parsed result of a Series constructor's configuration
// argument.
type Config struct {
	// DeferIterationParsing holds the defer_iteration_parsing flag. Package
	// series does not read it: every iteration, the last one included, is
	// opened only when it is first accessed, whatever the flag's value.
	DeferIterationParsing bool
	// Backend carries every configuration key not recognized above,
	// forwarded verbatim to the backend's Factory.
	Backend map[string]interface{}
}

// Parse ingests raw. An empty string yields the zero Config. A string
// prefixed with "@" names a file whose contents are parsed as JSON instead
// of the string itself.
func Parse(raw string) (Config, error) {
	cfg := Config{Backend: map[string]interface{}{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return cfg, nil
	}

	var payload []byte
	if strings.HasPrefix(raw, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return cfg, errors.E(errors.NoSuchFile, "config: cannot read config file", err)
		}
		payload = data
	} else {
		payload = []byte(raw)
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(payload, &generic); err != nil {
		return cfg, errors.E(errors.WrongAPIUsage, "config: invalid JSON configuration", err)
	}
	if v, ok := generic["defer_iteration_parsing"]; ok {
		if b, ok := v.(bool); ok {
			cfg.DeferIterationParsing = b
		}
		delete(generic, "defer_iteration_parsing")
	}
	cfg.Backend = generic
	return cfg, nil
}
