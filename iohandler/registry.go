// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package iohandler

import (
	"fmt"
	"strings"
	"sync"
)

// Factory constructs a fresh Backend instance bound to a series'
// configuration. Factories are invoked once per Series open, not once per
// process, unlike file.Implementation's cached-singleton registry — each
// open series needs its own backend state (open handles, staging buffers).
type Factory func(config map[string]interface{}) (Backend, error)

var (
	mu         sync.RWMutex
	extFactory = make(map[string]Factory)
)

// RegisterBackend arranges for filenames ending in extension (matched
// case-insensitively, without the leading dot) to be opened with a Backend
// built by factory. A multi-part extension (e.g. "opmds.sst") is a
// registration key of its own; factory receives only the configuration
// map, not the filename. Mirrors file.RegisterImplementation's
// call-once-at-init-time contract: RegisterBackend panics if extension is
// already registered, so backend packages register themselves from an
// init() blank-imported by the embedding program.
func RegisterBackend(extension string, factory Factory) {
	if factory == nil {
		panic("iohandler: nil factory")
	}
	extension = strings.ToLower(strings.TrimPrefix(extension, "."))
	if extension == "" {
		panic("iohandler: empty extension")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := extFactory[extension]; ok {
		panic(fmt.Sprintf("iohandler: backend already registered for extension %q", extension))
	}
	extFactory[extension] = factory
}

// FindBackend returns the Factory registered for extension, or nil if none
// is registered.
func FindBackend(extension string) Factory {
	extension = strings.ToLower(strings.TrimPrefix(extension, "."))
	mu.RLock()
	defer mu.RUnlock()
	return extFactory[extension]
}

// ExtensionOf returns the filename extension (without the leading dot,
// lower-cased) that backend selection keys off of. Everything after the
// first '.' of the base name is tried first and returned if a backend is
// registered under it; otherwise the last component is returned — so
// ".opmds.sst" is tried whole before falling back to ".sst".
func ExtensionOf(filename string) string {
	base := filename
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return ""
	}
	full := strings.ToLower(strings.Join(parts[1:], "."))
	if FindBackend(full) != nil {
		return full
	}
	return strings.ToLower(parts[len(parts)-1])
}
