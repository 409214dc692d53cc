// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package series implements the top-level Series/Iteration data model: a
// directory or file tree of openPMD-shaped Meshes and Particles, addressed
// through the deferred-I/O task pipeline in package backend, driven by one
// of the iohandler backends selected from the series' filename extension.
package series

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
	"github.com/openpmd-io/openpmd-go/iohandler"
	"github.com/openpmd-io/openpmd-go/log"
	"github.com/openpmd-io/openpmd-go/series/config"
	"github.com/openpmd-io/openpmd-go/traverse"
)

// softwareName/softwareVersion populate the default "software" attribute
// every freshly created Series carries.
const (
	softwareName    = "openpmd-go"
	softwareVersion = "1.0.0"
	standardVersion = "1.1.0"
)

// Encoding selects how iterations are laid out on disk.
type Encoding int

const (
	// FileBased: one file per iteration, named from a "%T"/"%0NT" pattern.
	// Every iteration owns its own root Writable and its own Handler, so
	// concurrent iterations can be flushed from distinct goroutines without
	// two goroutines ever touching the same Handler's queues.
	FileBased Encoding = iota
	// GroupBased: a single file, with iterations nested under "/data/<i>/".
	GroupBased
	// VariableBased: a single file, iterations addressed through backend
	// step state rather than a nested group per iteration. Treated
	// structurally identically to GroupBased here (iterations share the
	// flat "/data/" group instead of "/data/<i>/"), a documented
	// simplification of ADIOS's true per-iteration-variable addressing,
	// which this core's Writable-hierarchy model has no equivalent for.
	VariableBased
)

func (e Encoding) String() string {
	switch e {
	case FileBased:
		return "fileBased"
	case GroupBased:
		return "groupBased"
	case VariableBased:
		return "variableBased"
	default:
		return "Encoding(?)"
	}
}

// Series is the root of one openPMD hierarchy: the set of Iterations it
// holds, the encoding and filename pattern it was opened with, and — for
// non-file-based encodings — the one shared root Writable and Handler every
// Iteration hangs off of.
type Series struct {
	pattern  filenamePattern
	mode     backend.AccessMode
	encoding Encoding
	cfg      config.Config
	factory  iohandler.Factory

	// root/handler are populated for GroupBased/VariableBased series,
	// where every iteration shares one Handler. Left nil for FileBased
	// series, where each Iteration carries its own.
	root    *backend.Writable
	handler *iohandler.Handler

	dataW *backend.Writable // cached "/data" group, group/variable-based only

	indices    []uint64
	iterations map[uint64]*Iteration

	closed bool

	writeGate *WriteIterations
}

// Open opens or creates the series addressed by path under mode. path's
// basename is parsed as a filenamePattern: the presence of a "%T"/"%0NT"
// token selects FileBased encoding; its absence selects GroupBased. configRaw
// is passed to config.Parse for the defer_iteration_parsing flag and the
// selected backend's own options.
func Open(path string, mode backend.AccessMode, configRaw string) (*Series, error) {
	pattern, err := parseFilenamePattern(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse(configRaw)
	if err != nil {
		return nil, err
	}
	ext := iohandler.ExtensionOf(path)
	factory := iohandler.FindBackend(ext)
	if factory == nil {
		return nil, errors.E(errors.WrongAPIUsage, "series: no backend registered for extension "+ext)
	}

	encoding := GroupBased
	if pattern.FileBased {
		encoding = FileBased
	}

	s := &Series{
		pattern:    pattern,
		mode:       mode,
		encoding:   encoding,
		cfg:        cfg,
		factory:    factory,
		indices:    nil,
		iterations: map[uint64]*Iteration{},
	}
	s.writeGate = newWriteIterations(s)

	if encoding == FileBased {
		if mode == backend.Create {
			return s, nil // iterations are created lazily, one file each
		}
		if err := s.discoverFileBasedIterations(); err != nil {
			return nil, err
		}
		return s, nil
	}

	impl, err := factory(cfg.Backend)
	if err != nil {
		return nil, err
	}
	h := iohandler.NewHandler(pattern.Directory, mode, impl)
	s.handler = h
	s.root = backend.NewRoot(h, pattern.Directory, pattern.Prefix, pattern.Extension)

	if mode == backend.Create {
		if err := s.root.Enqueue(backend.CreateFile, &backend.CreateFileParams{
			Name: filepath.Join(pattern.Directory, s.pattern.basenameFor(0)+"."+pattern.Extension),
		}); err != nil {
			return nil, err
		}
		if err := s.setDefaultAttributes(); err != nil {
			return nil, err
		}
		if _, err := s.ensureDataGroup(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.root.Enqueue(backend.OpenFile, &backend.OpenFileParams{
		Name: filepath.Join(pattern.Directory, s.pattern.basenameFor(0)+"."+pattern.Extension),
	}); err != nil {
		return nil, err
	}
	if err := s.handler.Flush(backend.InternalFlush); err != nil {
		return nil, err
	}
	if err := s.discoverSharedIterations(); err != nil {
		return nil, err
	}
	return s, nil
}

// setDefaultAttributes stamps the series root with the standard openPMD
// metadata attributes every freshly created series carries.
func (s *Series) setDefaultAttributes() error {
	if s.encoding == FileBased {
		return nil // stamped per-file once each iteration's own root exists
	}
	basePath := "/data/%T/"
	if s.encoding == VariableBased {
		basePath = "/data/"
	}
	return stampDefaultAttributes(s.root, s.encoding, basePath)
}

// setDefaultAttributesFor stamps freshly created per-file root w for a
// FileBased iteration.
func (s *Series) setDefaultAttributesFor(w *backend.Writable) error {
	return stampDefaultAttributes(w, s.encoding, "/data/%T/")
}

func stampDefaultAttributes(w *backend.Writable, encoding Encoding, basePath string) error {
	for _, kv := range []struct {
		name string
		val  datatype.Attribute
	}{
		{"openPMD", datatype.New(standardVersion)},
		{"openPMDextension", datatype.New(uint32(0))},
		{"basePath", datatype.New(basePath)},
		{"date", datatype.New(time.Now().Format("2006-01-02 15:04:05 -0700"))},
		{"software", datatype.New(softwareName + " " + softwareVersion)},
		{"iterationEncoding", datatype.New(encoding.String())},
	} {
		if err := setAttribute(w, kv.name, kv.val); err != nil {
			return err
		}
	}
	return nil
}

// ensureDataGroup returns the shared "/data" group for a non-file-based
// series, creating or opening it on first use.
func (s *Series) ensureDataGroup() (*backend.Writable, error) {
	if s.dataW != nil {
		return s.dataW, nil
	}
	w := backend.NewWritable(s.root, "data", s.handler)
	if err := establishPath(w, s.mode.Writable()); err != nil {
		return nil, err
	}
	s.dataW = w
	return w, nil
}

// discoverFileBasedIterations scans the pattern's directory for filenames
// matching it, recording each match's index for lazy Iteration construction.
func (s *Series) discoverFileBasedIterations() error {
	dir := s.pattern.Directory
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.E(errors.NoSuchFile, "series: cannot list directory "+dir, err)
	}
	var widths []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		idx := len(name)
		if i := indexOfExt(name, s.pattern.Extension); i >= 0 {
			idx = i
		} else {
			continue
		}
		base := name[:idx]
		index, width, ok := s.pattern.match(base)
		if !ok {
			continue
		}
		widths = append(widths, width)
		s.indices = append(s.indices, index)
	}
	if _, ok := checkConsistentPadding(widths); !ok && s.mode.Writable() {
		return errors.E(errors.WrongAPIUsage, "series: inconsistent iteration padding in "+dir)
	}
	sort.Slice(s.indices, func(i, j int) bool { return s.indices[i] < s.indices[j] })
	return nil
}

func indexOfExt(name, ext string) int {
	suffix := "." + ext
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return -1
	}
	return len(name) - len(suffix)
}

// discoverSharedIterations lists the "/data" group of an opened
// group/variable-based series to find existing iteration indices.
func (s *Series) discoverSharedIterations() error {
	dg, err := s.ensureDataGroup()
	if err != nil {
		return err
	}
	if s.encoding == VariableBased {
		return nil // flat: no per-iteration subgroup to enumerate
	}
	p := &backend.ListPathsParams{}
	if err := dg.Enqueue(backend.ListPaths, p); err != nil {
		return err
	}
	if err := s.handler.Flush(backend.InternalFlush); err != nil {
		return err
	}
	for _, name := range p.Paths {
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		s.indices = append(s.indices, n)
	}
	sort.Slice(s.indices, func(i, j int) bool { return s.indices[i] < s.indices[j] })
	return nil
}

// Iterations returns the known iteration indices in ascending order.
func (s *Series) Iterations() []uint64 { return append([]uint64(nil), s.indices...) }

// Iteration returns the Iteration for index, creating (write mode) or
// opening (read mode) its backing storage on first access.
func (s *Series) Iteration(index uint64) (*Iteration, error) {
	if it, ok := s.iterations[index]; ok {
		return it, nil
	}
	create := s.mode.Writable()
	it := &Iteration{series: s, index: index, Meshes: map[string]*Mesh{}, Particles: map[string]*ParticleSpecies{}}

	if s.encoding == FileBased {
		impl, err := s.factory(s.cfg.Backend)
		if err != nil {
			return nil, err
		}
		h := iohandler.NewHandler(s.pattern.Directory, s.mode, impl)
		basename := s.pattern.basenameFor(index)
		root := backend.NewRoot(h, s.pattern.Directory, basename, s.pattern.Extension)
		it.ownHandler = h
		it.ownRoot = root
		name := filepath.Join(s.pattern.Directory, basename+"."+s.pattern.Extension)
		if create {
			if err := root.Enqueue(backend.CreateFile, &backend.CreateFileParams{Name: name}); err != nil {
				return nil, err
			}
			if err := s.setDefaultAttributesFor(root); err != nil {
				return nil, err
			}
		} else {
			if err := root.Enqueue(backend.OpenFile, &backend.OpenFileParams{Name: name}); err != nil {
				return nil, err
			}
			if err := h.Flush(backend.InternalFlush); err != nil {
				return nil, err
			}
		}
	}

	if err := it.setup(); err != nil {
		return nil, err
	}

	s.iterations[index] = it
	if _, seen := indexOf(s.indices, index); !seen {
		s.indices = append(s.indices, index)
		sort.Slice(s.indices, func(i, j int) bool { return s.indices[i] < s.indices[j] })
	}
	return it, nil
}

func indexOf(xs []uint64, v uint64) (int, bool) {
	for i, x := range xs {
		if x == v {
			return i, true
		}
	}
	return 0, false
}

// WriteIterations returns the write-side iteration gate, constructing it on
// first use. Only meaningful for a series opened with a writable mode.
func (s *Series) WriteIterations() *WriteIterations { return s.writeGate }

// Flush drains every dirty iteration's pending tasks. File-based iterations
// own independent Handlers, so they are flushed concurrently via
// traverse.Each; this never crosses a Handler boundary, since each
// goroutine only ever touches the one Handler its own Iteration owns.
// Group/variable-based iterations share one Handler, so their pending
// ClosePath tasks are enqueued in iteration-index order and drained
// by one Handler.Flush call, preserving the order their indices were
// registered in.
func (s *Series) Flush(level backend.FlushLevel) error {
	if s.closed {
		return errors.E(errors.WrongAPIUsage, "series: Flush called after Close")
	}
	if s.encoding == FileBased {
		indices := s.Iterations()
		return traverse.Each(len(indices)).Do(func(i int) error {
			it := s.iterations[indices[i]]
			if it == nil {
				return nil
			}
			if it.closeStatus == ClosedInFrontend {
				if err := it.ownRoot.Enqueue(backend.CloseFile, &backend.CloseFileParams{}); err != nil {
					return err
				}
				it.closeStatus = ClosedInBackend
			}
			return it.ownHandler.Flush(level)
		})
	}

	for _, idx := range s.Iterations() {
		it := s.iterations[idx]
		if it == nil {
			continue
		}
		if it.closeStatus == ClosedInFrontend {
			if err := it.w.Enqueue(backend.ClosePath, &backend.ClosePathParams{}); err != nil {
				return err
			}
			it.closeStatus = ClosedInBackend
		}
	}
	return s.handler.Flush(level)
}

// Close flushes any remaining dirty state and marks the series unusable;
// for a group/variable-based series it then closes the shared file, which
// is when the file backends write it out. Close is idempotent. If the shared handler's last flush already failed,
// the final flush is skipped rather than compounding the error.
func (s *Series) Close() error {
	if s.closed {
		return nil
	}
	if s.handler != nil && !s.handler.LastFlushSuccessful() {
		s.closed = true
		return nil
	}
	for _, it := range s.iterations {
		it.Close()
	}
	err := s.Flush(backend.UserFlush)
	if err == nil && s.encoding != FileBased {
		if err = s.root.Enqueue(backend.CloseFile, &backend.CloseFileParams{}); err == nil {
			err = s.handler.Flush(backend.UserFlush)
		}
	}
	s.closed = true
	if err != nil {
		log.Error.Printf("series: final flush failed: %v", err)
	}
	return err
}
