// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package streaming implements the step-based, staging-capable backend: a
// writer and a reader exchange data entirely in memory, one I/O step at a
// time, rather than through a file on disk. A writer brackets each step with
// Advance(BeginStep)/Advance(EndStep); a reader's Advance(BeginStep) blocks
// until the writer's matching EndStep has landed. This models the same
// producer/consumer handoff a staging transport (e.g. an SST-style engine)
// performs, using syncqueue.OrderedQueue to re-sequence steps that may
// complete out of order across concurrent writers and syncqueue.LIFO as a
// reusable buffer pool for GetBufferView's backend-managed path.
package streaming

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/openpmd-io/openpmd-go/backend"
	"github.com/openpmd-io/openpmd-go/chunk"
	"github.com/openpmd-io/openpmd-go/datatype"
	"github.com/openpmd-io/openpmd-go/errors"
	"github.com/openpmd-io/openpmd-go/iohandler"
	"github.com/openpmd-io/openpmd-go/log"
	"github.com/openpmd-io/openpmd-go/syncqueue"
)

func init() {
	iohandler.RegisterBackend("stream", New)
}

// New constructs a fresh streaming Backend. It implements iohandler.Factory.
func New(config map[string]interface{}) (iohandler.Backend, error) {
	return &Backend{channels: make(map[string]*channel)}, nil
}

type node struct {
	Attrs    map[string]datatype.Attribute
	Children map[string]*node
	Dataset  *datasetState
}

func newNode() *node {
	return &node{Attrs: make(map[string]datatype.Attribute), Children: make(map[string]*node)}
}

type datasetState struct {
	Datatype datatype.Datatype
	Extent   []uint64
	Data     reflect.Value
}

func (d *datasetState) volume() int {
	v := 1
	for _, e := range d.Extent {
		v *= int(e)
	}
	return v
}

// channel is the in-memory staging transport shared by one writer and one
// or more readers of a given logical name. The tree is shared across steps
// (steps pace the handoff; they do not isolate separate data snapshots).
type channel struct {
	mu          sync.Mutex
	root        *node
	writeOpen   bool
	readOpen    bool
	writeStep   int
	readStep    int
	steps       *syncqueue.OrderedQueue[struct{}]
	bufferPool  *syncqueue.LIFO[[]byte]
	pendingBufs [][]byte
}

func newChannel() *channel {
	return &channel{
		root:       newNode(),
		steps:      syncqueue.NewOrderedQueue[struct{}](64),
		bufferPool: syncqueue.NewLIFO[[]byte](),
	}
}

type posToken struct {
	ch   *channel
	path string
}

// Backend implements iohandler.Backend for the streaming transport.
type Backend struct {
	mu       sync.Mutex
	channels map[string]*channel
}

func (b *Backend) NeedsSetupQueue() bool { return false }

func (b *Backend) getOrCreateChannel(name string) *channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		ch = newChannel()
		b.channels[name] = ch
	}
	return ch
}

func tokenOf(w *backend.Writable) (*posToken, error) {
	pos := w.Position()
	if pos == nil || pos.Kind != "streaming" {
		return nil, errors.E(errors.Internal, "streaming: writable has no position")
	}
	tok, ok := pos.Token.(*posToken)
	if !ok {
		return nil, errors.E(errors.Internal, "streaming: malformed position token")
	}
	return tok, nil
}

func splitPath(path string) []string {
	segs := make([]string, 0, 4)
	seg := ""
	for _, r := range path {
		if r == '/' {
			if seg != "" {
				segs = append(segs, seg)
				seg = ""
			}
			continue
		}
		seg += string(r)
	}
	if seg != "" {
		segs = append(segs, seg)
	}
	return segs
}

func resolve(root *node, path string) (*node, bool) {
	n := root
	for _, seg := range splitPath(path) {
		child, ok := n.Children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

func resolveOrCreate(root *node, path string) *node {
	n := root
	for _, seg := range splitPath(path) {
		child, ok := n.Children[seg]
		if !ok {
			child = newNode()
			n.Children[seg] = child
		}
		n = child
	}
	return n
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (b *Backend) CreateFile(w *backend.Writable, p *backend.CreateFileParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "create_file under read-only access")
	}
	ch := b.getOrCreateChannel(p.Name)
	ch.mu.Lock()
	ch.writeOpen = true
	ch.mu.Unlock()
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: ch, path: ""}})
	return nil
}

func (b *Backend) OpenFile(w *backend.Writable, p *backend.OpenFileParams) error {
	p.ParsePreference = backend.ParsePerStep
	ch := b.getOrCreateChannel(p.Name)
	ch.mu.Lock()
	if w.Handler().AccessMode().Writable() {
		ch.writeOpen = true
	} else {
		ch.readOpen = true
	}
	ch.mu.Unlock()
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: ch, path: ""}})
	return nil
}

func (b *Backend) CloseFile(w *backend.Writable, p *backend.CloseFileParams) error {
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	ch := tok.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if w.Handler().AccessMode().Writable() {
		if ch.writeOpen {
			ch.steps.Close(nil)
			ch.bufferPool.Close()
			ch.writeOpen = false
		}
	} else {
		ch.readOpen = false
	}
	return nil
}

func (b *Backend) DeleteFile(w *backend.Writable, p *backend.DeleteFileParams) error {
	b.mu.Lock()
	delete(b.channels, p.Name)
	b.mu.Unlock()
	return nil
}

func (b *Backend) CreatePath(w *backend.Writable, p *backend.CreatePathParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "create_path under read-only access")
	}
	parentTok, err := tokenOf(w.Parent())
	if err != nil {
		return err
	}
	full := joinPath(parentTok.path, p.Path)
	resolveOrCreate(parentTok.ch.root, full)
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: parentTok.ch, path: full}})
	return nil
}

func (b *Backend) OpenPath(w *backend.Writable, p *backend.OpenPathParams) error {
	parentTok, err := tokenOf(w.Parent())
	if err != nil {
		return err
	}
	full := joinPath(parentTok.path, p.Path)
	if _, ok := resolve(parentTok.ch.root, full); !ok {
		return errors.ReadErr(errors.ObjectGroup, errors.ReasonNotFound, "streaming", fmt.Sprintf("no such path %q", full))
	}
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: parentTok.ch, path: full}})
	return nil
}

func (b *Backend) ClosePath(w *backend.Writable, p *backend.ClosePathParams) error { return nil }

func (b *Backend) DeletePath(w *backend.Writable, p *backend.DeletePathParams) error {
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	full := joinPath(tok.path, p.Path)
	segs := splitPath(full)
	if len(segs) == 0 {
		return errors.E(errors.Unsupported, "cannot delete the channel root path")
	}
	parent, ok := resolve(tok.ch.root, joinAll(segs[:len(segs)-1]))
	if !ok {
		return errors.E(errors.NoSuchFile, fmt.Sprintf("no such path %q", full))
	}
	delete(parent.Children, segs[len(segs)-1])
	return nil
}

func joinAll(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func (b *Backend) CreateDataset(w *backend.Writable, p *backend.CreateDatasetParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "create_dataset under read-only access")
	}
	elemType, ok := elemGoType(p.Datatype)
	if !ok {
		return errors.E(errors.Unsupported, fmt.Sprintf("streaming: dataset element type %s is not supported", p.Datatype))
	}
	if p.Compression != "" {
		log.Error.Printf("streaming: compression hint %q ignored, staged data is kept in memory only", p.Compression)
	}
	parentTok, err := tokenOf(w.Parent())
	if err != nil {
		return err
	}
	parent := resolveOrCreate(parentTok.ch.root, parentTok.path)
	ds := &datasetState{Datatype: p.Datatype, Extent: append([]uint64(nil), p.Extent...)}
	ds.Data = reflect.MakeSlice(reflect.SliceOf(elemType), ds.volume(), ds.volume())
	child := newNode()
	child.Dataset = ds
	parent.Children[p.Name] = child
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: parentTok.ch, path: joinPath(parentTok.path, p.Name)}})
	return nil
}

func datasetAt(w *backend.Writable) (*datasetState, error) {
	tok, err := tokenOf(w)
	if err != nil {
		return nil, err
	}
	n, ok := resolve(tok.ch.root, tok.path)
	if !ok || n.Dataset == nil {
		return nil, errors.E(errors.Internal, "streaming: position does not reference a dataset")
	}
	return n.Dataset, nil
}

func (b *Backend) ExtendDataset(w *backend.Writable, p *backend.ExtendDatasetParams) error {
	ds, err := datasetAt(w)
	if err != nil {
		return err
	}
	if len(p.NewExtent) != len(ds.Extent) {
		return errors.E(errors.WrongAPIUsage, "extend_dataset: dimensionality mismatch")
	}
	for i := range p.NewExtent {
		if p.NewExtent[i] < ds.Extent[i] {
			return errors.E(errors.WrongAPIUsage, "extend_dataset: new extent must be >= old extent componentwise")
		}
	}
	old := ds.Data
	ds.Extent = append([]uint64(nil), p.NewExtent...)
	grown := reflect.MakeSlice(old.Type(), ds.volume(), ds.volume())
	reflect.Copy(grown, old)
	ds.Data = grown
	return nil
}

func (b *Backend) OpenDataset(w *backend.Writable, p *backend.OpenDatasetParams) error {
	parentTok, err := tokenOf(w.Parent())
	if err != nil {
		return err
	}
	full := joinPath(parentTok.path, p.Name)
	n, ok := resolve(parentTok.ch.root, full)
	if !ok || n.Dataset == nil {
		return errors.ReadErr(errors.ObjectDataset, errors.ReasonNotFound, "streaming", fmt.Sprintf("no such dataset %q", full))
	}
	p.Datatype = n.Dataset.Datatype
	p.Extent = append([]uint64(nil), n.Dataset.Extent...)
	w.MarkWritten(&backend.Position{Kind: "streaming", Token: &posToken{ch: parentTok.ch, path: full}})
	return nil
}

func (b *Backend) DeleteDataset(w *backend.Writable, p *backend.DeleteDatasetParams) error {
	parentTok, err := tokenOf(w.Parent())
	if err != nil {
		return err
	}
	parent, ok := resolve(parentTok.ch.root, parentTok.path)
	if !ok {
		return errors.E(errors.Internal, "streaming: delete_dataset: parent vanished")
	}
	delete(parent.Children, p.Name)
	return nil
}

func rowStart(extent, offset []uint64) int {
	stride := 1
	for i := 1; i < len(extent); i++ {
		stride *= int(extent[i])
	}
	return int(offset[0]) * stride
}

func (b *Backend) WriteDataset(w *backend.Writable, p *backend.WriteDatasetParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "write_dataset under read-only access")
	}
	ds, err := datasetAt(w)
	if err != nil {
		return err
	}
	if p.Datatype != ds.Datatype {
		return errors.E(errors.WrongAPIUsage, "write_dataset: datatype mismatch")
	}
	src := reflect.ValueOf(p.Data)
	if src.Kind() != reflect.Slice {
		return errors.E(errors.WrongAPIUsage, "write_dataset: Data must be a slice")
	}
	start := rowStart(ds.Extent, p.Offset)
	if start+src.Len() > ds.Data.Len() {
		return errors.E(errors.WrongAPIUsage, "write_dataset: write would overrun backing buffer")
	}
	reflect.Copy(ds.Data.Slice(start, start+src.Len()), src)
	return nil
}

func (b *Backend) ReadDataset(w *backend.Writable, p *backend.ReadDatasetParams) error {
	ds, err := datasetAt(w)
	if err != nil {
		return err
	}
	if p.Datatype != ds.Datatype {
		return errors.E(errors.WrongAPIUsage, "read_dataset: datatype mismatch, type conversion on read is not supported")
	}
	dst := reflect.ValueOf(p.Data)
	if dst.Kind() != reflect.Slice {
		return errors.E(errors.WrongAPIUsage, "read_dataset: Data must be a slice")
	}
	start := rowStart(ds.Extent, p.Offset)
	if start+dst.Len() > ds.Data.Len() {
		return errors.ReadErr(errors.ObjectDataset, errors.ReasonUnexpectedContent, "streaming", "read_dataset: range exceeds staged data")
	}
	reflect.Copy(dst, ds.Data.Slice(start, start+dst.Len()))
	return nil
}

// GetBufferView hands the caller a backend-managed buffer pulled from the
// channel's free-list when one of adequate size is available, falling back
// to a fresh allocation otherwise; the buffer is returned to the pool at the
// next Advance(EndStep) so later steps can reuse it.
func (b *Backend) GetBufferView(w *backend.Writable, p *backend.GetBufferViewParams) error {
	ds, err := datasetAt(w)
	if err != nil {
		return err
	}
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	want := ds.volume() * int(ds.Datatype.ByteWidth())
	buf, ok := tok.ch.bufferPool.TryGet()
	if !ok || len(buf) < want {
		buf = make([]byte, want)
	} else {
		buf = buf[:want]
	}
	tok.ch.mu.Lock()
	tok.ch.pendingBufs = append(tok.ch.pendingBufs, buf)
	tok.ch.mu.Unlock()
	p.View = buf
	p.BackendManagedBuffer = true
	return nil
}

func (b *Backend) WriteAtt(w *backend.Writable, p *backend.WriteAttParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "write_att under read-only access")
	}
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	n := resolveOrCreate(tok.ch.root, tok.path)
	n.Attrs[p.Name] = p.Attribute
	return nil
}

func (b *Backend) ReadAtt(w *backend.Writable, p *backend.ReadAttParams) error {
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	n, ok := resolve(tok.ch.root, tok.path)
	if !ok {
		return errors.ReadErr(errors.ObjectGroup, errors.ReasonNotFound, "streaming", "read_att: no such path")
	}
	v, ok := n.Attrs[p.Name]
	if !ok {
		return errors.E(errors.NoSuchAttribute, fmt.Sprintf("no attribute %q", p.Name))
	}
	p.Attribute = v
	return nil
}

func (b *Backend) DeleteAtt(w *backend.Writable, p *backend.DeleteAttParams) error {
	if !w.Handler().AccessMode().Writable() {
		return errors.E(errors.ReadOnly, "delete_att under read-only access")
	}
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	n, ok := resolve(tok.ch.root, tok.path)
	if !ok {
		return errors.E(errors.NoSuchAttribute, "delete_att: no such path")
	}
	delete(n.Attrs, p.Name)
	return nil
}

func (b *Backend) ListPaths(w *backend.Writable, p *backend.ListPathsParams) error {
	n, err := groupAt(w)
	if err != nil {
		return err
	}
	for name, child := range n.Children {
		if child.Dataset == nil {
			p.Paths = append(p.Paths, name)
		}
	}
	return nil
}

func (b *Backend) ListDatasets(w *backend.Writable, p *backend.ListDatasetsParams) error {
	n, err := groupAt(w)
	if err != nil {
		return err
	}
	for name, child := range n.Children {
		if child.Dataset != nil {
			p.Datasets = append(p.Datasets, name)
		}
	}
	return nil
}

func (b *Backend) ListAtts(w *backend.Writable, p *backend.ListAttsParams) error {
	n, err := groupAt(w)
	if err != nil {
		return err
	}
	for name := range n.Attrs {
		p.Names = append(p.Names, name)
	}
	return nil
}

func groupAt(w *backend.Writable) (*node, error) {
	tok, err := tokenOf(w)
	if err != nil {
		return nil, err
	}
	n, ok := resolve(tok.ch.root, tok.path)
	if !ok {
		return nil, errors.E(errors.Internal, "streaming: path vanished")
	}
	return n, nil
}

// Advance brackets an I/O step. On the write side, EndStep signals the
// step's data is ready by inserting it into the channel's OrderedQueue and
// releases any buffers GetBufferView issued during the step back to the
// pool; on the read side, BeginStep blocks on that same queue until the
// matching step has landed, or reports StatusOver once the writer has
// closed the channel.
func (b *Backend) Advance(w *backend.Writable, p *backend.AdvanceParams) error {
	tok, err := tokenOf(w)
	if err != nil {
		return err
	}
	ch := tok.ch
	if w.Handler().AccessMode().Writable() {
		switch p.Mode {
		case backend.BeginStep:
			p.Status = backend.StatusOK
		case backend.EndStep:
			idx := ch.writeStep
			ch.writeStep++
			if err := ch.steps.Insert(idx, struct{}{}); err != nil {
				return errors.E(errors.Internal, "streaming: step queue closed early", err)
			}
			ch.mu.Lock()
			bufs := ch.pendingBufs
			ch.pendingBufs = nil
			ch.mu.Unlock()
			for _, buf := range bufs {
				ch.bufferPool.Put(buf)
			}
			p.Status = backend.StatusOK
		}
		return nil
	}
	switch p.Mode {
	case backend.BeginStep:
		_, ok, err := ch.steps.Next()
		if err != nil {
			return errors.E(errors.Internal, "streaming: step queue error", err)
		}
		if !ok {
			p.Status = backend.StatusOver
			return nil
		}
		ch.readStep++
		p.Status = backend.StatusOK
	case backend.EndStep:
		p.Status = backend.StatusOK
	}
	return nil
}

func (b *Backend) AvailableChunks(w *backend.Writable, p *backend.AvailableChunksParams) error {
	ds, err := datasetAt(w)
	if err != nil {
		return err
	}
	p.Chunks = chunk.Contiguous(ds.Extent)
	return nil
}

func (b *Backend) Deregister(w *backend.Writable, p *backend.DeregisterParams) error { return nil }

func elemGoType(dt datatype.Datatype) (reflect.Type, bool) {
	switch dt {
	case datatype.Int8:
		return reflect.TypeOf(int8(0)), true
	case datatype.Int16:
		return reflect.TypeOf(int16(0)), true
	case datatype.Int32:
		return reflect.TypeOf(int32(0)), true
	case datatype.Int64:
		return reflect.TypeOf(int64(0)), true
	case datatype.UInt8:
		return reflect.TypeOf(uint8(0)), true
	case datatype.UInt16:
		return reflect.TypeOf(uint16(0)), true
	case datatype.UInt32:
		return reflect.TypeOf(uint32(0)), true
	case datatype.UInt64:
		return reflect.TypeOf(uint64(0)), true
	case datatype.Float32:
		return reflect.TypeOf(float32(0)), true
	case datatype.Float64:
		return reflect.TypeOf(float64(0)), true
	case datatype.Bool:
		return reflect.TypeOf(false), true
	default:
		return nil, false
	}
}
