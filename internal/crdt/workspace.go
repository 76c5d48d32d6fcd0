package crdt

import (
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// wireFieldOp is the msgpack-encoded unit of change for a scalar field,
// carried inside a wireUpdate. Exactly one of Seq/ScalarValue is populated,
// selected by Field.
type wireFieldOp struct {
	DocID [16]byte
	Field string
	Clock fieldClock
	Value any        `msgpack:",omitempty"`
	Seq   *SeqElemOp `msgpack:",omitempty"`
}

// wireUpdate is the payload encoded into a CrdtUpdate's Data (spec §4.8):
// a flat batch of field ops, possibly touching several documents, produced
// by one WorkspaceCrdt mutation or accumulated by encode_diff/
// encode_state_as_update.
type wireUpdate struct {
	Ops []wireFieldOp
}

func encodeWireUpdate(ops []wireFieldOp) ([]byte, error) {
	return msgpack.Marshal(wireUpdate{Ops: ops})
}

func decodeWireUpdate(data []byte) ([]wireFieldOp, error) {
	var u wireUpdate
	if err := msgpack.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("crdt: decode update: %w", err)
	}
	return u.Ops, nil
}

// StateVector summarizes, per replica, the highest fieldClock counter a
// WorkspaceCrdt has observed from that replica — the same role Yjs'
// state vector plays, scoped to replica id rather than per-document
// client clocks since this port uses one Lamport clock per replica across
// the whole workspace document.
type StateVector map[string]uint64

// observerEntry pairs a registered callback with the id used to unobserve.
type observerEntry struct {
	id uint64
	fn func(docID DocID)
}

// WorkspaceCrdt is the keyed-map CRDT over a workspace's FileMetadata
// records (spec §4.5): DocID -> FileMetadata, plus the path<->DocID index
// kept consistent with every Put/Delete/Rename. It holds no reference to
// storage; callers persist encode_state_as_update()/apply_update() payloads
// through a crdt.Storage themselves (see internal/storage), the same way
// the original leaves persistence to its sync layer rather than the CRDT
// document itself.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/crdt/workspace.rs.
type WorkspaceCrdt struct {
	mu sync.RWMutex

	clock   *Clock
	records map[DocID]*record
	paths   map[string]DocID // live (non-deleted) path -> id

	opLog []wireFieldOp // full history, for encode_diff/encode_state_as_update
	seen  StateVector   // highest counter observed per replica

	localSeq   int64
	observers  []observerEntry
	nextObsID  uint64
}

// NewWorkspaceCrdt creates an empty document. replica identifies this
// process's writes in the Lamport clock (typically a device id).
func NewWorkspaceCrdt(replica string) *WorkspaceCrdt {
	return &WorkspaceCrdt{
		clock:   NewClock(replica),
		records: make(map[DocID]*record),
		paths:   make(map[string]DocID),
		seen:    make(StateVector),
	}
}

// Get returns the live (non-deleted) metadata at path, if any.
func (w *WorkspaceCrdt) Get(path string) (DocID, FileMetadata, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.paths[path]
	if !ok {
		return DocID{}, FileMetadata{}, false
	}
	r := w.records[id]
	return id, r.toFileMetadata(), true
}

// GetByID returns metadata by document id regardless of liveness, so
// callers resolving a stale part_of/contents reference can still see a
// tombstoned record.
func (w *WorkspaceCrdt) GetByID(id DocID) (FileMetadata, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.records[id]
	if !ok {
		return FileMetadata{}, false
	}
	return r.toFileMetadata(), true
}

// ListLivePaths returns every non-deleted path currently tracked.
func (w *WorkspaceCrdt) ListLivePaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	return out
}

// Put creates or updates the record for path with metadata, assigning a new
// DocID if path is not already tracked. Every field and sequence element
// touched by this call shares one fieldClock tick, so it produces exactly
// one CrdtUpdate (spec's one-update-per-operation rule).
func (w *WorkspaceCrdt) Put(path string, metadata FileMetadata, modifiedAtMs int64) (DocID, *int64) {
	w.mu.Lock()

	id, existing := w.paths[path]
	if !existing {
		id = NewDocID()
	}
	r, ok := w.records[id]
	if !ok {
		r = newRecord(id)
		w.records[id] = r
	}

	tick := w.clock.Tick()
	var ops []wireFieldOp
	track := func(field scalarField, value any) {
		if r.applyScalar(field, tick, value) {
			ops = append(ops, wireFieldOp{DocID: id, Field: string(field), Clock: tick, Value: value})
		}
	}

	track(fieldPath, path)
	track(fieldTitle, metadata.Title)
	track(fieldDescription, metadata.Description)
	track(fieldPartOf, metadata.PartOf)
	track(fieldAudience, metadata.Audience)
	track(fieldExtra, metadata.Extra)
	track(fieldDeleted, false)
	track(fieldIsIndex, metadata.IsIndex())

	if metadata.IsIndex() {
		items := make([]seqItem, 0, len(*metadata.Contents))
		for _, c := range *metadata.Contents {
			items = append(items, seqItem{Key: c, Value: c})
		}
		for _, op := range r.contents.Reconcile(items, tick) {
			ops = append(ops, wireFieldOp{DocID: id, Field: "contents", Clock: tick, Seq: &op})
		}
	}

	attItems := make([]seqItem, 0, len(metadata.Attachments))
	for _, a := range metadata.Attachments {
		attItems = append(attItems, seqItem{Key: a.Path, Value: a})
	}
	for _, op := range r.attachments.Reconcile(attItems, tick) {
		ops = append(ops, wireFieldOp{DocID: id, Field: "attachments", Clock: tick, Seq: &op})
	}

	r.modifiedAt = modifiedAtMs
	w.paths[path] = id

	seq := w.commitLocked(ops)
	w.mu.Unlock()
	if seq != nil {
		w.notify(id)
	}
	return id, seq
}

// Delete tombstones the record at path, if live. Returns nil if path was
// already absent (a redundant delete produces no update).
func (w *WorkspaceCrdt) Delete(path string) *int64 {
	w.mu.Lock()

	id, ok := w.paths[path]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	r := w.records[id]
	tick := w.clock.Tick()
	var ops []wireFieldOp
	if r.applyScalar(fieldDeleted, tick, true) {
		ops = append(ops, wireFieldOp{DocID: id, Field: string(fieldDeleted), Clock: tick, Value: true})
	}
	delete(w.paths, path)
	seq := w.commitLocked(ops)
	w.mu.Unlock()
	if seq != nil {
		w.notify(id)
	}
	return seq
}

// Rename moves the live record at oldPath to newPath, preserving its DocID
// and all other fields. Returns nil if oldPath is not live.
func (w *WorkspaceCrdt) Rename(oldPath, newPath string) *int64 {
	w.mu.Lock()

	id, ok := w.paths[oldPath]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	r := w.records[id]
	tick := w.clock.Tick()
	var ops []wireFieldOp
	if r.applyScalar(fieldPath, tick, newPath) {
		ops = append(ops, wireFieldOp{DocID: id, Field: string(fieldPath), Clock: tick, Value: newPath})
	}
	delete(w.paths, oldPath)
	w.paths[newPath] = id
	seq := w.commitLocked(ops)
	w.mu.Unlock()
	if seq != nil {
		w.notify(id)
	}
	return seq
}

// commitLocked appends ops to the history log and bumps the local update
// counter, returning its value, or nil if ops is empty (the mutation was a
// no-op relative to existing state, e.g. a redundant Put). Caller holds
// w.mu and is responsible for unlocking and notifying observers afterward.
func (w *WorkspaceCrdt) commitLocked(ops []wireFieldOp) *int64 {
	if len(ops) == 0 {
		return nil
	}
	w.opLog = append(w.opLog, ops...)
	w.localSeq++
	seq := w.localSeq
	return &seq
}

// EncodeStateVector returns this document's current per-replica clock
// state, for a peer to diff against.
func (w *WorkspaceCrdt) EncodeStateVector() StateVector {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(StateVector, len(w.seen))
	for k, v := range w.seen {
		out[k] = v
	}
	// Include this replica's own clock, since seen only tracks remote
	// observations.
	out[w.clock.replica] = w.clock.counter.Load()
	return out
}

// EncodeStateAsUpdate returns every op this document has ever applied, the
// full-state payload a brand-new peer needs.
func (w *WorkspaceCrdt) EncodeStateAsUpdate() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return encodeWireUpdate(w.opLog)
}

// EncodeDiff returns only the ops this document has that peerSV does not
// already reflect.
func (w *WorkspaceCrdt) EncodeDiff(peerSV StateVector) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var missing []wireFieldOp
	for _, op := range w.opLog {
		if op.Clock.Counter > peerSV[op.Clock.Replica] {
			missing = append(missing, op)
		}
	}
	return encodeWireUpdate(missing)
}

// ApplyUpdate merges a remote update (produced by EncodeDiff or
// EncodeStateAsUpdate on a peer) into this document. Returns the local
// update id assigned if anything changed, or nil if every op in data was
// already reflected here (a redundant/already-seen update).
func (w *WorkspaceCrdt) ApplyUpdate(data []byte) (*int64, error) {
	ops, err := decodeWireUpdate(data)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()

	touched := make(map[DocID]bool)
	var applied []wireFieldOp
	for _, op := range ops {
		id := DocID(op.DocID)
		r, ok := w.records[id]
		if !ok {
			r = newRecord(id)
			w.records[id] = r
		}
		w.clock.Observe(op.Clock)
		if c := w.seen[op.Clock.Replica]; op.Clock.Counter > c {
			w.seen[op.Clock.Replica] = op.Clock.Counter
		}

		var changed bool
		switch op.Field {
		case "contents":
			changed = r.contents.Apply(*op.Seq)
		case "attachments":
			changed = r.attachments.Apply(*op.Seq)
		default:
			changed = r.applyScalar(scalarField(op.Field), op.Clock, op.Value)
		}
		if !changed {
			continue
		}
		applied = append(applied, op)
		touched[id] = true

		if op.Field == string(fieldPath) {
			w.reindexPath(id, r)
		}
		if op.Field == string(fieldDeleted) && r.deleted {
			delete(w.paths, r.path)
		}
	}

	if len(applied) == 0 {
		w.mu.Unlock()
		return nil, nil
	}
	w.opLog = append(w.opLog, applied...)
	w.localSeq++
	seq := w.localSeq
	w.mu.Unlock()
	for id := range touched {
		w.notify(id)
	}
	return &seq, nil
}

// reindexPath keeps the path->id index consistent after a path field op is
// applied, dropping any stale mapping that pointed at this id under a
// different path.
func (w *WorkspaceCrdt) reindexPath(id DocID, r *record) {
	for p, existing := range w.paths {
		if existing == id && p != r.path {
			delete(w.paths, p)
		}
	}
	if !r.deleted && r.path != "" {
		w.paths[r.path] = id
	}
}

// Observe registers fn to be called with the DocID of every record a local
// or remote mutation changes. Returns an id for Unobserve.
func (w *WorkspaceCrdt) Observe(fn func(docID DocID)) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextObsID++
	id := w.nextObsID
	w.observers = append(w.observers, observerEntry{id: id, fn: fn})
	return id
}

// Unobserve removes a callback previously registered with Observe.
func (w *WorkspaceCrdt) Unobserve(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, o := range w.observers {
		if o.id == id {
			w.observers = append(w.observers[:i], w.observers[i+1:]...)
			return
		}
	}
}

// notify must be called with w.mu NOT held, since callbacks commonly call
// back into the document (e.g. Get). It snapshots observers under a brief
// read lock so callback panics or reentrant Observe/Unobserve calls can't
// corrupt the slice mid-iteration.
func (w *WorkspaceCrdt) notify(id DocID) {
	w.mu.RLock()
	observers := append([]observerEntry(nil), w.observers...)
	w.mu.RUnlock()
	for _, o := range observers {
		func() {
			defer func() { recover() }()
			o.fn(id)
		}()
	}
}
