// Package synctest is test scaffolding shared by package tests and the
// integration suite: a deterministic, monotonically-versioned reference
// Doc implementation (FakeDoc) and cluster harness helpers in the style of
// the teacher's test.CreateCluster/TestInvoker pair. None of this is a
// CRDT engine — merge semantics are explicitly out of scope (spec.md
// Non-goals) — FakeDoc just needs to behave consistently enough to drive
// the reducer's version-vector comparisons.
package synctest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// op is one committed change in a FakeDoc's append-only log.
type op struct {
	Seq  uint64 `json:"seq"`
	Data []byte `json:"data"`
}

// FakeDoc is an in-memory types.Doc backed by a monotonically increasing
// sequence number standing in for a real version vector. Export(update,
// from) returns every op past the sequence number encoded in from;
// Export(snapshot) returns the whole log. Import decodes a peer's ops and
// appends whichever ones we do not already have.
type FakeDoc struct {
	mu   sync.Mutex
	id   types.DocID
	log  []op
	subs []func(types.ChangeOrigin)
}

// NewFakeDoc satisfies types.DocFactory.
func NewFakeDoc(id types.DocID) types.Doc {
	return &FakeDoc{id: id}
}

// Version returns the big-endian encoding of the highest committed
// sequence number, so VersionVector.Equal reduces to a byte comparison of
// two uint64s — consistent with the core treating version vectors as
// wholly opaque.
func (d *FakeDoc) Version() types.VersionVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return encodeSeq(d.lastSeqLocked())
}

func (d *FakeDoc) lastSeqLocked() uint64 {
	if len(d.log) == 0 {
		return 0
	}
	return d.log[len(d.log)-1].Seq
}

func encodeSeq(seq uint64) types.VersionVector {
	v := make(types.VersionVector, 8)
	binary.BigEndian.PutUint64(v, seq)
	return v
}

func decodeSeq(v types.VersionVector) (uint64, bool) {
	if len(v) == 0 {
		return 0, true
	}
	if len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// Export implements types.Doc. ExportSnapshot always succeeds; ExportUpdate
// returns types.ErrNoCommonHistory when From does not decode to a known
// cutoff (simulating a peer with a version vector from unrelated history).
func (d *FakeDoc) Export(opts types.ExportOptions) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch opts.Mode {
	case types.ExportSnapshot:
		return json.Marshal(d.log)
	case types.ExportUpdate:
		from, ok := decodeSeq(opts.From)
		if !ok {
			return nil, types.ErrNoCommonHistory
		}
		var delta []op
		for _, o := range d.log {
			if o.Seq > from {
				delta = append(delta, o)
			}
		}
		return json.Marshal(delta)
	default:
		return nil, types.ErrNoCommonHistory
	}
}

// Import decodes data as an op log (partial or full — both are just
// []op) and appends any op whose Seq we do not already hold, then
// notifies observers with OriginRemote.
func (d *FakeDoc) Import(_ context.Context, data []byte) error {
	var incoming []op
	if err := json.Unmarshal(data, &incoming); err != nil {
		return err
	}

	d.mu.Lock()
	have := make(map[uint64]struct{}, len(d.log))
	for _, o := range d.log {
		have[o.Seq] = struct{}{}
	}
	changed := false
	for _, o := range incoming {
		if _, ok := have[o.Seq]; ok {
			continue
		}
		d.log = append(d.log, o)
		changed = true
	}
	if changed {
		sortOpsLocked(d.log)
	}
	subs := append([]func(types.ChangeOrigin){}, d.subs...)
	d.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(types.OriginRemote)
		}
	}
	return nil
}

// Apply is FakeDoc's test-only "local edit" entry point — there is no
// real CRDT mutation API in scope, so tests call this directly to
// simulate local application changes and drive LocalDocChange fan-out.
func (d *FakeDoc) Apply(data []byte) {
	d.mu.Lock()
	seq := d.lastSeqLocked() + 1
	d.log = append(d.log, op{Seq: seq, Data: data})
	subs := append([]func(types.ChangeOrigin){}, d.subs...)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(types.OriginLocal)
	}
}

// Observe implements types.Doc.
func (d *FakeDoc) Observe(fn func(types.ChangeOrigin)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
	idx := len(d.subs) - 1
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if idx < len(d.subs) {
			d.subs[idx] = func(types.ChangeOrigin) {}
		}
	}
}

func sortOpsLocked(log []op) {
	for i := 1; i < len(log); i++ {
		for j := i; j > 0 && log[j-1].Seq > log[j].Seq; j-- {
			log[j-1], log[j] = log[j], log[j-1]
		}
	}
}

var _ types.Doc = (*FakeDoc)(nil)
