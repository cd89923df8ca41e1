package types

import (
	"context"
	"errors"
)

// ErrNoCommonHistory is returned by Doc.Export(ExportUpdate, ...) when the
// requested cutoff shares no common history with the document's current
// state. The reducer catches it and falls back to a full snapshot export
// (§4.1.2, "if the requester's vector has no overlap with ours, fall back
// to snapshot").
var ErrNoCommonHistory = errors.New("version vector has no common history")

// VersionVector is an opaque CRDT-defined token. The core only ever compares
// it for equality and threads it back into Export as a cutoff — it never
// inspects its bytes. §6.1.
type VersionVector []byte

// Equal reports whether two version vectors denote the same causal state.
// A nil vector is treated as the empty vector, matching requesterDocVersion
// being absent on a document the requester has never seen (§4.1.2).
func (v VersionVector) Equal(other VersionVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// ExportMode selects whether Export produces a full snapshot or a delta
// relative to From.
type ExportMode string

const (
	ExportSnapshot ExportMode = "snapshot"
	ExportUpdate   ExportMode = "update"
)

// ExportOptions parameterizes Doc.Export, mirroring the CRDT engine's
// export({mode, from}) contract referenced throughout spec.md §4.1.
type ExportOptions struct {
	Mode ExportMode
	From VersionVector
}

// ChangeOrigin distinguishes a commit produced by local application code
// from one produced by Doc.Import, so the reducer's local-change observer
// (§4.1.5) can ignore import-induced commits and avoid re-broadcasting a
// peer's own bytes back to it.
type ChangeOrigin string

const (
	OriginLocal  ChangeOrigin = "local"
	OriginRemote ChangeOrigin = "remote"
)

// Doc is the external CRDT engine contract this core depends on. CRDT merge
// semantics are out of scope for this repository (spec.md Non-goals); only
// the four operations the core actually calls (the reducer, the executor
// and the document registry) are declared here.
type Doc interface {
	// Version returns the current version vector of the merged document.
	Version() VersionVector

	// Export serializes document bytes per opts. The returned bytes are
	// opaque to the core.
	Export(opts ExportOptions) ([]byte, error)

	// Import merges externally-sourced bytes into the document. The
	// resulting local-change notification (if any) must carry
	// OriginRemote so the reducer's local-origin filter (§4.1.5) excludes
	// it.
	Import(ctx context.Context, data []byte) error

	// Observe registers fn to be called for every commit applied to this
	// document, tagged with its origin. The returned func unregisters it.
	Observe(fn func(origin ChangeOrigin)) (unsubscribe func())
}

// DocFactory creates a new, empty Doc handle for a DocID the document
// registry has not seen before (§3 "created lazily").
type DocFactory func(DocID) Doc
