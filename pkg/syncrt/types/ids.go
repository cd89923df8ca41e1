package types

// PeerID uniquely and stably identifies a runtime participating in the
// synchronization mesh. It is opaque to the core; callers are expected to
// mint one with a UUID generator (see cmd/syncrtd) or a stable per-device
// identifier.
type PeerID string

// ChannelID identifies a single transport channel, scoped to this runtime's
// process lifetime. Two channels may resolve to the same PeerID once
// established.
type ChannelID string

// DocID identifies a document within the mesh. Documents are created lazily
// by the document registry the first time they are referenced.
type DocID string

// Namespace scopes ephemeral state within a document (presence, cursors,
// selections, ...). Each namespace holds one opaque payload per PeerID.
type Namespace string

// PeerType distinguishes end-user runtimes from unattended service peers,
// used by application-supplied Permissions (e.g. "only relay to users").
type PeerType string

const (
	PeerTypeUser    PeerType = "user"
	PeerTypeService PeerType = "service"
)

// Identity is the stable self-description a runtime presents during the
// establish handshake (§4.1.1).
type Identity struct {
	PeerID PeerID   `json:"peerId"`
	Name   string   `json:"name"`
	Type   PeerType `json:"type"`
}
