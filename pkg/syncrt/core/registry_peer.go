package core

import (
	"sync"
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// SyncStatus is this runtime's belief about what a peer holds for a given
// document (§3, "PeerDocSyncState"). The source's legacy "has-doc"/"no-doc"
// representation is not modeled here per the Design Notes §9 Open Question:
// this repo implements only the explicit status-tag form.
type SyncStatus string

const (
	StatusSynced SyncStatus = "synced"
	StatusAbsent SyncStatus = "absent"
)

// PeerDocSyncState is one peer's awareness for one document. A PeerState
// with no entry for a DocID means the peer has never spoken about that
// document (§3).
type PeerDocSyncState struct {
	Status           SyncStatus
	LastKnownVersion types.VersionVector
	LastUpdated      time.Time
}

// PeerState is everything this runtime knows about one peer (§3, "Peer
// state").
type PeerState struct {
	Identity      types.Identity
	Channels      map[types.ChannelID]struct{}
	Subscriptions map[types.DocID]struct{}
	DocSyncStates map[types.DocID]PeerDocSyncState
	LastSeen      time.Time
}

func newPeerState(identity types.Identity) *PeerState {
	return &PeerState{
		Identity:      identity,
		Channels:      make(map[types.ChannelID]struct{}),
		Subscriptions: make(map[types.DocID]struct{}),
		DocSyncStates: make(map[types.DocID]PeerDocSyncState),
	}
}

// PeerRegistry tracks every known peer (component B). Peer entries are
// created on establish and garbage-collected once their last channel
// closes and no document subscription references them (§3,
// "Ownership/lifecycle").
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[types.PeerID]*PeerState
	now   func() time.Time
}

// NewPeerRegistry constructs an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[types.PeerID]*PeerState), now: time.Now}
}

// EnsurePeer creates or merges a peer entry for identity, binds channelID to
// it, and returns the resulting state (§4.1.1, "create/merge a peer entry").
func (r *PeerRegistry) EnsurePeer(identity types.Identity, channelID types.ChannelID) *PeerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[identity.PeerID]
	if !ok {
		p = newPeerState(identity)
		r.peers[identity.PeerID] = p
	} else {
		p.Identity = identity
	}
	p.Channels[channelID] = struct{}{}
	p.LastSeen = r.now()
	return p
}

// Get returns the peer state for id, if known.
func (r *PeerRegistry) Get(id types.PeerID) (*PeerState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// All returns a snapshot of every known peer's state.
func (r *PeerRegistry) All() []*PeerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerState, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// RemoveChannel unbinds channelID from peerID's channel set. If the peer
// has no remaining channels, its docSyncStates are kept as reconnection
// hints (§4.1.6) rather than deleted; the peer entry itself is only dropped
// by GCIfUnreferenced.
func (r *PeerRegistry) RemoveChannel(peerID types.PeerID, channelID types.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return
	}
	delete(p.Channels, channelID)
}

// GCIfUnreferenced drops peerID's entry entirely once it has no channels
// and no document subscriptions left, per §3's ownership rule. Returns true
// if the peer was removed.
func (r *PeerRegistry) GCIfUnreferenced(peerID types.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return false
	}
	if len(p.Channels) == 0 && len(p.Subscriptions) == 0 {
		delete(r.peers, peerID)
		return true
	}
	return false
}

// Subscribe records that peerID has asked us to stream docID to it (set
// when we honor a bidirectional sync-request, §4.1.2); SubscribersOf reads
// it for the reducer's fan-out.
func (r *PeerRegistry) Subscribe(peerID types.PeerID, docID types.DocID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return
	}
	p.Subscriptions[docID] = struct{}{}
}

// SetDocSyncState overwrites peerID's awareness of docID.
func (r *PeerRegistry) SetDocSyncState(peerID types.PeerID, docID types.DocID, state PeerDocSyncState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return
	}
	state.LastUpdated = r.now()
	p.DocSyncStates[docID] = state
}

// DocSyncState reads peerID's current awareness of docID.
func (r *PeerRegistry) DocSyncState(peerID types.PeerID, docID types.DocID) (PeerDocSyncState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	if !ok {
		return PeerDocSyncState{}, false
	}
	s, ok := p.DocSyncStates[docID]
	return s, ok
}

// SubscribersOf returns every peer id subscribed to docID.
func (r *PeerRegistry) SubscribersOf(docID types.DocID) []types.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.PeerID
	for id, p := range r.peers {
		if _, ok := p.Subscriptions[docID]; ok {
			out = append(out, id)
		}
	}
	return out
}

// AnyChannelFor returns one established channel id bound to peerID, if any
// (§3, "any one may be used to send").
func (r *PeerRegistry) AnyChannelFor(peerID types.PeerID) (types.ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	if !ok {
		return "", false
	}
	for chID := range p.Channels {
		return chID, true
	}
	return "", false
}
