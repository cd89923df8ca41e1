package core

import (
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// ChannelStatus is a channel's lifecycle state (§3, "Channel").
type ChannelStatus string

const (
	ChannelConnected   ChannelStatus = "connected"
	ChannelEstablished ChannelStatus = "established"
)

// Channel is an ordered frame stream to one transport endpoint. Once
// Established, PeerID is immutable for the channel's lifetime (§3
// Invariant, "once established, a channel's peerId is immutable").
type Channel struct {
	ID     types.ChannelID
	Status ChannelStatus
	PeerID types.PeerID
}

// ChannelRegistry tracks every live channel (component A). Channels are
// exclusively owned here; transport adapters hold only a weak
// back-reference for delivery (§3, "Ownership/lifecycle").
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[types.ChannelID]*Channel
}

// NewChannelRegistry constructs an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[types.ChannelID]*Channel)}
}

// Add registers a freshly connected channel, peer unknown.
func (r *ChannelRegistry) Add(id types.ChannelID) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := &Channel{ID: id, Status: ChannelConnected}
	r.channels[id] = ch
	return ch
}

// Establish binds id to peerID and marks it established, creating the
// channel entry if this is the first we've heard of it. Callers normally
// observe a ChannelAdded before any establish traffic, but a transport may
// deliver an inbound establish-request/response before the adapter's own
// ChannelAdded notification has been dispatched (the two travel through
// independent queues), so lookup failure here is tolerated rather than
// dropped (Design Notes §9, "lookup failures are normal and logged, not
// fatal").
func (r *ChannelRegistry) Establish(id types.ChannelID, peerID types.PeerID) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if !ok {
		ch = &Channel{ID: id}
		r.channels[id] = ch
	}
	ch.Status = ChannelEstablished
	ch.PeerID = peerID
	return ch, true
}

// Remove deletes id from the registry, returning the removed channel (if
// any) so callers can clean up peer-side bookkeeping.
func (r *ChannelRegistry) Remove(id types.ChannelID) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	if ok {
		delete(r.channels, id)
	}
	return ch, ok
}

// Get returns the channel for id, if any.
func (r *ChannelRegistry) Get(id types.ChannelID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// IsEstablished reports whether id exists and is established.
func (r *ChannelRegistry) IsEstablished(id types.ChannelID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ok && ch.Status == ChannelEstablished
}

// All returns a snapshot of every registered channel.
func (r *ChannelRegistry) All() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}
