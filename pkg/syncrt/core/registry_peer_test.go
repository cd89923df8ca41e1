package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

func TestPeerRegistry_EnsurePeerMergesChannels(t *testing.T) {
	r := NewPeerRegistry()
	identity := types.Identity{PeerID: "peer-a", Name: "alice"}

	r.EnsurePeer(identity, "ch-1")
	r.EnsurePeer(identity, "ch-2")

	p, ok := r.Get("peer-a")
	require.True(t, ok, "expected peer-a to be present")
	assert.Len(t, p.Channels, 2)
}

func TestPeerRegistry_GCIfUnreferenced(t *testing.T) {
	r := NewPeerRegistry()
	identity := types.Identity{PeerID: "peer-a"}
	r.EnsurePeer(identity, "ch-1")

	r.RemoveChannel("peer-a", "ch-1")
	require.True(t, r.GCIfUnreferenced("peer-a"), "expected peer-a to be collected once it has no channels or subscriptions")

	_, ok := r.Get("peer-a")
	assert.False(t, ok, "peer-a should be gone after GC")
}

func TestPeerRegistry_GCKeepsSubscribedPeer(t *testing.T) {
	r := NewPeerRegistry()
	identity := types.Identity{PeerID: "peer-a"}
	r.EnsurePeer(identity, "ch-1")
	r.Subscribe("peer-a", "doc-1")
	r.RemoveChannel("peer-a", "ch-1")

	assert.False(t, r.GCIfUnreferenced("peer-a"), "peer-a still has a subscription and should not be collected")
}

func TestPeerRegistry_DocSyncStateRoundTrip(t *testing.T) {
	r := NewPeerRegistry()
	r.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")

	r.SetDocSyncState("peer-a", "doc-1", PeerDocSyncState{
		Status:           StatusSynced,
		LastKnownVersion: types.VersionVector{0, 0, 0, 1},
	})

	state, ok := r.DocSyncState("peer-a", "doc-1")
	require.True(t, ok, "expected a doc sync state for peer-a/doc-1")
	assert.Equal(t, StatusSynced, state.Status)
	assert.False(t, state.LastUpdated.IsZero(), "expected LastUpdated to be stamped")
}

func TestPeerRegistry_SubscribersOf(t *testing.T) {
	r := NewPeerRegistry()
	r.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")
	r.EnsurePeer(types.Identity{PeerID: "peer-b"}, "ch-2")
	r.Subscribe("peer-a", "doc-1")

	subs := r.SubscribersOf("doc-1")
	require.Len(t, subs, 1)
	assert.Equal(t, types.PeerID("peer-a"), subs[0])
}
