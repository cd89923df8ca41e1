package core

import (
	"context"
	"testing"

	"github.com/nwillc/syncrt/pkg/syncrt/definition"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// testDoc is a minimal types.Doc for reducer tests, kept local to this
// package (rather than reusing synctest.FakeDoc) to avoid an import cycle:
// synctest depends on pkg/syncrt, which depends on this package.
type testDoc struct {
	version   byte
	exported  [][]byte
	imported  [][]byte
	observers []func(types.ChangeOrigin)
	noHistory bool
}

func (d *testDoc) Version() types.VersionVector { return types.VersionVector{d.version} }

func (d *testDoc) Export(opts types.ExportOptions) ([]byte, error) {
	if opts.Mode == types.ExportUpdate && d.noHistory {
		return nil, types.ErrNoCommonHistory
	}
	data := []byte{d.version}
	d.exported = append(d.exported, data)
	return data, nil
}

func (d *testDoc) Import(_ context.Context, data []byte) error {
	d.imported = append(d.imported, data)
	return nil
}

func (d *testDoc) Observe(fn func(types.ChangeOrigin)) func() {
	d.observers = append(d.observers, fn)
	return func() {}
}

func newTestReducer(identity types.Identity) (*Reducer, *ChannelRegistry, *PeerRegistry, *DocumentRegistry, *EphemeralManager) {
	channels := NewChannelRegistry()
	peers := NewPeerRegistry()
	ephemeral := NewEphemeralManager()
	docs := NewDocumentRegistry(func(id types.DocID) types.Doc { return &testDoc{version: 0} }, nil)
	r := NewReducer(identity, channels, peers, docs, ephemeral, definition.DefaultPermissions{}, nil, &fakeLogger{})
	return r, channels, peers, docs, ephemeral
}

func TestReducer_ChannelAddedSendsEstablishRequest(t *testing.T) {
	r, _, _, _, _ := newTestReducer(types.Identity{PeerID: "me"})

	cmd := r.Update(types.ChannelAdded{ChannelID: "ch-1"})
	send, ok := cmd.(types.SendEstablishment)
	if !ok {
		t.Fatalf("expected SendEstablishment, got %T", cmd)
	}
	if _, ok := send.Message.(types.EstablishRequest); !ok {
		t.Errorf("expected an EstablishRequest payload, got %T", send.Message)
	}
}

func TestReducer_EstablishRequestRespondsAndRegistersPeer(t *testing.T) {
	r, channels, peers, _, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")

	cmd := r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.EstablishRequest{Identity: types.Identity{PeerID: "peer-a"}},
	})

	send, ok := cmd.(types.SendEstablishment)
	if !ok {
		t.Fatalf("expected SendEstablishment response, got %T", cmd)
	}
	if _, ok := send.Message.(types.EstablishResponse); !ok {
		t.Errorf("expected EstablishResponse, got %T", send.Message)
	}
	if !channels.IsEstablished("ch-1") {
		t.Errorf("channel should be established")
	}
	if _, ok := peers.Get("peer-a"); !ok {
		t.Errorf("peer-a should be registered")
	}
}

func TestReducer_SyncRequestUnknownDocReturnsUnavailable(t *testing.T) {
	r, channels, peers, _, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")

	cmd := r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.SyncRequest{DocID: "doc-1", Bidirectional: true},
	})

	send, ok := cmd.(types.Send)
	if !ok {
		t.Fatalf("expected Send, got %T", cmd)
	}
	resp, ok := send.Message.(types.SyncResponse)
	if !ok {
		t.Fatalf("expected SyncResponse, got %T", send.Message)
	}
	if resp.Transmission.Type != types.TransmissionUnavailable {
		t.Errorf("expected unavailable transmission, got %s", resp.Transmission.Type)
	}
}

// TestReducer_SyncRequestUnavailableDoesNotMarkPeerSynced covers §8
// Scenario 5: a requester told "unavailable" must stay absent rather than
// synced, or the next local-doc-change would wrongly push it an Update for
// a document it was never actually given.
func TestReducer_SyncRequestUnavailableDoesNotMarkPeerSynced(t *testing.T) {
	r, channels, peers, docs, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")

	cmd := r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.SyncRequest{DocID: "doc-1", Bidirectional: true},
	})
	send, ok := cmd.(types.Send)
	if !ok {
		t.Fatalf("expected Send, got %T", cmd)
	}
	resp := send.Message.(types.SyncResponse)
	if resp.Transmission.Type != types.TransmissionUnavailable {
		t.Fatalf("expected unavailable transmission, got %s", resp.Transmission.Type)
	}

	state, ok := peers.DocSyncState("peer-a", "doc-1")
	if !ok || state.Status != StatusAbsent {
		t.Fatalf("expected peer-a recorded as absent after an unavailable response, got %#v ok=%v", state, ok)
	}
	if subs := peers.SubscribersOf("doc-1"); len(subs) != 0 {
		t.Fatalf("expected peer-a not subscribed to a document we don't have either, got %v", subs)
	}

	// docs.Ensure mirrors what the next real local edit would trigger: the
	// document now exists locally, so make sure the absent peer still
	// doesn't get auto-pushed an Update.
	doc := docs.Ensure("doc-1").(*testDoc)
	doc.version = 1
	if cmd := r.Update(types.LocalDocChange{DocID: "doc-1"}); cmd != nil {
		t.Fatalf("expected no auto-push to a peer recorded as absent, got %#v", cmd)
	}
}

func TestReducer_SyncRequestBidirectionalRegistersSubscription(t *testing.T) {
	r, channels, peers, docs, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")
	docs.Ensure("doc-1")

	r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.SyncRequest{DocID: "doc-1", Bidirectional: true},
	})

	subs := peers.SubscribersOf("doc-1")
	if len(subs) != 1 || subs[0] != "peer-a" {
		t.Fatalf("expected peer-a subscribed to doc-1 after a bidirectional sync-request, got %v", subs)
	}
}

func TestReducer_DocImportedSuppressesEchoToSender(t *testing.T) {
	r, channels, peers, docs, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")
	peers.Subscribe("peer-a", "doc-1")
	docs.Ensure("doc-1")

	cmd := r.Update(types.DocImported{DocID: "doc-1", FromPeerID: "peer-a"})
	if cmd != nil {
		t.Fatalf("expected no outbound command when the only subscriber is the sender, got %#v", cmd)
	}

	state, ok := peers.DocSyncState("peer-a", "doc-1")
	if !ok || state.Status != StatusSynced {
		t.Fatalf("expected peer-a recorded as synced at our version, got %#v ok=%v", state, ok)
	}
}

func TestReducer_DocImportedFansOutToOtherSubscribers(t *testing.T) {
	r, channels, peers, docs, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")

	channels.Add("ch-2")
	channels.Establish("ch-2", "peer-b")
	peers.EnsurePeer(types.Identity{PeerID: "peer-b"}, "ch-2")
	peers.Subscribe("peer-b", "doc-1")
	peers.SetDocSyncState("peer-b", "doc-1", PeerDocSyncState{Status: StatusSynced, LastKnownVersion: types.VersionVector{9}})

	docs.Ensure("doc-1")

	cmd := r.Update(types.DocImported{DocID: "doc-1", FromPeerID: "peer-a"})
	send, ok := cmd.(types.Send)
	if !ok {
		t.Fatalf("expected a Send to peer-b, got %#v", cmd)
	}
	if send.ChannelID != "ch-2" {
		t.Errorf("expected send on ch-2, got %s", send.ChannelID)
	}
	if _, ok := send.Message.(types.Update); !ok {
		t.Errorf("expected an Update payload, got %T", send.Message)
	}
}

func TestReducer_DocImportedNoCommonHistoryFallsBackToSnapshot(t *testing.T) {
	channels := NewChannelRegistry()
	peers := NewPeerRegistry()
	ephemeral := NewEphemeralManager()
	fake := &testDoc{version: 5, noHistory: true}
	docs := NewDocumentRegistry(func(id types.DocID) types.Doc { return fake }, nil)
	r := NewReducer(types.Identity{PeerID: "me"}, channels, peers, docs, ephemeral, definition.DefaultPermissions{}, nil, &fakeLogger{})

	channels.Add("ch-2")
	channels.Establish("ch-2", "peer-b")
	peers.EnsurePeer(types.Identity{PeerID: "peer-b"}, "ch-2")
	peers.Subscribe("peer-b", "doc-1")
	peers.SetDocSyncState("peer-b", "doc-1", PeerDocSyncState{Status: StatusSynced, LastKnownVersion: types.VersionVector{1}})
	docs.Ensure("doc-1")

	cmd := r.Update(types.DocImported{DocID: "doc-1", FromPeerID: "peer-a"})
	send, ok := cmd.(types.Send)
	if !ok {
		t.Fatalf("expected a Send, got %#v", cmd)
	}
	update := send.Message.(types.Update)
	if update.Transmission.Type != types.TransmissionSnapshot {
		t.Errorf("expected snapshot fallback on no common history, got %s", update.Transmission.Type)
	}
}

func TestReducer_HeartbeatBroadcastsEphemeralToSubscribers(t *testing.T) {
	r, channels, peers, docs, ephemeral := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")
	peers.Subscribe("peer-a", "doc-1")
	docs.Ensure("doc-1")
	ephemeral.Apply("doc-1", "presence", "peer-a", []byte("x"))

	cmd := r.Update(types.HeartbeatTick{})
	send, ok := cmd.(types.Send)
	if !ok {
		t.Fatalf("expected a Send carrying the ephemeral broadcast, got %#v", cmd)
	}
	if _, ok := send.Message.(types.Ephemeral); !ok {
		t.Errorf("expected an Ephemeral payload, got %T", send.Message)
	}
}

func TestReducer_HeartbeatSkipsDocsWithNoEphemeralState(t *testing.T) {
	r, channels, peers, docs, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")
	peers.Subscribe("peer-a", "doc-1")
	docs.Ensure("doc-1")

	if cmd := r.Update(types.HeartbeatTick{}); cmd != nil {
		t.Fatalf("expected no command when no document has ephemeral state, got %#v", cmd)
	}
}

func TestReducer_ReceiveOnUnestablishedChannelIsDropped(t *testing.T) {
	r, channels, _, _, _ := newTestReducer(types.Identity{PeerID: "me"})
	channels.Add("ch-1")

	cmd := r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.SyncRequest{DocID: "doc-1"},
	})
	if cmd != nil {
		t.Fatalf("expected sync-request on an unestablished channel to be dropped, got %#v", cmd)
	}
}

func TestReducer_PermissionDenialSuppressesSyncResponse(t *testing.T) {
	channels := NewChannelRegistry()
	peers := NewPeerRegistry()
	docs := NewDocumentRegistry(func(id types.DocID) types.Doc { return &testDoc{} }, nil)
	ephemeral := NewEphemeralManager()
	r := NewReducer(types.Identity{PeerID: "me"}, channels, peers, docs, ephemeral, denyAllPermissions{}, nil, &fakeLogger{})

	channels.Add("ch-1")
	channels.Establish("ch-1", "peer-a")
	peers.EnsurePeer(types.Identity{PeerID: "peer-a"}, "ch-1")

	cmd := r.Update(types.ChannelReceiveMessage{
		FromChannelID: "ch-1",
		Message:       types.SyncRequest{DocID: "doc-1"},
	})
	if cmd != nil {
		t.Fatalf("expected permission denial to silently suppress the response, got %#v", cmd)
	}
}

type denyAllPermissions struct{}

func (denyAllPermissions) Read(types.DocID, types.Identity) bool  { return false }
func (denyAllPermissions) Write(types.DocID, types.Identity) bool { return false }
