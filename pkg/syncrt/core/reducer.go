package core

import (
	"errors"

	"github.com/nwillc/syncrt/pkg/syncrt/definition"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Reducer is the wire reducer (component D): a pure update(msg, model)
// function realized as a single-goroutine actor over the registries it
// owns (§4.1, §5). Every exported behaviour below is one case on
// msg.(type), mirroring the exhaustive switch the teacher's Unity.process
// runs over rpc.Command.
type Reducer struct {
	identity    types.Identity
	channels    *ChannelRegistry
	peers       *PeerRegistry
	docs        *DocumentRegistry
	ephemeral   *EphemeralManager
	permissions types.Permissions
	metrics     *definition.Metrics
	log         types.Logger
	localSubs   *localSubscriptionSet
}

// NewReducer wires a Reducer over the given registries. metrics may be nil.
func NewReducer(
	identity types.Identity,
	channels *ChannelRegistry,
	peers *PeerRegistry,
	docs *DocumentRegistry,
	ephemeral *EphemeralManager,
	permissions types.Permissions,
	metrics *definition.Metrics,
	log types.Logger,
) *Reducer {
	return &Reducer{
		identity:    identity,
		channels:    channels,
		peers:       peers,
		docs:        docs,
		ephemeral:   ephemeral,
		permissions: permissions,
		metrics:     metrics,
		log:         log,
		localSubs:   newLocalSubscriptionSet(),
	}
}

// Update is the reducer's entry point: update(msg, model) -> command (§4.1).
func (r *Reducer) Update(msg types.Msg) types.Command {
	switch m := msg.(type) {
	case types.ChannelAdded:
		return r.handleChannelAdded(m.ChannelID)
	case types.ChannelRemoved:
		return r.handleChannelRemoved(m.ChannelID)
	case types.ChannelReceiveMessage:
		return r.handleReceive(m.FromChannelID, m.Message)
	case types.LocalDocChange:
		return r.handleLocalDocChange(m.DocID)
	case types.DocImported:
		return r.handleDocImported(m.DocID, m.FromPeerID)
	case types.Subscribe:
		return r.handleSubscribe(m.DocID)
	case types.Unsubscribe:
		return r.handleUnsubscribe(m.DocID)
	case types.HeartbeatTick:
		return r.handleHeartbeatTick()
	default:
		r.log.Warnf("unknown reducer message type %T", msg)
		return nil
	}
}

// --- §4.1.1 Channel establishment ---------------------------------------

func (r *Reducer) handleChannelAdded(channelID types.ChannelID) types.Command {
	r.channels.Add(channelID)
	return types.SendEstablishment{
		ChannelID: channelID,
		Message:   types.EstablishRequest{Identity: r.identity},
	}
}

func (r *Reducer) handleChannelRemoved(channelID types.ChannelID) types.Command {
	ch, ok := r.channels.Remove(channelID)
	if !ok {
		return nil
	}
	if ch.PeerID != "" {
		r.peers.RemoveChannel(ch.PeerID, channelID)
		r.peers.GCIfUnreferenced(ch.PeerID)
	}
	return nil
}

func (r *Reducer) handleEstablishRequest(channelID types.ChannelID, m types.EstablishRequest) types.Command {
	if ch, ok := r.channels.Get(channelID); ok && ch.Status == ChannelEstablished && ch.PeerID != m.Identity.PeerID {
		r.log.Warnf("channel %s already established with a different peer, dropping re-establish", channelID)
		return nil
	}
	r.channels.Establish(channelID, m.Identity.PeerID)
	r.peers.EnsurePeer(m.Identity, channelID)
	r.metrics.ChannelEstablished()
	return types.SendEstablishment{
		ChannelID: channelID,
		Message:   types.EstablishResponse{Identity: r.identity},
	}
}

func (r *Reducer) handleEstablishResponse(channelID types.ChannelID, m types.EstablishResponse) types.Command {
	if ch, ok := r.channels.Get(channelID); ok && ch.Status == ChannelEstablished && ch.PeerID != m.Identity.PeerID {
		r.log.Warnf("channel %s already established with a different peer, dropping re-establish", channelID)
		return nil
	}
	r.channels.Establish(channelID, m.Identity.PeerID)
	r.peers.EnsurePeer(m.Identity, channelID)
	r.metrics.ChannelEstablished()
	return nil
}

// --- §4.1 "Wire message taxonomy" dispatch ------------------------------

func (r *Reducer) handleReceive(fromChannelID types.ChannelID, msg types.WireMessage) types.Command {
	switch m := msg.(type) {
	case types.EstablishRequest:
		return r.handleEstablishRequest(fromChannelID, m)
	case types.EstablishResponse:
		return r.handleEstablishResponse(fromChannelID, m)
	case types.SyncRequest:
		if !r.channels.IsEstablished(fromChannelID) {
			r.log.Warnf("sync-request on non-established channel %s, dropping", fromChannelID)
			return nil
		}
		return r.handleSyncRequest(fromChannelID, m)
	case types.SyncResponse:
		if !r.channels.IsEstablished(fromChannelID) {
			r.log.Warnf("sync-response on non-established channel %s, dropping", fromChannelID)
			return nil
		}
		return r.handleTransmission(fromChannelID, m.DocID, m.Transmission, m.Ephemeral)
	case types.Update:
		if !r.channels.IsEstablished(fromChannelID) {
			r.log.Warnf("update on non-established channel %s, dropping", fromChannelID)
			return nil
		}
		return r.handleTransmission(fromChannelID, m.DocID, m.Transmission, nil)
	case types.Ephemeral:
		if !r.channels.IsEstablished(fromChannelID) {
			r.log.Warnf("ephemeral on non-established channel %s, dropping", fromChannelID)
			return nil
		}
		return r.handleEphemeralMsg(fromChannelID, m)
	case types.Batch:
		return r.handleWireBatch(fromChannelID, m)
	default:
		r.log.Warnf("unknown wire message type %T on channel %s", msg, fromChannelID)
		return nil
	}
}

func (r *Reducer) handleWireBatch(fromChannelID types.ChannelID, b types.Batch) types.Command {
	var cmds []types.Command
	for _, inner := range b.Messages {
		if c := r.handleReceive(fromChannelID, inner); c != nil {
			cmds = append(cmds, c)
		}
	}
	return collapse(cmds)
}

// --- §4.1.2 Subscription and sync-request -------------------------------

func (r *Reducer) handleSubscribe(docID types.DocID) types.Command {
	r.docs.Ensure(docID)
	r.localSubs.Add(docID)
	return r.requestSyncFromEstablishedPeers(docID)
}

func (r *Reducer) handleUnsubscribe(docID types.DocID) types.Command {
	r.localSubs.Remove(docID)
	return nil
}

// requestSyncFromEstablishedPeers implements §4.1.2's subscribe rule: ask
// every established channel whose peer is not already known to be
// up-to-date at our current version.
func (r *Reducer) requestSyncFromEstablishedPeers(docID types.DocID) types.Command {
	doc, ok := r.docs.Get(docID)
	if !ok {
		return nil
	}
	ourVersion := doc.Version()

	var cmds []types.Command
	for _, ch := range r.channels.All() {
		if ch.Status != ChannelEstablished {
			continue
		}
		state, known := r.peers.DocSyncState(ch.PeerID, docID)
		if known && state.Status == StatusSynced && state.LastKnownVersion.Equal(ourVersion) {
			continue
		}
		cmds = append(cmds, types.Send{
			ChannelID: ch.ID,
			Message: types.SyncRequest{
				DocID:            docID,
				RequesterVersion: ourVersion,
				Bidirectional:    true,
			},
		})
		r.metrics.SyncRequestSent()
	}
	return collapse(cmds)
}

func (r *Reducer) handleSyncRequest(fromChannelID types.ChannelID, req types.SyncRequest) types.Command {
	ch, _ := r.channels.Get(fromChannelID)
	peer, ok := r.peers.Get(ch.PeerID)
	if !ok {
		r.log.Warnf("sync-request from channel %s with no peer entry", fromChannelID)
		return nil
	}
	r.metrics.SyncRequestReceived()

	if !r.permissions.Read(req.DocID, peer.Identity) {
		return nil
	}

	transmission, err := r.buildTransmissionFor(req.DocID, req.RequesterVersion)
	if err != nil {
		r.log.Errorf("failed building transmission for %s to %s: %v", req.DocID, peer.Identity.PeerID, err)
		return nil
	}

	resp := types.SyncResponse{DocID: req.DocID, Transmission: transmission}
	if frames := r.ephemeral.EncodeAll(req.DocID); len(frames) > 0 {
		resp.Ephemeral = frames
	}

	if transmission.Type == types.TransmissionUnavailable {
		// We told the requester we don't have this doc either — it must
		// not be marked synced, or the next local-doc-change would push it
		// an Update for a document it was never given (§8 Scenario 5).
		r.peers.SetDocSyncState(peer.Identity.PeerID, req.DocID, PeerDocSyncState{Status: StatusAbsent})
		return types.Send{ChannelID: fromChannelID, Message: resp}
	}

	if req.Bidirectional {
		r.peers.Subscribe(peer.Identity.PeerID, req.DocID)
	}

	// What the requester told us they had, before we sent them anything
	// (§4.1.2 closing paragraph) — deliberately not our post-send version.
	r.peers.SetDocSyncState(peer.Identity.PeerID, req.DocID, PeerDocSyncState{
		Status:           StatusSynced,
		LastKnownVersion: req.RequesterVersion,
	})

	return types.Send{ChannelID: fromChannelID, Message: resp}
}

// buildTransmissionFor compares requesterVersion against our current state
// of docID and produces the appropriate Transmission (§4.1.2).
func (r *Reducer) buildTransmissionFor(docID types.DocID, requesterVersion types.VersionVector) (types.Transmission, error) {
	if !r.docs.Has(docID) {
		return types.Transmission{Type: types.TransmissionUnavailable}, nil
	}
	doc, _ := r.docs.Get(docID)
	ourVersion := doc.Version()
	if ourVersion.Equal(requesterVersion) {
		return types.Transmission{Type: types.TransmissionUpToDate, Version: ourVersion}, nil
	}

	data, err := doc.Export(types.ExportOptions{Mode: types.ExportUpdate, From: requesterVersion})
	if errors.Is(err, types.ErrNoCommonHistory) {
		data, err = doc.Export(types.ExportOptions{Mode: types.ExportSnapshot})
		if err != nil {
			return types.Transmission{}, err
		}
		r.metrics.BytesExported(len(data))
		return types.Transmission{Type: types.TransmissionSnapshot, Data: data, Version: ourVersion}, nil
	}
	if err != nil {
		return types.Transmission{}, err
	}
	r.metrics.BytesExported(len(data))
	return types.Transmission{Type: types.TransmissionUpdate, Data: data, Version: ourVersion}, nil
}

// --- §4.1.3 Applying inbound transmissions ------------------------------

func (r *Reducer) handleTransmission(channelID types.ChannelID, docID types.DocID, t types.Transmission, ephemeralFrames []types.EphemeralFrame) types.Command {
	ch, ok := r.channels.Get(channelID)
	if !ok || ch.Status != ChannelEstablished {
		r.log.Warnf("dropping transmission for %s on non-established channel %s", docID, channelID)
		return nil
	}
	peer, ok := r.peers.Get(ch.PeerID)
	if !ok {
		r.log.Warnf("dropping transmission for %s from unknown peer on channel %s", docID, channelID)
		return nil
	}

	// sync-response/update always implicitly open a doc entry, even if we
	// have never seen this DocID before (§4.1.3 step 2 exception).
	r.docs.Ensure(docID)

	if !r.permissions.Write(docID, peer.Identity) {
		return nil
	}

	var cmds []types.Command
	switch t.Type {
	case types.TransmissionUpToDate:
		r.peers.SetDocSyncState(peer.Identity.PeerID, docID, PeerDocSyncState{
			Status:           StatusSynced,
			LastKnownVersion: t.Version,
		})
	case types.TransmissionUnavailable:
		r.peers.SetDocSyncState(peer.Identity.PeerID, docID, PeerDocSyncState{Status: StatusAbsent})
	case types.TransmissionSnapshot, types.TransmissionUpdate:
		r.metrics.BytesImported(len(t.Data))
		cmds = append(cmds, types.ImportDocData{DocID: docID, Data: t.Data, FromPeerID: peer.Identity.PeerID})
	default:
		r.log.Warnf("unknown transmission type %q for %s", t.Type, docID)
	}

	if len(ephemeralFrames) > 0 {
		cmds = append(cmds, types.ApplyEphemeral{DocID: docID, Stores: ephemeralFrames})
	}

	return collapse(cmds)
}

func (r *Reducer) handleEphemeralMsg(channelID types.ChannelID, m types.Ephemeral) types.Command {
	ch, ok := r.channels.Get(channelID)
	if !ok || ch.Status != ChannelEstablished {
		return nil
	}
	peer, ok := r.peers.Get(ch.PeerID)
	if !ok {
		return nil
	}
	if !r.permissions.Write(m.DocID, peer.Identity) {
		return nil
	}
	if len(m.Stores) == 0 {
		return nil
	}
	return types.ApplyEphemeral{DocID: m.DocID, Stores: m.Stores}
}

// --- §4.1.4 Echo suppression / doc-imported -----------------------------

func (r *Reducer) handleDocImported(docID types.DocID, fromPeerID types.PeerID) types.Command {
	doc, ok := r.docs.Get(docID)
	if !ok {
		r.log.Warnf("doc-imported for unknown document %s", docID)
		return nil
	}
	ourVersion := doc.Version()

	r.peers.SetDocSyncState(fromPeerID, docID, PeerDocSyncState{
		Status:           StatusSynced,
		LastKnownVersion: ourVersion,
	})

	var cmds []types.Command
	for _, peerID := range r.peers.SubscribersOf(docID) {
		if peerID == fromPeerID {
			// Just recorded at ourVersion above: sending would echo.
			r.metrics.EchoSuppressed()
			continue
		}
		state, known := r.peers.DocSyncState(peerID, docID)
		alreadyCurrent := known && len(state.LastKnownVersion) > 0 && state.LastKnownVersion.Equal(ourVersion)
		cmd := r.maybeSendUpdate(doc, docID, peerID, ourVersion)
		if cmd != nil {
			cmds = append(cmds, cmd)
		} else if alreadyCurrent {
			r.metrics.EchoSuppressed()
		}
	}
	return collapse(cmds)
}

// --- §4.1.5 local-doc-change ---------------------------------------------

func (r *Reducer) handleLocalDocChange(docID types.DocID) types.Command {
	doc, ok := r.docs.Get(docID)
	if !ok {
		r.log.Warnf("local-doc-change for unknown document %s", docID)
		return nil
	}
	ourVersion := doc.Version()

	var cmds []types.Command
	for _, peerID := range r.peers.SubscribersOf(docID) {
		cmd := r.maybeSendUpdate(doc, docID, peerID, ourVersion)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return collapse(cmds)
}

// maybeSendUpdate is the fan-out rule shared by §4.1.4 and §4.1.5: skip a
// peer already known to hold ourVersion (this is the echo-suppression
// check), otherwise send a delta from their last known version, or a full
// snapshot if we never recorded one for a synced peer. Returns nil without
// sending when the peer isn't reachable, isn't permitted to read, or is
// already up to date.
func (r *Reducer) maybeSendUpdate(doc types.Doc, docID types.DocID, peerID types.PeerID, ourVersion types.VersionVector) types.Command {
	peer, ok := r.peers.Get(peerID)
	if !ok {
		return nil
	}
	if !r.permissions.Read(docID, peer.Identity) {
		return nil
	}
	channelID, ok := r.peers.AnyChannelFor(peerID)
	if !ok {
		return nil
	}
	state, known := r.peers.DocSyncState(peerID, docID)

	var transmission types.Transmission
	switch {
	case known && len(state.LastKnownVersion) > 0 && state.LastKnownVersion.Equal(ourVersion):
		return nil
	case known && len(state.LastKnownVersion) > 0:
		data, err := doc.Export(types.ExportOptions{Mode: types.ExportUpdate, From: state.LastKnownVersion})
		if errors.Is(err, types.ErrNoCommonHistory) {
			data, err = doc.Export(types.ExportOptions{Mode: types.ExportSnapshot})
			if err != nil {
				r.log.Errorf("failed snapshot export for %s: %v", docID, err)
				return nil
			}
			transmission = types.Transmission{Type: types.TransmissionSnapshot, Data: data, Version: ourVersion}
			break
		}
		if err != nil {
			r.log.Errorf("failed update export for %s: %v", docID, err)
			return nil
		}
		transmission = types.Transmission{Type: types.TransmissionUpdate, Data: data, Version: ourVersion}
	case known && state.Status == StatusSynced:
		data, err := doc.Export(types.ExportOptions{Mode: types.ExportSnapshot})
		if err != nil {
			r.log.Errorf("failed snapshot export for %s: %v", docID, err)
			return nil
		}
		transmission = types.Transmission{Type: types.TransmissionSnapshot, Data: data, Version: ourVersion}
	default:
		// peer status unknown or explicitly absent: §4.1.5/Design Notes
		// Open Question — absent peers do NOT auto-receive updates, the
		// peer must re-request (scenario 5).
		return nil
	}

	r.metrics.BytesExported(len(transmission.Data))
	r.peers.SetDocSyncState(peerID, docID, PeerDocSyncState{Status: StatusSynced, LastKnownVersion: ourVersion})
	return types.Send{ChannelID: channelID, Message: types.Update{DocID: docID, Transmission: transmission}}
}

// --- §4.6 Heartbeat -------------------------------------------------------

func (r *Reducer) handleHeartbeatTick() types.Command {
	var cmds []types.Command
	for _, docID := range r.docs.AllIDs() {
		if !r.ephemeral.HasAny(docID) {
			continue
		}
		frames := r.ephemeral.EncodeAll(docID)
		for _, peerID := range r.peers.SubscribersOf(docID) {
			peer, ok := r.peers.Get(peerID)
			if !ok || !r.permissions.Read(docID, peer.Identity) {
				continue
			}
			channelID, ok := r.peers.AnyChannelFor(peerID)
			if !ok {
				continue
			}
			cmds = append(cmds, types.Send{ChannelID: channelID, Message: types.Ephemeral{DocID: docID, Stores: frames}})
			r.metrics.EphemeralBroadcast()
		}
	}
	return collapse(cmds)
}

// collapse turns a command slice into the reducer's "zero or one command
// (possibly a batch)" contract (§2).
func collapse(cmds []types.Command) types.Command {
	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return types.BatchCommand{Commands: cmds}
	}
}
