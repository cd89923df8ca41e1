package types

// MsgType tags the reducer's input taxonomy (§4.1, "Message taxonomy").
type MsgType string

const (
	MsgChannelAdded         MsgType = "channel-added"
	MsgChannelRemoved       MsgType = "channel-removed"
	MsgChannelReceiveMsg    MsgType = "channel-receive-message"
	MsgLocalDocChange       MsgType = "local-doc-change"
	MsgDocImported          MsgType = "doc-imported"
	MsgSubscribe            MsgType = "subscribe"
	MsgUnsubscribe          MsgType = "unsubscribe"
	MsgHeartbeatTick        MsgType = "heartbeat-tick"
)

// Msg is the reducer's sole input type. update(msg, model) is implemented
// as an exhaustive switch over MsgType (§4.1, Design Notes §9).
type Msg interface {
	MsgType() MsgType
}

// ChannelAdded reports a new transport channel, not yet bound to a peer.
type ChannelAdded struct {
	ChannelID ChannelID
}

func (ChannelAdded) MsgType() MsgType { return MsgChannelAdded }

// ChannelRemoved reports that a channel's transport closed.
type ChannelRemoved struct {
	ChannelID ChannelID
}

func (ChannelRemoved) MsgType() MsgType { return MsgChannelRemoved }

// ChannelReceiveMessage wraps a framed wire message delivered on a channel.
type ChannelReceiveMessage struct {
	FromChannelID ChannelID
	Message       WireMessage
}

func (ChannelReceiveMessage) MsgType() MsgType { return MsgChannelReceiveMsg }

// LocalDocChange reports a local-origin commit on DocID (§4.1.5).
type LocalDocChange struct {
	DocID DocID
}

func (LocalDocChange) MsgType() MsgType { return MsgLocalDocChange }

// DocImported reports that the executor finished importing inbound bytes
// from FromPeerID into DocID (§4.1.4).
type DocImported struct {
	DocID      DocID
	FromPeerID PeerID
}

func (DocImported) MsgType() MsgType { return MsgDocImported }

// Subscribe is application intent to start streaming DocID.
type Subscribe struct {
	DocID DocID
}

func (Subscribe) MsgType() MsgType { return MsgSubscribe }

// Unsubscribe is application intent to stop streaming DocID.
type Unsubscribe struct {
	DocID DocID
}

func (Unsubscribe) MsgType() MsgType { return MsgUnsubscribe }

// HeartbeatTick is emitted by the orchestrator's heartbeat ticker (§4.6).
// It is a supplement to spec.md's message taxonomy needed to keep the
// heartbeat a pure reducer input rather than a side-effecting timer
// callback; it carries no payload because the reducer derives everything
// it needs (which documents have ephemeral state) from the registries it
// already owns.
type HeartbeatTick struct{}

func (HeartbeatTick) MsgType() MsgType { return MsgHeartbeatTick }
