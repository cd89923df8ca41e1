package types

// WireType tags the variants carried inside channel-receive-message (§4.1,
// "Wire message taxonomy").
type WireType string

const (
	WireEstablishRequest  WireType = "establish-request"
	WireEstablishResponse WireType = "establish-response"
	WireSyncRequest       WireType = "sync-request"
	WireSyncResponse      WireType = "sync-response"
	WireUpdate            WireType = "update"
	WireEphemeral         WireType = "ephemeral"
	WireBatch             WireType = "batch"
)

// WireMessage is the closed set of messages exchanged between runtimes.
// Implementations are exhaustively switched on in the reducer; an unknown
// tag arriving off the wire is a protocol error (§7 point 2), never a panic.
type WireMessage interface {
	WireType() WireType
}

// EstablishRequest opens a channel's handshake (§4.1.1).
type EstablishRequest struct {
	Identity Identity `json:"identity"`
}

func (EstablishRequest) WireType() WireType { return WireEstablishRequest }

// EstablishResponse completes a channel's handshake.
type EstablishResponse struct {
	Identity Identity `json:"identity"`
}

func (EstablishResponse) WireType() WireType { return WireEstablishResponse }

// SyncRequest asks a peer for everything past RequesterVersion (§4.1.2).
type SyncRequest struct {
	DocID            DocID        `json:"docId"`
	RequesterVersion VersionVector `json:"requesterDocVersion"`
	Bidirectional    bool         `json:"bidirectional"`
}

func (SyncRequest) WireType() WireType { return WireSyncRequest }

// TransmissionType is the payload variant inside a sync-response/update.
type TransmissionType string

const (
	TransmissionSnapshot    TransmissionType = "snapshot"
	TransmissionUpdate      TransmissionType = "update"
	TransmissionUpToDate    TransmissionType = "up-to-date"
	TransmissionUnavailable TransmissionType = "unavailable"
)

// Transmission is the payload shape shared by sync-response and update
// (§4.1, "sync-response").
type Transmission struct {
	Type    TransmissionType `json:"type"`
	Data    []byte           `json:"data,omitempty"`
	Version VersionVector    `json:"version,omitempty"`
}

// EphemeralFrame is one peer's opaque ephemeral payload for one namespace,
// as carried inline in a sync-response or standalone in an ephemeral
// message (§4.1, §4.5).
type EphemeralFrame struct {
	PeerID    PeerID    `json:"peerId"`
	Namespace Namespace `json:"namespace"`
	Data      []byte    `json:"data"`
}

// SyncResponse answers a SyncRequest.
type SyncResponse struct {
	DocID        DocID            `json:"docId"`
	Transmission Transmission     `json:"transmission"`
	Ephemeral    []EphemeralFrame `json:"ephemeral,omitempty"`
}

func (SyncResponse) WireType() WireType { return WireSyncResponse }

// Update carries an ongoing delta for a document a peer already has.
type Update struct {
	DocID        DocID        `json:"docId"`
	Transmission Transmission `json:"transmission"`
}

func (Update) WireType() WireType { return WireUpdate }

// Ephemeral is a standalone ephemeral broadcast (heartbeat, §4.5/§4.6).
type Ephemeral struct {
	DocID  DocID            `json:"docId"`
	Stores []EphemeralFrame `json:"stores"`
}

func (Ephemeral) WireType() WireType { return WireEphemeral }

// Batch is an opaque container unwrapped before dispatch (§4.1, §4.3).
type Batch struct {
	Messages []WireMessage `json:"messages"`
}

func (Batch) WireType() WireType { return WireBatch }
