package types

// CommandKind tags the executor's closed command set (§4.2).
type CommandKind string

const (
	CommandSend              CommandKind = "send"
	CommandSendEstablishment CommandKind = "send-establishment-message"
	CommandImportDocData     CommandKind = "import-doc-data"
	CommandApplyEphemeral    CommandKind = "apply-ephemeral"
	CommandBatch             CommandKind = "batch"
)

// Command is emitted by the reducer and interpreted by the executor. A
// reducer step emits at most one Command (possibly a Batch wrapping several
// — §2 "emits zero or one command (possibly a batch)").
type Command interface {
	CommandKind() CommandKind
}

// Send passes message to the outbound batcher for channelID (§4.3); it may
// be coalesced with other Sends on the same channel within the current
// dispatch cycle.
type Send struct {
	ChannelID ChannelID
	Message   WireMessage
}

func (Send) CommandKind() CommandKind { return CommandSend }

// SendEstablishment sends message immediately, bypassing the batcher: it
// must be the first thing written to a freshly-added channel (§4.3 rule 1).
type SendEstablishment struct {
	ChannelID ChannelID
	Message   WireMessage
}

func (SendEstablishment) CommandKind() CommandKind { return CommandSendEstablishment }

// ImportDocData asks the executor to call Doc.Import(data), then dispatch
// DocImported back into the receive queue once it completes (§4.1.3 step 3,
// §4.2).
type ImportDocData struct {
	DocID      DocID
	Data       []byte
	FromPeerID PeerID
}

func (ImportDocData) CommandKind() CommandKind { return CommandImportDocData }

// ApplyEphemeral asks the executor to merge each frame into the matching
// (DocID, Namespace) ephemeral store (§4.2, §4.5).
type ApplyEphemeral struct {
	DocID  DocID
	Stores []EphemeralFrame
}

func (ApplyEphemeral) CommandKind() CommandKind { return CommandApplyEphemeral }

// BatchCommand executes its Commands in order (§4.2). Named distinctly
// from the wire-level Batch message (wire.go) since both live in this
// package.
type BatchCommand struct {
	Commands []Command
}

func (BatchCommand) CommandKind() CommandKind { return CommandBatch }
