package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nwillc/syncrt/pkg/syncrt/codec"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// defaultMaxFrameSize bounds a single WebSocket write so one logical
// sync-response (potentially a full document snapshot) does not block the
// connection's write buffer for an extended stretch. §6.4.
const defaultMaxFrameSize = 32 * 1024

// WebSocketAdapter is a full-duplex channel adapter over
// gorilla/websocket. One adapter instance owns exactly one *websocket.Conn
// and reports exactly one ChannelID's worth of traffic to its Sink (§6.4).
type WebSocketAdapter struct {
	channelID types.ChannelID
	conn      *websocket.Conn
	sink      Sink
	reasm     *Reassembler
	log       types.Logger

	writeMu sync.Mutex
	maxSize int
}

// NewWebSocketAdapter wraps an already-established *websocket.Conn (either
// side of the handshake — gorilla makes no distinction once upgraded) and
// reports its traffic to sink under channelID. It calls sink.ChannelAdded
// immediately; callers should already have minted channelID via whatever
// scheme the embedding application uses for channel identity.
func NewWebSocketAdapter(channelID types.ChannelID, conn *websocket.Conn, sink Sink, log types.Logger) *WebSocketAdapter {
	a := &WebSocketAdapter{
		channelID: channelID,
		conn:      conn,
		sink:      sink,
		reasm:     NewReassembler(),
		log:       log,
		maxSize:   defaultMaxFrameSize,
	}
	sink.ChannelAdded(channelID)
	return a
}

// Send encodes msg and writes it to the connection, fragmenting per
// §6.1.1 if it exceeds the adapter's frame threshold.
func (a *WebSocketAdapter) Send(channelID types.ChannelID, msg types.WireMessage) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("websocket adapter: encoding %s: %w", msg.WireType(), err)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	for _, frame := range Fragment(data, a.maxSize) {
		if err := a.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("websocket adapter: writing to channel %s: %w", channelID, err)
		}
	}
	return nil
}

// Run reads frames until the connection closes or errors, reassembling
// and delivering each complete logical message to the Sink. It blocks and
// should be run on its own goroutine; it reports ChannelRemoved exactly
// once on return.
func (a *WebSocketAdapter) Run() {
	defer func() {
		a.reasm.Drop(a.channelID)
		a.sink.ChannelRemoved(a.channelID)
	}()

	for {
		kind, data, err := a.conn.ReadMessage()
		if err != nil {
			a.log.Debugf("websocket adapter: channel %s closed: %v", a.channelID, err)
			return
		}
		if kind != websocket.BinaryMessage {
			a.log.Warnf("websocket adapter: channel %s received non-binary frame, ignoring", a.channelID)
			continue
		}

		payload, complete, err := a.reasm.Feed(a.channelID, Frame(data))
		if err != nil {
			a.log.Errorf("websocket adapter: channel %s: %v", a.channelID, err)
			continue
		}
		if !complete {
			continue
		}

		msg, err := codec.Decode(payload)
		if err != nil {
			a.log.Errorf("websocket adapter: channel %s: decoding: %v", a.channelID, err)
			continue
		}
		a.sink.Receive(a.channelID, msg)
	}
}
