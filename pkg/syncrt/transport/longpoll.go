package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nwillc/syncrt/pkg/syncrt/codec"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// longPollDefaultWait is the hint returned to a client that asked with no
// explicit "wait" query parameter (§6.2).
const longPollDefaultWait = 25 * time.Second

// outboundMailbox buffers frames queued for one channel between polls.
type outboundMailbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	data [][]byte
}

func newOutboundMailbox() *outboundMailbox {
	m := &outboundMailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *outboundMailbox) push(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, data)
	m.cond.Signal()
}

func (m *outboundMailbox) drain(wait time.Duration) [][]byte {
	deadline := time.Now().Add(wait)
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.data) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.AfterFunc(remaining, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		m.cond.Wait()
		timer.Stop()
	}
	out := m.data
	m.data = nil
	return out
}

// LongPollAdapter exposes HTTP long-polling endpoints for channels that
// cannot hold a persistent full-duplex connection (§6.4). Each remote peer
// opens a channel by POSTing to /open, then alternates POST /send (frames
// it produced) with GET /poll?channel=...&wait=... (frames queued for it).
type LongPollAdapter struct {
	sink    Sink
	log     types.Logger
	reasm   *Reassembler
	maxSize int

	mu        sync.Mutex
	mailboxes map[types.ChannelID]*outboundMailbox
}

// NewLongPollAdapter constructs an adapter reporting traffic to sink.
func NewLongPollAdapter(sink Sink, log types.Logger) *LongPollAdapter {
	return &LongPollAdapter{
		sink:      sink,
		log:       log,
		reasm:     NewReassembler(),
		maxSize:   defaultMaxFrameSize,
		mailboxes: make(map[types.ChannelID]*outboundMailbox),
	}
}

// Send queues msg for delivery on channelID's next poll.
func (a *LongPollAdapter) Send(channelID types.ChannelID, msg types.WireMessage) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("longpoll adapter: encoding %s: %w", msg.WireType(), err)
	}
	a.mu.Lock()
	mb, ok := a.mailboxes[channelID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("longpoll adapter: unknown channel %s", channelID)
	}
	for _, frame := range Fragment(data, a.maxSize) {
		mb.push(frame)
	}
	return nil
}

// HandleOpen mints a fresh ChannelID for the caller and reports
// ChannelAdded. Grounded in the §6.2 requirement that byte-oriented
// transports still produce the same ChannelAdded/ChannelRemoved lifecycle
// a full-duplex adapter would.
func (a *LongPollAdapter) HandleOpen(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(uuid.NewString())
	a.mu.Lock()
	a.mailboxes[channelID] = newOutboundMailbox()
	a.mu.Unlock()

	a.sink.ChannelAdded(channelID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		ChannelID types.ChannelID `json:"channelId"`
	}{ChannelID: channelID})
}

// HandleSend accepts one framed chunk for an already-open channel.
func (a *LongPollAdapter) HandleSend(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(r.URL.Query().Get("channel"))
	if channelID == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed reading body", http.StatusBadRequest)
		return
	}

	payload, complete, err := a.reasm.Feed(channelID, Frame(body))
	if err != nil {
		a.log.Errorf("longpoll adapter: channel %s: %v", channelID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !complete {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	msg, err := codec.Decode(payload)
	if err != nil {
		a.log.Errorf("longpoll adapter: channel %s: decoding: %v", channelID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.sink.Receive(channelID, msg)
	w.WriteHeader(http.StatusOK)
}

// HandlePoll blocks up to the "wait" query parameter (or
// longPollDefaultWait) for queued frames, returning them as a JSON array
// with each frame's bytes base64-encoded, as encoding/json does for
// []byte (§6.2's "wait" hint).
func (a *LongPollAdapter) HandlePoll(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(r.URL.Query().Get("channel"))
	a.mu.Lock()
	mb, ok := a.mailboxes[channelID]
	a.mu.Unlock()
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	wait := longPollDefaultWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			wait = d
		}
	}

	frames := mb.drain(wait)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(frames)
}

// HandleClose tears down channelID's mailbox and reports ChannelRemoved.
func (a *LongPollAdapter) HandleClose(w http.ResponseWriter, r *http.Request) {
	channelID := types.ChannelID(r.URL.Query().Get("channel"))
	a.mu.Lock()
	delete(a.mailboxes, channelID)
	a.mu.Unlock()
	a.reasm.Drop(channelID)
	a.sink.ChannelRemoved(channelID)
	w.WriteHeader(http.StatusOK)
}
