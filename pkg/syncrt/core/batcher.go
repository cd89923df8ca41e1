package core

import (
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// SendFunc delivers one already-framed wire message to a channel. The
// batcher never touches the transport directly; it is handed a SendFunc by
// the executor so it stays independent of any concrete adapter.
type SendFunc func(channelID types.ChannelID, msg types.WireMessage) error

// Batcher coalesces sends to the same channel within a single dispatch
// cycle into one channel/batch wire message, preserving enqueue order
// (component F, §4.3). Establishment messages always flush immediately and
// are never batched (§4.3 rule 1).
type Batcher struct {
	mu      sync.Mutex
	pending map[types.ChannelID][]types.WireMessage
	order   []types.ChannelID
	send    SendFunc
	log     types.Logger
}

// NewBatcher constructs a batcher that flushes through send.
func NewBatcher(send SendFunc, log types.Logger) *Batcher {
	return &Batcher{pending: make(map[types.ChannelID][]types.WireMessage), send: send, log: log}
}

// Enqueue stages msg for channelID; it will go out with the rest of this
// cycle's traffic to the same channel when Flush runs.
func (b *Batcher) Enqueue(channelID types.ChannelID, msg types.WireMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[channelID]; !ok {
		b.order = append(b.order, channelID)
	}
	b.pending[channelID] = append(b.pending[channelID], msg)
}

// SendEstablishment bypasses batching entirely: establishment messages must
// be the first thing written to a newly established channel (§4.3 rule 1).
func (b *Batcher) SendEstablishment(channelID types.ChannelID, msg types.WireMessage) error {
	return b.send(channelID, msg)
}

// Flush sends every channel's pending messages, one wire message per
// channel — a bare message if only one was staged, or a types.Batch
// preserving enqueue order otherwise. Called once at the end of every
// dispatch cycle (reducer step plus all its commands).
func (b *Batcher) Flush() {
	b.mu.Lock()
	order := b.order
	pending := b.pending
	b.order = nil
	b.pending = make(map[types.ChannelID][]types.WireMessage)
	b.mu.Unlock()

	for _, channelID := range order {
		msgs := pending[channelID]
		if len(msgs) == 0 {
			continue
		}
		var out types.WireMessage
		if len(msgs) == 1 {
			out = msgs[0]
		} else {
			out = types.Batch{Messages: msgs}
		}
		if err := b.send(channelID, out); err != nil && b.log != nil {
			b.log.Errorf("failed sending to channel %s: %v", channelID, err)
		}
	}
}
