package transport

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Frame kind headers, applied above a byte-oriented connection's own
// framing (§6.1.1). A complete frame never needs reassembly; header/data
// pairs carry a logical message that exceeded the adapter's fragment
// threshold.
const (
	frameKindComplete byte = 0x00
	frameKindHeader   byte = 0x01
	frameKindData     byte = 0x02
)

// batchSeq hands out the batchId tagging each fragmented message, so a
// Reassembler can tell a late straggler from a superseding retransmit apart
// from a fresh message's own chunks (§6.1.1: "header: batchId, index,
// total" / "data: batchId, index, payload").
var batchSeq uint32

// Fragment splits data into complete or header+data frames no larger than
// maxSize. A payload at or under maxSize is emitted as a single
// frameKindComplete frame; anything larger is split into one
// frameKindHeader frame (carrying a batchId, the total byte count, and the
// chunk count) followed by frameKindData frames each tagged with the same
// batchId and its own index, so the receiver can reassemble them regardless
// of delivery order (§6.1.1).
func Fragment(data []byte, maxSize int) []Frame {
	if maxSize <= 0 || len(data) <= maxSize {
		out := make(Frame, 1+len(data))
		out[0] = frameKindComplete
		copy(out[1:], data)
		return []Frame{out}
	}

	batchID := atomic.AddUint32(&batchSeq, 1)
	numChunks := (len(data) + maxSize - 1) / maxSize

	var frames []Frame
	header := make(Frame, 13)
	header[0] = frameKindHeader
	binary.BigEndian.PutUint32(header[1:5], batchID)
	binary.BigEndian.PutUint32(header[5:9], uint32(len(data)))
	binary.BigEndian.PutUint32(header[9:13], uint32(numChunks))
	frames = append(frames, header)

	for i := 0; i < numChunks; i++ {
		offset := i * maxSize
		end := offset + maxSize
		if end > len(data) {
			end = len(data)
		}
		chunk := make(Frame, 9+(end-offset))
		chunk[0] = frameKindData
		binary.BigEndian.PutUint32(chunk[1:5], batchID)
		binary.BigEndian.PutUint32(chunk[5:9], uint32(i))
		copy(chunk[9:], data[offset:end])
		frames = append(frames, chunk)
	}
	return frames
}

// reassemblyState accumulates frameKindData chunks for one channel, indexed
// by their batch index rather than arrival order, until every chunk up to
// numChunks has been seen. batchID pins it to the one fragmented message it
// belongs to so a stray chunk from a superseding batch can't corrupt it.
type reassemblyState struct {
	batchID   uint32
	total     int
	numChunks int
	chunks    map[uint32][]byte
}

// Reassembler keeps per-channel fragment buffers so any-order delivery
// within one logical message is tolerated, per §6.1.1. It is safe for
// concurrent use by multiple adapter goroutines, one per channel.
type Reassembler struct {
	mu    sync.Mutex
	state map[types.ChannelID]*reassemblyState
}

// NewReassembler constructs an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{state: make(map[types.ChannelID]*reassemblyState)}
}

// Feed consumes one frame received on channelID. It returns the complete
// logical payload and true once the message is fully reassembled (or
// immediately for a frameKindComplete frame); otherwise it returns
// (nil, false) and keeps buffering.
func (r *Reassembler) Feed(channelID types.ChannelID, frame Frame) ([]byte, bool, error) {
	if len(frame) == 0 {
		return nil, false, fmt.Errorf("transport: empty frame on channel %s", channelID)
	}

	switch frame[0] {
	case frameKindComplete:
		return frame[1:], true, nil

	case frameKindHeader:
		if len(frame) < 13 {
			return nil, false, fmt.Errorf("transport: truncated header frame on channel %s", channelID)
		}
		batchID := binary.BigEndian.Uint32(frame[1:5])
		total := int(binary.BigEndian.Uint32(frame[5:9]))
		numChunks := int(binary.BigEndian.Uint32(frame[9:13]))
		r.mu.Lock()
		r.state[channelID] = &reassemblyState{batchID: batchID, total: total, numChunks: numChunks, chunks: make(map[uint32][]byte, numChunks)}
		r.mu.Unlock()
		return nil, false, nil

	case frameKindData:
		if len(frame) < 9 {
			return nil, false, fmt.Errorf("transport: truncated data frame on channel %s", channelID)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		st, ok := r.state[channelID]
		if !ok {
			return nil, false, fmt.Errorf("transport: data frame with no preceding header on channel %s", channelID)
		}
		batchID := binary.BigEndian.Uint32(frame[1:5])
		if batchID != st.batchID {
			return nil, false, fmt.Errorf("transport: data frame for batch %d while reassembling batch %d on channel %s", batchID, st.batchID, channelID)
		}
		index := binary.BigEndian.Uint32(frame[5:9])
		if _, dup := st.chunks[index]; !dup {
			st.chunks[index] = append([]byte(nil), frame[9:]...)
		}
		if len(st.chunks) < st.numChunks {
			return nil, false, nil
		}
		buf := make([]byte, 0, st.total)
		for i := uint32(0); i < uint32(st.numChunks); i++ {
			chunk, ok := st.chunks[i]
			if !ok {
				return nil, false, fmt.Errorf("transport: missing chunk %d reassembling channel %s", i, channelID)
			}
			buf = append(buf, chunk...)
		}
		delete(r.state, channelID)
		return buf, true, nil

	default:
		return nil, false, fmt.Errorf("transport: unknown frame kind 0x%02x on channel %s", frame[0], channelID)
	}
}

// Drop discards any partial reassembly state held for channelID, called
// when a channel closes mid-fragment (§3, channel teardown).
func (r *Reassembler) Drop(channelID types.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, channelID)
}
