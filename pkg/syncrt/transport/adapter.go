// Package transport provides reference channel adapters (component J,
// §6.2) that turn a byte-oriented connection into Synchronizer.Receive/
// ChannelAdded/ChannelRemoved calls, and turn outbound WireMessage values
// into framed bytes. Both adapters in this package share the fragment
// reassembler in fragment.go.
package transport

import "github.com/nwillc/syncrt/pkg/syncrt/types"

// Sink is the subset of Synchronizer an adapter needs to deliver into.
// Kept as its own interface here (rather than importing pkg/syncrt, which
// would create an import cycle) so adapters depend only on types.
type Sink interface {
	ChannelAdded(id types.ChannelID)
	ChannelRemoved(id types.ChannelID)
	Receive(channelID types.ChannelID, msg types.WireMessage)
}

// Frame is one logical, possibly-fragmented unit handed to or received
// from a byte-oriented transport, after codec encoding but before §6.1.1
// fragmentation is applied.
type Frame []byte
