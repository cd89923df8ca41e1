package synctest

import (
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt"
	"github.com/nwillc/syncrt/pkg/syncrt/definition"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Sink mirrors syncrt.ChannelSink so this package need not import pkg/syncrt
// just for the interface (it already imports syncrt.Synchronizer directly,
// but keeping the alias local matches how transport.Sink is declared).
type Sink interface {
	ChannelAdded(id types.ChannelID)
	ChannelRemoved(id types.ChannelID)
	Receive(channelID types.ChannelID, msg types.WireMessage)
}

// link delivers every Send from one Synchronizer straight into the other's
// Receive, skipping codec/transport entirely — an in-process channel pair,
// the harness equivalent of the teacher's in-memory TCP loopback in
// test/tcp_transport_test.go.
type link struct {
	peer        Sink
	channelID   types.ChannelID
	peerChannel types.ChannelID
}

func (l *link) send(channelID types.ChannelID, msg types.WireMessage) error {
	l.peer.Receive(l.peerChannel, msg)
	return nil
}

// Node is one synchronizer plus the identity/config it was built from,
// wired into a Pair.
type Node struct {
	Identity types.Identity
	Sync     *syncrt.Synchronizer
	Metrics  *definition.Metrics
	DocFn    func(types.DocID) types.Doc
}

// NewNode returns a Node with a user-type identity named name and an
// unregistered Metrics. It does not construct a Synchronizer: Sync and
// DocFn are left nil for the caller to fill in (NewPair builds its two
// Synchronizers directly instead).
func NewNode(name string) *Node {
	identity := types.Identity{PeerID: types.PeerID(name), Name: name, Type: types.PeerTypeUser}
	return &Node{Identity: identity, Metrics: definition.NewMetrics(nil)}
}

// Pair wires two Synchronizers together over an in-process link and
// performs the establish handshake, analogous to the teacher's
// CreateCluster(2, ...) used in its simplest tests.
type Pair struct {
	A, B                     *syncrt.Synchronizer
	AMetrics, BMetrics       *definition.Metrics
	ChannelOnA, ChannelOnB   types.ChannelID
}

// NewPair builds two Synchronizers (identities "alice"/"bob") sharing
// FakeDoc as their document factory, connects a bidirectional in-process
// channel between them, and waits briefly for the establish handshake to
// settle before returning.
func NewPair() *Pair {
	ma := definition.NewMetrics(nil)
	mb := definition.NewMetrics(nil)

	identityA := types.Identity{PeerID: "alice", Name: "alice", Type: types.PeerTypeUser}
	identityB := types.Identity{PeerID: "bob", Name: "bob", Type: types.PeerTypeUser}

	chA := types.ChannelID("a-to-b")
	chB := types.ChannelID("b-to-a")

	var a, b *syncrt.Synchronizer

	cfgA := syncrt.DefaultConfig(identityA, NewFakeDoc)
	cfgA.Metrics = ma
	cfgA.Logger = definition.NewDefaultLogger()
	a = syncrt.NewSynchronizer(cfgA, func(channelID types.ChannelID, msg types.WireMessage) error {
		b.Receive(chB, msg)
		return nil
	})

	cfgB := syncrt.DefaultConfig(identityB, NewFakeDoc)
	cfgB.Metrics = mb
	cfgB.Logger = definition.NewDefaultLogger()
	b = syncrt.NewSynchronizer(cfgB, func(channelID types.ChannelID, msg types.WireMessage) error {
		a.Receive(chA, msg)
		return nil
	})

	a.ChannelAdded(chA)
	b.ChannelAdded(chB)

	time.Sleep(20 * time.Millisecond)

	return &Pair{A: a, B: b, AMetrics: ma, BMetrics: mb, ChannelOnA: chA, ChannelOnB: chB}
}

// Stop tears down both synchronizers.
func (p *Pair) Stop() {
	p.A.Stop()
	p.B.Stop()
}
