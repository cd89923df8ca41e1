// Package syncrt is the client-server CRDT document synchronization
// runtime. Synchronizer is the application-facing entry point; everything
// else lives in subpackages the way the teacher splits pkg/mcast into
// core/types/definition.
package syncrt

import (
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt/core"
	"github.com/nwillc/syncrt/pkg/syncrt/definition"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Config holds the operator-facing knobs collected out of the teacher's
// inline literals (§4.8). Zero values are replaced by DefaultConfig's
// values by NewSynchronizer.
type Config struct {
	Identity          types.Identity
	HeartbeatInterval time.Duration
	EphemeralTTL      time.Duration
	DocFactory        types.DocFactory
	Permissions       types.Permissions
	Logger            types.Logger
	Metrics           *definition.Metrics
	Invoker           core.Invoker
}

// DefaultConfig returns a Config for identity and factory with a 10s
// heartbeat interval, a 30s ephemeral TTL, allow-all permissions, the
// logrus-backed default logger, no metrics, and the goroutine invoker
// (§4.8).
func DefaultConfig(identity types.Identity, factory types.DocFactory) Config {
	return Config{
		Identity:          identity,
		HeartbeatInterval: 10 * time.Second,
		EphemeralTTL:      30 * time.Second,
		DocFactory:        factory,
		Permissions:       definition.DefaultPermissions{},
		Logger:            definition.NewDefaultLogger(),
		Metrics:           nil,
		Invoker:           core.DefaultInvoker(),
	}
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.EphemeralTTL <= 0 {
		c.EphemeralTTL = 30 * time.Second
	}
	if c.Permissions == nil {
		c.Permissions = definition.DefaultPermissions{}
	}
	if c.Logger == nil {
		c.Logger = definition.NewDefaultLogger()
	}
	if c.Invoker == nil {
		c.Invoker = core.DefaultInvoker()
	}
	return c
}

// ChannelSink is the minimal contract a transport adapter needs from the
// Synchronizer to deliver inbound traffic and report channel lifecycle
// (component J's local-facing half, §6.2).
type ChannelSink interface {
	ChannelAdded(id types.ChannelID)
	ChannelRemoved(id types.ChannelID)
	Receive(channelID types.ChannelID, msg types.WireMessage)
}

// Synchronizer is the orchestrator wiring every component in §2's table
// together: registries (A/B/C), reducer (D), executor (E), batcher (F),
// receive queue (G), ephemeral manager (H), and the heartbeat ticker (I).
// It is the direct analogue of the teacher's Peer/PartitionPeer, minus the
// total-order broadcast protocol the teacher layers on top.
type Synchronizer struct {
	cfg Config

	channels  *core.ChannelRegistry
	peers     *core.PeerRegistry
	docs      *core.DocumentRegistry
	ephemeral *core.EphemeralManager
	reducer   *core.Reducer
	executor  *core.Executor
	batcher   *core.Batcher
	queue     *core.ReceiveQueue

	send SendFunc

	stopHeartbeat chan struct{}
}

// SendFunc delivers one already-framed wire message to channelID. Supplied
// by whichever transport adapter the caller wires up (§6.2); Synchronizer
// never imports a concrete transport itself.
type SendFunc func(channelID types.ChannelID, msg types.WireMessage) error

// NewSynchronizer wires every component and starts the receive queue's
// dispatch goroutine and the heartbeat ticker. Callers must call Stop when
// finished.
func NewSynchronizer(cfg Config, send SendFunc) *Synchronizer {
	cfg = cfg.withDefaults()

	s := &Synchronizer{cfg: cfg, stopHeartbeat: make(chan struct{})}

	s.channels = core.NewChannelRegistry()
	s.peers = core.NewPeerRegistry()
	s.batcher = core.NewBatcher(send, cfg.Logger)
	s.ephemeral = core.NewEphemeralManager()

	s.queue = core.NewReceiveQueue(s.dispatch, cfg.Logger)
	s.docs = core.NewDocumentRegistry(cfg.DocFactory, s.onLocalDocChange)
	s.reducer = core.NewReducer(cfg.Identity, s.channels, s.peers, s.docs, s.ephemeral, cfg.Permissions, cfg.Metrics, cfg.Logger)
	s.executor = core.NewExecutor(s.docs, s.ephemeral, s.batcher, s.queue, cfg.Invoker, cfg.Logger)

	go s.queue.Run()
	go s.runHeartbeat()

	return s
}

// dispatch is the receive queue's single callback: run the reducer, then
// execute its command, then flush whatever the batcher accumulated this
// cycle (§4.3, "flushed once per dispatch cycle").
func (s *Synchronizer) dispatch(msg types.Msg) {
	cmd := s.reducer.Update(msg)
	s.executor.Run(cmd)
	s.batcher.Flush()
}

func (s *Synchronizer) onLocalDocChange(docID types.DocID) {
	s.queue.Enqueue(types.LocalDocChange{DocID: docID})
}

func (s *Synchronizer) runHeartbeat() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.queue.Enqueue(types.HeartbeatTick{})
			for docID, peerIDs := range s.ephemeral.ExpireAll(s.cfg.EphemeralTTL) {
				for _, peerID := range peerIDs {
					s.cfg.Logger.Debugf("expired ephemeral state for peer %s on doc %s", peerID, docID)
				}
			}
		case <-s.stopHeartbeat:
			return
		}
	}
}

// Stop halts the heartbeat ticker and the receive queue's dispatch
// goroutine. Safe to call once.
func (s *Synchronizer) Stop() {
	close(s.stopHeartbeat)
	s.queue.Close()
}

// --- ChannelSink implementation, delivered into the receive queue -------

func (s *Synchronizer) ChannelAdded(id types.ChannelID) {
	s.queue.Enqueue(types.ChannelAdded{ChannelID: id})
}

func (s *Synchronizer) ChannelRemoved(id types.ChannelID) {
	s.queue.Enqueue(types.ChannelRemoved{ChannelID: id})
}

func (s *Synchronizer) Receive(channelID types.ChannelID, msg types.WireMessage) {
	s.queue.Enqueue(types.ChannelReceiveMessage{FromChannelID: channelID, Message: msg})
}

var _ ChannelSink = (*Synchronizer)(nil)

// --- Application-facing API (§6.3) ---------------------------------------

// Subscribe starts streaming docID from every established peer and keeps
// receiving future updates for it.
func (s *Synchronizer) Subscribe(docID types.DocID) {
	s.queue.Enqueue(types.Subscribe{DocID: docID})
}

// Unsubscribe stops local interest in docID. Peers that already believe we
// are subscribed keep streaming to us until they observe our channel close
// (§6.3 Non-goal: no explicit unsubscribe wire message).
func (s *Synchronizer) Unsubscribe(docID types.DocID) {
	s.queue.Enqueue(types.Unsubscribe{DocID: docID})
}

// GetDocument returns the local handle for docID, creating it if this is
// the first reference (§6.3, "getDocument(docId) -> Doc, creating it
// locally if unseen").
func (s *Synchronizer) GetDocument(docID types.DocID) types.Doc {
	return s.docs.Ensure(docID)
}

// SetEphemeral publishes data under namespace for this runtime's own
// identity in docID's ephemeral store, to be included in the next
// heartbeat broadcast and any sync-response issued before then (§6.3,
// "setEphemeral(docId, namespace, bytes)").
func (s *Synchronizer) SetEphemeral(docID types.DocID, namespace types.Namespace, data []byte) {
	s.ephemeral.Apply(docID, namespace, s.cfg.Identity.PeerID, data)
}

// ClearEphemeral removes this runtime's own payload from (docID,
// namespace).
func (s *Synchronizer) ClearEphemeral(docID types.DocID, namespace types.Namespace) {
	s.ephemeral.Delete(docID, namespace, s.cfg.Identity.PeerID)
}
