package core

import (
	"context"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Executor interprets the closed Command set the reducer emits (component
// E, §4.2). It is the only thing in this package allowed to touch the
// batcher, the document registry's Import path, and the ephemeral store's
// Apply path — the reducer itself never performs I/O or mutates a CRDT
// document directly.
type Executor struct {
	docs      *DocumentRegistry
	ephemeral *EphemeralManager
	batcher   *Batcher
	queue     *ReceiveQueue
	invoker   Invoker
	log       types.Logger
}

// NewExecutor wires an Executor. invoker controls where ImportDocData's
// potentially slow Doc.Import call runs; pass DefaultInvoker() in
// production or a test invoker that can be waited on.
func NewExecutor(docs *DocumentRegistry, ephemeral *EphemeralManager, batcher *Batcher, queue *ReceiveQueue, invoker Invoker, log types.Logger) *Executor {
	return &Executor{docs: docs, ephemeral: ephemeral, batcher: batcher, queue: queue, invoker: invoker, log: log}
}

// Run executes cmd. Nil is a valid no-op command (the common case: most
// reducer steps produce nothing to do).
func (e *Executor) Run(cmd types.Command) {
	if cmd == nil {
		return
	}
	switch c := cmd.(type) {
	case types.Send:
		e.batcher.Enqueue(c.ChannelID, c.Message)
	case types.SendEstablishment:
		if err := e.batcher.SendEstablishment(c.ChannelID, c.Message); err != nil {
			e.log.Errorf("failed sending establishment message on channel %s: %v", c.ChannelID, err)
		}
	case types.ImportDocData:
		e.runImportDocData(c)
	case types.ApplyEphemeral:
		e.ephemeral.ApplyFrames(c.DocID, c.Stores)
	case types.BatchCommand:
		for _, inner := range c.Commands {
			e.Run(inner)
		}
	default:
		e.log.Warnf("unknown command type %T", cmd)
	}
}

// runImportDocData hands data to the document's Import method off the
// reducer goroutine (§4.1.3 step 3, "this import runs asynchronously, the
// reducer does not block on it") and re-enqueues DocImported once it
// completes so the echo-suppression fan-out (§4.1.4) runs back on the
// single-threaded reducer.
func (e *Executor) runImportDocData(c types.ImportDocData) {
	doc := e.docs.Ensure(c.DocID)
	e.invoker.Spawn(func() {
		if err := doc.Import(context.Background(), c.Data); err != nil {
			e.log.Errorf("failed importing data for %s from %s: %v", c.DocID, c.FromPeerID, err)
			return
		}
		e.queue.Enqueue(types.DocImported{DocID: c.DocID, FromPeerID: c.FromPeerID})
	})
}
