package core

import (
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// docEntry pairs a CRDT handle with the unsubscribe func for its
// local-change observer.
type docEntry struct {
	doc         types.Doc
	unsubscribe func()
}

// DocumentRegistry exclusively owns CRDT doc handles (component C, §3
// "Ownership/lifecycle"). Entries are created lazily on first local get/
// create or on the first sync-response/update that references a DocID
// (§3, "Document state"); an inbound sync-request for an unknown DocID is
// answered "unavailable" and creates no entry.
type DocumentRegistry struct {
	mu      sync.RWMutex
	docs    map[types.DocID]*docEntry
	factory types.DocFactory
	onLocal func(types.DocID)
}

// NewDocumentRegistry constructs a registry backed by factory. onLocal is
// invoked (outside the registry's lock) whenever a document's observer
// fires for a local-origin commit; the caller is expected to translate
// that into a LocalDocChange reducer message.
func NewDocumentRegistry(factory types.DocFactory, onLocal func(types.DocID)) *DocumentRegistry {
	return &DocumentRegistry{
		docs:    make(map[types.DocID]*docEntry),
		factory: factory,
		onLocal: onLocal,
	}
}

// Ensure returns the Doc for id, creating it via the factory if this is the
// first reference to it.
func (r *DocumentRegistry) Ensure(id types.DocID) types.Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.docs[id]; ok {
		return e.doc
	}
	doc := r.factory(id)
	unsubscribe := doc.Observe(func(origin types.ChangeOrigin) {
		if origin == types.OriginLocal && r.onLocal != nil {
			r.onLocal(id)
		}
	})
	r.docs[id] = &docEntry{doc: doc, unsubscribe: unsubscribe}
	return doc
}

// Get returns the Doc for id without creating it.
func (r *DocumentRegistry) Get(id types.DocID) (types.Doc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.docs[id]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// AllIDs returns a snapshot of every document id ever referenced.
func (r *DocumentRegistry) AllIDs() []types.DocID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.DocID, 0, len(r.docs))
	for id := range r.docs {
		out = append(out, id)
	}
	return out
}

// Has reports whether id has ever been referenced.
func (r *DocumentRegistry) Has(id types.DocID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.docs[id]
	return ok
}

// Remove tears down a document's observer and drops its entry. Not used by
// the core today (documents are never explicitly destroyed by spec.md) but
// kept for applications that need to free storage on delete.
func (r *DocumentRegistry) Remove(id types.DocID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.docs[id]; ok {
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		delete(r.docs, id)
	}
}
