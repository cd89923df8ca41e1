package core

import (
	"sync"
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// ephemeralEntry is one peer's opaque payload for one (DocID, Namespace).
type ephemeralEntry struct {
	data      []byte
	updatedAt time.Time
}

// namespaceStore holds every peer's payload for one (DocID, Namespace).
type namespaceStore struct {
	mu      sync.Mutex
	entries map[types.PeerID]ephemeralEntry
}

func newNamespaceStore() *namespaceStore {
	return &namespaceStore{entries: make(map[types.PeerID]ephemeralEntry)}
}

// EphemeralManager is the per-(DocID, Namespace) ephemeral state manager
// (component H, §4.5). Ephemeral state is never persisted — it lives only
// in process memory and is subject to TTL expiry.
type EphemeralManager struct {
	mu   sync.Mutex
	docs map[types.DocID]map[types.Namespace]*namespaceStore
	now  func() time.Time
}

// NewEphemeralManager constructs an empty manager.
func NewEphemeralManager() *EphemeralManager {
	return &EphemeralManager{
		docs: make(map[types.DocID]map[types.Namespace]*namespaceStore),
		now:  time.Now,
	}
}

func (m *EphemeralManager) store(docID types.DocID, namespace types.Namespace) *namespaceStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.docs[docID]
	if !ok {
		ns = make(map[types.Namespace]*namespaceStore)
		m.docs[docID] = ns
	}
	s, ok := ns[namespace]
	if !ok {
		s = newNamespaceStore()
		ns[namespace] = s
	}
	return s
}

// Apply merges peerID's payload into (docID, namespace), finding or
// creating the store as needed (§4.5, "apply(bytes)").
func (m *EphemeralManager) Apply(docID types.DocID, namespace types.Namespace, peerID types.PeerID, data []byte) {
	s := m.store(docID, namespace)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[peerID] = ephemeralEntry{data: data, updatedAt: m.now()}
}

// Touch refreshes peerID's TTL in (docID, namespace) without changing its
// payload (§4.5, "touch(peerId)").
func (m *EphemeralManager) Touch(docID types.DocID, namespace types.Namespace, peerID types.PeerID) {
	s := m.store(docID, namespace)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[peerID]
	if !ok {
		return
	}
	e.updatedAt = m.now()
	s.entries[peerID] = e
}

// Delete removes peerID's payload from (docID, namespace) (§4.5,
// "delete(peerId)").
func (m *EphemeralManager) Delete(docID types.DocID, namespace types.Namespace, peerID types.PeerID) {
	s := m.store(docID, namespace)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, peerID)
}

// HasAny reports whether docID has any ephemeral state across all
// namespaces, used by the heartbeat to decide whether to broadcast (§4.6).
func (m *EphemeralManager) HasAny(docID types.DocID) bool {
	m.mu.Lock()
	ns, ok := m.docs[docID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	for _, s := range ns {
		s.mu.Lock()
		n := len(s.entries)
		s.mu.Unlock()
		if n > 0 {
			return true
		}
	}
	return false
}

// EncodeAll returns every (peer, namespace) payload for docID, flattened
// into wire frames — used both inline on a sync-response and standalone on
// heartbeat (§4.5, "encodeAll() -> bytes").
func (m *EphemeralManager) EncodeAll(docID types.DocID) []types.EphemeralFrame {
	m.mu.Lock()
	ns, ok := m.docs[docID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	var out []types.EphemeralFrame
	for namespace, s := range ns {
		s.mu.Lock()
		for peerID, e := range s.entries {
			out = append(out, types.EphemeralFrame{
				PeerID:    peerID,
				Namespace: namespace,
				Data:      e.data,
			})
		}
		s.mu.Unlock()
	}
	return out
}

// ApplyFrames merges a batch of inbound frames for docID, e.g. from
// cmd/apply-ephemeral (§4.2).
func (m *EphemeralManager) ApplyFrames(docID types.DocID, frames []types.EphemeralFrame) {
	for _, f := range frames {
		m.Apply(docID, f.Namespace, f.PeerID, f.Data)
	}
}

// ExpireAll drops every entry older than ttl across every document and
// namespace, returning the peer ids removed per document.
func (m *EphemeralManager) ExpireAll(ttl time.Duration) map[types.DocID][]types.PeerID {
	cutoff := m.now().Add(-ttl)
	removed := make(map[types.DocID][]types.PeerID)

	m.mu.Lock()
	docs := make(map[types.DocID]map[types.Namespace]*namespaceStore, len(m.docs))
	for d, ns := range m.docs {
		docs[d] = ns
	}
	m.mu.Unlock()

	for docID, ns := range docs {
		for _, s := range ns {
			s.mu.Lock()
			for peerID, e := range s.entries {
				if e.updatedAt.Before(cutoff) {
					delete(s.entries, peerID)
					removed[docID] = append(removed[docID], peerID)
				}
			}
			s.mu.Unlock()
		}
	}
	return removed
}
