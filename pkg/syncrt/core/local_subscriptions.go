package core

import (
	"sync"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// localSubscriptionSet tracks the documents the local application has
// subscribed to (§6.3, "subscribe(docId)/unsubscribe(docId)"). This is the
// runtime's own interest, distinct from PeerState.Subscriptions (which
// tracks what a remote peer has asked to stream from us).
type localSubscriptionSet struct {
	mu   sync.RWMutex
	docs map[types.DocID]struct{}
}

func newLocalSubscriptionSet() *localSubscriptionSet {
	return &localSubscriptionSet{docs: make(map[types.DocID]struct{})}
}

func (s *localSubscriptionSet) Add(docID types.DocID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = struct{}{}
}

func (s *localSubscriptionSet) Remove(docID types.DocID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
}

func (s *localSubscriptionSet) Has(docID types.DocID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[docID]
	return ok
}

func (s *localSubscriptionSet) All() []types.DocID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DocID, 0, len(s.docs))
	for d := range s.docs {
		out = append(out, d)
	}
	return out
}
