package core

import (
	"testing"
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

func TestEphemeralManager_ApplyAndEncodeAll(t *testing.T) {
	m := NewEphemeralManager()
	m.Apply("doc-1", "presence", "peer-a", []byte("cursor-at-12"))
	m.Apply("doc-1", "presence", "peer-b", []byte("cursor-at-40"))

	if !m.HasAny("doc-1") {
		t.Fatalf("expected doc-1 to have ephemeral state")
	}

	frames := m.EncodeAll("doc-1")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestEphemeralManager_Delete(t *testing.T) {
	m := NewEphemeralManager()
	m.Apply("doc-1", "presence", "peer-a", []byte("x"))
	m.Delete("doc-1", "presence", "peer-a")

	if m.HasAny("doc-1") {
		t.Fatalf("expected no ephemeral state left for doc-1 after delete")
	}
}

func TestEphemeralManager_ExpireAll(t *testing.T) {
	now := time.Now()
	m := NewEphemeralManager()
	m.now = func() time.Time { return now }
	m.Apply("doc-1", "presence", "peer-a", []byte("x"))

	m.now = func() time.Time { return now.Add(time.Minute) }
	removed := m.ExpireAll(30 * time.Second)

	if len(removed["doc-1"]) != 1 || removed["doc-1"][0] != types.PeerID("peer-a") {
		t.Fatalf("expected peer-a expired from doc-1, got %v", removed)
	}
	if m.HasAny("doc-1") {
		t.Errorf("expected doc-1 ephemeral state to be empty after expiry")
	}
}

func TestEphemeralManager_TouchRefreshesTTL(t *testing.T) {
	now := time.Now()
	m := NewEphemeralManager()
	m.now = func() time.Time { return now }
	m.Apply("doc-1", "presence", "peer-a", []byte("x"))

	m.now = func() time.Time { return now.Add(20 * time.Second) }
	m.Touch("doc-1", "presence", "peer-a")

	m.now = func() time.Time { return now.Add(35 * time.Second) }
	removed := m.ExpireAll(30 * time.Second)

	if len(removed) != 0 {
		t.Fatalf("expected touch to keep peer-a alive, but it expired: %v", removed)
	}
}

func TestEphemeralManager_ApplyFrames(t *testing.T) {
	m := NewEphemeralManager()
	m.ApplyFrames("doc-1", []types.EphemeralFrame{
		{PeerID: "peer-a", Namespace: "presence", Data: []byte("x")},
		{PeerID: "peer-b", Namespace: "selection", Data: []byte("y")},
	})

	if len(m.EncodeAll("doc-1")) != 2 {
		t.Fatalf("expected both frames applied")
	}
}
