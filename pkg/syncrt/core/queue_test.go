package core

import (
	"sync"
	"testing"
	"time"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

func TestReceiveQueue_DispatchesInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []types.DocID

	q := NewReceiveQueue(func(msg types.Msg) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg.(types.Subscribe).DocID)
	}, &fakeLogger{})
	go q.Run()
	defer q.Close()

	q.Enqueue(types.Subscribe{DocID: "doc-1"})
	q.Enqueue(types.Subscribe{DocID: "doc-2"})
	q.Enqueue(types.Subscribe{DocID: "doc-3"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := []types.DocID{"doc-1", "doc-2", "doc-3"}
	for i, d := range want {
		if seen[i] != d {
			t.Fatalf("expected dispatch order %v, got %v", want, seen)
		}
	}
}

func TestReceiveQueue_RecoversFromPanic(t *testing.T) {
	log := &fakeLogger{}
	processed := make(chan struct{}, 2)

	q := NewReceiveQueue(func(msg types.Msg) {
		defer func() { processed <- struct{}{} }()
		if msg.(types.Subscribe).DocID == "boom" {
			panic("reducer exploded")
		}
	}, log)
	go q.Run()
	defer q.Close()

	q.Enqueue(types.Subscribe{DocID: "boom"})
	q.Enqueue(types.Subscribe{DocID: "doc-after"})

	for i := 0; i < 2; i++ {
		select {
		case <-processed:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for queue to keep processing after a panic")
		}
	}

	if len(log.lines) == 0 {
		t.Errorf("expected the panic to be logged")
	}
}

func TestReceiveQueue_CloseStopsRun(t *testing.T) {
	q := NewReceiveQueue(func(types.Msg) {}, &fakeLogger{})
	done := make(chan struct{})
	go func() {
		q.Run()
		close(done)
	}()

	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
