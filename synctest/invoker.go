package synctest

import "sync"

// WaitGroupInvoker is core.Invoker backed by a sync.WaitGroup, so a test
// can block until every spawned goroutine (the executor's doc imports)
// has finished before asserting on final state — the same role the
// teacher's TestInvoker plays opposite its production goroutineInvoker.
type WaitGroupInvoker struct {
	group sync.WaitGroup
}

// NewWaitGroupInvoker constructs an empty WaitGroupInvoker.
func NewWaitGroupInvoker() *WaitGroupInvoker {
	return &WaitGroupInvoker{}
}

func (w *WaitGroupInvoker) Spawn(f func()) {
	w.group.Add(1)
	go func() {
		defer w.group.Done()
		f()
	}()
}

// Wait blocks until every Spawned function has returned.
func (w *WaitGroupInvoker) Wait() {
	w.group.Wait()
}
