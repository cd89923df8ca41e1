package core

// Invoker spawns a unit of work. Production code runs it as a bare
// goroutine; tests substitute an implementation tracked by a
// sync.WaitGroup so shutdown can wait for every spawned goroutine to
// finish (see synctest.WaitGroupInvoker), the same pattern the teacher uses
// for its own core.Invoker/TestInvoker pair.
type Invoker interface {
	Spawn(f func())
}

// goroutineInvoker is the zero-overhead production Invoker.
type goroutineInvoker struct{}

func (goroutineInvoker) Spawn(f func()) { go f() }

// DefaultInvoker is the Invoker used when a caller does not supply its own.
func DefaultInvoker() Invoker { return goroutineInvoker{} }
