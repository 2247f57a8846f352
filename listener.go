package keychain

import (
	"sync"

	"github.com/mrz1836/keychain/keys"
)

// Executor runs listener callbacks. Implementations decide the execution
// context; Execute must not block the caller for the duration of fn.
// Chains may post notifications while holding internal locks, so an
// executor that runs fn inline must not be paired with a listener that
// calls back into the chain.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute calls e(fn).
func (e ExecutorFunc) Execute(fn func()) { e(fn) }

// SerialExecutor runs submitted functions one at a time, in submission
// order, on a background goroutine. It is the Go rendition of a
// designated callback thread: mutating chain calls post to it and move
// on, and every listener registered on it observes events in the order
// they were raised.
type SerialExecutor struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// NewSerialExecutor creates an idle serial executor.
func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{}
}

// Execute enqueues fn and returns immediately. A drainer goroutine is
// started on demand and exits when the queue empties.
func (e *SerialExecutor) Execute(fn func()) {
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	go e.drain()
}

func (e *SerialExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// DefaultExecutor is the ambient execution context for user-facing
// callbacks: listeners registered without an explicit executor run here.
//
//nolint:gochecknoglobals // Shared default callback context, mirrors a designated user thread
var DefaultExecutor Executor = NewSerialExecutor()

// registration pairs a listener with the executor its notifications run
// on. The same listener may hold several registrations.
type registration struct {
	listener Listener
	executor Executor
}

// listenerRegistry implements ordered, fire-and-forget delivery of
// keys-added events. It is embedded by every chain variant.
type listenerRegistry struct {
	mu   sync.Mutex
	regs []*registration
}

// add registers (listener, executor). A nil executor means
// DefaultExecutor.
func (r *listenerRegistry) add(listener Listener, executor Executor) {
	if executor == nil {
		executor = DefaultExecutor
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, &registration{listener: listener, executor: executor})
}

// remove drops the most recent registration for the listener and
// reports whether one existed. A removal concurrent with an in-flight
// dispatch is safe: the dispatch works from its own snapshot, so the
// listener may still see that one notification but no later ones.
func (r *listenerRegistry) remove(listener Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.regs) - 1; i >= 0; i-- {
		if r.regs[i].listener == listener {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			return true
		}
	}
	return false
}

// notify schedules delivery of records to every current registration.
// It snapshots the registration list under the lock, then posts to each
// executor and returns without waiting for any listener. A panicking
// listener is contained; it affects neither the mutating caller nor the
// other listeners.
func (r *listenerRegistry) notify(records []*keys.Record) {
	if len(records) == 0 {
		return
	}

	r.mu.Lock()
	snapshot := make([]*registration, len(r.regs))
	copy(snapshot, r.regs)
	r.mu.Unlock()

	for _, reg := range snapshot {
		listener := reg.listener
		reg.executor.Execute(func() {
			defer func() {
				_ = recover()
			}()
			listener.OnKeysAdded(records)
		})
	}
}
