package server

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionClosed is returned from BeginInput and WaitInput when the
// session is torn down while its run waits for input.
var ErrSessionClosed = errors.New("session closed")

// Run tracks one session's active execution: its pending-input queue and
// cancellation handle. At most one Run is registered per session id.
type Run struct {
	ID     string
	Cancel context.CancelFunc

	mu      sync.Mutex
	waiting bool
	input   chan string // capacity 1: at most one undelivered response
	done    chan struct{}
	closed  bool
}

func newRun(id string, cancel context.CancelFunc) *Run {
	return &Run{
		ID:     id,
		Cancel: cancel,
		input:  make(chan string, 1),
		done:   make(chan struct{}),
	}
}

// BeginInput marks an input request as outstanding. It must be called
// before the input_request event is emitted to the client, so a response
// arriving immediately after the event is never mistaken for a stray one.
func (r *Run) BeginInput() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSessionClosed
	}
	r.waiting = true
	return nil
}

// WaitInput parks the calling (sandbox) goroutine until a value arrives,
// the session is torn down, or ctx is cancelled. It must never be called
// from a connection's read loop.
func (r *Run) WaitInput(ctx context.Context) (string, error) {
	defer func() {
		r.mu.Lock()
		r.waiting = false
		r.mu.Unlock()
	}()

	select {
	case v := <-r.input:
		return v, nil
	case <-r.done:
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliver hands a value to the outstanding input request. A value with no
// outstanding request is dropped, not queued.
func (r *Run) deliver(value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.waiting {
		return false
	}
	select {
	case r.input <- value:
		r.waiting = false
		return true
	default:
		return false
	}
}

// close unblocks a parked WaitInput and cancels the run. Idempotent.
func (r *Run) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	if r.Cancel != nil {
		r.Cancel()
	}
}

// Registry is the process-wide map from session id to its active run.
// It is the only structure mutated by more than one goroutine; all
// mutations go through its lock.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]*Run),
	}
}

// Create registers a new run for a session, replacing and tearing down any
// prior run for the same id.
func (g *Registry) Create(id string, cancel context.CancelFunc) *Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.runs[id]; ok {
		old.close()
	}
	run := newRun(id, cancel)
	g.runs[id] = run
	return run
}

// Deliver routes an input response to the session's outstanding request.
// It reports whether the value was accepted; a response with no outstanding
// request has no effect.
func (g *Registry) Deliver(id, value string) bool {
	g.mu.Lock()
	run, ok := g.runs[id]
	g.mu.Unlock()
	if !ok {
		return false
	}
	return run.deliver(value)
}

// Remove tears down the session's run, unblocking any parked input wait.
// Safe to call for an unknown id.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	run, ok := g.runs[id]
	if ok {
		delete(g.runs, id)
	}
	g.mu.Unlock()
	if ok {
		run.close()
	}
}

// Release removes run from the registry if it is still the registered run
// for its session, then tears it down. A run that was already replaced by a
// newer submit only tears itself down.
func (g *Registry) Release(run *Run) {
	g.mu.Lock()
	if cur, ok := g.runs[run.ID]; ok && cur == run {
		delete(g.runs, run.ID)
	}
	g.mu.Unlock()
	run.close()
}

// CloseAll tears down every registered run.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	runs := make([]*Run, 0, len(g.runs))
	for id, run := range g.runs {
		runs = append(runs, run)
		delete(g.runs, id)
	}
	g.mu.Unlock()
	for _, run := range runs {
		run.close()
	}
}
