package scheduler

import (
	"sync"
)

// Cancellation is a cooperative stop token. Workers check Stopped between
// items or sources; nothing already committed is rolled back when it
// fires.
type Cancellation struct {
	mu      sync.Mutex
	stopped bool
}

// Stop requests cooperative cancellation.
func (c *Cancellation) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

// Stopped reports whether cancellation was requested. Nil tokens never
// cancel, so optional callers can pass nil.
func (c *Cancellation) Stopped() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// State tracks the cancellation tokens of currently running tasks keyed by
// their ledger run ID. One State instance is owned by the process; tests
// inject their own.
type State struct {
	mu     sync.Mutex
	active map[string]*Cancellation
}

// NewState returns an empty run registry.
func NewState() *State {
	return &State{active: make(map[string]*Cancellation)}
}

// Register creates and tracks a cancellation token for the given run.
func (s *State) Register(runID string) *Cancellation {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := &Cancellation{}
	s.active[runID] = token
	return token
}

// Unregister forgets a finished run.
func (s *State) Unregister(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, runID)
}

// Stop requests cancellation of a running task. It reports whether the
// run was known to the registry.
func (s *State) Stop(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.active[runID]
	if !ok {
		return false
	}
	token.Stop()
	return true
}

// RunningCount returns the number of registered in-flight tasks.
func (s *State) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
