package sync

import "sync"

// Status is a thread-safe handle to the orchestrator's current progress,
// polled by the web server's /status route while a sync runs. Unlike the
// module-global the orchestrator's progress tracking was ported from,
// each Orchestrator owns its own Status so a process embedding more than
// one orchestrator (tests, future multi-port support) never shares state
// across instances.
type Status struct {
	mu       sync.Mutex
	state    string
	progress int
}

// NewStatus returns a Status in the idle state.
func NewStatus() *Status {
	return &Status{state: "idle"}
}

// Snapshot is a point-in-time copy of a Status, safe to marshal to JSON.
type Snapshot struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

// Get returns a copy of the current state and progress.
func (s *Status) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Progress: s.progress}
}

// Set replaces the current state and progress, for a writer outside this
// package that shares the handle.
func (s *Status) Set(state string, progress int) { s.set(state, progress) }

func (s *Status) set(state string, progress int) {
	s.mu.Lock()
	s.state = state
	s.progress = progress
	s.mu.Unlock()
}
