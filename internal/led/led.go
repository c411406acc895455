// Package led runs a cooperative blink-pattern state machine on a
// dedicated goroutine, matching the status LED states a sync or the web
// service reports to whoever's looking at the board.
package led

import (
	"sync"
	"time"

	"github.com/kstaniek/bbsyncer/internal/metrics"
)

// State is one of the LED's recognized statuses.
type State int

// The states. Off is the zero value, so a zero-initialized Controller
// (before Start) reads as off rather than some arbitrary pattern.
const (
	Off State = iota
	Syncing
	Verifying
	Erasing
	Success
	AlreadyEmpty
	ErrorGeneral
	ErrorDisconnected
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case Syncing:
		return "SYNCING"
	case Verifying:
		return "VERIFYING"
	case Erasing:
		return "ERASING"
	case Success:
		return "SUCCESS"
	case AlreadyEmpty:
		return "ALREADY_EMPTY"
	case ErrorGeneral:
		return "ERROR_GENERAL"
	case ErrorDisconnected:
		return "ERROR_DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

type step struct {
	onMS, offMS int
}

type pattern struct {
	steps  []step
	repeat bool
}

// patterns is the exact on/off timing table the status LED follows per
// state. Non-repeating patterns park the worker at idle once finished;
// they never auto-revert to Off.
var patterns = map[State]pattern{
	Off:       {steps: nil, repeat: false},
	Syncing:   {steps: []step{{100, 100}}, repeat: true},
	Verifying: {steps: []step{{250, 250}}, repeat: true},
	Erasing:   {steps: []step{{800, 200}}, repeat: true},
	Success: {
		steps:  []step{{50, 50}, {50, 50}, {50, 50}, {2000, 1}},
		repeat: false,
	},
	AlreadyEmpty: {
		steps:  []step{{500, 500}, {500, 500}},
		repeat: false,
	},
	ErrorGeneral: {
		steps: []step{
			{150, 150}, {150, 150}, {150, 150},
			{400, 150}, {400, 150}, {400, 150},
			{150, 150}, {150, 150}, {150, 150},
			{700, 700},
		},
		repeat: true,
	},
	ErrorDisconnected: {
		steps:  []step{{50, 50}, {50, 50}, {50, 50}},
		repeat: true,
	},
}

const pollSlice = 50 * time.Millisecond

// Backend drives the physical LED. Writes that fail are swallowed by the
// caller — the LED is best-effort status, never load-bearing.
type Backend interface {
	SetRaw(on bool) error
	Close() error
}

// Controller runs the blink-pattern worker. Zero value is not usable; use
// New.
type Controller struct {
	backend Backend

	mu    sync.Mutex
	state State
	wake  chan struct{}
	idle  chan struct{}

	running chan struct{} // closed by Stop to end the worker loop
	done    chan struct{} // closed once the worker goroutine returns
}

// New returns a Controller in state Off, not yet started.
func New(backend Backend) *Controller {
	return &Controller{
		backend: backend,
		state:   Off,
		wake:    make(chan struct{}),
		idle:    make(chan struct{}),
	}
}

// Start launches the background worker goroutine.
func (c *Controller) Start() {
	c.running = make(chan struct{})
	c.done = make(chan struct{})
	go c.run()
}

// Stop ends the worker goroutine, turns the LED off, and releases the
// backend.
func (c *Controller) Stop() {
	if c.running == nil {
		return
	}
	close(c.running)
	c.mu.Lock()
	close(c.wake)
	c.wake = make(chan struct{})
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(3 * time.Second):
	}
	c.backend.SetRaw(false)
	c.backend.Close()
}

// SetState changes the desired LED state. A no-op if state is already
// current.
func (c *Controller) SetState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == state {
		return
	}
	c.state = state
	close(c.wake)
	c.wake = make(chan struct{})
	c.idle = make(chan struct{})
	metrics.IncLEDTransition(state.String())
}

// WaitUntilIdle blocks until the current pattern reaches its idle point
// (Off, or a non-repeating pattern finished) or timeout elapses. A
// repeating pattern never reaches idle, so for one this waits out the
// full timeout.
func (c *Controller) WaitUntilIdle(timeout time.Duration) {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
	case <-time.After(timeout):
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.running:
			return
		default:
		}

		c.mu.Lock()
		state := c.state
		wake := c.wake
		idle := c.idle
		c.mu.Unlock()

		c.executePattern(state, wake, idle)
	}
}

func (c *Controller) executePattern(state State, wake, idle chan struct{}) {
	p := patterns[state]

	if len(p.steps) == 0 {
		c.backend.SetRaw(false)
		close(idle)
		<-wake
		return
	}

	for {
		for _, s := range p.steps {
			if changed(wake) {
				return
			}
			c.backend.SetRaw(true)
			if c.interruptibleSleep(time.Duration(s.onMS)*time.Millisecond, wake) {
				return
			}
			c.backend.SetRaw(false)
			if s.offMS > 0 {
				if c.interruptibleSleep(time.Duration(s.offMS)*time.Millisecond, wake) {
					return
				}
			}
		}
		if !p.repeat {
			c.backend.SetRaw(false)
			close(idle)
			<-wake
			return
		}
	}
}

// interruptibleSleep sleeps for d in slices no longer than pollSlice,
// returning true as soon as wake fires (a state change happened).
func (c *Controller) interruptibleSleep(d time.Duration, wake chan struct{}) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		slice := remaining
		if slice > pollSlice {
			slice = pollSlice
		}
		select {
		case <-wake:
			return true
		case <-time.After(slice):
		}
	}
}

func changed(wake chan struct{}) bool {
	select {
	case <-wake:
		return true
	default:
		return false
	}
}
