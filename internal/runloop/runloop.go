// Package runloop gates each iteration of the emulator's execution loop.
//
// The flags that gate the loop are atomics set by the host. The emulation
// goroutine only reads them, so ContinueRunning is safe to call tens of thousands of times a
// second.
package runloop

import (
	"fmt"
	"sync/atomic"
)

// TitleState is the emulator's reportable run state
type TitleState struct {
	CyclesPerSecond int
	Frameskip       int
	Paused          bool
}

func (s TitleState) String() string {
	status := "running"
	if s.Paused {
		status = "paused"
	}
	if s.CyclesPerSecond <= 0 {
		return fmt.Sprintf("Cpu speed: max, Frameskip %d, %s", s.Frameskip, status)
	}
	return fmt.Sprintf("Cpu speed: %d cycles, Frameskip %d, %s", s.CyclesPerSecond, s.Frameskip, status)
}

// TitleObserver is told about every title state change
type TitleObserver interface {
	TitleStateChanged(TitleState)
}

// Controller is the host side of the run loop hooks
type Controller struct {
	stop        atomic.Bool
	hostPaused  atomic.Bool
	pauseYields atomic.Bool
	hostTitle   atomic.Bool
	hostEvents  atomic.Bool

	title      atomic.Pointer[TitleState]
	iterations atomic.Uint64

	observer TitleObserver
}

// Option configures a Controller
type Option func(*Controller)

// WithTitleObserver forwards title changes to o
func WithTitleObserver(o TitleObserver) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithPauseYields makes ContinueRunning return false while paused, handing
// control back to the host instead of letting the core idle in its own loop
func WithPauseYields(yield bool) Option {
	return func(c *Controller) {
		c.pauseYields.Store(yield)
	}
}

// WithHostTitle tells the core that the host draws its own status UI
func WithHostTitle(host bool) Option {
	return func(c *Controller) {
		c.hostTitle.Store(host)
	}
}

// NewController creates a Controller that lets the core run
func NewController(opts ...Option) *Controller {
	c := &Controller{}
	c.title.Store(&TitleState{})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContinueRunning is polled once per core iteration. It returns false when the
// host has requested a stop, or while paused when paused loops yield.
func (c *Controller) ContinueRunning() bool {
	c.iterations.Add(1)
	if c.stop.Load() {
		return false
	}
	if c.pauseYields.Load() && c.hostPaused.Load() {
		return false
	}
	return true
}

// HandleEventLoop is polled each time the core would pump host events. It
// returns true when the host has taken over event handling.
func (c *Controller) HandleEventLoop() bool {
	return c.hostEvents.Load()
}

// TitleStateChanged records the new state and notifies the observer. It
// returns false when the host shows its own status, telling the core to skip
// its native title handling. The core's pause state is only reported; it
// never changes the host's pause flag.
func (c *Controller) TitleStateChanged(state TitleState) bool {
	c.title.Store(&state)
	if c.observer != nil {
		c.observer.TitleStateChanged(state)
	}
	return !c.hostTitle.Load()
}

// RequestStop asks the core to end its run loop at the next poll
func (c *Controller) RequestStop() {
	c.stop.Store(true)
}

// Resume clears a stop request so the loop may be entered again
func (c *Controller) Resume() {
	c.stop.Store(false)
}

// Stopping reports whether a stop has been requested
func (c *Controller) Stopping() bool {
	return c.stop.Load()
}

// SetPaused is used by the host to pause or unpause
func (c *Controller) SetPaused(paused bool) {
	c.hostPaused.Store(paused)
}

// Paused reports whether the host has paused the session
func (c *Controller) Paused() bool {
	return c.hostPaused.Load()
}

// CorePaused reports the pause state from the core's last title report
func (c *Controller) CorePaused() bool {
	return c.title.Load().Paused
}

// SetHostTitle changes whether the host draws its own status UI
func (c *Controller) SetHostTitle(host bool) {
	c.hostTitle.Store(host)
}

// SetHostEvents changes whether the host pumps window events itself
func (c *Controller) SetHostEvents(host bool) {
	c.hostEvents.Store(host)
}

// Title returns the last reported title state
func (c *Controller) Title() TitleState {
	return *c.title.Load()
}

// Iterations returns the number of ContinueRunning polls
func (c *Controller) Iterations() uint64 {
	return c.iterations.Load()
}
