package jobs

import (
	"sync"
)

// Session is the handle of a running engine call.
type Session interface {
	// Interrupt asks the engine to abort at its next checkpoint.
	Interrupt()
}

// SessionFunc adapts a function (usually a context.CancelFunc) to Session.
type SessionFunc func()

// Interrupt calls f.
func (f SessionFunc) Interrupt() { f() }

// Controller holds a job's pause/stop flags and the session they act on.
//
// Requests that arrive before a session is attached are recorded and
// applied by Attach, so nothing issued during startup is lost.
type Controller struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	session Session
	done    chan struct{} // closed on first Stop
}

// NewController creates a controller with no session.
func NewController() *Controller {
	return &Controller{done: make(chan struct{})}
}

// Pause sets the paused flag. Pausing is soft: the engine keeps
// transferring, only progress reporting is held back. It is idempotent and
// reports whether the flag changed.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.stopped {
		return false
	}
	c.paused = true
	return true
}

// Resume clears the paused flag. Resuming a stopped or unpaused job does nothing.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused || c.stopped {
		return false
	}
	c.paused = false
	return true
}

// Stop sets the stopped flag and interrupts the attached session, if any.
// It is idempotent and reports whether this call did the stopping.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.stopped = true
	c.paused = false
	close(c.done)
	session := c.session
	c.mu.Unlock()

	if session != nil {
		session.Interrupt()
	}
	return true
}

// Attach binds the running session. If Stop was already requested the
// session is interrupted immediately and Attach returns true.
func (c *Controller) Attach(s Session) (stopped bool) {
	c.mu.Lock()
	c.session = s
	stopped = c.stopped
	c.mu.Unlock()

	if stopped && s != nil {
		s.Interrupt()
	}
	return stopped
}

// Detach drops the session once the engine call has returned.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// Paused reports the paused flag.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Stopped reports the stopped flag.
func (c *Controller) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Attached reports whether a session is bound.
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Done is closed when the job is stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}
