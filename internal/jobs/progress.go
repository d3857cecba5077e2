package jobs

import (
	"sync"
	"time"
)

// Sink holds one job's Status. Writers replace the whole record under the
// lock, so readers always get a complete snapshot.
//
// Once the state is terminal every later write is rejected.
type Sink struct {
	mu     sync.RWMutex
	status Status

	// state to return to on resume
	beforePause State

	onChange func(Status, State)
}

// NewSink creates a sink in the starting state.
func NewSink() *Sink {
	return &Sink{status: initialStatus()}
}

// observe registers the change callback. It receives the new status and
// the state it replaced.
func (s *Sink) observe(fn func(Status, State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Read returns a consistent snapshot.
func (s *Sink) Read() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Update merges a partial update: fn sees a copy of the current status and
// changes only the fields it sets. The merge is rejected when the job is
// terminal or when fn moves the state along an edge that only Pause,
// Resume, or Finish may take.
func (s *Sink) Update(fn func(*Status)) bool {
	return s.apply(func(cur Status) (Status, bool) {
		next := cur
		fn(&next)
		if !progressEdge(cur.State, next.State) {
			return cur, false
		}
		return next, true
	})
}

// Pause moves a starting or downloading job to paused.
func (s *Sink) Pause() bool {
	return s.apply(func(cur Status) (Status, bool) {
		if cur.State != StateStarting && cur.State != StateDownloading {
			return cur, false
		}
		s.beforePause = cur.State
		cur.State = StatePaused
		return cur, true
	})
}

// Resume returns a paused job to the state it was paused from.
func (s *Sink) Resume() bool {
	return s.apply(func(cur Status) (Status, bool) {
		if cur.State != StatePaused {
			return cur, false
		}
		cur.State = s.beforePause
		if cur.State == "" {
			cur.State = StateDownloading
		}
		return cur, true
	})
}

// Finish writes a terminal state. fn, if non-nil, sets the remaining fields.
func (s *Sink) Finish(state State, fn func(*Status)) bool {
	if !state.IsTerminal() {
		return false
	}
	return s.apply(func(cur Status) (Status, bool) {
		next := cur
		if fn != nil {
			fn(&next)
		}
		next.State = state
		next.FinishedAt = time.Now()
		return next, true
	})
}

// apply runs fn against the current status under the write lock. Writes to
// a terminal status never reach fn.
func (s *Sink) apply(fn func(Status) (Status, bool)) bool {
	s.mu.Lock()
	cur := s.status
	if cur.State.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	next, ok := fn(cur)
	if ok {
		next.UpdatedAt = time.Now()
		s.status = next
	}
	notify := s.onChange
	s.mu.Unlock()

	if ok && notify != nil {
		notify(next, cur.State)
	}
	return ok
}

// progressEdge reports whether a plain update may move from one state to
// another. Pausing, resuming, and terminal writes have their own methods.
func progressEdge(from, to State) bool {
	if from == StatePaused {
		// fields stay frozen while paused
		return false
	}
	if from == to {
		return true
	}
	return from == StateStarting && to == StateDownloading
}
