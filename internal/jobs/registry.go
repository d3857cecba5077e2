package jobs

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/fetchray/internal/logger"
)

// entry is one registered job. The metadata is fixed at creation; the
// mutable parts live in the controller and the sink.
type entry struct {
	job  Job // Status field unused; the sink owns status
	ctrl *Controller
	sink *Sink

	startedMu sync.Mutex
	startedAt time.Time
}

func (e *entry) snapshot() *Job {
	j := e.job
	e.startedMu.Lock()
	j.StartedAt = e.startedAt
	e.startedMu.Unlock()
	j.Status = e.sink.Read()
	return &j
}

func (e *entry) markStarted() {
	e.startedMu.Lock()
	e.startedAt = time.Now()
	e.startedMu.Unlock()
}

// Registry maps job ids to their controller and progress sink.
// The lock is only held for map operations, never across engine calls.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*entry
	order []string // Job IDs in order of creation

	// Subscribers for job events
	subsMu      sync.RWMutex
	subscribers map[chan JobEvent]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:        make(map[string]*entry),
		order:       make([]string, 0),
		subscribers: make(map[chan JobEvent]struct{}),
	}
}

// Create registers a job in the starting state and returns its id.
func (r *Registry) Create(spec Spec) string {
	e := r.create(spec)
	return e.job.ID
}

func (r *Registry) create(spec Spec) *entry {
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			URL:       spec.URL,
			FormatID:  spec.FormatID,
			Title:     spec.Title,
			AudioOnly: spec.AudioOnly,
			CreatedAt: time.Now(),
		},
		ctrl: NewController(),
		sink: NewSink(),
	}
	id := e.job.ID
	e.sink.observe(func(st Status, prev State) {
		r.broadcast(JobEvent{Type: eventType(st.State, prev), Job: e.snapshot()})
	})

	r.mu.Lock()
	r.jobs[id] = e
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.broadcast(JobEvent{Type: "added", Job: e.snapshot()})
	return e
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, jobNotFoundError(id)
	}
	return e, nil
}

// Get returns the job's controller and a status snapshot.
func (r *Registry) Get(id string) (*Controller, Status, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, Status{}, err
	}
	return e.ctrl, e.sink.Read(), nil
}

// Job returns a snapshot of one job.
func (r *Registry) Job(id string) (*Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of every job, newest first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if e, ok := r.jobs[r.order[i]]; ok {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	jobs := make([]*Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, e.snapshot())
	}
	return jobs
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Remove drops a job record. The job is not stopped.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, ok := r.jobs[id]; !ok {
		r.mu.Unlock()
		return jobNotFoundError(id)
	}
	delete(r.jobs, id)
	r.removeFromOrder(id)
	r.mu.Unlock()

	// Broadcast removal event
	r.broadcast(JobEvent{Type: "removed", Job: &Job{ID: id}})
	return nil
}

// removeFromOrder drops id from the order slice. Called with lock held.
func (r *Registry) removeFromOrder(id string) {
	newOrder := make([]string, 0, len(r.order))
	for _, jid := range r.order {
		if jid != id {
			newOrder = append(newOrder, jid)
		}
	}
	r.order = newOrder
}

// EvictFinished drops terminal jobs that finished before the cutoff and
// returns how many were removed. Running jobs are never evicted.
func (r *Registry) EvictFinished(before time.Time) int {
	r.mu.Lock()
	var evicted []string
	newOrder := make([]string, 0, len(r.order))
	for _, id := range r.order {
		e, ok := r.jobs[id]
		if !ok {
			continue
		}
		st := e.sink.Read()
		if st.State.IsTerminal() && st.FinishedAt.Before(before) {
			delete(r.jobs, id)
			evicted = append(evicted, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	r.order = newOrder
	r.mu.Unlock()

	for _, id := range evicted {
		r.broadcast(JobEvent{Type: "removed", Job: &Job{ID: id}})
	}
	if len(evicted) > 0 {
		logger.Debug("Evicted finished jobs", "count", len(evicted))
	}
	return len(evicted)
}

// hasActiveTitle reports whether a non-terminal job writes to the same
// artifact name. Case is ignored for case-insensitive filesystems.
func (r *Registry) hasActiveTitle(title string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.jobs {
		if strings.EqualFold(e.job.Title, title) && !e.sink.Read().State.IsTerminal() {
			return true
		}
	}
	return false
}

// entries returns every entry. Used for shutdown.
func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e)
	}
	return out
}

// Subscribe returns a channel that receives job events
func (r *Registry) Subscribe() chan JobEvent {
	ch := make(chan JobEvent, 100)

	r.subsMu.Lock()
	r.subscribers[ch] = struct{}{}
	r.subsMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription
func (r *Registry) Unsubscribe(ch chan JobEvent) {
	r.subsMu.Lock()
	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
	r.subsMu.Unlock()
}

// broadcast sends an event to all subscribers
func (r *Registry) broadcast(event JobEvent) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()

	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// eventType names the event for a status change.
func eventType(state, prev State) string {
	switch {
	case state == prev:
		return "progress"
	case state == StatePaused:
		return "paused"
	case prev == StatePaused:
		return "resumed"
	case state.IsTerminal():
		return string(state)
	default:
		return "progress"
	}
}
