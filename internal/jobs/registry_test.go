package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryCreateGet(t *testing.T) {
	r := NewRegistry()
	id := r.Create(Spec{URL: "https://example.com/v", FormatID: "137", Title: "Clip"})

	if id == "" {
		t.Fatal("job ID should not be empty")
	}

	ctrl, st, err := r.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ctrl == nil {
		t.Fatal("expected controller")
	}
	if st.State != StateStarting {
		t.Errorf("expected starting, got %s", st.State)
	}

	job, err := r.Job(id)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if job.URL != "https://example.com/v" || job.FormatID != "137" || job.Title != "Clip" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()

	if _, _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Job("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := r.Remove("missing"); KindOf(err) != KindNotFound {
		t.Errorf("expected not_found kind, got %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	id := r.Create(Spec{URL: "u"})

	if err := r.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Job(id); err == nil {
		t.Error("removed job should not be found")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	r := NewRegistry()
	first := r.Create(Spec{Title: "a"})
	second := r.Create(Spec{Title: "b"})
	third := r.Create(Spec{Title: "c"})
	r.Remove(second)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != third || list[1].ID != first {
		t.Errorf("expected newest first, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestRegistryConcurrentCreateUniqueIDs(t *testing.T) {
	r := NewRegistry()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.Create(Spec{URL: "u"})
			if _, _, err := r.Get(id); err != nil {
				t.Errorf("lookup of fresh id failed: %v", err)
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n || r.Len() != n {
		t.Errorf("expected %d unique jobs, got %d ids and %d entries", n, len(seen), r.Len())
	}
}

func TestRegistryEvictFinished(t *testing.T) {
	r := NewRegistry()
	done := r.create(Spec{Title: "done"})
	running := r.create(Spec{Title: "running"})
	done.sink.Finish(StateCompleted, nil)

	if n := r.EvictFinished(time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("nothing finished an hour ago, evicted %d", n)
	}
	if n := r.EvictFinished(time.Now().Add(time.Second)); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if _, err := r.Job(done.job.ID); err == nil {
		t.Error("finished job should be gone")
	}
	if _, err := r.Job(running.job.ID); err != nil {
		t.Error("running job must never be evicted")
	}
}

func TestRegistrySubscribe(t *testing.T) {
	r := NewRegistry()
	events := r.Subscribe()
	defer r.Unsubscribe(events)

	e := r.create(Spec{Title: "x"})
	e.sink.Update(func(s *Status) { s.State = StateDownloading })
	e.sink.Pause()
	e.sink.Resume()
	e.sink.Finish(StateCompleted, nil)
	r.Remove(e.job.ID)

	want := []string{"added", "progress", "paused", "resumed", "completed", "removed"}
	for i, w := range want {
		select {
		case ev := <-events:
			if ev.Type != w {
				t.Errorf("event %d: expected %s, got %s", i, w, ev.Type)
			}
			if ev.Job == nil || ev.Job.ID != e.job.ID {
				t.Errorf("event %d: wrong job", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %s", w)
		}
	}
}

func TestRegistryUnsubscribeTwice(t *testing.T) {
	r := NewRegistry()
	ch := r.Subscribe()
	r.Unsubscribe(ch)
	r.Unsubscribe(ch) // must not panic on double close
}
