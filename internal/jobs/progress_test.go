package jobs

import (
	"sync"
	"testing"
)

func TestSinkInitialStatus(t *testing.T) {
	s := NewSink()
	st := s.Read()
	if st.State != StateStarting {
		t.Errorf("expected starting, got %s", st.State)
	}
	if st.Percent != "0%" || st.ETA != "--:--" {
		t.Errorf("unexpected initial fields: %+v", st)
	}
}

func TestSinkUpdateMergesPartialFields(t *testing.T) {
	s := NewSink()
	s.Update(func(st *Status) {
		st.State = StateDownloading
		st.DownloadedBytes = 10
		st.TotalBytes = 100
	})
	s.Update(func(st *Status) {
		st.Percent = "10.0%"
	})

	st := s.Read()
	if st.DownloadedBytes != 10 || st.TotalBytes != 100 {
		t.Errorf("earlier fields lost: %+v", st)
	}
	if st.Percent != "10.0%" {
		t.Errorf("expected 10.0%%, got %s", st.Percent)
	}
}

func TestSinkTerminalRejectsWrites(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateError, StateStopped} {
		t.Run(string(terminal), func(t *testing.T) {
			s := NewSink()
			if !s.Finish(terminal, nil) {
				t.Fatal("first finish should apply")
			}

			if s.Update(func(st *Status) { st.State = StateDownloading }) {
				t.Error("update after terminal should be rejected")
			}
			if s.Pause() || s.Resume() {
				t.Error("pause/resume after terminal should be rejected")
			}
			if s.Finish(StateCompleted, nil) || s.Finish(StateError, nil) {
				t.Error("second finish should be rejected")
			}
			if got := s.Read().State; got != terminal {
				t.Errorf("terminal state changed to %s", got)
			}
		})
	}
}

func TestSinkFinishRejectsNonTerminal(t *testing.T) {
	s := NewSink()
	if s.Finish(StateDownloading, nil) {
		t.Error("finish with a non-terminal state should be rejected")
	}
}

func TestSinkUpdateCannotSkipStateMachine(t *testing.T) {
	s := NewSink()
	if s.Update(func(st *Status) { st.State = StateCompleted }) {
		t.Error("plain update must not reach a terminal state")
	}
	if s.Update(func(st *Status) { st.State = StatePaused }) {
		t.Error("plain update must not pause")
	}

	s.Update(func(st *Status) { st.State = StateDownloading })
	if s.Update(func(st *Status) { st.State = StateStarting }) {
		t.Error("downloading must not go back to starting")
	}
}

func TestSinkPauseResumeRestoresPriorState(t *testing.T) {
	s := NewSink()

	// Before the first callback
	if !s.Pause() {
		t.Fatal("pause from starting should apply")
	}
	if !s.Resume() {
		t.Fatal("resume should apply")
	}
	if got := s.Read().State; got != StateStarting {
		t.Errorf("expected starting after resume, got %s", got)
	}

	// During transfer
	s.Update(func(st *Status) { st.State = StateDownloading })
	s.Pause()
	s.Resume()
	if got := s.Read().State; got != StateDownloading {
		t.Errorf("expected downloading after resume, got %s", got)
	}

	if s.Resume() {
		t.Error("resume when not paused should be a no-op")
	}
}

func TestSinkFrozenWhilePaused(t *testing.T) {
	s := NewSink()
	s.Update(func(st *Status) {
		st.State = StateDownloading
		st.DownloadedBytes = 5
	})
	s.Pause()

	if s.Update(func(st *Status) { st.DownloadedBytes = 50 }) {
		t.Error("field updates should be rejected while paused")
	}
	if got := s.Read().DownloadedBytes; got != 5 {
		t.Errorf("expected frozen 5 bytes, got %d", got)
	}

	if !s.Finish(StateStopped, nil) {
		t.Error("a paused job can still be stopped")
	}
}

func TestSinkConcurrentReadsAreConsistent(t *testing.T) {
	s := NewSink()
	const total = 1 << 20

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := s.Read()
				if st.TotalBytes > 0 && st.DownloadedBytes > st.TotalBytes {
					t.Errorf("torn snapshot: %d > %d", st.DownloadedBytes, st.TotalBytes)
					return
				}
				// Total and downloaded are always written together
				if st.DownloadedBytes > 0 && st.TotalBytes == 0 {
					t.Errorf("torn snapshot: downloaded without total")
					return
				}
			}
		}()
	}

	for i := int64(1); i <= 2000; i++ {
		downloaded := i * total / 2000
		tot := int64(total) + i // total shifts as estimates improve
		s.Update(func(st *Status) {
			st.State = StateDownloading
			st.DownloadedBytes = downloaded
			st.TotalBytes = tot
		})
	}
	close(stop)
	wg.Wait()
}

func TestSinkObserve(t *testing.T) {
	s := NewSink()
	var seen []State
	s.observe(func(st Status, prev State) {
		seen = append(seen, st.State)
	})

	s.Update(func(st *Status) { st.State = StateDownloading })
	s.Finish(StateCompleted, nil)
	s.Update(func(st *Status) { st.Percent = "1%" }) // rejected, not observed

	if len(seen) != 2 || seen[0] != StateDownloading || seen[1] != StateCompleted {
		t.Errorf("unexpected observations: %v", seen)
	}
}
