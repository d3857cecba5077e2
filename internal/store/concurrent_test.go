package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/fetchray/internal/jobs"
)

func TestConcurrency_MultipleWriters(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	numWorkers := 10
	opsPerWorker := 20

	var wg sync.WaitGroup
	errors := make(chan error, numWorkers*opsPerWorker)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				job := createFinishedJob(fmt.Sprintf("w%d-j%d", workerID, i), jobs.StateCompleted, 10, time.Now())
				if err := store.RecordFinished(job); err != nil {
					errors <- fmt.Errorf("worker %d job %d: %w", workerID, i, err)
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Error(err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	want := numWorkers * opsPerWorker
	if stats.Total != want || stats.LifetimeCompleted != int64(want) {
		t.Errorf("expected %d recorded downloads, got %+v", want, stats)
	}
	if stats.LifetimeBytes != int64(want*10) {
		t.Errorf("expected %d lifetime bytes, got %d", want*10, stats.LifetimeBytes)
	}
}

func TestConcurrency_ReadersDuringWrites(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 50; i++ {
			store.RecordFinished(createFinishedJob(fmt.Sprintf("j%d", i), jobs.StateStopped, 0, time.Now()))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := store.History(10); err != nil {
					t.Errorf("history read failed: %v", err)
					return
				}
				if _, err := store.Stats(); err != nil {
					t.Errorf("stats read failed: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()
}
