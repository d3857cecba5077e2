// Package sweeper deletes downloaded artifacts once they outlive the
// retention window.
package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gwlsn/fetchray/internal/logger"
	"github.com/gwlsn/fetchray/internal/util"
)

// Evictor drops finished job records older than a cutoff.
type Evictor interface {
	EvictFinished(before time.Time) int
}

// Result summarizes one sweep.
type Result struct {
	Removed int   `json:"removed"`
	Bytes   int64 `json:"bytes"`
	Failed  int   `json:"failed"`
	Evicted int   `json:"evicted"`
}

// Sweeper reclaims storage in one directory. It never consults job state;
// file age is the only criterion.
type Sweeper struct {
	dir       string
	retention time.Duration
	interval  time.Duration

	evictor Evictor
	jobTTL  time.Duration

	mu  sync.Mutex // one sweep at a time
	now func() time.Time
}

// New creates a sweeper for dir.
func New(dir string, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		dir:       dir,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// WithEviction also evicts job records finished more than ttl ago on each
// sweep. A ttl of zero leaves records alone.
func (s *Sweeper) WithEviction(ev Evictor, ttl time.Duration) *Sweeper {
	s.evictor = ev
	s.jobTTL = ttl
	return s
}

// Sweep deletes every regular, non-hidden file in the directory whose
// modification time is older than the retention window. Failures on
// individual files are logged and skipped.
func (s *Sweeper) Sweep() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	now := s.now()
	cutoff := now.Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Sweep failed to read directory", "dir", s.dir, "error", err)
		}
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			res.Failed++
			logger.Debug("Sweep could not remove file", "file", path, "error", err)
			continue
		}
		res.Removed++
		res.Bytes += info.Size()
		logger.Debug("Swept file", "file", e.Name(), "age", util.FormatDuration(now.Sub(info.ModTime())))
	}

	if s.evictor != nil && s.jobTTL > 0 {
		res.Evicted = s.evictor.EvictFinished(now.Add(-s.jobTTL))
	}

	if res.Removed > 0 || res.Evicted > 0 {
		logger.Info("Sweep finished",
			"removed", res.Removed,
			"freed", util.FormatBytes(res.Bytes),
			"evicted_jobs", res.Evicted)
	}
	return res
}

// Run sweeps on every interval tick until ctx is done, then sweeps once
// more before returning.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()
	for {
		select {
		case <-ctx.Done():
			s.Sweep()
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}
