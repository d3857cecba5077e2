package store

import (
	"time"

	"github.com/gwlsn/fetchray/internal/jobs"
)

// Store records finished downloads and lifetime counters.
// Implementations must be safe for concurrent use.
type Store interface {
	jobs.History

	// History returns the most recent finished downloads, newest first.
	// A limit <= 0 returns everything.
	History(limit int) ([]Entry, error)

	// Stats returns download counters.
	Stats() (Stats, error)

	// ResetSession zeroes the session counters. Lifetime counters are kept.
	ResetSession() error

	// Close closes the store and releases resources.
	Close() error
}

// Entry is one finished download.
type Entry struct {
	ID              string     `json:"job_id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	FormatID        string     `json:"format_id"`
	AudioOnly       bool       `json:"audio_only"`
	Status          jobs.State `json:"status"`
	Error           string     `json:"error,omitempty"`
	Filename        string     `json:"filename,omitempty"`
	FinalPath       string     `json:"final_path,omitempty"`
	FileSize        int64      `json:"file_size,omitempty"`
	DownloadedBytes int64      `json:"downloaded_bytes"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       time.Time  `json:"started_at,omitzero"`
	FinishedAt      time.Time  `json:"finished_at,omitzero"`
}

// Stats holds download statistics.
type Stats struct {
	Completed         int   `json:"completed"`
	Failed            int   `json:"failed"`
	Stopped           int   `json:"stopped"`
	Total             int   `json:"total"`
	SessionBytes      int64 `json:"session_bytes"`      // Bytes downloaded this session
	LifetimeBytes     int64 `json:"lifetime_bytes"`     // All-time bytes downloaded
	SessionCompleted  int64 `json:"session_completed"`  // Completed downloads this session
	LifetimeCompleted int64 `json:"lifetime_completed"` // All-time completed downloads
}
