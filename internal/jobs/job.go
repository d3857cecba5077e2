package jobs

import (
	"time"
)

// State is a job's lifecycle state.
type State string

const (
	StateStarting    State = "starting"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateError       State = "error"
	StateStopped     State = "stopped"
)

// IsTerminal returns true if the job can no longer change state
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateStopped
}

// Status is the observable progress record of a job.
type Status struct {
	State           State     `json:"status"`
	Percent         string    `json:"percent"`
	Speed           string    `json:"speed"`
	ETA             string    `json:"eta"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
	Error           string    `json:"error,omitempty"`
	FinalPath       string    `json:"final_path,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	FileSize        int64     `json:"file_size,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}

// initialStatus is what every job reports before the engine says anything.
func initialStatus() Status {
	return Status{
		State:     StateStarting,
		Percent:   "0%",
		Speed:     "0 B/s",
		ETA:       "--:--",
		UpdatedAt: time.Now(),
	}
}

// Job is a point-in-time view of a registered job
type Job struct {
	ID        string    `json:"job_id"`
	URL       string    `json:"url"`
	FormatID  string    `json:"format_id"`
	Title     string    `json:"title"`
	AudioOnly bool      `json:"audio_only"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Status
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Spec describes the job to register.
type Spec struct {
	URL       string
	FormatID  string
	Title     string // sanitized display title, also the artifact base name
	AudioOnly bool
}

// JobEvent represents an event for SSE streaming
type JobEvent struct {
	Type string `json:"type"` // "added", "progress", "paused", "resumed", "completed", "error", "stopped", "removed"
	Job  *Job   `json:"job"`
}
