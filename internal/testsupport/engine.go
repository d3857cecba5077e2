// Package testsupport provides a scriptable engine for package tests.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gwlsn/fetchray/internal/engine"
)

// Hold parks a fake Fetch before event After is delivered until Release
// is closed. Reached is closed when the fetch arrives at the hold.
type Hold struct {
	After   int
	Release chan struct{}
	Reached chan struct{}
	once    sync.Once
}

// NewHold creates a hold before event index after. An index at or past the
// end of the script holds after the last event.
func NewHold(after int) *Hold {
	return &Hold{
		After:   after,
		Release: make(chan struct{}),
		Reached: make(chan struct{}),
	}
}

func (h *Hold) wait(ctx context.Context) error {
	h.once.Do(func() { close(h.Reached) })
	select {
	case <-h.Release:
		return nil
	case <-ctx.Done():
		return interrupted(ctx.Err())
	}
}

// FakeEngine implements engine.Engine without touching the network.
//
// Fetch emits Events in order, parks on any Holds, honors context
// cancellation, and writes a real file at <OutputDir>/<BaseName>.<TargetExt>
// on success.
type FakeEngine struct {
	mu sync.Mutex

	// Info is returned by Probe; ProbeErr fails it instead
	Info     *engine.MediaInfo
	ProbeErr error

	// Events are delivered to the progress callback during Fetch
	Events []engine.ProgressEvent

	// Holds pause the script at fixed points
	Holds []*Hold

	// FetchErr fails Fetch after all events are delivered
	FetchErr error

	// Content is written to the artifact
	Content []byte

	probes   int
	requests []engine.FetchRequest
}

// NewFakeEngine returns an engine whose probe returns info.
func NewFakeEngine(info *engine.MediaInfo) *FakeEngine {
	return &FakeEngine{
		Info:    info,
		Content: []byte("fake media payload"),
	}
}

// Probe returns the scripted media info.
func (f *FakeEngine) Probe(ctx context.Context, url string, _ engine.ProbeOptions) (*engine.MediaInfo, error) {
	f.mu.Lock()
	f.probes++
	info, probeErr := f.Info, f.ProbeErr
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if probeErr != nil {
		return nil, probeErr
	}
	if info == nil {
		return nil, fmt.Errorf("ERROR: Unsupported URL: %s", url)
	}
	copied := *info
	return &copied, nil
}

// Fetch plays the script.
func (f *FakeEngine) Fetch(ctx context.Context, req *engine.FetchRequest, progress engine.ProgressFunc) (*engine.FetchResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	events := append([]engine.ProgressEvent(nil), f.Events...)
	holds := append([]*Hold(nil), f.Holds...)
	fetchErr, content := f.FetchErr, f.Content
	f.mu.Unlock()

	for i := 0; i <= len(events); i++ {
		for _, h := range holds {
			if h.After == i || (i == len(events) && h.After > i) {
				if err := h.wait(ctx); err != nil {
					return nil, err
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, interrupted(err)
		}
		if i < len(events) && progress != nil {
			progress(events[i])
		}
	}

	if fetchErr != nil {
		return nil, fetchErr
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(req.OutputDir, req.BaseName+"."+req.TargetExt)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, err
	}
	return &engine.FetchResult{Path: path, Size: int64(len(content))}, nil
}

// ProbeCount returns how many probes ran.
func (f *FakeEngine) ProbeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// Requests returns copies of every fetch request received.
func (f *FakeEngine) Requests() []engine.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.FetchRequest(nil), f.requests...)
}

// ErrInterrupted is what the fake returns when its context is cancelled.
var ErrInterrupted = errors.New("download interrupted")

func interrupted(cause error) error {
	return fmt.Errorf("%w: %v", ErrInterrupted, cause)
}

// SampleInfo returns a probe result with one video, one muxed, and two audio formats.
func SampleInfo(title string) *engine.MediaInfo {
	return &engine.MediaInfo{
		ID:        "sample",
		Title:     title,
		Uploader:  "Uploader",
		Thumbnail: "https://img.example/thumb.jpg",
		Duration:  125,
		ViewCount: 42,
		Formats: []engine.RawFormat{
			{ID: "137", Ext: "mp4", VCodec: "avc1.640028", ACodec: "none", Width: 1920, Height: 1080, FPS: 30, Filesize: 50 << 20},
			{ID: "18", Ext: "mp4", VCodec: "avc1.42001E", ACodec: "mp4a.40.2", Width: 640, Height: 360, FPS: 30, Filesize: 5 << 20},
			{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a.40.2", ABR: 129.5, Filesize: 3 << 20},
			{ID: "251", Ext: "webm", VCodec: "none", ACodec: "opus", ABR: 160},
			{ID: "hls-audio", Ext: "mp4", VCodec: "none", ACodec: "mp4a.40.2", ABR: 96},
		},
	}
}

// DownloadEvents returns n downloading events over total bytes followed by a
// finished event.
func DownloadEvents(n int, total int64) []engine.ProgressEvent {
	events := make([]engine.ProgressEvent, 0, n+1)
	for i := 1; i <= n; i++ {
		events = append(events, engine.ProgressEvent{
			Status:          engine.ProgressDownloading,
			DownloadedBytes: total * int64(i) / int64(n),
			TotalBytes:      total,
			Speed:           1 << 20,
		})
	}
	events = append(events, engine.ProgressEvent{
		Status:          engine.ProgressFinished,
		DownloadedBytes: total,
		TotalBytes:      total,
	})
	return events
}
