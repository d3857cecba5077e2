// Package engine defines the media extraction/transcode capability the job
// manager drives, plus the yt-dlp backed implementation.
package engine

import (
	"context"
	"path/filepath"
	"time"
)

// Engine probes media URLs and fetches one item per call.
// Cancelling the Fetch context is the cooperative interrupt; implementations
// abort the transfer at the next segment boundary and return an error.
type Engine interface {
	Probe(ctx context.Context, url string, opts ProbeOptions) (*MediaInfo, error)
	Fetch(ctx context.Context, req *FetchRequest, progress ProgressFunc) (*FetchResult, error)
}

// ProbeOptions carries per-request extraction settings.
type ProbeOptions struct {
	CookieFile string // Netscape cookie file for sites that need authentication
}

// RawFormat is one format record as reported by the extractor.
type RawFormat struct {
	ID         string  `json:"format_id"`
	Ext        string  `json:"ext"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	ABR        float64 `json:"abr"` // audio bitrate, kbps
	TBR        float64 `json:"tbr"` // total bitrate, kbps
	Filesize   int64   `json:"filesize"`
	FormatNote string  `json:"format_note"`
}

// HasVideo reports whether the format carries a video stream.
func (f RawFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream.
func (f RawFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Thumbnail is one thumbnail candidate.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MediaInfo is the result of probing a URL. Nothing is downloaded.
type MediaInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Duration   float64     `json:"duration"` // seconds
	ViewCount  int64       `json:"view_count"`
	WebpageURL string      `json:"webpage_url"`
	Formats    []RawFormat `json:"formats"`
}

// Format returns the raw format record with the given id.
func (m *MediaInfo) Format(id string) (RawFormat, bool) {
	for _, f := range m.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return RawFormat{}, false
}

// ProgressStatus is the kind of a progress event.
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressFinished    ProgressStatus = "finished" // transfer done, postprocessing may follow
	ProgressError       ProgressStatus = "error"
)

// ProgressEvent is delivered to a ProgressFunc during Fetch.
type ProgressEvent struct {
	Status          ProgressStatus
	DownloadedBytes int64
	TotalBytes      int64         // 0 when unknown
	Speed           float64       // bytes per second
	ETA             time.Duration // 0 when unknown
	Filename        string
	Message         string // set for ProgressError
}

// Percent returns completion in [0,100], or 0 when the total is unknown.
func (e ProgressEvent) Percent() float64 {
	if e.TotalBytes <= 0 {
		return 0
	}
	p := float64(e.DownloadedBytes) / float64(e.TotalBytes) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// ProgressFunc receives progress events. Calls for one Fetch are sequential.
type ProgressFunc func(ProgressEvent)

// Postprocess describes what happens after the transfer.
type Postprocess struct {
	ExtractAudio    bool   // keep only audio, transcoded to AudioCodec
	AudioCodec      string // e.g. "mp3"
	AudioQuality    string // e.g. "192"
	MergeContainer  string // container for video+audio merges, e.g. "mp4"
	RecodeContainer string // recode the merged file into this container
}

// FetchRequest describes one download.
type FetchRequest struct {
	URL             string
	Format          string // format selector, e.g. "137+bestaudio" or "bestaudio/best"
	OutputDir       string
	BaseName        string // sanitized file name without extension
	TargetExt       string // extension the finished artifact is expected to have
	Retries         int
	FragmentRetries int
	CookieFile      string
	Post            Postprocess
}

// OutputTemplate returns the extractor output template for the request.
func (r *FetchRequest) OutputTemplate() string {
	return filepath.Join(r.OutputDir, r.BaseName+".%(ext)s")
}

// FetchResult describes the finished artifact.
type FetchResult struct {
	Path string
	Size int64
}
