package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// progressInterval is how often yt-dlp progress is delivered to callers.
const progressInterval = 250 * time.Millisecond

// YTDLP drives the yt-dlp executable through go-ytdlp.
type YTDLP struct {
	executable string
}

// NewYTDLP creates an engine. An empty executable uses yt-dlp from PATH or the
// go-ytdlp cache.
func NewYTDLP(executable string) *YTDLP {
	return &YTDLP{executable: executable}
}

// Install downloads a yt-dlp binary into the user cache if none is available.
func Install(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("install yt-dlp: %w", err)
	}
	return resolved.Executable, nil
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// Probe extracts metadata and the format list for url without downloading.
func (y *YTDLP) Probe(ctx context.Context, url string, opts ProbeOptions) (*MediaInfo, error) {
	cmd := y.command().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist()
	if opts.CookieFile != "" {
		cmd.Cookies(opts.CookieFile)
	}

	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseInfoJSON([]byte(result.Stdout))
}

// Fetch downloads one item, applies postprocessing, and resolves the final file.
func (y *YTDLP) Fetch(ctx context.Context, req *FetchRequest, progress ProgressFunc) (*FetchResult, error) {
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	cmd := y.command().
		Format(req.Format).
		Output(req.OutputTemplate()).
		NoPlaylist().
		Retries(strconv.Itoa(req.Retries)).
		FragmentRetries(strconv.Itoa(req.FragmentRetries))
	if req.CookieFile != "" {
		cmd.Cookies(req.CookieFile)
	}

	if req.Post.ExtractAudio {
		cmd.ExtractAudio().AudioFormat(req.Post.AudioCodec)
		if req.Post.AudioQuality != "" {
			cmd.AudioQuality(req.Post.AudioQuality)
		}
	} else {
		if req.Post.MergeContainer != "" {
			cmd.MergeOutputFormat(req.Post.MergeContainer)
		}
		if req.Post.RecodeContainer != "" {
			cmd.RecodeVideo(req.Post.RecodeContainer)
		}
	}

	if progress != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			progress(convertUpdate(update))
		})
	}

	if _, err := cmd.Run(ctx, req.URL); err != nil {
		return nil, err
	}

	path, err := ResolveArtifact(req.OutputDir, req.BaseName, req.TargetExt)
	if err != nil {
		return nil, fmt.Errorf("locate output for %q: %w", req.BaseName, err)
	}
	res := &FetchResult{Path: path}
	if info, err := os.Stat(path); err == nil {
		res.Size = info.Size()
	}
	return res, nil
}

func convertUpdate(update ytdlp.ProgressUpdate) ProgressEvent {
	ev := ProgressEvent{
		Status:          ProgressStatus(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		Filename:        update.Filename,
	}
	if ev.TotalBytes > 0 {
		ev.ETA = update.ETA()
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started); elapsed > 0 {
			ev.Speed = float64(ev.DownloadedBytes) / elapsed.Seconds()
		}
	}
	return ev
}

// probeFormat widens the filesize fields, which yt-dlp may emit as floats or
// only as an approximation.
type probeFormat struct {
	RawFormat
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
}

type probeInfo struct {
	MediaInfo
	ViewCount *float64      `json:"view_count"`
	Formats   []probeFormat `json:"formats"`
}

// ParseInfoJSON decodes yt-dlp's --dump-single-json output.
func ParseInfoJSON(data []byte) (*MediaInfo, error) {
	var raw probeInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := raw.MediaInfo
	if raw.ViewCount != nil {
		info.ViewCount = int64(*raw.ViewCount)
	}
	info.Formats = make([]RawFormat, 0, len(raw.Formats))
	for _, pf := range raw.Formats {
		f := pf.RawFormat
		switch {
		case pf.Filesize != nil && *pf.Filesize > 0:
			f.Filesize = int64(*pf.Filesize)
		case pf.FilesizeApprox != nil && *pf.FilesizeApprox > 0:
			f.Filesize = int64(*pf.FilesizeApprox)
		}
		if pf.Width != nil {
			f.Width = int(*pf.Width)
		}
		if pf.Height != nil {
			f.Height = int(*pf.Height)
		}
		info.Formats = append(info.Formats, f)
	}
	return &info, nil
}
