package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gwlsn/fetchray/internal/util"
)

// FormatDescriptor is a listable format derived from a probe.
type FormatDescriptor struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	Filesize *int64  `json:"filesize"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	ABR      float64 `json:"abr,omitempty"`
	TBR      float64 `json:"tbr,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec"`
	HasAudio bool    `json:"has_audio,omitempty"`
	Label    string  `json:"label"`
}

// VideoFormats lists formats with a video stream, an id, and a height,
// best resolution first.
func VideoFormats(info *MediaInfo) []FormatDescriptor {
	var out []FormatDescriptor
	for _, f := range info.Formats {
		if !f.HasVideo() || f.ID == "" || f.Height == 0 {
			continue
		}
		ext := f.Ext
		if ext == "" {
			ext = "mp4"
		}
		d := FormatDescriptor{
			FormatID: f.ID,
			Ext:      ext,
			Filesize: sizePtr(f.Filesize),
			Height:   f.Height,
			FPS:      f.FPS,
			TBR:      f.TBR,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			HasAudio: f.HasAudio(),
		}
		d.Label = videoLabel(f)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height > out[j].Height
		}
		return out[i].FPS > out[j].FPS
	})
	return out
}

// AudioFormats lists audio-only formats with an id and a bitrate,
// highest bitrate first. Formats already listed as video are excluded.
func AudioFormats(info *MediaInfo) []FormatDescriptor {
	var out []FormatDescriptor
	for _, f := range info.Formats {
		if f.HasVideo() && f.ID != "" && f.Height != 0 {
			continue
		}
		if !f.HasAudio() || f.ID == "" || f.ABR == 0 {
			continue
		}
		ext := f.Ext
		if ext == "" {
			ext = "mp3"
		}
		out = append(out, FormatDescriptor{
			FormatID: f.ID,
			Ext:      ext,
			Filesize: sizePtr(f.Filesize),
			ABR:      f.ABR,
			ACodec:   f.ACodec,
			Label:    audioLabel(f),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ABR > out[j].ABR
	})
	return out
}

// FormatIDs returns every raw format id in the probe, listed or not.
func FormatIDs(info *MediaInfo) map[string]struct{} {
	ids := make(map[string]struct{}, len(info.Formats))
	for _, f := range info.Formats {
		if f.ID != "" {
			ids[f.ID] = struct{}{}
		}
	}
	return ids
}

// BestThumbnail returns the widest thumbnail, falling back to the single
// thumbnail field.
func BestThumbnail(info *MediaInfo) string {
	best := info.Thumbnail
	width := -1
	for _, t := range info.Thumbnails {
		if t.URL != "" && t.Width > width {
			best, width = t.URL, t.Width
		}
	}
	return best
}

// CodecFamily strips the profile suffix from a codec string ("avc1.640028" -> "avc1").
func CodecFamily(codec string) string {
	family, _, _ := strings.Cut(codec, ".")
	return family
}

func videoLabel(f RawFormat) string {
	parts := []string{strconv.Itoa(f.Height) + "p"}
	if f.FPS > 0 {
		parts = append(parts, formatNumber(f.FPS)+"fps")
	}
	parts = append(parts, CodecFamily(f.VCodec))
	if f.HasAudio() {
		parts = append(parts, "with audio")
	}
	parts = append(parts, sizeLabel(f.Filesize))
	return strings.Join(parts, " ")
}

func audioLabel(f RawFormat) string {
	parts := []string{
		CodecFamily(f.ACodec),
		formatNumber(f.ABR) + "kbps",
		sizeLabel(f.Filesize),
	}
	return strings.Join(parts, " ")
}

func sizeLabel(size int64) string {
	if size <= 0 {
		return "Unknown size"
	}
	return util.FormatBytes(size)
}

// formatNumber renders 30 as "30" and 129.478 as "129".
func formatNumber(v float64) string {
	return strconv.FormatFloat(float64(int64(v+0.5)), 'f', -1, 64)
}

func sizePtr(size int64) *int64 {
	if size <= 0 {
		return nil
	}
	return &size
}

// Summary is the listing returned for an info query.
type Summary struct {
	Title          string             `json:"title"`
	Thumbnail      string             `json:"thumbnail"`
	Duration       float64            `json:"duration"`
	DurationString string             `json:"duration_string"`
	Uploader       string             `json:"uploader"`
	ViewCount      int64              `json:"view_count"`
	VideoFormats   []FormatDescriptor `json:"video_formats"`
	AudioFormats   []FormatDescriptor `json:"audio_formats"`
}

// Summarize builds the listing for a probe, filling display defaults.
func Summarize(info *MediaInfo) *Summary {
	s := &Summary{
		Title:          info.Title,
		Thumbnail:      BestThumbnail(info),
		Duration:       info.Duration,
		DurationString: util.FormatClock(info.Duration),
		Uploader:       info.Uploader,
		ViewCount:      info.ViewCount,
		VideoFormats:   VideoFormats(info),
		AudioFormats:   AudioFormats(info),
	}
	if s.Title == "" {
		s.Title = "Untitled Video"
	}
	if s.Uploader == "" {
		s.Uploader = "Unknown uploader"
	}
	if s.VideoFormats == nil {
		s.VideoFormats = []FormatDescriptor{}
	}
	if s.AudioFormats == nil {
		s.AudioFormats = []FormatDescriptor{}
	}
	return s
}
