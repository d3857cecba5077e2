package jobs

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gwlsn/fetchray/internal/config"
	"github.com/gwlsn/fetchray/internal/engine"
)

// DefaultTitle names the artifact when neither the request nor the probe has a usable title.
const DefaultTitle = "download"

// Policy turns a requested format id into engine instructions.
type Policy struct {
	AudioPrefixes  []string
	AudioCodec     string
	AudioQuality   string
	VideoContainer string
}

// PolicyFromConfig builds the policy from config values.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		AudioPrefixes:  cfg.AudioFormatPrefixes,
		AudioCodec:     cfg.AudioCodec,
		AudioQuality:   cfg.AudioQuality,
		VideoContainer: cfg.VideoContainer,
	}
}

// Plan is the resolved selector and postprocessing for one job.
type Plan struct {
	AudioOnly bool
	Selector  string
	TargetExt string
	Post      engine.Postprocess
}

// IsAudioOnly reports whether formatID asks for audio only: either by
// prefix convention or because the probed record has no video stream.
func (p Policy) IsAudioOnly(formatID string, info *engine.MediaInfo) bool {
	for _, prefix := range p.AudioPrefixes {
		if prefix != "" && strings.HasPrefix(formatID, prefix) {
			return true
		}
	}
	if info != nil {
		if f, ok := info.Format(formatID); ok && !f.HasVideo() && f.HasAudio() {
			return true
		}
	}
	return false
}

// Plan derives the engine instructions for formatID.
// Audio requests take the best audio and transcode it; video requests merge
// the chosen stream with the best audio into the configured container.
func (p Policy) Plan(formatID string, info *engine.MediaInfo) Plan {
	if p.IsAudioOnly(formatID, info) {
		return Plan{
			AudioOnly: true,
			Selector:  "bestaudio/best",
			TargetExt: config.AudioExtension(p.AudioCodec),
			Post: engine.Postprocess{
				ExtractAudio: true,
				AudioCodec:   p.AudioCodec,
				AudioQuality: p.AudioQuality,
			},
		}
	}
	return Plan{
		Selector:  formatID + "+bestaudio",
		TargetExt: p.VideoContainer,
		Post: engine.Postprocess{
			MergeContainer:  p.VideoContainer,
			RecodeContainer: p.VideoContainer,
		},
	}
}

// illegal in file names on at least one common filesystem
const illegalFilenameChars = `\/*?:"<>|`

// SanitizeTitle makes a display title safe to use as a file name.
// The result may be empty; callers fall back to another title.
func SanitizeTitle(title string) string {
	title = norm.NFC.String(title)
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalFilenameChars, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, title)
	// no leading dot (hidden file) and no trailing dot or space
	return strings.Trim(truncateBytes(strings.Trim(title, " ."), maxTitleBytes), " .")
}

// maxTitleBytes keeps <title>.f<id>.<ext>.part under the 255-byte NAME_MAX.
const maxTitleBytes = 200

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

// resolveTitle picks the first candidate that survives sanitizing.
func resolveTitle(candidates ...string) string {
	for _, c := range candidates {
		if s := SanitizeTitle(c); s != "" {
			return s
		}
	}
	return DefaultTitle
}
