package jobs

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gwlsn/fetchray/internal/config"
	"github.com/gwlsn/fetchray/internal/testsupport"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Video", "My Video"},
		{`AC/DC: Live "Wembley" <1986>?`, "ACDC Live Wembley 1986"},
		{`a\b*c|d`, "abcd"},
		{"tab\there\nnewline", "tabherenewline"},
		{"  .hidden.  ", "hidden"},
		{"Cafe\u0301", "Caf\u00e9"}, // NFC composes e + combining acute
		{`/\:*?"<>|`, ""},
	}
	for _, tt := range tests {
		if got := SanitizeTitle(tt.in); got != tt.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTitleLimitsByteLength(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", strings.Repeat("a", 300), strings.Repeat("a", 200)},
		{"three-byte runes", strings.Repeat("あ", 100), strings.Repeat("あ", 66)},
		{"rune straddles limit", strings.Repeat("x", 199) + "é", strings.Repeat("x", 199)},
		{"trailing space after cut", strings.Repeat("y", 199) + " tail", strings.Repeat("y", 199)},
		{"short", "あいう", "あいう"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeTitle(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeTitle = %q (%d bytes), want %d bytes", got, len(got), len(tt.want))
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestResolveTitle(t *testing.T) {
	if got := resolveTitle("Requested", "Probed"); got != "Requested" {
		t.Errorf("expected request title, got %q", got)
	}
	if got := resolveTitle("???", "Probed"); got != "Probed" {
		t.Errorf("expected probed title fallback, got %q", got)
	}
	if got := resolveTitle("", ""); got != DefaultTitle {
		t.Errorf("expected %q, got %q", DefaultTitle, got)
	}
}

func TestPolicyIsAudioOnly(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	info := testsupport.SampleInfo("x")

	tests := []struct {
		id   string
		want bool
	}{
		{"140", true},       // prefix
		{"251", true},       // prefix
		{"ba", true},        // prefix
		{"bestaudio", false}, // prefixes are literal and there is no probed record
		{"hls-audio", true}, // no video in the probed record
		{"137", false},
		{"18", false},
	}
	for _, tt := range tests {
		if got := p.IsAudioOnly(tt.id, info); got != tt.want {
			t.Errorf("IsAudioOnly(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestPolicyPlan(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	info := testsupport.SampleInfo("x")

	audio := p.Plan("251", info)
	if !audio.AudioOnly || audio.Selector != "bestaudio/best" || audio.TargetExt != "mp3" {
		t.Errorf("unexpected audio plan: %+v", audio)
	}
	if !audio.Post.ExtractAudio || audio.Post.AudioCodec != "mp3" || audio.Post.AudioQuality != "192" {
		t.Errorf("unexpected audio postprocessing: %+v", audio.Post)
	}

	video := p.Plan("137", info)
	if video.AudioOnly || video.Selector != "137+bestaudio" || video.TargetExt != "mp4" {
		t.Errorf("unexpected video plan: %+v", video)
	}
	if video.Post.ExtractAudio || video.Post.MergeContainer != "mp4" || video.Post.RecodeContainer != "mp4" {
		t.Errorf("unexpected video postprocessing: %+v", video.Post)
	}
}

func TestPolicyVorbisExtension(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AudioCodec = "vorbis"
	plan := PolicyFromConfig(cfg).Plan("140", nil)
	if plan.TargetExt != "ogg" {
		t.Errorf("expected ogg, got %s", plan.TargetExt)
	}
}
