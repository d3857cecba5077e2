package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count with binary units ("1.5 MiB").
// Zero and negative counts render as "0 B".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatDuration renders an elapsed or remaining time compactly ("1h 5m", "2m 3s", "7s").
// Negative durations render as an empty string.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return ""
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatClock renders a media length in seconds as H:MM:SS, or MM:SS when under an hour.
// Unknown lengths (zero or negative) render as "N/A".
func FormatClock(seconds float64) string {
	if seconds <= 0 {
		return "N/A"
	}
	total := int(seconds)
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d", h))
	}
	parts = append(parts, fmt.Sprintf("%02d", m), fmt.Sprintf("%02d", s))
	return strings.Join(parts, ":")
}

// FormatETA renders remaining time the way download progress lines show it ("03:12", "1:02:03").
// Unknown values render as "--:--".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	return FormatClock(d.Seconds())
}

// FormatRate renders a transfer rate in bytes per second ("1.2 MiB/s").
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
