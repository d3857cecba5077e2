package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{65 * time.Second, "1m 5s"},
		{3600 * time.Second, "1h 0m"},
		{3665 * time.Second, "1h 1m"},
		{-1 * time.Second, ""},
	}

	for _, tt := range tests {
		result := FormatDuration(tt.input)
		if result != tt.expected {
			t.Errorf("FormatDuration(%v) = %s, expected %s", tt.input, result, tt.expected)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "N/A"},
		{59, "00:59"},
		{61, "01:01"},
		{3599, "59:59"},
		{3661, "1:01:01"},
		{36000, "10:00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.expected {
			t.Errorf("FormatClock(%v) = %q, expected %q", tt.seconds, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{10 * 1024 * 1024, "10 MiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.input); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatETA(t *testing.T) {
	if got := FormatETA(0); got != "--:--" {
		t.Errorf("expected --:-- for unknown eta, got %q", got)
	}
	if got := FormatETA(192 * time.Second); got != "03:12" {
		t.Errorf("expected 03:12, got %q", got)
	}
}
