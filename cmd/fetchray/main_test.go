package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gwlsn/fetchray"
	"github.com/gwlsn/fetchray/internal/engine"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	// A broken config must not matter for version
	t.Setenv("FETCHRAY_CONFIG", filepath.Join(t.TempDir(), "broken.yaml"))
	os.WriteFile(os.Getenv("FETCHRAY_CONFIG"), []byte("port: [nope"), 0644)

	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(out) != "fetchray v"+fetchray.Version {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestSweepCommand(t *testing.T) {
	tmpDir := t.TempDir()
	downloads := filepath.Join(tmpDir, "downloads")
	if err := os.MkdirAll(downloads, 0755); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(tmpDir, "fetchray.yaml")
	cfgData := "download_dir: " + downloads + "\ndata_dir: " + filepath.Join(tmpDir, "data") + "\nlog_level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0644); err != nil {
		t.Fatal(err)
	}

	old := filepath.Join(downloads, "old.mp4")
	fresh := filepath.Join(downloads, "fresh.mp4")
	os.WriteFile(old, []byte("old"), 0644)
	os.WriteFile(fresh, []byte("fresh"), 0644)
	past := time.Now().Add(-3 * time.Hour)
	os.Chtimes(old, past, past)

	out, err := runCommand(t, "sweep", "--config", cfgPath, "--older-than", "2h")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if !strings.Contains(out, "Removed: 1 files") {
		t.Errorf("unexpected sweep output %q", out)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected old file removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("expected fresh file kept")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "fetchray.yaml")
	os.WriteFile(cfgPath, []byte("audio_codec: aiff\n"), 0644)

	_, err := runCommand(t, "sweep", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "audio_codec") {
		t.Errorf("expected audio_codec validation error, got %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Label"},
		[][]string{{"18", "360p"}, {"140"}},
		[]columnAlignment{alignLeft, alignLeft},
		false,
	)
	for _, want := range []string{"ID", "LABEL", "18", "360p", "140"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Error("expected empty table for no headers")
	}
}

func TestFormatRows(t *testing.T) {
	size := int64(2 << 20)
	video := formatRows([]engine.FormatDescriptor{
		{FormatID: "137", Ext: "mp4", Height: 1080, FPS: 29.97, Label: "1080p"},
	}, true)
	if got := video[0]; got[2] != "1080p" || got[3] != "30" || got[4] != "?" {
		t.Errorf("unexpected video row %v", got)
	}

	audio := formatRows([]engine.FormatDescriptor{
		{FormatID: "140", Ext: "m4a", ABR: 129.5, Filesize: &size, Label: "mp4a"},
	}, false)
	if got := audio[0]; got[2] != "130k" || got[3] != "2.0 MiB" {
		t.Errorf("unexpected audio row %v", got)
	}
}
