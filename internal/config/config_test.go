package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Port)
	}
	if cfg.Retention.Std() != time.Hour {
		t.Errorf("expected 1h retention, got %v", cfg.Retention.Std())
	}
	if cfg.SweepInterval.Std() != 10*time.Minute {
		t.Errorf("expected 10m sweep interval, got %v", cfg.SweepInterval.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchray.yaml")
	data := "port: 8080\nretention: 30m\njob_ttl: 2h\naudio_codec: opus\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Retention.Std() != 30*time.Minute {
		t.Errorf("expected 30m retention, got %v", cfg.Retention.Std())
	}
	if cfg.JobTTL.Std() != 2*time.Hour {
		t.Errorf("expected 2h ttl, got %v", cfg.JobTTL.Std())
	}
	if cfg.AudioCodec != "opus" {
		t.Errorf("expected opus, got %s", cfg.AudioCodec)
	}
	// Untouched fields keep their defaults
	if cfg.MaxConcurrent != 3 {
		t.Errorf("expected default max_concurrent 3, got %d", cfg.MaxConcurrent)
	}
	if len(cfg.AudioFormatPrefixes) != 3 {
		t.Errorf("expected default prefixes, got %v", cfg.AudioFormatPrefixes)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchray.toml")
	data := `port = 9000
download_dir = "/srv/media"
sweep_interval = "1m"

[[cookies]]
domain = "example.com"
file = "example.txt"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.DownloadDir != "/srv/media" {
		t.Errorf("unexpected values: port=%d dir=%s", cfg.Port, cfg.DownloadDir)
	}
	if cfg.SweepInterval.Std() != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.SweepInterval.Std())
	}
	if len(cfg.Cookies) != 1 || cfg.Cookies[0].Domain != "example.com" {
		t.Errorf("unexpected cookies: %+v", cfg.Cookies)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchray.yaml")
	if err := os.WriteFile(path, []byte("retention: forever\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Port = 7000
			cfg.Retention = Duration(45 * time.Minute)

			if err := cfg.Save(path); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Port != 7000 {
				t.Errorf("expected port 7000, got %d", got.Port)
			}
			if got.Retention.Std() != 45*time.Minute {
				t.Errorf("expected 45m, got %v", got.Retention.Std())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, false},
		{"no download dir", func(c *Config) { c.DownloadDir = "" }, false},
		{"zero retention", func(c *Config) { c.Retention = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"bad codec", func(c *Config) { c.AudioCodec = "wma" }, false},
		{"bad container", func(c *Config) { c.VideoContainer = "avi" }, false},
		{"cookie missing file", func(c *Config) { c.Cookies = []SiteCookie{{Domain: "x.com"}} }, false},
		{"unlimited probes", func(c *Config) { c.ProbeRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FETCHRAY_DOWNLOAD_DIR", "/tmp/dl")
	t.Setenv("FETCHRAY_PORT", "6123")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.DownloadDir != "/tmp/dl" {
		t.Errorf("expected /tmp/dl, got %s", cfg.DownloadDir)
	}
	if cfg.Port != 6123 {
		t.Errorf("expected 6123, got %d", cfg.Port)
	}

	t.Setenv("FETCHRAY_PORT", "abc")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestResolveDataPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	if got := cfg.ResolveDataPath("c.txt"); got != filepath.Join("/data", "c.txt") {
		t.Errorf("got %s", got)
	}
	if got := cfg.ResolveDataPath("/abs/c.txt"); got != "/abs/c.txt" {
		t.Errorf("got %s", got)
	}
}

func TestAudioExtension(t *testing.T) {
	if AudioExtension("mp3") != "mp3" {
		t.Error("mp3 should keep its extension")
	}
	if AudioExtension("vorbis") != "ogg" {
		t.Error("vorbis should map to ogg")
	}
}
