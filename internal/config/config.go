package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as text ("1h", "90s") in
// both YAML and TOML files.
type Duration time.Duration

// UnmarshalText parses a Go duration string. A bare "0" is accepted.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SiteCookie associates a cookie file with a site that requires authentication.
type SiteCookie struct {
	// Domain matches the URL host exactly or as a parent domain ("facebook.com")
	Domain string `yaml:"domain" toml:"domain" validate:"required"`

	// File is a Netscape cookie file; relative paths resolve against DataDir
	File string `yaml:"file" toml:"file" validate:"required"`
}

type Config struct {
	// Port is the HTTP port to listen on (default 5000)
	Port int `yaml:"port" toml:"port" validate:"min=1,max=65535"`

	// DownloadDir is where finished artifacts are written and later swept
	DownloadDir string `yaml:"download_dir" toml:"download_dir" validate:"required"`

	// DataDir holds the history database and the instance lock
	DataDir string `yaml:"data_dir" toml:"data_dir" validate:"required"`

	// Retention is how long an artifact may sit in DownloadDir before the sweeper deletes it
	Retention Duration `yaml:"retention" toml:"retention" validate:"gt=0"`

	// SweepInterval is how often the sweeper scans DownloadDir
	SweepInterval Duration `yaml:"sweep_interval" toml:"sweep_interval" validate:"gt=0"`

	// JobTTL evicts finished job records older than this from memory (0 disables eviction)
	JobTTL Duration `yaml:"job_ttl" toml:"job_ttl" validate:"gte=0"`

	// MaxConcurrent caps simultaneous engine sessions; extra jobs wait in "starting"
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent" validate:"min=1,max=32"`

	// Retries and FragmentRetries bound transient fetch failures inside the engine
	Retries         int `yaml:"retries" toml:"retries" validate:"min=0,max=50"`
	FragmentRetries int `yaml:"fragment_retries" toml:"fragment_retries" validate:"min=0,max=50"`

	// AudioCodec and AudioQuality drive audio-only extraction ("mp3" at "192" kbps by default)
	AudioCodec   string `yaml:"audio_codec" toml:"audio_codec"`
	AudioQuality string `yaml:"audio_quality" toml:"audio_quality" validate:"required"`

	// VideoContainer is the container video+audio downloads are merged into
	VideoContainer string `yaml:"video_container" toml:"video_container"`

	// AudioFormatPrefixes are format id prefixes treated as audio-only requests
	AudioFormatPrefixes []string `yaml:"audio_format_prefixes" toml:"audio_format_prefixes"`

	// Cookies lists per-site authentication material
	Cookies []SiteCookie `yaml:"cookies" toml:"cookies" validate:"dive"`

	// ProbeTimeout bounds a single format probe
	ProbeTimeout Duration `yaml:"probe_timeout" toml:"probe_timeout" validate:"gt=0"`

	// ProbeRate is the sustained probes per second allowed against the engine (0 = unlimited)
	ProbeRate  float64 `yaml:"probe_rate" toml:"probe_rate" validate:"gte=0"`
	ProbeBurst int     `yaml:"probe_burst" toml:"probe_burst" validate:"gte=0"`

	// LogLevel controls logging verbosity: debug, info, warn, error (default: info)
	LogLevel string `yaml:"log_level" toml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format" toml:"log_format" validate:"omitempty,oneof=text json"`

	// YTDLPPath is the yt-dlp executable (empty = PATH or the go-ytdlp cache)
	YTDLPPath string `yaml:"ytdlp_path" toml:"ytdlp_path"`

	// AutoInstall downloads a yt-dlp binary into the user cache when none is found
	AutoInstall bool `yaml:"auto_install" toml:"auto_install"`

	// History records finished downloads in the SQLite database under DataDir
	History bool `yaml:"history" toml:"history"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:                5000,
		DownloadDir:         "downloads",
		DataDir:             "config",
		Retention:           Duration(time.Hour),
		SweepInterval:       Duration(10 * time.Minute),
		JobTTL:              0,
		MaxConcurrent:       3,
		Retries:             3,
		FragmentRetries:     3,
		AudioCodec:          DefaultAudioCodec,
		AudioQuality:        "192",
		VideoContainer:      DefaultVideoContainer,
		AudioFormatPrefixes: []string{"ba", "140", "251"},
		Cookies: []SiteCookie{
			{Domain: "facebook.com", File: "facebook_cookies.txt"},
		},
		ProbeTimeout: Duration(60 * time.Second),
		ProbeRate:    2,
		ProbeBurst:   5,
		LogLevel:     "info",
		LogFormat:    "text",
		History:      true,
	}
}

// Load reads config from a YAML or TOML file (chosen by extension), applying
// defaults for missing values. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if isTOML(path) {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills zero values left behind by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.DownloadDir == "" {
		c.DownloadDir = def.DownloadDir
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Retention == 0 {
		c.Retention = def.Retention
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.AudioCodec == "" {
		c.AudioCodec = def.AudioCodec
	}
	if c.AudioQuality == "" {
		c.AudioQuality = def.AudioQuality
	}
	if c.VideoContainer == "" {
		c.VideoContainer = def.VideoContainer
	}
	if len(c.AudioFormatPrefixes) == 0 {
		c.AudioFormatPrefixes = def.AudioFormatPrefixes
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
}

// ApplyEnv overrides fields from FETCHRAY_* environment variables.
func (c *Config) ApplyEnv() error {
	if dir := os.Getenv("FETCHRAY_DOWNLOAD_DIR"); dir != "" {
		c.DownloadDir = dir
	}
	if dir := os.Getenv("FETCHRAY_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if port := os.Getenv("FETCHRAY_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("FETCHRAY_PORT: %w", err)
		}
		c.Port = n
	}
	if exe := os.Getenv("FETCHRAY_YTDLP_PATH"); exe != "" {
		c.YTDLPPath = exe
	}
	if lvl := os.Getenv("FETCHRAY_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the codec/container choices.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if !IsValidAudioCodec(c.AudioCodec) {
		return fmt.Errorf("invalid config: audio_codec %q (valid: %s)", c.AudioCodec, strings.Join(ValidAudioCodecs, ", "))
	}
	if !IsValidVideoContainer(c.VideoContainer) {
		return fmt.Errorf("invalid config: video_container %q (valid: %s)", c.VideoContainer, strings.Join(ValidVideoContainers, ", "))
	}
	return nil
}

// Save writes the config to a YAML or TOML file, chosen by extension
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveDataPath returns p unchanged when absolute, otherwise joined onto DataDir.
func (c *Config) ResolveDataPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// DBPath returns the history database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "fetchray.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "fetchray.lock")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
