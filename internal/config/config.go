// Package config loads videocutter settings: built-in defaults, then an
// optional TOML file, then VIDEOCUTTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mikhskaz/videocutter/internal/fsutil"
)

const (
	DefaultDataDir      = ".videocutter"
	DefaultLogLevel     = "info"
	DefaultFailuresDir  = "_failures"
	DefaultHistoryDepth = 1
	DefaultMinSegment   = 100 * time.Millisecond
	DefaultSeekStep     = 5 * time.Second
	DefaultFFmpegPath   = "ffmpeg"
	DefaultMPVPath      = "mpv"

	LogFilename     = "videocutter.log"
	JournalFilename = "journal.db"
	ConfigFilename  = "config.toml"

	EnvPrefix = "VIDEOCUTTER_"
)

// Config holds videocutter configuration.
type Config struct {
	DataDir        string
	LogLevel       string
	LogFile        string
	FailuresDir    string
	Recursive      bool
	HistoryDepth   int
	MinSegment     time.Duration
	ExtractTimeout time.Duration
	SeekStep       time.Duration
	FFmpegPath     string
	MPVPath        string
	JournalEnabled bool
	JournalPath    string
	StatusAddr     string
}

// fileConfig mirrors config.toml. Pointers distinguish "unset" from zero.
type fileConfig struct {
	DataDir        *string `toml:"data_dir"`
	LogLevel       *string `toml:"log_level"`
	LogFile        *string `toml:"log_file"`
	FailuresDir    *string `toml:"failures_dir"`
	Recursive      *bool   `toml:"recursive"`
	HistoryDepth   *int    `toml:"history_depth"`
	MinSegment     *string `toml:"min_segment"`
	ExtractTimeout *string `toml:"extract_timeout"`
	SeekStep       *string `toml:"seek_step"`
	FFmpegPath     *string `toml:"ffmpeg_path"`
	MPVPath        *string `toml:"mpv_path"`
	JournalEnabled *bool   `toml:"journal_enabled"`
	JournalPath    *string `toml:"journal_path"`
	StatusAddr     *string `toml:"status_addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir:        defaultDataDir(),
		LogLevel:       DefaultLogLevel,
		FailuresDir:    DefaultFailuresDir,
		Recursive:      true,
		HistoryDepth:   DefaultHistoryDepth,
		MinSegment:     DefaultMinSegment,
		SeekStep:       DefaultSeekStep,
		FFmpegPath:     DefaultFFmpegPath,
		MPVPath:        DefaultMPVPath,
		JournalEnabled: true,
	}
}

// DefaultPath returns the config file looked up when --config is not given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), ConfigFilename)
}

// Load builds the effective configuration. An explicit path must exist; the
// default path is optional.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath()
	}
	resolved, err := fsutil.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.mergeFile(resolved, explicit); err != nil {
		return nil, err
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	setString(&c.DataDir, fc.DataDir)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFile, fc.LogFile)
	setString(&c.FailuresDir, fc.FailuresDir)
	setString(&c.FFmpegPath, fc.FFmpegPath)
	setString(&c.MPVPath, fc.MPVPath)
	setString(&c.JournalPath, fc.JournalPath)
	setString(&c.StatusAddr, fc.StatusAddr)
	if fc.Recursive != nil {
		c.Recursive = *fc.Recursive
	}
	if fc.JournalEnabled != nil {
		c.JournalEnabled = *fc.JournalEnabled
	}
	if fc.HistoryDepth != nil {
		c.HistoryDepth = *fc.HistoryDepth
	}
	for _, d := range []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"min_segment", fc.MinSegment, &c.MinSegment},
		{"extract_timeout", fc.ExtractTimeout, &c.ExtractTimeout},
		{"seek_step", fc.SeekStep, &c.SeekStep},
	} {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) mergeEnv() error {
	overrideString(&c.DataDir, "DATA_DIR")
	overrideString(&c.LogLevel, "LOG_LEVEL")
	overrideString(&c.LogFile, "LOG_FILE")
	overrideString(&c.FailuresDir, "FAILURES_DIR")
	overrideString(&c.FFmpegPath, "FFMPEG_PATH")
	overrideString(&c.MPVPath, "MPV_PATH")
	overrideString(&c.JournalPath, "JOURNAL_PATH")
	overrideString(&c.StatusAddr, "STATUS_ADDR")
	if err := overrideBool(&c.Recursive, "RECURSIVE"); err != nil {
		return err
	}
	if err := overrideBool(&c.JournalEnabled, "JOURNAL_ENABLED"); err != nil {
		return err
	}
	if err := overrideInt(&c.HistoryDepth, "HISTORY_DEPTH"); err != nil {
		return err
	}
	if err := overrideDuration(&c.MinSegment, "MIN_SEGMENT"); err != nil {
		return err
	}
	if err := overrideDuration(&c.ExtractTimeout, "EXTRACT_TIMEOUT"); err != nil {
		return err
	}
	return overrideDuration(&c.SeekStep, "SEEK_STEP")
}

func (c *Config) normalize() error {
	dataDir, err := fsutil.ResolvePath(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = dataDir
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, LogFilename)
	} else if c.LogFile, err = fsutil.ResolvePath(c.LogFile); err != nil {
		return err
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(c.DataDir, JournalFilename)
	} else if c.JournalPath, err = fsutil.ResolvePath(c.JournalPath); err != nil {
		return err
	}
	name := strings.TrimSpace(c.FailuresDir)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid failures_dir %q: must be a single directory name", c.FailuresDir)
	}
	c.FailuresDir = name
	if c.HistoryDepth < 1 {
		return fmt.Errorf("invalid history_depth %d: must be at least 1", c.HistoryDepth)
	}
	if c.MinSegment < 0 || c.ExtractTimeout < 0 || c.SeekStep <= 0 {
		return errors.New("durations must not be negative and seek_step must be positive")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
		*dst = v
	}
}

func overrideBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	*dst = parsed
	return nil
}

func overrideInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	*dst = parsed
	return nil
}

func overrideDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	*dst = parsed
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)
