// Package config loads and validates the scan settings file.
//
// Settings are TOML. Every key is checked against a single rule table (see
// rules.go) and all violations are reported together, so a broken file can be
// fixed in one pass. A ScanConfig is only returned when every rule holds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "settings.toml"

type General struct {
	ScanID  string
	BaseDir string
	Regions []string
}

type Search struct {
	Enable bool
	// ScanConfig is the path of a JSON band table. Empty selects the built-in table.
	ScanConfig string
	Rescan     bool
	ResultsDir string
	// StepWidth is the gross scan step in units of 100 kHz.
	StepWidth int
}

type Record struct {
	Enable        bool
	ResultsDir    string
	AmpEnable     bool
	AntennaEnable bool
	// LGain is the LNA (IF) gain in dB, 0-40 in 8 dB steps.
	LGain int
	// GGain is the VGA (baseband) gain in dB, 0-62 in 2 dB steps.
	GGain int
	// SampleRate in Hz.
	SampleRate int64
	// RecordingTime in seconds.
	RecordingTime float64
	// BasebandFilterBW in Hz.
	BasebandFilterBW int64
}

type Matlab struct {
	Enable bool
}

// Tools configures the external binaries and how long they may run.
type Tools struct {
	Scanner     string
	Recorder    string
	Info        string
	ScannerGain int
	ScanTimeout time.Duration
	// IdleTimeout kills the scanner when it stays silent for this long. Zero disables it.
	IdleTimeout  time.Duration
	RecordMargin time.Duration
	Retries      int
	Preflight    bool
}

type History struct {
	Driver string
	DSN    string
}

type ScanConfig struct {
	// Path is the file the config was loaded from, empty when parsed from memory.
	Path string

	General General
	Search  Search
	Record  Record
	Matlab  Matlab
	Tools   Tools
	History History
}

func defaults() *ScanConfig {
	return &ScanConfig{
		Tools: Tools{
			Scanner:      "CellSearch",
			Recorder:     "hackrf_transfer",
			Info:         "hackrf_info",
			ScannerGain:  40,
			ScanTimeout:  10 * time.Minute,
			RecordMargin: 30 * time.Second,
			Preflight:    true,
		},
		History: History{
			Driver: "sqlite3",
		},
	}
}

// Violation is a single failed rule.
type Violation struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Key, v.Message)
}

// ConfigError lists every violation found in a settings file.
type ConfigError struct {
	Path       string
	Violations []Violation
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid config")
	if e.Path != "" {
		fmt.Fprintf(&sb, " %q", e.Path)
	}
	fmt.Fprintf(&sb, ": %d violation(s): ", len(e.Violations))
	for i, v := range e.Violations {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Load reads and validates the settings file at path. Relative directories in the
// file are resolved against the directory containing it.
func Load(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Violations: []Violation{{Key: "file", Message: err.Error()}}}
	}
	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Path = path
		}
		return nil, err
	}

	cfg.Path = path
	dir := filepath.Dir(path)
	if !filepath.IsAbs(cfg.General.BaseDir) {
		cfg.General.BaseDir = filepath.Join(dir, cfg.General.BaseDir)
	}
	if cfg.Search.ScanConfig != "" && !filepath.IsAbs(cfg.Search.ScanConfig) {
		cfg.Search.ScanConfig = filepath.Join(dir, cfg.Search.ScanConfig)
	}
	return cfg, nil
}

// Validate performs the same checks as Load without keeping the result.
func Validate(path string) error {
	_, err := Load(path)
	return err
}

// Parse validates TOML settings held in memory.
func Parse(data []byte) (*ScanConfig, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Violations: []Violation{{Key: "file", Message: err.Error()}}}
	}

	cfg := defaults()
	if violations := check(doc, cfg); len(violations) > 0 {
		return nil, &ConfigError{Violations: violations}
	}
	return cfg, nil
}

func (c *ScanConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.General.BaseDir, p)
}

// SearchDir is the directory holding the job directories and summary of this scan id.
func (c *ScanConfig) SearchDir() string {
	return filepath.Join(c.resolve(c.Search.ResultsDir), c.General.ScanID)
}

// RecordDir is the directory holding the captures of this scan id.
func (c *ScanConfig) RecordDir() string {
	return filepath.Join(c.resolve(c.Record.ResultsDir), c.General.ScanID)
}

// HistoryDSN returns the configured DSN, defaulting to a sqlite file in SearchDir.
func (c *ScanConfig) HistoryDSN() string {
	if c.History.DSN != "" {
		return c.History.DSN
	}
	return filepath.Join(c.SearchDir(), "history.db")
}

func (c *ScanConfig) RecordingDuration() time.Duration {
	return time.Duration(c.Record.RecordingTime * float64(time.Second))
}

// RecordTimeout bounds a single recorder invocation.
func (c *ScanConfig) RecordTimeout() time.Duration {
	return c.RecordingDuration() + c.Tools.RecordMargin
}
