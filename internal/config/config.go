// Package config loads zetrace.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"
)

// FileName is the configuration file searched for from the working
// directory upwards.
const FileName = "zetrace.toml"

const (
	// EnvTracing is the process-wide switch for the tracing layer.
	EnvTracing    = "ZET_ENABLE_API_TRACING_EXP"
	EnvTraceLevel = "ZETRACE_TRACE_LEVEL"
)

type Config struct {
	Path    string  `toml:"-"`
	Tracing Tracing `toml:"tracing"`
	Trace   Trace   `toml:"trace"`
	Stress  Stress  `toml:"stress"`
	Export  Export  `toml:"export"`
}

type Tracing struct {
	Enabled    bool   `toml:"enabled"`
	MaxThreads int    `toml:"max_threads"`
	DrainPoll  string `toml:"drain_poll"`
}

type Trace struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

type Stress struct {
	Workers int      `toml:"workers"`
	Calls   int      `toml:"calls"`
	Toggles int      `toml:"toggles"`
	Tracers []string `toml:"tracers"`
	// UI selects the progress view: auto, on or off.
	UI string `toml:"ui"`
}

type Export struct {
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Tracing: Tracing{Enabled: true, DrainPoll: "1ms"},
		Trace:   Trace{Level: "off", Mode: "stream"},
		Stress: Stress{
			Workers: 8,
			Calls:   10000,
			Toggles: 200,
			Tracers: []string{"alpha", "beta"},
			UI:      "auto",
		},
		Export: Export{Format: "dot", Output: "-"},
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and reads the configuration for startDir, falling back to
// Default when there is no file.
func Load(startDir string) (Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return Default(), false, err
	}
	cfg, err := LoadFile(path)
	return cfg, true, err
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if meta.IsDefined("stress", "tracers") && len(cfg.Stress.Tracers) == 0 {
		return Config{}, fmt.Errorf("%s: [stress].tracers must not be empty", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and normalises tracer names.
func (c *Config) Validate() error {
	if c.Tracing.MaxThreads < 0 {
		return errors.New("[tracing].max_threads must be >= 0")
	}
	if _, err := parseDuration(c.Tracing.DrainPoll); err != nil {
		return fmt.Errorf("[tracing].drain_poll: %w", err)
	}
	if _, err := parseDuration(c.Trace.Heartbeat); err != nil {
		return fmt.Errorf("[trace].heartbeat: %w", err)
	}
	if c.Trace.RingSize < 0 {
		return errors.New("[trace].ring_size must be >= 0")
	}
	if c.Stress.Workers <= 0 {
		return errors.New("[stress].workers must be > 0")
	}
	if c.Stress.Calls < 0 || c.Stress.Toggles < 0 {
		return errors.New("[stress].calls and toggles must be >= 0")
	}
	switch c.Stress.UI = strings.ToLower(strings.TrimSpace(c.Stress.UI)); c.Stress.UI {
	case "":
		c.Stress.UI = "auto"
	case "auto", "on", "off":
	default:
		return fmt.Errorf("[stress].ui must be auto, on or off, got %q", c.Stress.UI)
	}

	seen := make(map[string]struct{}, len(c.Stress.Tracers))
	for i, name := range c.Stress.Tracers {
		name = NormalizeName(name)
		if name == "" {
			return fmt.Errorf("[stress].tracers[%d] is empty", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("[stress].tracers: duplicate %q", name)
		}
		seen[name] = struct{}{}
		c.Stress.Tracers[i] = name
	}

	switch c.Export.Format {
	case "dot", "msgpack":
	default:
		return fmt.Errorf("[export].format must be dot or msgpack, got %q", c.Export.Format)
	}
	return nil
}

// ApplyEnv overrides values from the environment through lookup, normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTracing); ok {
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTracing, err)
		}
		c.Tracing.Enabled = on
	}
	if v, ok := lookup(EnvTraceLevel); ok && strings.TrimSpace(v) != "" {
		c.Trace.Level = strings.TrimSpace(v)
	}
	return nil
}

// DrainPoll returns the parsed [tracing].drain_poll, zero when unset.
func (c *Config) DrainPoll() time.Duration {
	d, _ := parseDuration(c.Tracing.DrainPoll)
	return d
}

// Heartbeat returns the parsed [trace].heartbeat, zero when unset.
func (c *Config) Heartbeat() time.Duration {
	d, _ := parseDuration(c.Trace.Heartbeat)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// NormalizeName trims s and puts it in Unicode NFC so that names typed in
// different normal forms compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
