package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_FindsFileInParent(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
[tracing]
enabled = false
max_threads = 4
drain_poll = "250us"

[stress]
workers = 2
tracers = ["Cafe\u0301", "beta"]
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, found, err := Load(nested)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.MaxThreads != 4 {
		t.Fatalf("tracing section not applied: %+v", cfg.Tracing)
	}
	if cfg.DrainPoll() != 250*time.Microsecond {
		t.Fatalf("drain poll = %s", cfg.DrainPoll())
	}
	if cfg.Stress.Workers != 2 || cfg.Stress.Calls != Default().Stress.Calls {
		t.Fatalf("stress defaults not merged: %+v", cfg.Stress)
	}
	if cfg.Stress.UI != "auto" {
		t.Fatalf("ui default = %q", cfg.Stress.UI)
	}
	if cfg.Stress.Tracers[0] != "Caf\u00e9" {
		t.Fatalf("tracer name not NFC-normalised: %q", cfg.Stress.Tracers[0])
	}
}

func TestLoad_DefaultWithoutFile(t *testing.T) {
	cfg, found, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Skip("a zetrace.toml exists above the temp dir")
	}
	if !cfg.Tracing.Enabled || cfg.Export.Format != "dot" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile_Rejects(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"unknown key", "[tracing]\nenabeld = true\n", "unknown key"},
		{"bad duration", "[tracing]\ndrain_poll = \"soon\"\n", "drain_poll"},
		{"workers", "[stress]\nworkers = 0\n", "workers"},
		{"duplicate tracer", "[stress]\ntracers = [\"a\", \" a \"]\n", "duplicate"},
		{"empty tracers", "[stress]\ntracers = []\n", "must not be empty"},
		{"ui", "[stress]\nui = \"sometimes\"\n", "[stress].ui"},
		{"format", "[export]\nformat = \"svg\"\n", "format"},
		{"syntax", "[tracing\n", "failed to parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.body)
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvTracing: "0", EnvTraceLevel: "debug"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Tracing.Enabled || cfg.Trace.Level != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}

	env[EnvTracing] = "maybe"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("invalid boolean should fail")
	}
}
