package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"zetrace/internal/capture"
	"zetrace/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "zetrace.toml")
	body := `
[tracing]
enabled = true
drain_poll = "200us"

[stress]
workers = 2
calls = 50
toggles = 4
tracers = ["alpha"]

[export]
format = "dot"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCLI_GraphThenExport(t *testing.T) {
	t.Setenv("ZET_ENABLE_API_TRACING_EXP", "1")
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	dot := filepath.Join(dir, "out", "graph.dot")
	snap := filepath.Join(dir, "graph.msgpack")

	out, err := execute(t, "graph", "--config", cfg, "--color", "off",
		"--out", dot, "--save", snap, "--strict",
		filepath.Join("..", "..", "internal", "scenario", "testdata", "fork_join.toml"))
	if err != nil {
		t.Fatalf("graph: %v\n%s", err, out)
	}
	if !strings.Contains(out, "fork-join: 2 graphs, 4 commands, valid") {
		t.Fatalf("unexpected summary: %q", out)
	}
	first, err := os.ReadFile(dot)
	if err != nil {
		t.Fatalf("read dot: %v", err)
	}
	if !strings.Contains(string(first), "subgraph cluster_L1_S0") {
		t.Fatalf("dot output lacks the forked subgraph:\n%s", first)
	}

	again := filepath.Join(dir, "again.dot")
	if out, err := execute(t, "export", "--config", cfg, "--out", again, snap); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	second, err := os.ReadFile(again)
	if err != nil {
		t.Fatalf("read exported dot: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("snapshot export differs from direct export")
	}
}

func TestCLI_StressJSON(t *testing.T) {
	t.Setenv("ZET_ENABLE_API_TRACING_EXP", "1")
	cfg := writeConfig(t, t.TempDir())

	out, err := execute(t, "stress", "--config", cfg, "--ui", "off", "--format", "json", "--workers", "3")
	if err != nil {
		t.Fatalf("stress: %v\n%s", err, out)
	}
	var payload stressPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if payload.Calls != 150 || payload.Toggles != 4 {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Tracers) != 1 || payload.Tracers[0].Name != "alpha" {
		t.Fatalf("tracers = %+v", payload.Tracers)
	}
	if payload.Tracers[0].Prologues != payload.Tracers[0].Epilogues {
		t.Fatalf("unbalanced tracer: %+v", payload.Tracers[0])
	}
}

func TestCLI_VersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json", "--full")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Tool != "zetrace" || strings.Contains(payload.Version, "\x1b") {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.GitCommit == "" || payload.BuildDate == "" || payload.Go == "" {
		t.Fatalf("--full should fill every field: %+v", payload)
	}
	if payload.SnapshotSchema != capture.SnapshotSchema || payload.TracingEnv != config.EnvTracing {
		t.Fatalf("runtime fields = %+v", payload)
	}
}

func TestStressUIEnabled(t *testing.T) {
	cases := []struct {
		name, cfgUI, flag, format string
		quiet                     bool
		want                      bool
	}{
		{name: "config off", cfgUI: "off", format: "pretty"},
		{name: "config on", cfgUI: "on", format: "pretty", want: true},
		{name: "flag overrides config", cfgUI: "on", flag: "OFF", format: "pretty"},
		{name: "flag on", cfgUI: "off", flag: " on ", format: "pretty", want: true},
		{name: "json output", cfgUI: "on", format: "json"},
		{name: "quiet", cfgUI: "on", format: "pretty", quiet: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "stress"}
			cmd.Flags().String("ui", "", "")
			if tc.flag != "" {
				if err := cmd.Flags().Set("ui", tc.flag); err != nil {
					t.Fatalf("set: %v", err)
				}
			}
			cfg := config.Default()
			cfg.Stress.UI = tc.cfgUI
			got, err := stressUIEnabled(cmd, &cfg, tc.format, tc.quiet)
			if err != nil || got != tc.want {
				t.Fatalf("stressUIEnabled = %v, %v; want %v", got, err, tc.want)
			}
		})
	}

	cmd := &cobra.Command{Use: "stress"}
	cmd.Flags().String("ui", "", "")
	_ = cmd.Flags().Set("ui", "sometimes")
	cfg := config.Default()
	if _, err := stressUIEnabled(cmd, &cfg, "pretty", false); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}
