package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"zetrace/internal/capture"
	"zetrace/internal/config"
	"zetrace/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show zetrace build information",
	Long: `version prints the zetrace release. --full adds the build metadata,
the Go toolchain, the snapshot schema written by graph --save and the
environment switch that turns tracing on or off.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show every recorded bit of build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

// versionPayload is the --format json shape. Build fields are omitted
// unless requested; unknown values are reported as "unknown".
type versionPayload struct {
	Tool           string `json:"tool"`
	Version        string `json:"version"`
	GitCommit      string `json:"git_commit,omitempty"`
	BuildDate      string `json:"build_date,omitempty"`
	Go             string `json:"go,omitempty"`
	SnapshotSchema uint16 `json:"snapshot_schema,omitempty"`
	TracingEnv     string `json:"tracing_env,omitempty"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	full, err := flags.GetBool("full")
	if err != nil {
		return fmt.Errorf("failed to get full flag: %w", err)
	}
	hash, err := flags.GetBool("hash")
	if err != nil {
		return fmt.Errorf("failed to get hash flag: %w", err)
	}
	date, err := flags.GetBool("date")
	if err != nil {
		return fmt.Errorf("failed to get date flag: %w", err)
	}

	release := strings.TrimSpace(version.Version)
	if release == "" {
		release = "dev"
	}
	p := versionPayload{Tool: "zetrace", Version: release}
	if hash || full {
		p.GitCommit = orUnknown(version.GitCommit)
	}
	if date || full {
		p.BuildDate = orUnknown(version.BuildDate)
	}
	if full {
		p.Go = runtime.Version()
		p.SnapshotSchema = capture.SnapshotSchema
		p.TracingEnv = config.EnvTracing
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		p.Version = ansi.Strip(p.Version)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printVersion(out, &p)
	return nil
}

func printVersion(out io.Writer, p *versionPayload) {
	fmt.Fprintf(out, "%s %s\n", p.Tool, p.Version)
	if p.GitCommit != "" {
		fmt.Fprintf(out, "  commit:   %s\n", p.GitCommit)
	}
	if p.BuildDate != "" {
		fmt.Fprintf(out, "  built:    %s\n", p.BuildDate)
	}
	if p.Go != "" {
		fmt.Fprintf(out, "  go:       %s\n", p.Go)
		fmt.Fprintf(out, "  snapshot: schema %d\n", p.SnapshotSchema)
		fmt.Fprintf(out, "  tracing:  %s\n", p.TracingEnv)
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
