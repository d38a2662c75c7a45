package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zetrace/internal/capture"
	"zetrace/internal/config"
	"zetrace/internal/driver"
	"zetrace/internal/export"
	"zetrace/internal/scenario"
	"zetrace/internal/trace"
	"zetrace/internal/tracer"
)

var graphCmd = &cobra.Command{
	Use:   "graph [flags] <scenario.toml>",
	Short: "Replay a capture scenario and export the recorded graph",
	Long: `graph replays the commands of a scenario file through the traced driver
with graph capture enabled on the scenario's capture list, then writes
the recorded graph as DOT or as a msgpack snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringP("out", "o", "", "output path, - for stdout (default from config)")
	graphCmd.Flags().String("format", "", "output format (dot|msgpack, default from config)")
	graphCmd.Flags().String("save", "", "also save a msgpack snapshot to this path")
	graphCmd.Flags().Bool("strict", false, "fail when the graph is not valid for instantiation")
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, cleanup, err := setupTracing(cmd, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out, format, err := exportTarget(cmd, &cfg)
	if err != nil {
		return err
	}
	save, err := cmd.Flags().GetString("save")
	if err != nil {
		return fmt.Errorf("failed to get save flag: %w", err)
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return fmt.Errorf("failed to get strict flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	sc, err := scenario.LoadFile(args[0])
	if err != nil {
		return err
	}

	span := trace.Begin(log, trace.ScopeRuntime, "cmd.graph", 0).WithExtra("scenario", sc.Name)
	snap, err := replayScenario(cmd, &cfg, log, sc)
	span.End("")
	if err != nil {
		dumpTrace(cmd, log)
		return err
	}

	if save != "" {
		if err := snap.Save(save); err != nil {
			return err
		}
	}
	if err := writeGraph(cmd, snap, format, out); err != nil {
		return err
	}

	valid := snap.Graph.ValidForInstantiation()
	if !quiet {
		summary := cmd.ErrOrStderr()
		if out != "-" {
			summary = cmd.OutOrStdout()
		}
		printGraphSummary(summary, sc.Name, snap.Graph, valid)
	}
	if strict && !valid {
		return fmt.Errorf("graph %q is not valid for instantiation", sc.Name)
	}
	return nil
}

func replayScenario(cmd *cobra.Command, cfg *config.Config, log trace.Tracer, sc *scenario.Scenario) (*capture.Snapshot, error) {
	drv := driver.New(driver.Options{Log: log})
	tc := tracer.NewContext(tracer.Options{
		Enabled:    cfg.Tracing.Enabled,
		MaxThreads: cfg.Tracing.MaxThreads,
		DrainPoll:  cfg.DrainPoll(),
		Log:        log,
	})
	defer func() { _ = tc.Close() }()
	th := tc.NewThread()
	defer th.Close()

	res, err := scenario.Replay(tracer.WithThread(cmd.Context(), th), tracer.Wrap(drv.DDI()), sc)
	if err != nil {
		return nil, err
	}
	root, ok := drv.Graph(res.Graph)
	if !ok {
		return nil, fmt.Errorf("replay of %q produced no graph", sc.Name)
	}
	return drv.Recorder().Store().Snapshot(root)
}

// exportTarget resolves --out and --format against [export].
func exportTarget(cmd *cobra.Command, cfg *config.Config) (out, format string, err error) {
	out, format = cfg.Export.Output, cfg.Export.Format
	if cmd.Flags().Changed("out") {
		if out, err = cmd.Flags().GetString("out"); err != nil {
			return "", "", fmt.Errorf("failed to get out flag: %w", err)
		}
	}
	if cmd.Flags().Changed("format") {
		if format, err = cmd.Flags().GetString("format"); err != nil {
			return "", "", fmt.Errorf("failed to get format flag: %w", err)
		}
	}
	if out == "" {
		out = "-"
	}
	format = strings.ToLower(format)
	switch format {
	case "dot", "msgpack":
	default:
		return "", "", fmt.Errorf("unsupported format %q (must be dot or msgpack)", format)
	}
	return out, format, nil
}

func writeGraph(cmd *cobra.Command, snap *capture.Snapshot, format, out string) error {
	switch {
	case format == "msgpack" && out == "-":
		return snap.Encode(cmd.OutOrStdout())
	case format == "msgpack":
		return snap.Save(out)
	case out == "-":
		return export.DotExporter{}.WriteTo(cmd.OutOrStdout(), snap.Graph)
	default:
		return export.DotExporter{}.ExportToFile(out, snap.Graph)
	}
}

func printGraphSummary(out io.Writer, name string, v *capture.View, valid bool) {
	graphs, commands := v.Count()
	verdict := color.New(color.FgGreen).Sprint("valid")
	if !valid {
		verdict = color.New(color.FgYellow).Sprint("not instantiable")
	}
	if name == "" {
		name = "graph"
	}
	fmt.Fprintf(out, "%s: %d graphs, %d commands, %s\n", name, graphs, commands, verdict)
}
