package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zetrace/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "zetrace",
	Short: "Driver API tracing and graph capture toolkit",
	Long: `zetrace drives the tracing layer of an in-memory driver: it stress-tests
tracer enable/disable under load, replays graph capture scenarios and
exports captured graphs as Graphviz DOT.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorFlag(cmd)
	},
}

// init registers subcommands and persistent flags on the root command.
func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("config", "", "path to zetrace.toml (default: search from the working directory)")
	rootCmd.PersistentFlags().String("trace", "", "runtime trace output (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "runtime trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "runtime trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "runtime trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer size for ring trace mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
}

// main executes the root command. A failing command exits with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyColorFlag(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
