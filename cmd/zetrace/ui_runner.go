package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"zetrace/internal/config"
	"zetrace/internal/stress"
	"zetrace/internal/ui"
)

type stressOutcome struct {
	result stress.Result
	err    error
}

// stressUIEnabled resolves --ui over [stress].ui. The progress view only
// replaces the pretty summary, and auto needs an interactive stdout.
func stressUIEnabled(cmd *cobra.Command, cfg *config.Config, format string, quiet bool) (bool, error) {
	mode := cfg.Stress.UI
	if cmd.Flags().Changed("ui") {
		v, err := cmd.Flags().GetString("ui")
		if err != nil {
			return false, fmt.Errorf("failed to get ui flag: %w", err)
		}
		mode = strings.ToLower(strings.TrimSpace(v))
	}
	switch mode {
	case "off":
		return false, nil
	case "on":
	case "", "auto":
		if !isTerminal(os.Stdout) {
			return false, nil
		}
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", mode)
	}
	return format == "pretty" && !quiet, nil
}

func runStressWithUI(ctx context.Context, title string, req *stress.Request) (stress.Result, error) {
	if req == nil {
		return stress.Result{}, fmt.Errorf("missing stress request")
	}
	events := make(chan stress.Event, 256)
	outcomeCh := make(chan stressOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = stress.ChannelSink{Ch: events}
		res, err := stress.Run(ctx, &reqCopy)
		outcomeCh <- stressOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Workers, req.Calls, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
