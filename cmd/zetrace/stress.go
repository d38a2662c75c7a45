package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zetrace/internal/config"
	"zetrace/internal/prof"
	"zetrace/internal/stress"
	"zetrace/internal/trace"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Issue traced calls from many goroutines while tracers are toggled",
	Long: `stress starts a pool of workers that append barriers through the traced
dispatch table while a controller disables, drains, re-enables and
recreates tracers. It fails when a call saw a prologue without its
epilogue or when retired tracer arrays were not reclaimed.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().Int("workers", 0, "number of worker goroutines (default from config)")
	stressCmd.Flags().Int("calls", 0, "traced calls per worker (default from config)")
	stressCmd.Flags().Int("toggles", 0, "tracer disable/enable cycles (default from config)")
	stressCmd.Flags().StringSlice("tracers", nil, "tracer names (default from config)")
	stressCmd.Flags().Int("max-threads", 0, "bound on registered threads (0 = unbounded)")
	stressCmd.Flags().Duration("drain-poll", 0, "sleep between reclaim attempts while draining")
	stressCmd.Flags().Bool("no-tracing", false, "turn the process-wide tracing switch off")
	stressCmd.Flags().String("ui", "", "progress UI (auto|on|off, default from config)")
	stressCmd.Flags().String("format", "pretty", "summary format (pretty|json)")
	stressCmd.Flags().String("cpuprofile", "", "write a CPU profile of the run to this file")
	stressCmd.Flags().String("memprofile", "", "write a heap profile after the run to this file")
	stressCmd.Flags().String("exec-trace", "", "write a Go execution trace of the run to this file")
}

func runStress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, cleanup, err := setupTracing(cmd, &cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := stressRequest(cmd, &cfg)
	if err != nil {
		return err
	}
	req.Log = log

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	useUI, err := stressUIEnabled(cmd, &cfg, format, quiet)
	if err != nil {
		return err
	}

	profiles, err := startProfiles(cmd)
	if err != nil {
		return err
	}

	span := trace.Begin(log, trace.ScopeRuntime, "cmd.stress", 0)
	ctx := trace.WithParentSpan(cmd.Context(), span.ID())
	var res stress.Result
	if useUI {
		title := fmt.Sprintf("stress: %d workers x %d calls", req.Workers, req.Calls)
		res, err = runStressWithUI(ctx, title, req)
	} else {
		res, err = stress.Run(ctx, req)
	}
	span.End("")
	if perr := profiles.Stop(); perr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", perr)
	}
	if err != nil {
		dumpTrace(cmd, log)
		if res.Timer != nil && !quiet {
			printStressSummary(cmd.ErrOrStderr(), &res, false)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return renderStressJSON(out, &res)
	}
	if !quiet {
		printStressSummary(out, &res, true)
	}
	if showTimings {
		fmt.Fprint(out, res.Timer.Summary())
	}
	return nil
}

func startProfiles(cmd *cobra.Command) (*prof.Session, error) {
	var opts prof.Options
	var err error
	if opts.CPU, err = cmd.Flags().GetString("cpuprofile"); err != nil {
		return nil, err
	}
	if opts.Mem, err = cmd.Flags().GetString("memprofile"); err != nil {
		return nil, err
	}
	if opts.Trace, err = cmd.Flags().GetString("exec-trace"); err != nil {
		return nil, err
	}
	return prof.Start(opts)
}

func stressRequest(cmd *cobra.Command, cfg *config.Config) (*stress.Request, error) {
	flags := cmd.Flags()
	req := &stress.Request{
		Workers:    cfg.Stress.Workers,
		Calls:      cfg.Stress.Calls,
		Toggles:    cfg.Stress.Toggles,
		Tracers:    cfg.Stress.Tracers,
		Disabled:   !cfg.Tracing.Enabled,
		MaxThreads: cfg.Tracing.MaxThreads,
		DrainPoll:  cfg.DrainPoll(),
	}
	var err error
	if flags.Changed("workers") {
		if req.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("calls") {
		if req.Calls, err = flags.GetInt("calls"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("toggles") {
		if req.Toggles, err = flags.GetInt("toggles"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tracers") {
		names, err := flags.GetStringSlice("tracers")
		if err != nil {
			return nil, err
		}
		req.Tracers = make([]string, 0, len(names))
		for _, n := range names {
			req.Tracers = append(req.Tracers, config.NormalizeName(n))
		}
	}
	if flags.Changed("max-threads") {
		if req.MaxThreads, err = flags.GetInt("max-threads"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("drain-poll") {
		if req.DrainPoll, err = flags.GetDuration("drain-poll"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-tracing") {
		off, err := flags.GetBool("no-tracing")
		if err != nil {
			return nil, err
		}
		req.Disabled = off
	}
	return req, nil
}

func printStressSummary(out io.Writer, res *stress.Result, ok bool) {
	verdict := color.New(color.FgGreen, color.Bold).Sprint("ok")
	if !ok {
		verdict = color.New(color.FgRed, color.Bold).Sprint("FAIL")
	}
	fmt.Fprintf(out, "%s  %d calls, %d toggles\n", verdict, res.Calls, res.Toggles)
	name := color.New(color.FgCyan)
	for _, t := range res.Tracers {
		fmt.Fprintf(out, "  %-12s prologues=%d epilogues=%d recreated=%d", name.Sprint(t.Name), t.Prologues, t.Epilogues, t.Recreated)
		if t.Mismatched > 0 {
			fmt.Fprintf(out, " mismatched=%d", t.Mismatched)
		}
		fmt.Fprintln(out)
	}
	st := res.Context
	fmt.Fprintf(out, "  arrays: published=%d reclaimed=%d retiring=%d\n", st.Published, st.Reclaimed, st.Retiring)
	fmt.Fprintf(out, "  threads: registered=%d failed=%d drained-waits=%d\n", st.Threads, st.RegistrationFailures, st.DrainedWaits)
}

type stressPayload struct {
	Calls     uint64          `json:"calls"`
	Toggles   int             `json:"toggles"`
	Tracers   []tracerPayload `json:"tracers"`
	Published uint64          `json:"arrays_published"`
	Reclaimed uint64          `json:"arrays_reclaimed"`
	Failures  uint64          `json:"registration_failures"`
	Timings   any             `json:"timings"`
}

type tracerPayload struct {
	Name      string `json:"name"`
	Prologues uint64 `json:"prologues"`
	Epilogues uint64 `json:"epilogues"`
	Recreated int    `json:"recreated"`
}

func renderStressJSON(out io.Writer, res *stress.Result) error {
	payload := stressPayload{
		Calls:     res.Calls,
		Toggles:   res.Toggles,
		Tracers:   make([]tracerPayload, 0, len(res.Tracers)),
		Published: res.Context.Published,
		Reclaimed: res.Context.Reclaimed,
		Failures:  res.Context.RegistrationFailures,
		Timings:   res.Timer.Report(),
	}
	for _, t := range res.Tracers {
		payload.Tracers = append(payload.Tracers, tracerPayload{
			Name:      t.Name,
			Prologues: t.Prologues,
			Epilogues: t.Epilogues,
			Recreated: t.Recreated,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
