package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/config"
	"github.com/randalmurphal/errscout/pkg/errscout/export"
	"github.com/randalmurphal/errscout/pkg/errscout/journal"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/llm"
	"github.com/randalmurphal/errscout/pkg/errscout/observability"
	"github.com/randalmurphal/errscout/pkg/errscout/planner"
	"github.com/randalmurphal/errscout/pkg/errscout/probe"
	"github.com/randalmurphal/errscout/pkg/errscout/retry"
	"github.com/randalmurphal/errscout/pkg/errscout/session"
	"github.com/randalmurphal/errscout/pkg/errscout/transport"
)

// Artifact file names written to the output directory.
const (
	typesFile  = "error-types.ts"
	reportFile = "report.md"
)

type runFlags struct {
	planner       string
	script        string
	maxIterations int
	services      []string
	output        string
	journal       string
	telemetry     bool
	quiet         bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a discovery session and export the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.apply(cmd, &a.settings)
			return a.run(cmd, f.quiet)
		},
	}

	cmd.Flags().StringVarP(&f.planner, "planner", "p", "", "planner: sweep, script or llm")
	cmd.Flags().StringVar(&f.script, "script", "", "action script for the script planner")
	cmd.Flags().IntVarP(&f.maxIterations, "max-iterations", "n", 0, "maximum planner rounds")
	cmd.Flags().StringSliceVar(&f.services, "services", nil, "services the sweep planner covers (default all)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "directory for exported artifacts")
	cmd.Flags().StringVar(&f.journal, "journal", "", "SQLite file recording the session transcript")
	cmd.Flags().BoolVar(&f.telemetry, "telemetry", false, "collect metrics and traces and print a metrics summary")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print each turn")
	return cmd
}

// apply overrides settings with the flags set on the command line.
func (f *runFlags) apply(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("planner") {
		s.Planner = f.planner
	}
	if flags.Changed("script") {
		s.ScriptPath = f.script
		if !flags.Changed("planner") {
			s.Planner = config.PlannerScript
		}
	}
	if flags.Changed("max-iterations") {
		s.MaxIterations = f.maxIterations
	}
	if flags.Changed("services") {
		s.Services = f.services
	}
	if flags.Changed("output") {
		s.OutputDir = f.output
	}
	if flags.Changed("journal") {
		s.JournalPath = f.journal
	}
	if flags.Changed("telemetry") {
		s.Telemetry = f.telemetry
	}
}

func (a *app) run(cmd *cobra.Command, quiet bool) error {
	s := a.settings
	if err := s.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cat, err := a.catalog()
	if err != nil {
		return err
	}
	p, err := newPlanner(s, cat)
	if err != nil {
		return err
	}

	var (
		metrics observability.MetricsRecorder = observability.NoopMetrics{}
		spans   observability.SpanManager     = observability.NoopSpanManager{}
		tel     *telemetry
	)
	if s.Telemetry {
		tel = setupTelemetry(a.logger)
		defer func() {
			if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
				a.logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
		metrics = observability.NewMetricsRecorder()
		spans = observability.NewSpanManager()
	}

	client := transport.New(s.BaseURL, s.APIToken, transport.WithTimeout(s.Timeout))
	retryCfg := retry.NewConfig(
		retry.WithMaxAttempts(s.RetryAttempts),
		retry.WithInitialBackoff(s.RetryBackoff),
		retry.WithMaxBackoff(s.RetryMaxDelay),
	)
	exec := probe.New(cat, client, ledger.New(),
		probe.WithRetry(retryCfg),
		probe.WithPathParams(s.DefaultPathParams()),
		probe.WithLogger(a.logger),
		probe.WithMetrics(metrics),
		probe.WithSpans(spans),
	)

	opts := []session.Option{
		session.WithMaxIterations(s.MaxIterations),
		session.WithLogger(a.logger),
		session.WithMetrics(metrics),
		session.WithSpans(spans),
	}
	if !quiet {
		opts = append(opts, session.WithTurnHook(func(t planner.Turn) { printTurn(out, t) }))
	}
	if s.JournalPath != "" {
		store, err := journal.NewSQLiteStore(s.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		opts = append(opts, session.WithJournal(store))
	}

	result, runErr := session.New(session.NewTools(cat, exec), opts...).Run(ctx, p)
	if result == nil {
		return runErr
	}

	elapsed := observability.TimedOperation()
	files, err := writeArtifacts(s.OutputDir, result.Ledger, cat)
	if err != nil {
		return errors.Join(runErr, err)
	}
	a.logger.Debug("artifacts written",
		"dir", s.OutputDir,
		"files", len(files),
		"duration_ms", elapsed(),
	)
	printSummary(out, result, files)
	if tel != nil {
		printMetrics(out, tel.Collect(ctx))
	}
	return runErr
}

func newPlanner(s config.Settings, cat *catalog.Catalog) (planner.Planner, error) {
	switch s.Planner {
	case config.PlannerScript:
		p, err := planner.LoadScript(s.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("load script: %w", err)
		}
		return p, nil
	case config.PlannerLLM:
		client := llm.NewClaudeCLI(
			llm.WithClaudePath(s.ClaudePath),
			llm.WithModel(s.LLMModel),
			llm.WithTimeout(s.LLMTimeout),
		)
		return planner.NewLLM(client), nil
	default:
		return planner.NewSweep(cat, planner.WithServices(s.Services...)), nil
	}
}

// writeArtifacts exports l into dir and returns the written paths.
func writeArtifacts(dir string, l *ledger.Ledger, cat *catalog.Catalog) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	res := export.Export(l, export.WithCatalog(cat))

	files := map[string][]byte{
		typesFile:  []byte(res.TypeDefinitions),
		reportFile: []byte(export.Report(l)),
	}
	names := []string{typesFile}
	for _, svc := range res.Services {
		data, err := res.Catalogs[svc].JSON()
		if err != nil {
			return nil, err
		}
		name := catalogFile(svc)
		files[name] = data
		names = append(names, name)
	}
	names = append(names, reportFile)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// catalogFile names a service's JSON catalog, replacing characters that
// are unsafe in file names.
func catalogFile(service string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, service)
	return safe + ".json"
}

func printTurn(w io.Writer, t planner.Turn) {
	head, rest, _ := strings.Cut(t.Outcome, "\n")
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render(fmt.Sprintf("[%d]", t.Round+1)), clip(t.Action.String(), 120))
	if t.Action.Tool != planner.ToolCallOperation {
		return
	}
	fmt.Fprintf(w, "    %s\n", clip(head, 120))
	for _, line := range strings.Split(rest, "\n") {
		if !strings.HasPrefix(line, "Status: ") {
			continue
		}
		if strings.Contains(line, "UNDOCUMENTED") {
			fmt.Fprintf(w, "    %s\n", undocumentedStyle.Render(line))
		} else {
			fmt.Fprintf(w, "    %s\n", documentedStyle.Render(line))
		}
	}
}

func printSummary(w io.Writer, r *session.Result, files []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Run %s (%s)", r.RunID, r.Planner)))
	fmt.Fprintf(w, "Stopped: %s after %d rounds in %s\n", r.StopReason, r.Rounds, r.Duration().Round(time.Millisecond))
	if r.DoneReason != "" {
		fmt.Fprintf(w, "Reason: %s\n", r.DoneReason)
	}

	l := r.Ledger
	if l.Len() == 0 {
		fmt.Fprintln(w, "No errors were recorded.")
	} else {
		var rows [][]string
		for _, svc := range l.Services() {
			sum := l.Summary(svc)
			rows = append(rows, []string{
				svc,
				fmt.Sprint(sum.Total),
				fmt.Sprint(sum.Documented),
				fmt.Sprint(sum.Undocumented),
				sum.Coverage,
			})
		}
		fmt.Fprintln(w, renderTable([]string{"SERVICE", "ERRORS", "DOCUMENTED", "UNDOCUMENTED", "COVERAGE"}, rows))

		for _, e := range l.Entries() {
			if e.IsDocumented {
				continue
			}
			fmt.Fprintf(w, "%s %s.%s %s code %d\n",
				undocumentedStyle.Render("UNDOCUMENTED"), e.Service, e.Operation, e.Category.Tag(), e.ProviderCode)
		}
	}

	fmt.Fprintln(w, titleStyle.Render("Wrote"))
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
