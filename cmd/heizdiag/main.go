package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/heizmon/heizdiag/config"
	"github.com/heizmon/heizdiag/diagnose"
	"github.com/heizmon/heizdiag/dockerx"
	"github.com/heizmon/heizdiag/history"
	"github.com/heizmon/heizdiag/httpapi"
	"github.com/heizmon/heizdiag/influx"
	"github.com/heizmon/heizdiag/observe"
	"github.com/heizmon/heizdiag/onewire"
	"github.com/heizmon/heizdiag/remedy"
	"github.com/heizmon/heizdiag/resilience"
	"github.com/heizmon/heizdiag/sysd"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to heizdiag.yaml (defaults apply when empty)")
	jsonOut := flag.Bool("json", false, "emit the report as JSON")
	fix := flag.Bool("fix", false, "execute the remediation plan, then re-diagnose")
	serve := flag.Bool("serve", false, "run as a long-lived HTTP service")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("heizdiag %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heizdiag: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.Telemetry.Observe("heizdiag", version))
	if err != nil {
		fmt.Fprintf(os.Stderr, "heizdiag: telemetry: %v\n", err)
		return 2
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	eng := newEngine(cfg, obs)
	defer eng.close()

	if *serve {
		return eng.serve(ctx)
	}
	return eng.oneShot(ctx, *jsonOut, *fix)
}

// engine wires the probes, planner, executor, and journal for one process.
type engine struct {
	cfg     *config.Config
	obs     observe.Observer
	log     observe.Logger
	client  *influx.Client
	agg     *diagnose.Aggregator
	planner *remedy.Planner
	exec    *remedy.Executor
	journal *history.Journal

	// attempts remembers actions executed by this process, so the planner's
	// loop guard holds even when the journal is unavailable.
	attempts remedy.AttemptSet
}

func newEngine(cfg *config.Config, obs observe.Observer) *engine {
	client := influx.NewClient(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Timeout.Std())

	sensors := onewire.NewSensorProbe(onewire.NewDirBus(cfg.Bus.Dir))
	agg := diagnose.NewAggregator(diagnose.Config{
		ProbeTimeout: cfg.Probe.Timeout.Std(),
		SensorRetry: resilience.RetryPolicy{
			MaxAttempts: cfg.Probe.SensorRetries,
			Delay:       cfg.Probe.SensorRetryDelay.Std(),
		},
		SensorConcurrency: cfg.Probe.SensorConcurrency,
		CriticalContainer: cfg.Containers.Critical,
		Observer:          obs,
	},
		sensors,
		sysd.NewServiceProbe(sysd.Systemctl{}, cfg.Service.Name, cfg.Service.LogWindow.Std()),
		dockerx.NewContainerProbe(dockerx.DockerCLI{}, cfg.Containers.Expected),
		influx.NewDatabaseProbe(client, cfg.Influx.Bucket, cfg.Influx.Categories),
	)

	log := obs.Logger().WithComponent("heizdiag")

	journal, err := history.Open(cfg.History.Path)
	if err != nil {
		// A broken journal loses reload suppression across runs, nothing
		// else; diagnosing without it beats not diagnosing.
		log.Warn(context.Background(), "journal unavailable", observe.F("error", err.Error()))
		journal = nil
	}

	return &engine{
		cfg:    cfg,
		obs:    obs,
		log:    log,
		client: client,
		agg:    agg,
		planner: &remedy.Planner{
			Service:           cfg.Service.Name,
			CriticalContainer: cfg.Containers.Critical,
			Bucket:            cfg.Influx.Bucket,
		},
		exec:     remedy.NewExecutor(dockerx.DockerCLI{}, sysd.Systemctl{}, client, onewire.ModprobeReloader{}, obs),
		journal:  journal,
		attempts: remedy.AttemptSet{},
	}
}

func (e *engine) close() {
	if e.journal != nil {
		_ = e.journal.Close()
	}
}

// diagnose runs one full pass: probes, plan, journal entry.
func (e *engine) diagnose(ctx context.Context) (*diagnose.Snapshot, []remedy.Action, error) {
	snap, err := e.agg.Run(ctx)
	if err != nil {
		return nil, nil, err
	}

	plan := e.planner.Plan(snap, e.attempted(ctx))

	if e.journal != nil {
		if _, err := e.journal.RecordRun(ctx, snap.Overall().String(), len(snap.Results)); err != nil {
			e.log.Warn(ctx, "journal write failed", observe.F("error", err.Error()))
		}
	}
	return snap, plan, nil
}

// previousRun fetches the last persisted run for the report header, or nil
// when the journal is empty or unavailable.
func (e *engine) previousRun(ctx context.Context) *history.RunRecord {
	if e.journal == nil {
		return nil
	}
	rec, ok, err := e.journal.LastRun(ctx)
	if err != nil {
		e.log.Warn(ctx, "journal read failed", observe.F("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}
	return &rec
}

// attempted merges the attempts executed by this process with recent ones
// restored from the journal, so a module reload executed minutes ago,
// possibly by a previous invocation, still counts.
func (e *engine) attempted(ctx context.Context) remedy.AttemptSet {
	attempted := remedy.AttemptSet{}
	for k := range e.attempts {
		attempted[k] = struct{}{}
	}
	if e.journal == nil {
		return attempted
	}

	done, err := e.journal.AttemptedSince(ctx, remedy.KindRunModuleReload.String(), onewire.BusIdentifier, history.ReloadWindow)
	if err != nil {
		e.log.Warn(ctx, "journal read failed", observe.F("error", err.Error()))
		return attempted
	}
	if done {
		attempted.Mark(remedy.KindRunModuleReload, onewire.BusIdentifier)
	}
	return attempted
}

func (e *engine) oneShot(ctx context.Context, jsonOut, fix bool) int {
	prev := e.previousRun(ctx)

	snap, plan, err := e.diagnose(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heizdiag: %v\n", err)
		return 2
	}

	if fix && len(plan) > 0 {
		e.remediate(ctx, plan)

		// Re-diagnose so the report reflects the post-remediation state.
		snap, plan, err = e.diagnose(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "heizdiag: %v\n", err)
			return 2
		}
	}

	if jsonOut {
		payload := httpapi.NewPayload(snap, plan)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			fmt.Fprintf(os.Stderr, "heizdiag: %v\n", err)
			return 2
		}
	} else {
		renderText(os.Stdout, snap, plan, prev)
	}

	return diagnose.ExitCode(snap.Overall())
}

func (e *engine) remediate(ctx context.Context, plan []remedy.Action) {
	outcomes := e.exec.Execute(ctx, plan)

	var runID int64
	if e.journal != nil {
		runID, _ = e.journal.RecordRun(ctx, "remediation", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Executed {
			continue
		}
		e.attempts.Mark(o.Action.Kind, o.Action.Target)
		if e.journal != nil {
			_ = e.journal.RecordAction(ctx, runID, o.Action.Kind.String(), o.Action.Target, o.Action.Tier.String(), o.Err)
		}
		if o.Err != nil {
			fmt.Fprintf(os.Stderr, "heizdiag: %s %s failed: %v\n", o.Action.Kind, o.Action.Target, o.Err)
		}
	}
}

// serve runs diagnostic passes on an interval and exposes the latest
// report over HTTP until the context is cancelled.
func (e *engine) serve(ctx context.Context) int {
	srv := httpapi.NewServer(httpapi.NewVerifier(e.cfg.Serve.Secret))

	refresh := func() {
		snap, plan, err := e.diagnose(ctx)
		if err != nil {
			e.log.Error(ctx, "diagnostic pass failed", observe.F("error", err.Error()))
			return
		}
		srv.SetPayload(httpapi.NewPayload(snap, plan))
	}
	refresh()

	httpSrv := &http.Server{
		Addr:              e.cfg.Serve.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	e.log.Info(ctx, "serving", observe.F("addr", e.cfg.Serve.Addr), observe.F("interval", e.cfg.Serve.Interval.String()))

	ticker := time.NewTicker(e.cfg.Serve.Interval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
			return 0
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "heizdiag: serve: %v\n", err)
				return 2
			}
			return 0
		case <-ticker.C:
			refresh()
		}
	}
}

func renderText(w *os.File, snap *diagnose.Snapshot, plan []remedy.Action, prev *history.RunRecord) {
	report := diagnose.NewReport(snap)

	fmt.Fprintf(w, "heizdiag report  %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "overall: %s\n", report.Overall)
	if prev != nil {
		fmt.Fprintf(w, "previous run: %s at %s\n", prev.Overall, prev.At.Format(time.RFC3339))
	}
	fmt.Fprintln(w)

	for _, res := range report.Results {
		fmt.Fprintf(w, "  %-9s %-22s %-9s %s\n", res.Subsystem, res.Identifier, res.Status, res.Message)
		for _, ev := range res.Evidence {
			fmt.Fprintf(w, "  %9s   - %s: %s\n", "", ev.Key, truncate(ev.Value, 80))
		}
	}

	if len(plan) == 0 {
		fmt.Fprintf(w, "\nno remediation needed\n")
		return
	}

	fmt.Fprintf(w, "\nplan:\n")
	for i, a := range plan {
		fmt.Fprintf(w, "  %d. [%s] %s %s\n     %s\n", i+1, a.Tier, a.Kind, a.Target, a.Rationale)
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
