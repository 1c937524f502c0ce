package diagnose

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heizmon/heizdiag/observe"
	"github.com/heizmon/heizdiag/onewire"
	"github.com/heizmon/heizdiag/probe"
	"github.com/heizmon/heizdiag/resilience"
)

// Config configures a diagnostic run.
// The zero value is usable; defaults are applied by NewAggregator.
type Config struct {
	// ProbeTimeout bounds each probe invocation. A probe that exceeds it
	// contributes a synthetic unknown result instead of blocking the run.
	// Default: 10s
	ProbeTimeout time.Duration

	// SensorRetry governs re-reads of individual sensors. Defaults follow
	// resilience.NewRetry.
	SensorRetry resilience.RetryPolicy

	// SensorConcurrency bounds how many sensors are read at once.
	// Default: 4
	SensorConcurrency int

	// CriticalContainer names the container hosting the database.
	CriticalContainer string

	// Observer supplies logging and metrics. Nil means silent.
	Observer observe.Observer
}

// errReadUnsettled marks a sensor read that did not produce a usable value
// and is worth another attempt.
var errReadUnsettled = errors.New("diagnose: sensor read unsettled")

// Aggregator fans probes out concurrently and assembles their results into
// one immutable snapshot. Probes stay stateless single-pass workers; every
// retry and timeout decision lives here.
type Aggregator struct {
	cfg     Config
	sensors *onewire.SensorProbe
	probes  []probe.Probe
	retry   *resilience.Retry
	log     observe.Logger
	metrics observe.Metrics
}

// NewAggregator creates an aggregator over the sensor probe and any number
// of additional probes. sensors may be nil when the host has no bus.
func NewAggregator(cfg Config, sensors *onewire.SensorProbe, probes ...probe.Probe) *Aggregator {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.SensorConcurrency <= 0 {
		cfg.SensorConcurrency = 4
	}

	a := &Aggregator{
		cfg:     cfg,
		sensors: sensors,
		probes:  probes,
		retry:   resilience.NewRetry(cfg.SensorRetry),
	}
	if cfg.Observer != nil {
		a.log = cfg.Observer.Logger().WithComponent("aggregator")
		a.metrics = cfg.Observer.Metrics()
	}
	return a
}

// Run executes every probe and returns the snapshot. It returns an error
// only when the context itself is cancelled; individual probe failures are
// results, not errors.
func (a *Aggregator) Run(ctx context.Context) (*Snapshot, error) {
	var mu sync.Mutex
	collected := make(map[Key]probe.Result)

	collect := func(results []probe.Result) {
		mu.Lock()
		defer mu.Unlock()
		for _, res := range results {
			collected[Key{Subsystem: res.Subsystem, Identifier: res.Identifier}] = res
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.sensors != nil {
		g.Go(func() error {
			collect(a.runSensors(gctx))
			return nil
		})
	}

	for _, p := range a.probes {
		g.Go(func() error {
			collect(a.runProbe(gctx, p))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The snapshot is assembled only after the join barrier; nothing below
	// this point mutates it.
	return &Snapshot{
		Results:           collected,
		GeneratedAt:       time.Now(),
		CriticalContainer: a.cfg.CriticalContainer,
	}, nil
}

// runProbe runs one probe under the configured timeout. A timeout becomes a
// synthetic unknown result keyed by the probe's own name so the planner can
// tell "assessed as broken" from "never assessed".
func (a *Aggregator) runProbe(ctx context.Context, p probe.Probe) []probe.Result {
	start := time.Now()

	results, timedOut := a.runBounded(ctx, p.Run)
	if timedOut {
		a.logf(ctx, "probe timed out", observe.F("probe", p.Name()), observe.F("timeout", a.cfg.ProbeTimeout.String()))
		results = []probe.Result{
			probe.Unknown(p.Subsystem(), p.Name(), "probe timed out", probe.ErrTimeout).
				With("timeout", a.cfg.ProbeTimeout.String()),
		}
	}

	a.record(ctx, p.Name(), results, time.Since(start))
	return results
}

// runSensors enumerates the bus and reads each sensor with retries. Reads
// re-attempt until a valid in-range value arrives or the policy is spent;
// the last reading always wins, annotated with the attempts it cost.
func (a *Aggregator) runSensors(ctx context.Context) []probe.Result {
	start := time.Now()

	results, timedOut := a.runBounded(ctx, a.sensorPass)
	if timedOut {
		a.logf(ctx, "sensor probe timed out", observe.F("timeout", a.cfg.ProbeTimeout.String()))
		results = []probe.Result{
			probe.Unknown(probe.SubsystemSensor, a.sensors.Name(), "probe timed out", probe.ErrTimeout).
				With("timeout", a.cfg.ProbeTimeout.String()),
		}
	}

	a.record(ctx, a.sensors.Name(), results, time.Since(start))
	return results
}

// runBounded runs fn under the probe timeout. Results come back over a
// buffered channel so an overrunning fn, whose goroutine is left to finish,
// has nowhere to write that the caller still reads; the channel is drained
// only when fn beat the deadline.
func (a *Aggregator) runBounded(ctx context.Context, fn func(context.Context) []probe.Result) ([]probe.Result, bool) {
	resultCh := make(chan []probe.Result, 1)

	err := resilience.WithTimeout(ctx, a.cfg.ProbeTimeout, func(ctx context.Context) error {
		resultCh <- fn(ctx)
		return nil
	})
	if err != nil {
		return nil, errors.Is(err, resilience.ErrTimeout)
	}
	return <-resultCh, false
}

func (a *Aggregator) sensorPass(ctx context.Context) []probe.Result {
	addrs, err := a.sensors.Addresses(ctx)
	if err != nil {
		return []probe.Result{
			probe.Failing(probe.SubsystemSensor, onewire.BusIdentifier, "bus namespace unreadable", err).
				With("error", err.Error()),
		}
	}
	if len(addrs) == 0 {
		return []probe.Result{onewire.BusEmptyResult()}
	}

	results := make([]probe.Result, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.SensorConcurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			results[i] = a.readSensor(gctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// readSensor spends the retry budget on one address. Checksum failures and
// pre-conversion sentinels are transient on a settling bus; a missing
// temperature field is retried along with them, the extra reads cost little
// and the last reading wins either way.
func (a *Aggregator) readSensor(ctx context.Context, addr string) probe.Result {
	var last onewire.Reading
	attempts := 0

	_ = a.retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		last = a.sensors.ReadAddress(ctx, addr)
		if last.HasValue {
			return nil
		}
		return errReadUnsettled
	})

	return last.Result(attempts)
}

func (a *Aggregator) record(ctx context.Context, name string, results []probe.Result, elapsed time.Duration) {
	worst := probe.StatusHealthy
	for _, res := range results {
		if res.Status > worst {
			worst = res.Status
		}
	}

	if a.metrics != nil {
		a.metrics.RecordProbe(ctx, name, worst.String(), elapsed)
	}
	a.logf(ctx, "probe complete",
		observe.F("probe", name),
		observe.F("status", worst.String()),
		observe.F("results", len(results)),
		observe.F("duration_ms", elapsed.Milliseconds()),
	)
}

func (a *Aggregator) logf(ctx context.Context, msg string, fields ...observe.Field) {
	if a.log != nil {
		a.log.Debug(ctx, msg, fields...)
	}
}
