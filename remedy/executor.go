package remedy

import (
	"context"
	"time"

	"github.com/heizmon/heizdiag/dockerx"
	"github.com/heizmon/heizdiag/observe"
	"github.com/heizmon/heizdiag/onewire"
	"github.com/heizmon/heizdiag/sysd"
)

// BucketCreator creates a bucket in the time-series database.
type BucketCreator interface {
	CreateBucket(ctx context.Context, name string) error
}

// Outcome is the result of executing one action.
type Outcome struct {
	Action   Action
	Executed bool
	Err      error
	Duration time.Duration
}

// Executor runs an action plan. Execution is strictly serialized so two
// remediation attempts never target the same subsystem concurrently, and a
// failed action never aborts the rest of the plan.
type Executor struct {
	containers dockerx.ContainerRuntime
	services   sysd.ServiceSupervisor
	buckets    BucketCreator
	reloader   onewire.Reloader

	log     observe.Logger
	metrics observe.Metrics
}

// NewExecutor creates an executor over the external interfaces. Any of
// them may be nil; actions without a backing interface fail individually.
func NewExecutor(containers dockerx.ContainerRuntime, services sysd.ServiceSupervisor, buckets BucketCreator, reloader onewire.Reloader, obs observe.Observer) *Executor {
	e := &Executor{
		containers: containers,
		services:   services,
		buckets:    buckets,
		reloader:   reloader,
	}
	if obs != nil {
		e.log = obs.Logger().WithComponent("remedy")
		e.metrics = obs.Metrics()
	}
	return e
}

// Execute runs the plan in order and returns one outcome per action.
// Manual interventions are reported, never executed.
func (e *Executor) Execute(ctx context.Context, plan []Action) []Outcome {
	outcomes := make([]Outcome, 0, len(plan))
	for _, action := range plan {
		outcomes = append(outcomes, e.execute(ctx, action))
	}
	return outcomes
}

func (e *Executor) execute(ctx context.Context, action Action) Outcome {
	if action.Kind == KindManualIntervention {
		e.logf(ctx, "manual intervention required",
			observe.F("target", action.Target),
			observe.F("rationale", action.Rationale),
		)
		return Outcome{Action: action}
	}

	start := time.Now()
	err := e.dispatch(ctx, action)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordAction(ctx, action.Kind.String(), err)
	}
	if err != nil {
		e.logf(ctx, "action failed",
			observe.F("action", action.Kind.String()),
			observe.F("target", action.Target),
			observe.F("error", err.Error()),
		)
	} else {
		e.logf(ctx, "action complete",
			observe.F("action", action.Kind.String()),
			observe.F("target", action.Target),
			observe.F("duration_ms", elapsed.Milliseconds()),
		)
	}

	return Outcome{Action: action, Executed: true, Err: err, Duration: elapsed}
}

func (e *Executor) dispatch(ctx context.Context, action Action) error {
	switch action.Kind {
	case KindStartContainer:
		if e.containers == nil {
			return ErrNoRuntime
		}
		return e.containers.Start(ctx, action.Target)

	case KindRestartContainer:
		if e.containers == nil {
			return ErrNoRuntime
		}
		return e.containers.Restart(ctx, action.Target)

	case KindStartService:
		if e.services == nil {
			return ErrNoSupervisor
		}
		return e.services.Start(ctx, action.Target)

	case KindCreateBucket:
		if e.buckets == nil {
			return ErrNoDatabase
		}
		return e.buckets.CreateBucket(ctx, action.Target)

	case KindRunModuleReload:
		if e.reloader == nil {
			return ErrNoReloader
		}
		return e.reloader.Reload(ctx)

	default:
		return ErrUnknownAction
	}
}

func (e *Executor) logf(ctx context.Context, msg string, fields ...observe.Field) {
	if e.log != nil {
		e.log.Info(ctx, msg, fields...)
	}
}
