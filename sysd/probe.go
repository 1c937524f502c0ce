package sysd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/heizmon/heizdiag/probe"
)

// failureMarkers are the case-insensitive substrings that mark a log line
// as failure-indicating.
var failureMarkers = []string{"error", "failed", "exception"}

// maxLogEvidence bounds how many matched lines are carried as evidence.
const maxLogEvidence = 3

// ServiceProbe checks one supervisor-managed service: run state, autostart
// state, and failure markers in its recent logs.
type ServiceProbe struct {
	supervisor ServiceSupervisor
	name       string
	logWindow  time.Duration
}

// NewServiceProbe creates a probe for the named service. A zero logWindow
// defaults to one hour.
func NewServiceProbe(supervisor ServiceSupervisor, name string, logWindow time.Duration) *ServiceProbe {
	if logWindow <= 0 {
		logWindow = time.Hour
	}
	return &ServiceProbe{supervisor: supervisor, name: name, logWindow: logWindow}
}

// Name returns the name of this probe.
func (p *ServiceProbe) Name() string {
	return "service"
}

// Subsystem returns the subsystem this probe covers.
func (p *ServiceProbe) Subsystem() probe.Subsystem {
	return probe.SubsystemService
}

// Run derives the service status:
//
//	active + enabled, clean logs  -> healthy
//	active with failure log lines -> failing
//	active xor enabled            -> degraded
//	neither active nor enabled    -> failing
func (p *ServiceProbe) Run(ctx context.Context) []probe.Result {
	state, err := p.supervisor.State(ctx, p.name)
	if err != nil {
		return []probe.Result{
			probe.Failing(probe.SubsystemService, p.name, "supervisor query failed", probe.ErrTransport).
				With("error", err.Error()),
		}
	}

	matched := p.scanLogs(ctx)

	res := p.classify(state, matched).
		With("active", state.ActiveRaw).
		With("enabled", state.EnabledRaw)

	if len(matched) > 0 {
		res = res.With("log_matches", strconv.Itoa(len(matched)))
		for i, line := range matched {
			if i >= maxLogEvidence {
				break
			}
			res = res.With("log_line", line)
		}
	}
	return []probe.Result{res}
}

func (p *ServiceProbe) classify(state ServiceState, matched []string) probe.Result {
	switch {
	case state.Active && len(matched) > 0:
		return probe.Failing(probe.SubsystemService, p.name,
			fmt.Sprintf("active but %d failure lines in last %s", len(matched), p.logWindow), nil)
	case state.Active && state.Enabled:
		return probe.Healthy(probe.SubsystemService, p.name, "active and enabled")
	case !state.Active && !state.Enabled:
		return probe.Failing(probe.SubsystemService, p.name, "neither active nor enabled", nil)
	case state.Active:
		return probe.Degraded(probe.SubsystemService, p.name, "active but not enabled for autostart")
	default:
		return probe.Degraded(probe.SubsystemService, p.name, "enabled but not running")
	}
}

// scanLogs returns recent log lines containing a failure marker. A log
// query failure is not fatal to the probe; state alone still classifies.
func (p *ServiceProbe) scanLogs(ctx context.Context) []string {
	lines, err := p.supervisor.RecentLogs(ctx, p.name, p.logWindow)
	if err != nil {
		return nil
	}

	var matched []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range failureMarkers {
			if strings.Contains(lower, marker) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}
