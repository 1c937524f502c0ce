package sysd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ServiceState is the supervisor's view of one unit. Active and Enabled are
// independent observations and deliberately not collapsed into one flag.
type ServiceState struct {
	Active  bool
	Enabled bool

	// ActiveRaw and EnabledRaw keep the vendor tokens for evidence.
	ActiveRaw  string
	EnabledRaw string
}

// ServiceSupervisor queries a process supervisor about one logical service.
// The concrete implementation parses vendor output once so the decision
// engine never sees raw command output.
type ServiceSupervisor interface {
	// State reports run and autostart state for the unit.
	State(ctx context.Context, name string) (ServiceState, error)

	// RecentLogs returns the unit's log lines emitted within the window.
	RecentLogs(ctx context.Context, name string, window time.Duration) ([]string, error)

	// Start asks the supervisor to start the unit.
	Start(ctx context.Context, name string) error
}

// Systemctl is the systemd-backed supervisor.
type Systemctl struct{}

// State runs systemctl is-active and is-enabled for the unit. Both commands
// exit nonzero for inactive/disabled units, so only an empty token is
// treated as a query failure.
func (Systemctl) State(ctx context.Context, name string) (ServiceState, error) {
	activeOut, err := exec.CommandContext(ctx, "systemctl", "is-active", name).Output()
	active := strings.TrimSpace(string(activeOut))
	if active == "" {
		return ServiceState{}, fmt.Errorf("sysd: is-active %s: %w", name, err)
	}

	enabledOut, _ := exec.CommandContext(ctx, "systemctl", "is-enabled", name).Output()
	enabled := strings.TrimSpace(string(enabledOut))

	return ServiceState{
		Active:     active == "active",
		Enabled:    enabled == "enabled",
		ActiveRaw:  active,
		EnabledRaw: enabled,
	}, nil
}

// RecentLogs reads the unit's journal for the lookback window.
func (Systemctl) RecentLogs(ctx context.Context, name string, window time.Duration) ([]string, error) {
	since := fmt.Sprintf("-%ds", int(window.Seconds()))
	out, err := exec.CommandContext(ctx, "journalctl", "-u", name, "--since", since, "--no-pager", "-o", "cat").Output()
	if err != nil {
		return nil, fmt.Errorf("sysd: journalctl -u %s: %w", name, err)
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Start starts the unit via systemctl.
func (Systemctl) Start(ctx context.Context, name string) error {
	if out, err := exec.CommandContext(ctx, "systemctl", "start", name).CombinedOutput(); err != nil {
		return fmt.Errorf("sysd: start %s: %v (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
