package dockerx

import (
	"context"
	"strings"

	"github.com/heizmon/heizdiag/probe"
)

// RuntimeIdentifier is the identifier for the runtime-unreachable result,
// reported once for the whole probe instead of per workload.
const RuntimeIdentifier = "docker"

// ContainerProbe classifies a set of expected workloads against the list
// of running containers. Expected names are matched as substrings because
// compose prefixes container names with the project.
type ContainerProbe struct {
	runtime  ContainerRuntime
	expected []string
}

// NewContainerProbe creates a probe for the expected workload names.
func NewContainerProbe(runtime ContainerRuntime, expected []string) *ContainerProbe {
	return &ContainerProbe{runtime: runtime, expected: expected}
}

// Name returns the name of this probe.
func (p *ContainerProbe) Name() string {
	return "container"
}

// Subsystem returns the subsystem this probe covers.
func (p *ContainerProbe) Subsystem() probe.Subsystem {
	return probe.SubsystemContainer
}

// Run lists running containers and emits one result per expected workload.
// An unreachable runtime short-circuits into a single Unknown result: no
// per-workload claim can be made when the daemon itself is gone.
func (p *ContainerProbe) Run(ctx context.Context) []probe.Result {
	running, err := p.runtime.Running(ctx)
	if err != nil {
		return []probe.Result{
			probe.Unknown(probe.SubsystemContainer, RuntimeIdentifier, "container runtime unreachable", probe.ErrTransport).
				With("error", err.Error()),
		}
	}

	names := make([]string, len(running))
	for i, c := range running {
		names[i] = c.Name
	}
	runningList := strings.Join(names, ",")

	results := make([]probe.Result, 0, len(p.expected))
	for _, want := range p.expected {
		if match := matchName(running, want); match != "" {
			results = append(results, probe.Healthy(probe.SubsystemContainer, want, "running").
				With("container", match).
				With("running", runningList))
			continue
		}
		results = append(results, probe.Failing(probe.SubsystemContainer, want, "not running", nil).
			With("running", runningList))
	}
	return results
}

func matchName(running []Container, want string) string {
	for _, c := range running {
		if strings.Contains(c.Name, want) {
			return c.Name
		}
	}
	return ""
}
