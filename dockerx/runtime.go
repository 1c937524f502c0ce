package dockerx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Container is one running workload as reported by the runtime.
type Container struct {
	Name   string
	Image  string
	Status string
}

// ContainerRuntime lists and controls containers. The concrete
// implementation parses vendor output once; callers only see structured
// records.
type ContainerRuntime interface {
	// Running lists currently running containers.
	Running(ctx context.Context) ([]Container, error)

	// Start starts a stopped container by name.
	Start(ctx context.Context, name string) error

	// Restart restarts a container by name.
	Restart(ctx context.Context, name string) error
}

// DockerCLI talks to the Docker daemon through the docker binary, which is
// how the deployment's compose stack is managed anyway.
type DockerCLI struct{}

// Running lists running containers via docker ps with a tab-separated
// format string.
func (DockerCLI) Running(ctx context.Context) ([]Container, error) {
	out, err := exec.CommandContext(ctx, "docker", "ps", "--format", "{{.Names}}\t{{.Image}}\t{{.Status}}").Output()
	if err != nil {
		return nil, fmt.Errorf("dockerx: docker ps: %w", err)
	}
	return parsePS(string(out)), nil
}

// Start starts a container.
func (DockerCLI) Start(ctx context.Context, name string) error {
	if out, err := exec.CommandContext(ctx, "docker", "start", name).CombinedOutput(); err != nil {
		return fmt.Errorf("dockerx: docker start %s: %v (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Restart restarts a container.
func (DockerCLI) Restart(ctx context.Context, name string) error {
	if out, err := exec.CommandContext(ctx, "docker", "restart", name).CombinedOutput(); err != nil {
		return fmt.Errorf("dockerx: docker restart %s: %v (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func parsePS(out string) []Container {
	var containers []Container
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		c := Container{Name: fields[0]}
		if len(fields) > 1 {
			c.Image = fields[1]
		}
		if len(fields) > 2 {
			c.Status = fields[2]
		}
		containers = append(containers, c)
	}
	return containers
}
