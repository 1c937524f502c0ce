package probe

import (
	"context"
	"time"
)

// Subsystem identifies which part of the heating pipeline a result belongs to.
type Subsystem int

const (
	// SubsystemSensor covers the 1-Wire temperature sensors on the bus.
	SubsystemSensor Subsystem = iota
	// SubsystemService covers supervisor-managed processes (the collector).
	SubsystemService
	// SubsystemContainer covers Docker workloads (InfluxDB, Grafana).
	SubsystemContainer
	// SubsystemDatabase covers the InfluxDB HTTP surface.
	SubsystemDatabase
)

// String returns the string representation of the subsystem.
func (s Subsystem) String() string {
	switch s {
	case SubsystemSensor:
		return "sensor"
	case SubsystemService:
		return "service"
	case SubsystemContainer:
		return "container"
	case SubsystemDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Status represents the health status of one probed component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusFailing indicates the component is not functioning.
	StatusFailing
	// StatusUnknown indicates the component could not be assessed,
	// typically because the probe timed out.
	StatusUnknown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusFailing:
		return "failing"
	default:
		return "unknown"
	}
}

// Evidence is a single observation that contributed to a status decision.
// Evidence keeps insertion order so reports replay the probe's reasoning.
type Evidence struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is the uniform envelope every probe emits. Status must be derived
// from the recorded evidence, never defaulted.
type Result struct {
	// Subsystem is the probed part of the pipeline.
	Subsystem Subsystem

	// Identifier names the instance: a sensor address, service name,
	// container name, or bucket name.
	Identifier string

	// Status is the derived health status.
	Status Status

	// Message summarizes the decision in one line.
	Message string

	// Evidence is the ordered list of observations behind Status.
	Evidence []Evidence

	// ObservedAt is when the probe ran.
	ObservedAt time.Time

	// Err is the underlying error for failing or unknown results.
	Err error
}

// Healthy creates a healthy result.
func Healthy(sub Subsystem, id, message string) Result {
	return Result{
		Subsystem:  sub,
		Identifier: id,
		Status:     StatusHealthy,
		Message:    message,
		ObservedAt: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(sub Subsystem, id, message string) Result {
	return Result{
		Subsystem:  sub,
		Identifier: id,
		Status:     StatusDegraded,
		Message:    message,
		ObservedAt: time.Now(),
	}
}

// Failing creates a failing result.
func Failing(sub Subsystem, id, message string, err error) Result {
	return Result{
		Subsystem:  sub,
		Identifier: id,
		Status:     StatusFailing,
		Message:    message,
		Err:        err,
		ObservedAt: time.Now(),
	}
}

// Unknown creates an unknown result, used when a probe could not run to
// completion within its bound.
func Unknown(sub Subsystem, id, message string, err error) Result {
	return Result{
		Subsystem:  sub,
		Identifier: id,
		Status:     StatusUnknown,
		Message:    message,
		Err:        err,
		ObservedAt: time.Now(),
	}
}

// With appends an evidence observation and returns the updated result.
func (r Result) With(key, value string) Result {
	r.Evidence = append(r.Evidence, Evidence{Key: key, Value: value})
	return r
}

// Lookup returns the value of the first evidence item with the given key.
func (r Result) Lookup(key string) (string, bool) {
	for _, e := range r.Evidence {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Probe is the interface every subsystem check implements.
type Probe interface {
	// Name returns the name of this probe for logs and timeout synthesis.
	Name() string

	// Subsystem returns the subsystem this probe covers.
	Subsystem() Subsystem

	// Run performs the check and returns one result per probed instance.
	// Run never panics past the probe boundary; failures become results.
	Run(ctx context.Context) []Result
}
