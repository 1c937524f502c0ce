package observe

import "errors"

var (
	// ErrMissingServiceName indicates the config has no service name.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidTracingExporter indicates an unsupported tracing exporter.
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")

	// ErrInvalidMetricsExporter indicates an unsupported metrics exporter.
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")

	// ErrInvalidSamplePct indicates a sample percentage outside [0, 1].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	// ErrInvalidLogLevel indicates an unsupported log level.
	ErrInvalidLogLevel = errors.New("observe: invalid log level")
)
