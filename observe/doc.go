// Package observe wires tracing, metrics, and structured logging for the
// diagnostic engine behind a single Observer. Every subsystem degrades to
// a noop when disabled, so probe and remediation code records telemetry
// unconditionally.
package observe
