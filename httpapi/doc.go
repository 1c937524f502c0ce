// Package httpapi serves the latest diagnostic report over HTTP in the
// long-running mode: liveness and readiness endpoints for supervisors,
// a guarded JSON report endpoint, and Prometheus metrics.
package httpapi
