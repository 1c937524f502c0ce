// Package diagnose runs the subsystem probes concurrently and folds their
// results into an immutable snapshot with a derived overall status. The
// aggregator owns every timeout and retry decision so the probes themselves
// stay stateless.
package diagnose
