// Package probe defines the result envelope and probe contract shared by
// every subsystem check in heizdiag.
//
// A Probe inspects one subsystem of the heating pipeline (sensors, collector
// service, containers, database) and emits one Result per probed instance.
// Results carry an ordered Evidence trail; the Status of a Result is always
// derivable from that trail, never from an implicit default.
//
// # Basic Usage
//
//	res := probe.Degraded(probe.SubsystemDatabase, "heizung-daten", "bucket missing").
//	    With("buckets", "other-bucket").
//	    With("http_status", "200")
//
// Probes never propagate failures as errors past their boundary: a transport
// failure or parse error is recorded as evidence on a failing result so the
// aggregator always assembles a complete snapshot.
package probe
