// Package remedy turns a health snapshot into an ordered remediation plan
// and executes it. Planning is a pure function over the snapshot; execution
// is serialized and failure-tolerant, so one stuck container restart never
// blocks a bucket creation behind it.
package remedy
