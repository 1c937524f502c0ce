// Package history journals diagnostic runs and executed remediation
// actions in a local sqlite file.
package history
