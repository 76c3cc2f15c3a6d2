// Package registration records which projects have the auditor attached,
// either in a per-project YAML descriptor or in memory.
package registration
