// Package execshell runs external tools with structured logging.
//
// ShellExecutor wraps a CommandRunner, logs a human-readable message for every
// command lifecycle stage, and converts non-zero exits into typed errors.
// OSCommandRunner is the default runner backed by os/exec.
package execshell
