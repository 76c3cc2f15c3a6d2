// Package findings provides audit.FindingSink implementations: an in-memory
// sink, a marker file persisted inside each project, a report renderer, and a
// fan-out sink combining them.
package findings
