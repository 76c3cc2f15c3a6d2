package findings

import (
	"context"
	"errors"

	"github.com/temirov/propaudit/internal/audit"
)

// MultiSink fans findings out to several sinks.
type MultiSink struct {
	sinks []audit.FindingSink
}

// NewMultiSink combines sinks, ignoring nil entries.
func NewMultiSink(sinks ...audit.FindingSink) *MultiSink {
	combined := make([]audit.FindingSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			combined = append(combined, sink)
		}
	}
	return &MultiSink{sinks: combined}
}

// ClearAll clears every member and fails when any member fails.
func (sink *MultiSink) ClearAll(executionContext context.Context, owner string, project audit.Project) error {
	var clearErrors []error
	for _, member := range sink.sinks {
		if clearError := member.ClearAll(executionContext, owner, project); clearError != nil {
			clearErrors = append(clearErrors, clearError)
		}
	}
	return errors.Join(clearErrors...)
}

// Report delivers finding to every member and returns the joined failures.
func (sink *MultiSink) Report(executionContext context.Context, finding audit.Finding) error {
	var reportErrors []error
	for _, member := range sink.sinks {
		if reportError := member.Report(executionContext, finding); reportError != nil {
			reportErrors = append(reportErrors, reportError)
		}
	}
	return errors.Join(reportErrors...)
}
