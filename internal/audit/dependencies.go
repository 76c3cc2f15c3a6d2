package audit

import (
	"context"

	"github.com/temirov/propaudit/internal/keyscan"
)

// FileSource resolves file references to text content. ReadText reports an
// absent file with an error matching fs.ErrNotExist.
type FileSource interface {
	Exists(executionContext context.Context, reference keyscan.FileReference) bool
	ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error)
}

// FindingSink receives findings for display or persistence.
type FindingSink interface {
	// ClearAll removes every finding the owner previously reported for the project.
	ClearAll(executionContext context.Context, owner string, project Project) error
	// Report records a single finding.
	Report(executionContext context.Context, finding Finding) error
}

// ProjectRegistration tracks which projects have the auditor attached.
type ProjectRegistration interface {
	IsRegistered(executionContext context.Context, project Project) (bool, error)
	Register(executionContext context.Context, project Project) error
	Unregister(executionContext context.Context, project Project) error
}

// ProgressReporter observes audit progress. Worked may be called from
// concurrent goroutines.
type ProgressReporter interface {
	BeginTask(name string, totalWork int)
	Worked(units int)
	Done()
}
