package findings

import (
	"context"
	"sync"

	"github.com/temirov/propaudit/internal/audit"
)

type sinkScope struct {
	owner       string
	projectRoot string
}

// MemorySink keeps findings in memory, grouped by owner and project root.
type MemorySink struct {
	mutex    sync.Mutex
	findings map[sinkScope][]audit.Finding
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{findings: make(map[sinkScope][]audit.Finding)}
}

// ClearAll removes the owner's findings for project.
func (sink *MemorySink) ClearAll(executionContext context.Context, owner string, project audit.Project) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	delete(sink.findings, sinkScope{owner: owner, projectRoot: project.Root})
	return nil
}

// Report stores finding under its owner and the project root of its file.
func (sink *MemorySink) Report(executionContext context.Context, finding audit.Finding) error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	scope := sinkScope{owner: finding.Owner, projectRoot: finding.Location.File.Root}
	sink.findings[scope] = append(sink.findings[scope], finding)
	return nil
}

// Findings returns a copy of the owner's findings for project in report order.
func (sink *MemorySink) Findings(owner string, project audit.Project) []audit.Finding {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	stored := sink.findings[sinkScope{owner: owner, projectRoot: project.Root}]
	snapshot := make([]audit.Finding, len(stored))
	copy(snapshot, stored)
	return snapshot
}
