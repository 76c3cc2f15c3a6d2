package findings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/findings"
)

func TestMemorySinkScopesFindingsByOwnerAndProject(testInstance *testing.T) {
	firstProject := audit.Project{Name: "first", Root: "/workspace/first"}
	secondProject := audit.Project{Name: "second", Root: "/workspace/second"}
	sink := findings.NewMemorySink()

	require.NoError(testInstance, sink.Report(context.Background(), missingFinding(firstProject, "a", 1, 5)))
	require.NoError(testInstance, sink.Report(context.Background(), unusedFinding(firstProject, "b", 2)))
	require.NoError(testInstance, sink.Report(context.Background(), missingFinding(secondProject, "c", 1, 5)))

	require.Len(testInstance, sink.Findings(audit.OwnerIdentifier, firstProject), 2)
	require.Len(testInstance, sink.Findings(audit.OwnerIdentifier, secondProject), 1)
	require.Empty(testInstance, sink.Findings("other.owner", firstProject))

	require.NoError(testInstance, sink.ClearAll(context.Background(), audit.OwnerIdentifier, firstProject))
	require.Empty(testInstance, sink.Findings(audit.OwnerIdentifier, firstProject))
	require.Len(testInstance, sink.Findings(audit.OwnerIdentifier, secondProject), 1)
}

type failingSink struct {
	failure error
}

func (sink failingSink) ClearAll(context.Context, string, audit.Project) error {
	return sink.failure
}

func (sink failingSink) Report(context.Context, audit.Finding) error {
	return sink.failure
}

func TestMultiSinkFansOut(testInstance *testing.T) {
	project := audit.Project{Name: "sample", Root: "/workspace/sample"}
	firstSink := findings.NewMemorySink()
	secondSink := findings.NewMemorySink()
	multiSink := findings.NewMultiSink(firstSink, nil, secondSink)

	require.NoError(testInstance, multiSink.Report(context.Background(), missingFinding(project, "a", 1, 1)))
	require.Len(testInstance, firstSink.Findings(audit.OwnerIdentifier, project), 1)
	require.Len(testInstance, secondSink.Findings(audit.OwnerIdentifier, project), 1)

	require.NoError(testInstance, multiSink.ClearAll(context.Background(), audit.OwnerIdentifier, project))
	require.Empty(testInstance, firstSink.Findings(audit.OwnerIdentifier, project))
	require.Empty(testInstance, secondSink.Findings(audit.OwnerIdentifier, project))
}

func TestMultiSinkClearFailsWhenAnyMemberFails(testInstance *testing.T) {
	project := audit.Project{Name: "sample", Root: "/workspace/sample"}
	memberFailure := errors.New("locked")
	healthySink := findings.NewMemorySink()
	require.NoError(testInstance, healthySink.Report(context.Background(), missingFinding(project, "a", 1, 1)))

	multiSink := findings.NewMultiSink(healthySink, failingSink{failure: memberFailure})

	require.ErrorIs(testInstance, multiSink.ClearAll(context.Background(), audit.OwnerIdentifier, project), memberFailure)
	require.Empty(testInstance, healthySink.Findings(audit.OwnerIdentifier, project))
	require.ErrorIs(testInstance, multiSink.Report(context.Background(), missingFinding(project, "b", 1, 1)), memberFailure)
}
