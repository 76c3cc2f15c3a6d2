package audit_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/propaudit/internal/audit"
)

func TestLoggingProgressReporterLogsTaskLifecycle(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	reporter := audit.NewLoggingProgressReporter(zap.New(observerCore))

	reporter.BeginTask("scan", 2)
	reporter.Worked(1)
	reporter.Worked(1)
	reporter.Done()

	entries := observedLogs.All()
	require.Len(testInstance, entries, 4)
	require.Equal(testInstance, "task started", entries[0].Message)
	require.Equal(testInstance, "task finished", entries[3].Message)

	finalContext := entries[3].ContextMap()
	require.Equal(testInstance, "scan", finalContext["task"])
	require.EqualValues(testInstance, 2, finalContext["completed"])
}

func TestLoggingProgressReporterAcceptsNilLogger(testInstance *testing.T) {
	reporter := audit.NewLoggingProgressReporter(nil)
	require.NotPanics(testInstance, func() {
		reporter.BeginTask("scan", 1)
		reporter.Worked(1)
		reporter.Done()
	})
}
