package projects_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	projects "github.com/temirov/propaudit/cmd/cli/projects"
	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/findings"
	"github.com/temirov/propaudit/internal/registration"
)

type synchronizedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (buffer *synchronizedBuffer) Write(data []byte) (int, error) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.buffer.Write(data)
}

func (buffer *synchronizedBuffer) String() string {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.buffer.String()
}

func TestWatchCommandStopsWhenContextCanceled(testInstance *testing.T) {
	workspace, _ := createProject(testInstance, testConsistentManifestConstant, testConsistentResourcesConstant)
	builder := projects.WatchCommandBuilder{
		Collaborators: projects.Collaborators{FindingSink: findings.NewMemorySink(), Registration: registration.NewMemoryRegistry()},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, executionError := executeCommand(testInstance, command, executionContext, workspace)
	require.NoError(testInstance, executionError)
}

func TestWatchCommandAuditsChangedProject(testInstance *testing.T) {
	workspace, project := createProject(testInstance, testConsistentManifestConstant, testConsistentResourcesConstant)
	markerSink := findings.NewMemorySink()
	builder := projects.WatchCommandBuilder{
		Collaborators: projects.Collaborators{FindingSink: markerSink, Registration: registration.NewMemoryRegistry()},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	output := &synchronizedBuffer{}
	command.SetOut(output)
	command.SetErr(io.Discard)
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.SetArgs([]string{"--debounce", "50ms", workspace})

	executionContext, cancel := context.WithCancel(context.Background())
	command.SetContext(executionContext)
	commandResult := make(chan error, 1)
	go func() {
		commandResult <- command.Execute()
	}()

	manifestPath := filepath.Join(project.Root, audit.ManifestFileName)
	require.Eventually(testInstance, func() bool {
		if writeError := os.WriteFile(manifestPath, []byte(testMissingKeyManifestConstant), 0o644); writeError != nil {
			return false
		}
		return len(markerSink.Findings(audit.OwnerIdentifier, project)) > 0
	}, 5*time.Second, 200*time.Millisecond)
	require.Eventually(testInstance, func() bool {
		return bytes.Contains([]byte(output.String()), []byte(testMissingTooltipMessageConstant))
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case executionError := <-commandResult:
		require.NoError(testInstance, executionError)
	case <-time.After(5 * time.Second):
		testInstance.Fatal("watch command did not stop after cancellation")
	}
}
