package projects_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/temirov/propaudit/internal/audit"
)

const (
	testProjectDirectoryNameConstant = "core"
	testConsistentManifestConstant   = `<view label="%label"/>`
	testConsistentResourcesConstant  = "label=Label\n"
	testMissingKeyManifestConstant   = `<view label="%label" tooltip="%tooltip"/>`
	testUnusedKeyResourcesConstant   = "label=Label\nobsolete=Old\n"
)

func createProject(testInstance *testing.T, manifest string, resources string) (string, audit.Project) {
	testInstance.Helper()
	workspace := testInstance.TempDir()
	projectRoot := filepath.Join(workspace, testProjectDirectoryNameConstant)
	require.NoError(testInstance, os.MkdirAll(projectRoot, 0o755))
	if len(manifest) > 0 {
		require.NoError(testInstance, os.WriteFile(filepath.Join(projectRoot, audit.ManifestFileName), []byte(manifest), 0o644))
	}
	if len(resources) > 0 {
		require.NoError(testInstance, os.WriteFile(filepath.Join(projectRoot, audit.ResourceFileName), []byte(resources), 0o644))
	}
	return workspace, audit.Project{Name: testProjectDirectoryNameConstant, Root: projectRoot}
}

func executeCommand(testInstance *testing.T, command *cobra.Command, executionContext context.Context, arguments ...string) (string, error) {
	testInstance.Helper()
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(io.Discard)
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.SetArgs(arguments)
	command.SetContext(executionContext)
	executionError := command.Execute()
	return output.String(), executionError
}

type stubChangeDetector struct {
	changedFiles  []string
	receivedRoots []string
	receivedSince []string
}

func (detector *stubChangeDetector) ChangedFiles(_ context.Context, projectRoot string, since string) ([]string, error) {
	detector.receivedRoots = append(detector.receivedRoots, projectRoot)
	detector.receivedSince = append(detector.receivedSince, since)
	return append([]string{}, detector.changedFiles...), nil
}
