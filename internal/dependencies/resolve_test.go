package dependencies_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/changes"
	"github.com/temirov/propaudit/internal/dependencies"
	"github.com/temirov/propaudit/internal/discovery"
	"github.com/temirov/propaudit/internal/execshell"
	"github.com/temirov/propaudit/internal/filesystem"
	"github.com/temirov/propaudit/internal/findings"
	"github.com/temirov/propaudit/internal/pgstore"
	"github.com/temirov/propaudit/internal/registration"
	"github.com/temirov/propaudit/internal/sources"
)

type stubDiscoverer struct{}

func (stubDiscoverer) DiscoverProjects([]string) ([]string, error) { return nil, nil }

func TestResolveDefaults(testInstance *testing.T) {
	require.IsType(testInstance, &discovery.FilesystemProjectDiscoverer{}, dependencies.ResolveProjectDiscoverer(nil))
	require.IsType(testInstance, stubDiscoverer{}, dependencies.ResolveProjectDiscoverer(stubDiscoverer{}))
	require.IsType(testInstance, filesystem.OSFileSystem{}, dependencies.ResolveFileSystem(nil))

	executor, executorError := dependencies.ResolveGitExecutor(nil, nil)
	require.NoError(testInstance, executorError)
	require.IsType(testInstance, &execshell.ShellExecutor{}, executor)

	detector, detectorError := dependencies.ResolveChangeDetector(nil, executor)
	require.NoError(testInstance, detectorError)
	require.IsType(testInstance, &changes.GitChangeDetector{}, detector)

	_, missingExecutorError := dependencies.ResolveChangeDetector(nil, nil)
	require.ErrorIs(testInstance, missingExecutorError, changes.ErrExecutorNotConfigured)

	source, sourceError := dependencies.ResolveFileSource(nil, sources.Configuration{}, zap.NewNop())
	require.NoError(testInstance, sourceError)
	require.IsType(testInstance, &sources.Router{}, source)
}

func TestResolvePersistence(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		existing             dependencies.Persistence
		expectedSinkType     any
		expectedRegistryType any
	}{
		{
			name:                 "file_backed_defaults",
			expectedSinkType:     &findings.MarkerFileSink{},
			expectedRegistryType: &registration.DescriptorRegistry{},
		},
		{
			name:                 "existing_collaborators_kept",
			existing:             dependencies.Persistence{FindingSink: findings.NewMemorySink(), Registration: registration.NewMemoryRegistry()},
			expectedSinkType:     &findings.MemorySink{},
			expectedRegistryType: &registration.MemoryRegistry{},
		},
		{
			name:                 "partial_override",
			existing:             dependencies.Persistence{FindingSink: findings.NewMemorySink()},
			expectedSinkType:     &findings.MemorySink{},
			expectedRegistryType: &registration.DescriptorRegistry{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			persistence, resolveError := dependencies.ResolvePersistence(context.Background(), testCase.existing, "", nil, nil)
			require.NoError(testInstance, resolveError)
			require.IsType(testInstance, testCase.expectedSinkType, persistence.FindingSink)
			require.IsType(testInstance, testCase.expectedRegistryType, persistence.Registration)
			require.NoError(testInstance, persistence.Close())
		})
	}
}

func TestResolvePersistenceReportsUnreachableDatabase(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, resolveError := dependencies.ResolvePersistence(executionContext, dependencies.Persistence{}, "postgres://propaudit@127.0.0.1:1/propaudit?connect_timeout=1", nil, zap.NewNop())
	require.Error(testInstance, resolveError)
	require.NotErrorIs(testInstance, resolveError, pgstore.ErrDSNRequired)
}
