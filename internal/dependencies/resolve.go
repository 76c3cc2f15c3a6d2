// Package dependencies supplies default collaborators for propaudit commands
// when callers leave them unset.
package dependencies

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/changes"
	"github.com/temirov/propaudit/internal/discovery"
	"github.com/temirov/propaudit/internal/execshell"
	"github.com/temirov/propaudit/internal/filesystem"
	"github.com/temirov/propaudit/internal/findings"
	"github.com/temirov/propaudit/internal/pgstore"
	"github.com/temirov/propaudit/internal/registration"
	"github.com/temirov/propaudit/internal/sources"
)

const (
	storeSchemaErrorTemplateConstant = "unable to prepare finding store: %w"
	persistenceBackendLogMessage     = "persistence backend selected"
	logFieldBackendConstant          = "backend"
	backendPostgresConstant          = "postgres"
	backendFilesConstant             = "files"
)

// ProjectDiscoverer locates project directories beneath roots.
type ProjectDiscoverer interface {
	DiscoverProjects(roots []string) ([]string, error)
}

// ChangeDetector lists project-relative files changed since a revision.
type ChangeDetector interface {
	ChangedFiles(executionContext context.Context, projectRoot string, since string) ([]string, error)
}

// Persistence groups the durable finding sink and project registration with their cleanup.
type Persistence struct {
	FindingSink  audit.FindingSink
	Registration audit.ProjectRegistration
	closer       func() error
}

// Close releases resources held by the persistence backend.
func (persistence Persistence) Close() error {
	if persistence.closer == nil {
		return nil
	}
	return persistence.closer()
}

// ResolveProjectDiscoverer returns the provided discoverer or a filesystem-backed default.
func ResolveProjectDiscoverer(existing ProjectDiscoverer) ProjectDiscoverer {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemProjectDiscoverer()
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing filesystem.FileSystem) filesystem.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing changes.GitExecutor, logger *zap.Logger) (changes.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

// ResolveChangeDetector returns the provided detector or a git-backed default.
func ResolveChangeDetector(existing ChangeDetector, executor changes.GitExecutor) (ChangeDetector, error) {
	if existing != nil {
		return existing, nil
	}
	detector, creationError := changes.NewGitChangeDetector(executor)
	if creationError != nil {
		return nil, creationError
	}
	return detector, nil
}

// ResolveFileSource returns the provided source or a scheme router built from configuration.
func ResolveFileSource(existing audit.FileSource, configuration sources.Configuration, logger *zap.Logger) (audit.FileSource, error) {
	if existing != nil {
		return existing, nil
	}
	router, creationError := sources.NewSource(configuration, logger)
	if creationError != nil {
		return nil, creationError
	}
	return router, nil
}

// ResolvePersistence fills unset collaborators of existing. A non-empty
// postgresDSN selects the PostgreSQL store; otherwise findings go to marker
// files and registrations to project descriptors.
func ResolvePersistence(executionContext context.Context, existing Persistence, postgresDSN string, fileSystem filesystem.FileSystem, logger *zap.Logger) (Persistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if existing.FindingSink != nil && existing.Registration != nil {
		return existing, nil
	}

	resolved := existing
	if len(strings.TrimSpace(postgresDSN)) > 0 {
		store, openError := pgstore.Open(executionContext, postgresDSN)
		if openError != nil {
			return Persistence{}, openError
		}
		if schemaError := store.EnsureSchema(executionContext); schemaError != nil {
			_ = store.Close()
			return Persistence{}, fmt.Errorf(storeSchemaErrorTemplateConstant, schemaError)
		}
		if resolved.FindingSink == nil {
			resolved.FindingSink = store.FindingSink()
		}
		if resolved.Registration == nil {
			resolved.Registration = store.Registry()
		}
		resolved.closer = store.Close
		logger.Debug(persistenceBackendLogMessage, zap.String(logFieldBackendConstant, backendPostgresConstant))
		return resolved, nil
	}

	resolvedFileSystem := ResolveFileSystem(fileSystem)
	if resolved.FindingSink == nil {
		resolved.FindingSink = findings.NewMarkerFileSink(resolvedFileSystem, logger)
	}
	if resolved.Registration == nil {
		resolved.Registration = registration.NewDescriptorRegistry(resolvedFileSystem)
	}
	logger.Debug(persistenceBackendLogMessage, zap.String(logFieldBackendConstant, backendFilesConstant))
	return resolved, nil
}
