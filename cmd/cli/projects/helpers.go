package projects

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/changes"
	"github.com/temirov/propaudit/internal/dependencies"
	"github.com/temirov/propaudit/internal/filesystem"
	pathutils "github.com/temirov/propaudit/internal/utils/path"
)

const (
	missingProjectsErrorMessageConstant = "no auditable projects found under the provided roots"
	remoteSchemeSeparatorConstant       = "://"
	projectsResolvedMessageConstant     = "projects resolved"
	logFieldRootsConstant               = "roots"
	logFieldProjectsConstant            = "projects"
	logFieldProjectConstant             = "project"
	logFieldStatusConstant              = "status"
)

// ErrNoProjects indicates that discovery found nothing to operate on.
var ErrNoProjects = errors.New(missingProjectsErrorMessageConstant)

var projectHomeDirectoryExpander = pathutils.NewHomeExpander()

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Collaborators overrides the defaults every project command resolves. Unset
// fields fall back to filesystem discovery, the configured sources, and the
// configured persistence backend.
type Collaborators struct {
	Discoverer     dependencies.ProjectDiscoverer
	FileSource     audit.FileSource
	FindingSink    audit.FindingSink
	Registration   audit.ProjectRegistration
	FileSystem     filesystem.FileSystem
	GitExecutor    changes.GitExecutor
	ChangeDetector dependencies.ChangeDetector
}

func determineRoots(arguments []string, configuredRoots []string) []string {
	roots := trimRoots(arguments)
	if len(roots) > 0 {
		return roots
	}
	return trimRoots(configuredRoots)
}

func trimRoots(raw []string) []string {
	return projectHomeDirectoryExpander.ExpandRoots(raw)
}

// resolveProjects turns roots into projects. Local roots are searched for
// project directories; remote roots name a single project each.
func resolveProjects(discoverer dependencies.ProjectDiscoverer, roots []string, logger *zap.Logger) ([]audit.Project, error) {
	var localRoots []string
	var projects []audit.Project
	for _, root := range roots {
		if isRemoteRoot(root) {
			projects = append(projects, audit.Project{Name: path.Base(strings.TrimRight(root, "/")), Root: root})
			continue
		}
		absoluteRoot, absoluteError := filepath.Abs(root)
		if absoluteError != nil {
			return nil, absoluteError
		}
		localRoots = append(localRoots, absoluteRoot)
	}

	if len(localRoots) > 0 {
		directories, discoveryError := dependencies.ResolveProjectDiscoverer(discoverer).DiscoverProjects(localRoots)
		if discoveryError != nil {
			return nil, discoveryError
		}
		for _, directory := range directories {
			projects = append(projects, audit.Project{Name: filepath.Base(directory), Root: directory})
		}
	}

	if len(projects) == 0 {
		return nil, ErrNoProjects
	}
	logger.Debug(projectsResolvedMessageConstant, zap.Strings(logFieldRootsConstant, roots), zap.Int(logFieldProjectsConstant, len(projects)))
	return projects, nil
}

func isRemoteRoot(root string) bool {
	return strings.Contains(root, remoteSchemeSeparatorConstant)
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func commandContext(command *cobra.Command) context.Context {
	if command == nil || command.Context() == nil {
		return context.Background()
	}
	return command.Context()
}

// openPersistence resolves the durable sink and registration for collaborators.
func openPersistence(executionContext context.Context, collaborators Collaborators, storeConfiguration StoreConfiguration, logger *zap.Logger) (dependencies.Persistence, error) {
	return dependencies.ResolvePersistence(
		executionContext,
		dependencies.Persistence{FindingSink: collaborators.FindingSink, Registration: collaborators.Registration},
		storeConfiguration.PostgresDSN,
		collaborators.FileSystem,
		logger,
	)
}

func resolveStoreConfiguration(provider func() StoreConfiguration) StoreConfiguration {
	if provider == nil {
		return DefaultStoreConfiguration()
	}
	return provider()
}

func flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	return command.Flags().Changed(flagName)
}
