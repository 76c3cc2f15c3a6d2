// Package changes discovers which project files changed, so an audit can run
// incrementally.
package changes

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/propaudit/internal/execshell"
)

const (
	gitDiffSubcommandConstant      = "diff"
	gitNameOnlyFlagConstant        = "--name-only"
	gitRelativeFlagConstant        = "--relative"
	gitPathSeparatorConstant       = "--"
	gitCurrentDirectoryConstant    = "."
	gitLSFilesSubcommandConstant   = "ls-files"
	gitOthersFlagConstant          = "--others"
	gitExcludeStandardFlagConstant = "--exclude-standard"
	executorNotConfiguredMessage   = "change detector requires a git executor"
)

// ErrExecutorNotConfigured indicates a GitChangeDetector was built without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessage)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// GitChangeDetector lists files changed in a git work tree.
type GitChangeDetector struct {
	executor GitExecutor
}

// NewGitChangeDetector constructs a GitChangeDetector.
func NewGitChangeDetector(executor GitExecutor) (*GitChangeDetector, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &GitChangeDetector{executor: executor}, nil
}

// ChangedFiles returns the project-relative paths that differ from since,
// including untracked files, deduplicated and sorted. An empty since compares
// against the index.
func (detector *GitChangeDetector) ChangedFiles(executionContext context.Context, projectRoot string, since string) ([]string, error) {
	diffArguments := []string{gitDiffSubcommandConstant, gitNameOnlyFlagConstant, gitRelativeFlagConstant}
	if trimmedSince := strings.TrimSpace(since); len(trimmedSince) > 0 {
		diffArguments = append(diffArguments, trimmedSince)
	}
	diffArguments = append(diffArguments, gitPathSeparatorConstant, gitCurrentDirectoryConstant)

	diffResult, diffError := detector.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        diffArguments,
		WorkingDirectory: projectRoot,
	})
	if diffError != nil {
		return nil, diffError
	}

	untrackedResult, untrackedError := detector.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLSFilesSubcommandConstant, gitOthersFlagConstant, gitExcludeStandardFlagConstant},
		WorkingDirectory: projectRoot,
	})
	if untrackedError != nil {
		return nil, untrackedError
	}

	return collectPaths(diffResult.StandardOutput, untrackedResult.StandardOutput), nil
}

func collectPaths(outputs ...string) []string {
	unique := make(map[string]struct{})
	for _, output := range outputs {
		for _, line := range strings.Split(output, "\n") {
			trimmedLine := strings.TrimSpace(line)
			if len(trimmedLine) == 0 {
				continue
			}
			unique[filepath.ToSlash(trimmedLine)] = struct{}{}
		}
	}

	paths := make([]string, 0, len(unique))
	for path := range unique {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
