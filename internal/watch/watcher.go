// Package watch audits projects as their files change on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/keyscan"
)

// DefaultDebounce is the quiet period that closes a batch of file events.
const DefaultDebounce = 300 * time.Millisecond

const (
	runnerNotConfiguredMessageConstant = "watcher requires a build runner"
	watchStartedMessageConstant        = "watching projects"
	watchStoppedMessageConstant        = "watch stopped"
	watchErrorMessageConstant          = "file watcher error"
	watchAddFailedMessageConstant      = "unable to watch directory"
	batchSkippedUnregisteredMessage    = "skipping unregistered project"
	batchRegistrationFailedMessage     = "unable to determine project registration"
	batchRunFailedMessageConstant      = "audit run failed"
	logFieldProjectConstant            = "project"
	logFieldDirectoryConstant          = "directory"
	logFieldChangedFilesConstant       = "changed_files"
	logFieldProjectCountConstant       = "projects"
	descriptorFileNameConstant         = ".propaudit.yaml"
	temporaryFilePrefixConstant        = ".propaudit-tmp-"
)

// ErrRunnerNotConfigured indicates NewWatcher received no build runner.
var ErrRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)

var ignoredDirectoryNames = map[string]struct{}{
	".git":         {},
	".propaudit":   {},
	"node_modules": {},
}

// BuildRunner executes a build request.
type BuildRunner interface {
	Run(executionContext context.Context, request audit.BuildRequest) (audit.Report, error)
}

// CacheInvalidator discards cached file content.
type CacheInvalidator interface {
	Invalidate(reference keyscan.FileReference)
}

// Configuration tunes the watcher.
type Configuration struct {
	Debounce            time.Duration `mapstructure:"debounce"`
	RequireRegistration bool          `mapstructure:"require_registration"`
}

// Option customizes a Watcher.
type Option func(watcher *Watcher)

// WithRegistration consults registration before each batch when required is true.
func WithRegistration(registration audit.ProjectRegistration, required bool) Option {
	return func(watcher *Watcher) {
		watcher.registration = registration
		watcher.requireRegistration = required
	}
}

// WithCacheInvalidator invalidates the audited files of a project before each batch.
func WithCacheInvalidator(invalidator CacheInvalidator) Option {
	return func(watcher *Watcher) {
		watcher.invalidator = invalidator
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(debounce time.Duration) Option {
	return func(watcher *Watcher) {
		if debounce > 0 {
			watcher.debounce = debounce
		}
	}
}

// WithReportHandler receives the report of every batch run.
func WithReportHandler(handler func(report audit.Report)) Option {
	return func(watcher *Watcher) {
		watcher.reportHandler = handler
	}
}

// Watcher turns file events into Auto build requests for the owning project.
type Watcher struct {
	runner              BuildRunner
	logger              *zap.Logger
	registration        audit.ProjectRegistration
	requireRegistration bool
	invalidator         CacheInvalidator
	debounce            time.Duration
	reportHandler       func(report audit.Report)
}

// NewWatcher constructs a Watcher.
func NewWatcher(runner BuildRunner, logger *zap.Logger, options ...Option) (*Watcher, error) {
	if runner == nil {
		return nil, ErrRunnerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher := &Watcher{runner: runner, logger: logger, debounce: DefaultDebounce}
	for _, option := range options {
		if option != nil {
			option(watcher)
		}
	}
	return watcher, nil
}

// Watch monitors every directory of projects until executionContext is canceled.
func (watcher *Watcher) Watch(executionContext context.Context, projects []audit.Project) error {
	fileWatcher, creationError := fsnotify.NewWatcher()
	if creationError != nil {
		return creationError
	}
	defer fileWatcher.Close()

	for _, project := range projects {
		watcher.addRecursive(fileWatcher, project.Root)
	}
	watcher.logger.Info(watchStartedMessageConstant, zap.Int(logFieldProjectCountConstant, len(projects)))

	pending := newChangeBatch(projects)
	flushSignal := make(chan struct{}, 1)
	var timerMutex sync.Mutex
	var debounceTimer *time.Timer
	defer func() {
		timerMutex.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		timerMutex.Unlock()
	}()

	for {
		select {
		case <-executionContext.Done():
			watcher.logger.Info(watchStoppedMessageConstant)
			return nil
		case event, open := <-fileWatcher.Events:
			if !open {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, statError := os.Stat(event.Name); statError == nil && info.IsDir() {
					watcher.addRecursive(fileWatcher, event.Name)
				}
			}
			if !relevantEvent(event) || !pending.record(event.Name) {
				continue
			}
			timerMutex.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcher.debounce, func() {
				select {
				case flushSignal <- struct{}{}:
				default:
				}
			})
			timerMutex.Unlock()
		case watchError, open := <-fileWatcher.Errors:
			if !open {
				return nil
			}
			watcher.logger.Warn(watchErrorMessageConstant, zap.Error(watchError))
		case <-flushSignal:
			watcher.runBatch(executionContext, pending.drain())
		}
	}
}

func (watcher *Watcher) runBatch(executionContext context.Context, batch []projectChanges) {
	for _, changes := range batch {
		if executionContext.Err() != nil {
			return
		}
		if !watcher.shouldAudit(executionContext, changes.project) {
			continue
		}
		if watcher.invalidator != nil {
			watcher.invalidator.Invalidate(changes.project.ManifestReference())
			watcher.invalidator.Invalidate(changes.project.ResourceReference())
		}

		report, runError := watcher.runner.Run(executionContext, audit.BuildRequest{
			Kind:         audit.BuildKindAuto,
			Project:      changes.project,
			ChangedFiles: changes.files,
		})
		if runError != nil {
			watcher.logger.Error(batchRunFailedMessageConstant, zap.String(logFieldProjectConstant, changes.project.Root), zap.Strings(logFieldChangedFilesConstant, changes.files), zap.Error(runError))
			continue
		}
		if watcher.reportHandler != nil {
			watcher.reportHandler(report)
		}
	}
}

func (watcher *Watcher) shouldAudit(executionContext context.Context, project audit.Project) bool {
	if !watcher.requireRegistration || watcher.registration == nil {
		return true
	}
	registered, registrationError := watcher.registration.IsRegistered(executionContext, project)
	if registrationError != nil {
		watcher.logger.Warn(batchRegistrationFailedMessage, zap.String(logFieldProjectConstant, project.Root), zap.Error(registrationError))
		return false
	}
	if !registered {
		watcher.logger.Debug(batchSkippedUnregisteredMessage, zap.String(logFieldProjectConstant, project.Root))
	}
	return registered
}

func (watcher *Watcher) addRecursive(fileWatcher *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil || !directoryEntry.IsDir() {
			return nil
		}
		if _, ignored := ignoredDirectoryNames[directoryEntry.Name()]; ignored && path != root {
			return fs.SkipDir
		}
		if addError := fileWatcher.Add(path); addError != nil {
			watcher.logger.Warn(watchAddFailedMessageConstant, zap.String(logFieldDirectoryConstant, path), zap.Error(addError))
		}
		return nil
	})
}

func relevantEvent(event fsnotify.Event) bool {
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

type projectChanges struct {
	project audit.Project
	files   []string
}

// changeBatch accumulates project-relative changed names per project.
type changeBatch struct {
	mutex    sync.Mutex
	projects []audit.Project
	pending  map[string]map[string]struct{}
}

func newChangeBatch(projects []audit.Project) *changeBatch {
	ordered := append([]audit.Project{}, projects...)
	sort.SliceStable(ordered, func(left int, right int) bool {
		return len(ordered[left].Root) > len(ordered[right].Root)
	})
	return &changeBatch{projects: ordered, pending: make(map[string]map[string]struct{})}
}

// record attributes path to the innermost project containing it and reports whether it was kept.
func (batch *changeBatch) record(path string) bool {
	for _, project := range batch.projects {
		relativePath, relativeError := filepath.Rel(project.Root, path)
		if relativeError != nil || relativePath == "." || strings.HasPrefix(relativePath, "..") {
			continue
		}
		relativePath = filepath.ToSlash(relativePath)
		if ignoredPath(relativePath) {
			return false
		}

		batch.mutex.Lock()
		defer batch.mutex.Unlock()
		files, exists := batch.pending[project.Root]
		if !exists {
			files = make(map[string]struct{})
			batch.pending[project.Root] = files
		}
		files[relativePath] = struct{}{}
		return true
	}
	return false
}

// drain returns the accumulated changes ordered by project root and resets the batch.
func (batch *changeBatch) drain() []projectChanges {
	batch.mutex.Lock()
	defer batch.mutex.Unlock()

	drained := make([]projectChanges, 0, len(batch.pending))
	for _, project := range batch.projects {
		files, exists := batch.pending[project.Root]
		if !exists {
			continue
		}
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		drained = append(drained, projectChanges{project: project, files: names})
	}
	sort.Slice(drained, func(left int, right int) bool {
		return drained[left].project.Root < drained[right].project.Root
	})
	batch.pending = make(map[string]map[string]struct{})
	return drained
}

func ignoredPath(relativePath string) bool {
	segments := strings.Split(relativePath, "/")
	for _, segment := range segments {
		if _, ignored := ignoredDirectoryNames[segment]; ignored {
			return true
		}
	}
	baseName := segments[len(segments)-1]
	return baseName == descriptorFileNameConstant || strings.HasPrefix(baseName, temporaryFilePrefixConstant)
}
