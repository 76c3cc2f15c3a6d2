package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	auditTaskNameConstant              = "Audit plugin manifest"
	auditTaskTotalWorkConstant         = 4
	auditClearFailedMessageConstant    = "unable to clear previous findings"
	auditCanceledMessageConstant       = "audit canceled"
	auditCompletedMessageConstant      = "audit completed"
	auditSkippedMessageConstant        = "audit skipped"
	auditFileAbsentMessageConstant     = "audited file absent; treating as empty"
	auditFileReadFailedMessageConstant = "unable to read audited file; treating as empty"
	auditReportFailedMessageConstant   = "unable to report finding"
	auditClearErrorTemplateConstant    = "%w for %s: %v"
	logFieldProjectNameConstant        = "project"
	logFieldProjectRootConstant        = "root"
	logFieldFileConstant               = "file"
	logFieldKeyConstant                = "key"
	logFieldMissingCountConstant       = "missing"
	logFieldUnusedCountConstant        = "unused"
	logFieldBuildKindConstant          = "build_kind"
	logFieldChangedFileCountConstant   = "changed_files"
	fileSourceNotConfiguredMessage     = "audit engine requires a file source"
	findingSinkNotConfiguredMessage    = "audit engine requires a finding sink"
)

var (
	// ErrFileSourceNotConfigured indicates a missing FileSource dependency.
	ErrFileSourceNotConfigured = errors.New(fileSourceNotConfiguredMessage)
	// ErrFindingSinkNotConfigured indicates a missing FindingSink dependency.
	ErrFindingSinkNotConfigured = errors.New(findingSinkNotConfiguredMessage)
	// ErrClearFailed reports that previous findings could not be cleared, so the run was aborted.
	ErrClearFailed = errors.New(auditClearFailedMessageConstant)
)

// EngineOption customizes an Engine.
type EngineOption func(engine *Engine)

// WithProgressReporter attaches a progress observer to the engine.
func WithProgressReporter(reporter ProgressReporter) EngineOption {
	return func(engine *Engine) {
		if reporter != nil {
			engine.progressReporter = reporter
		}
	}
}

// Engine audits projects and publishes the resulting findings.
type Engine struct {
	fileSource       FileSource
	findingSink      FindingSink
	logger           *zap.Logger
	progressReporter ProgressReporter
	projectLocks     *projectLocks
}

// NewEngine constructs an Engine reading through fileSource and reporting to findingSink.
func NewEngine(fileSource FileSource, findingSink FindingSink, logger *zap.Logger, options ...EngineOption) (*Engine, error) {
	if fileSource == nil {
		return nil, ErrFileSourceNotConfigured
	}
	if findingSink == nil {
		return nil, ErrFindingSinkNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		fileSource:       fileSource,
		findingSink:      findingSink,
		logger:           logger,
		progressReporter: noopProgressReporter{},
		projectLocks:     newProjectLocks(),
	}
	for _, option := range options {
		if option != nil {
			option(engine)
		}
	}
	return engine, nil
}

// Run audits the requested project when ShouldAudit approves the request.
func (engine *Engine) Run(executionContext context.Context, request BuildRequest) (Report, error) {
	if !ShouldAudit(request.Kind, request.ChangedFiles) {
		engine.logger.Debug(
			auditSkippedMessageConstant,
			zap.String(logFieldProjectNameConstant, request.Project.Name),
			zap.String(logFieldBuildKindConstant, request.Kind.String()),
			zap.Int(logFieldChangedFileCountConstant, len(request.ChangedFiles)),
		)
		return Report{Project: request.Project, Status: StatusSkipped}, nil
	}
	return engine.Audit(executionContext, request.Project)
}

// Audit performs a full audit of the project. Previous findings are cleared
// first; if clearing fails the run aborts with ErrClearFailed. A canceled
// context ends the run with StatusCanceled and no new findings reported.
func (engine *Engine) Audit(executionContext context.Context, project Project) (Report, error) {
	unlock := engine.projectLocks.lock(project.Root)
	defer unlock()

	engine.progressReporter.BeginTask(auditTaskNameConstant, auditTaskTotalWorkConstant)
	defer engine.progressReporter.Done()

	if clearError := engine.findingSink.ClearAll(executionContext, OwnerIdentifier, project); clearError != nil {
		engine.logger.Error(
			auditClearFailedMessageConstant,
			zap.String(logFieldProjectNameConstant, project.Name),
			zap.String(logFieldProjectRootConstant, project.Root),
			zap.Error(clearError),
		)
		return Report{Project: project, Status: StatusAborted}, fmt.Errorf(auditClearErrorTemplateConstant, ErrClearFailed, project.Root, clearError)
	}

	if engine.canceled(executionContext) {
		return engine.canceledReport(project), nil
	}

	var manifestKeys keyscan.KeyMap
	var resourceKeys keyscan.KeyMap
	scanGroup := errgroup.Group{}
	scanGroup.Go(func() error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		manifestReference := project.ManifestReference()
		manifestKeys = keyscan.ScanManifest(engine.readContent(executionContext, manifestReference), manifestReference)
		engine.progressReporter.Worked(1)
		return nil
	})
	scanGroup.Go(func() error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		resourceReference := project.ResourceReference()
		resourceKeys = keyscan.ScanResources(engine.readContent(executionContext, resourceReference), resourceReference)
		engine.progressReporter.Worked(1)
		return nil
	})
	if scanGroup.Wait() != nil || engine.canceled(executionContext) {
		return engine.canceledReport(project), nil
	}

	missingFindings := missingKeyFindings(manifestKeys, resourceKeys)
	engine.progressReporter.Worked(1)

	if engine.canceled(executionContext) {
		return engine.canceledReport(project), nil
	}

	unusedFindings := unusedKeyFindings(manifestKeys, resourceKeys)
	engine.progressReporter.Worked(1)

	if engine.canceled(executionContext) {
		return engine.canceledReport(project), nil
	}

	findings := append(missingFindings, unusedFindings...)
	for _, finding := range findings {
		if reportError := engine.findingSink.Report(executionContext, finding); reportError != nil {
			engine.logger.Warn(
				auditReportFailedMessageConstant,
				zap.String(logFieldProjectNameConstant, project.Name),
				zap.String(logFieldKeyConstant, finding.Key()),
				zap.Error(reportError),
			)
		}
	}

	engine.logger.Info(
		auditCompletedMessageConstant,
		zap.String(logFieldProjectNameConstant, project.Name),
		zap.String(logFieldProjectRootConstant, project.Root),
		zap.Int(logFieldMissingCountConstant, len(missingFindings)),
		zap.Int(logFieldUnusedCountConstant, len(unusedFindings)),
	)

	return Report{
		Project:      project,
		Status:       StatusCompleted,
		Findings:     findings,
		MissingCount: len(missingFindings),
		UnusedCount:  len(unusedFindings),
	}, nil
}

// Clean removes every finding the auditor reported for the project.
func (engine *Engine) Clean(executionContext context.Context, project Project) error {
	unlock := engine.projectLocks.lock(project.Root)
	defer unlock()

	if clearError := engine.findingSink.ClearAll(executionContext, OwnerIdentifier, project); clearError != nil {
		return fmt.Errorf(auditClearErrorTemplateConstant, ErrClearFailed, project.Root, clearError)
	}
	return nil
}

func (engine *Engine) readContent(executionContext context.Context, reference keyscan.FileReference) string {
	if !engine.fileSource.Exists(executionContext, reference) {
		engine.logger.Debug(auditFileAbsentMessageConstant, zap.String(logFieldFileConstant, reference.String()))
		return ""
	}

	content, readError := engine.fileSource.ReadText(executionContext, reference)
	if readError != nil {
		if isNotExistError(readError) {
			engine.logger.Debug(auditFileAbsentMessageConstant, zap.String(logFieldFileConstant, reference.String()))
			return ""
		}
		engine.logger.Warn(auditFileReadFailedMessageConstant, zap.String(logFieldFileConstant, reference.String()), zap.Error(readError))
		return ""
	}
	return content
}

func (engine *Engine) canceled(executionContext context.Context) bool {
	return executionContext.Err() != nil
}

func (engine *Engine) canceledReport(project Project) Report {
	engine.logger.Info(
		auditCanceledMessageConstant,
		zap.String(logFieldProjectNameConstant, project.Name),
		zap.String(logFieldProjectRootConstant, project.Root),
	)
	return Report{Project: project, Status: StatusCanceled}
}
