package projects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/dependencies"
	"github.com/temirov/propaudit/internal/findings"
	flagutils "github.com/temirov/propaudit/internal/utils/flags"
)

const (
	auditUseConstant                 = "audit [root ...]"
	auditShortDescription            = "Audit plugin manifests against their property files"
	auditLongDescription             = "audit reports manifest keys missing from plugin.properties and property entries the manifest never references."
	kindFlagNameConstant             = "kind"
	kindFlagUsageConstant            = "Build kind deciding whether change information triggers the audit."
	changedFlagNameConstant          = "changed"
	changedFlagUsageConstant         = "Project-relative changed file name (repeatable); implies an incremental build."
	sinceFlagNameConstant            = "since"
	sinceFlagUsageConstant           = "Git revision to diff against for changed files; implies an incremental build."
	formatFlagNameConstant           = "format"
	formatFlagUsageConstant          = "Report format."
	outputFlagNameConstant           = "output"
	outputFlagUsageConstant          = "Write the report to a file instead of standard output."
	markersFlagNameConstant          = "markers"
	markersFlagUsageConstant         = "Also persist findings as markers."
	failOnFlagNameConstant           = "fail-on"
	failOnFlagUsageConstant          = "Exit with an error when findings at or above the severity exist."
	reportFileModeConstant           = 0o644
	findingsThresholdTemplate        = "%w: %d finding(s) at or above %s"
	findingsThresholdMessageConstant = "findings exceed the failure threshold"
	auditCanceledTemplateConstant    = "audit canceled: %w"
	remoteSinceSkippedMessage        = "change detection unavailable for remote project; skipping"
	auditRunFinishedMessageConstant  = "audit run finished"
	logFieldMissingConstant          = "missing"
	logFieldUnusedConstant           = "unused"
)

// ErrFindingsThreshold reports that an audit produced findings at or above the --fail-on severity.
var ErrFindingsThreshold = errors.New(findingsThresholdMessageConstant)

type auditFlagValues struct {
	kind    string
	changed []string
	since   string
	format  string
	output  string
	markers bool
	failOn  string
}

// AuditCommandBuilder assembles the audit command.
type AuditCommandBuilder struct {
	LoggerProvider             LoggerProvider
	ConfigurationProvider      func() AuditConfiguration
	StoreConfigurationProvider func() StoreConfiguration
	ToolVersion                string
	Collaborators
}

// Build constructs the audit command.
func (builder *AuditCommandBuilder) Build() (*cobra.Command, error) {
	defaults := DefaultToolsConfiguration().Audit
	flagValues := &auditFlagValues{}

	command := &cobra.Command{
		Use:   auditUseConstant,
		Short: auditShortDescription,
		Long:  auditLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, flagValues)
		},
	}

	flagSet := command.Flags()
	flagutils.BindChoiceFlag(flagSet, &flagValues.kind, kindFlagNameConstant, defaults.Kind, buildKindChoices, kindFlagUsageConstant)
	flagSet.StringArrayVar(&flagValues.changed, changedFlagNameConstant, nil, changedFlagUsageConstant)
	flagSet.StringVar(&flagValues.since, sinceFlagNameConstant, "", sinceFlagUsageConstant)
	flagutils.BindChoiceFlag(flagSet, &flagValues.format, formatFlagNameConstant, defaults.Format, formatChoices, formatFlagUsageConstant)
	flagSet.StringVar(&flagValues.output, outputFlagNameConstant, "", outputFlagUsageConstant)
	flagSet.BoolVar(&flagValues.markers, markersFlagNameConstant, defaults.Markers, markersFlagUsageConstant)
	flagutils.BindChoiceFlag(flagSet, &flagValues.failOn, failOnFlagNameConstant, defaults.FailOn, failOnChoices, failOnFlagUsageConstant)

	return command, nil
}

func (builder *AuditCommandBuilder) run(command *cobra.Command, arguments []string, flagValues *auditFlagValues) error {
	configuration := builder.resolveConfiguration(command, flagValues)
	logger := resolveLogger(builder.LoggerProvider)
	executionContext := commandContext(command)

	kind, kindError := audit.ParseBuildKind(configuration.Kind)
	if kindError != nil {
		return kindError
	}
	changeRequested := len(flagValues.changed) > 0 || len(flagValues.since) > 0
	if changeRequested && !flagChanged(command, kindFlagNameConstant) {
		kind = audit.BuildKindIncremental
	}

	format, formatError := findings.ParseFormat(configuration.Format)
	if formatError != nil {
		return formatError
	}

	projects, projectsError := resolveProjects(builder.Discoverer, determineRoots(arguments, configuration.Roots), logger)
	if projectsError != nil {
		return projectsError
	}

	storeConfiguration := resolveStoreConfiguration(builder.StoreConfigurationProvider)
	fileSource, sourceError := dependencies.ResolveFileSource(builder.FileSource, storeConfiguration.Configuration, logger)
	if sourceError != nil {
		return sourceError
	}

	reportBuffer := &bytes.Buffer{}
	reportSink := findings.NewReportSink(format, reportBuffer, findings.WithToolVersion(builder.ToolVersion))
	findingSink := audit.FindingSink(reportSink)
	if configuration.Markers {
		persistence, persistenceError := openPersistence(executionContext, builder.Collaborators, storeConfiguration, logger)
		if persistenceError != nil {
			return persistenceError
		}
		defer func() {
			_ = persistence.Close()
		}()
		findingSink = findings.NewMultiSink(reportSink, persistence.FindingSink)
	}

	engine, engineError := audit.NewEngine(fileSource, findingSink, logger, audit.WithProgressReporter(audit.NewLoggingProgressReporter(logger)))
	if engineError != nil {
		return engineError
	}

	var detector dependencies.ChangeDetector
	if len(flagValues.since) > 0 {
		gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger)
		if executorError != nil {
			return executorError
		}
		resolvedDetector, detectorError := dependencies.ResolveChangeDetector(builder.ChangeDetector, gitExecutor)
		if detectorError != nil {
			return detectorError
		}
		detector = resolvedDetector
	}

	failingFindings := 0
	for _, project := range projects {
		request, requestError := builder.buildRequest(executionContext, kind, project, flagValues, detector, logger)
		if requestError != nil {
			return requestError
		}

		report, runError := engine.Run(executionContext, request)
		if runError != nil {
			return runError
		}
		if report.Status == audit.StatusCanceled {
			return fmt.Errorf(auditCanceledTemplateConstant, context.Cause(executionContext))
		}

		logger.Info(
			auditRunFinishedMessageConstant,
			zap.String(logFieldProjectConstant, project.Root),
			zap.String(logFieldStatusConstant, string(report.Status)),
			zap.Int(logFieldMissingConstant, report.MissingCount),
			zap.Int(logFieldUnusedConstant, report.UnusedCount),
		)
		failingFindings += report.CountAtOrAbove(audit.Severity(configuration.FailOn))
	}

	if flushError := reportSink.Flush(); flushError != nil {
		return flushError
	}
	if writeError := builder.writeReport(command, flagValues.output, reportBuffer.Bytes()); writeError != nil {
		return writeError
	}

	if failingFindings > 0 {
		return fmt.Errorf(findingsThresholdTemplate, ErrFindingsThreshold, failingFindings, configuration.FailOn)
	}
	return nil
}

func (builder *AuditCommandBuilder) buildRequest(executionContext context.Context, kind audit.BuildKind, project audit.Project, flagValues *auditFlagValues, detector dependencies.ChangeDetector, logger *zap.Logger) (audit.BuildRequest, error) {
	request := audit.BuildRequest{Kind: kind, Project: project}
	if len(flagValues.changed) > 0 {
		request.ChangedFiles = append([]string{}, flagValues.changed...)
	}
	if detector == nil {
		return request, nil
	}
	if isRemoteRoot(project.Root) {
		logger.Warn(remoteSinceSkippedMessage, zap.String(logFieldProjectConstant, project.Root))
		return request, nil
	}

	changedFiles, detectionError := detector.ChangedFiles(executionContext, project.Root, flagValues.since)
	if detectionError != nil {
		return audit.BuildRequest{}, detectionError
	}
	request.ChangedFiles = append(request.ChangedFiles, changedFiles...)
	if request.ChangedFiles == nil {
		request.ChangedFiles = []string{}
	}
	return request, nil
}

func (builder *AuditCommandBuilder) writeReport(command *cobra.Command, outputPath string, report []byte) error {
	if len(outputPath) == 0 {
		_, writeError := io.Copy(command.OutOrStdout(), bytes.NewReader(report))
		return writeError
	}
	fileSystem := dependencies.ResolveFileSystem(builder.FileSystem)
	return fileSystem.WriteFileAtomic(projectHomeDirectoryExpander.Expand(outputPath), report, reportFileModeConstant)
}

func (builder *AuditCommandBuilder) resolveConfiguration(command *cobra.Command, flagValues *auditFlagValues) AuditConfiguration {
	configuration := DefaultToolsConfiguration().Audit
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	if flagChanged(command, kindFlagNameConstant) {
		configuration.Kind = flagValues.kind
	}
	if flagChanged(command, formatFlagNameConstant) {
		configuration.Format = flagValues.format
	}
	if flagChanged(command, markersFlagNameConstant) {
		configuration.Markers = flagValues.markers
	}
	if flagChanged(command, failOnFlagNameConstant) {
		configuration.FailOn = flagValues.failOn
	}
	return configuration.sanitize()
}
