package projects

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/dependencies"
	"github.com/temirov/propaudit/internal/findings"
	flagutils "github.com/temirov/propaudit/internal/utils/flags"
	"github.com/temirov/propaudit/internal/watch"
)

const (
	watchUseConstant              = "watch [root ...]"
	watchShortDescription         = "Audit projects whenever their files change"
	watchLongDescription          = "watch monitors project directories and audits a project after its manifest or property file changes."
	debounceFlagNameConstant      = "debounce"
	debounceFlagUsageConstant     = "Quiet period that closes a batch of file events."
	watchFormatFlagUsageConstant  = "Format of the report printed after each audit."
	watchMarkersFlagUsageConstant = "Persist findings as markers."
	watchReportFailedMessage      = "unable to render audit report"
)

type watchFlagValues struct {
	debounce time.Duration
	format   string
	markers  bool
}

// WatchCommandBuilder assembles the watch command.
type WatchCommandBuilder struct {
	LoggerProvider             LoggerProvider
	ConfigurationProvider      func() WatchConfiguration
	StoreConfigurationProvider func() StoreConfiguration
	ToolVersion                string
	Collaborators
}

// Build constructs the watch command.
func (builder *WatchCommandBuilder) Build() (*cobra.Command, error) {
	defaults := DefaultToolsConfiguration().Watch
	flagValues := &watchFlagValues{}

	command := &cobra.Command{
		Use:   watchUseConstant,
		Short: watchShortDescription,
		Long:  watchLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, flagValues)
		},
	}

	flagSet := command.Flags()
	flagSet.DurationVar(&flagValues.debounce, debounceFlagNameConstant, defaults.Debounce, debounceFlagUsageConstant)
	flagutils.BindChoiceFlag(flagSet, &flagValues.format, formatFlagNameConstant, defaults.Format, formatChoices, watchFormatFlagUsageConstant)
	flagSet.BoolVar(&flagValues.markers, markersFlagNameConstant, defaults.Markers, watchMarkersFlagUsageConstant)

	return command, nil
}

func (builder *WatchCommandBuilder) run(command *cobra.Command, arguments []string, flagValues *watchFlagValues) error {
	configuration := builder.resolveConfiguration(command, flagValues)
	logger := resolveLogger(builder.LoggerProvider)

	executionContext, stop := signal.NotifyContext(commandContext(command), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	persistence, persistenceError := openPersistence(executionContext, builder.Collaborators, storeConfiguration, logger)
	if persistenceError != nil {
		return persistenceError
	}
	defer func() {
		_ = persistence.Close()
	}()

	reporter := newBatchReporter(format, command.OutOrStdout(), builder.ToolVersion, logger)
	findingSink := audit.FindingSink(reporter.sink)
	if configuration.Markers {
		findingSink = findings.NewMultiSink(reporter.sink, persistence.FindingSink)
	}

	engine, engineError := audit.NewEngine(fileSource, findingSink, logger, audit.WithProgressReporter(audit.NewLoggingProgressReporter(logger)))
	if engineError != nil {
		return engineError
	}

	watchOptions := []watch.Option{
		watch.WithDebounce(configuration.Debounce),
		watch.WithRegistration(persistence.Registration, configuration.RequireRegistration),
		watch.WithReportHandler(reporter.handle),
	}
	if invalidator, supportsInvalidation := fileSource.(watch.CacheInvalidator); supportsInvalidation {
		watchOptions = append(watchOptions, watch.WithCacheInvalidator(invalidator))
	}

	watcher, watcherError := watch.NewWatcher(engine, logger, watchOptions...)
	if watcherError != nil {
		return watcherError
	}
	return watcher.Watch(executionContext, projects)
}

func (builder *WatchCommandBuilder) resolveConfiguration(command *cobra.Command, flagValues *watchFlagValues) WatchConfiguration {
	configuration := DefaultToolsConfiguration().Watch
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	if flagChanged(command, debounceFlagNameConstant) {
		configuration.Debounce = flagValues.debounce
	}
	if flagChanged(command, formatFlagNameConstant) {
		configuration.Format = flagValues.format
	}
	if flagChanged(command, markersFlagNameConstant) {
		configuration.Markers = flagValues.markers
	}
	return configuration.sanitize()
}

// batchReporter prints the findings of each completed watch run.
type batchReporter struct {
	mutex  sync.Mutex
	sink   *findings.ReportSink
	logger *zap.Logger
}

func newBatchReporter(format findings.Format, writer io.Writer, toolVersion string, logger *zap.Logger) *batchReporter {
	return &batchReporter{sink: findings.NewReportSink(format, writer, findings.WithToolVersion(toolVersion)), logger: logger}
}

func (reporter *batchReporter) handle(report audit.Report) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	if !report.Completed() {
		return
	}
	if flushError := reporter.sink.Flush(); flushError != nil {
		reporter.logger.Warn(watchReportFailedMessage, zap.String(logFieldProjectConstant, report.Project.Root), zap.Error(flushError))
	}
}
